package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// GenerateID returns a prefixed opaque identifier, e.g. "listing-4f9d...".
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}
