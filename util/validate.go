package util

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ValidateUUID validates that value is a UUID string and returns it parsed.
func ValidateUUID(field, value string) (uuid.UUID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return uuid.Nil, fmt.Errorf("%s cannot be empty", field)
	}
	id, err := uuid.Parse(trimmed)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: invalid UUID format: %w", field, err)
	}
	return id, nil
}
