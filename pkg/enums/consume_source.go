package enums

import (
	"fmt"
	"strings"
)

// ConsumeSource selects the counter a consumption draws from.
type ConsumeSource string

const (
	ConsumeFromAvailable ConsumeSource = "available"
	ConsumeFromReserved  ConsumeSource = "reserved"
)

func (c ConsumeSource) IsValid() bool {
	return c == ConsumeFromAvailable || c == ConsumeFromReserved
}

// ParseConsumeSource converts raw input into ConsumeSource.
func ParseConsumeSource(value string) (ConsumeSource, error) {
	candidate := ConsumeSource(strings.ToLower(strings.TrimSpace(value)))
	if !candidate.IsValid() {
		return "", fmt.Errorf("invalid consume source %q", value)
	}
	return candidate, nil
}
