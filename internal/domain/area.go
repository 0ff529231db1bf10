package domain

import (
	"regexp"
	"strings"

	"github.com/hilthontt/tourchat/internal/infrastructure/validate"
)

const (
	MinAreaIDLength   = 3
	MaxAreaIDLength   = 50
	MinAreaNameLength = 2
	MaxAreaNameLength = 100
)

var (
	areaIDPattern = regexp.MustCompile(`^[a-z0-9_-]{3,50}$`)

	validateAreaID = validate.Field("areaId",
		validate.Required(),
		validate.LengthBetween(MinAreaIDLength, MaxAreaIDLength),
		validate.Matches(areaIDPattern.String(), "may only contain lowercase letters, digits, '-' and '_'"),
	)

	validateAreaName = validate.Field("areaName",
		validate.Required(),
		validate.Trimmed(validate.LengthBetween(MinAreaNameLength, MaxAreaNameLength)),
	)
)

// SanitizeAreaID normalizes a raw destination identifier: lowercased, stripped to the
// allowed charset and truncated. The result must still pass ValidateAreaID.
func SanitizeAreaID(raw string) (string, error) {
	lowered := strings.ToLower(strings.TrimSpace(raw))

	var sb strings.Builder
	sb.Grow(len(lowered))
	for _, r := range lowered {
		if sb.Len() >= MaxAreaIDLength {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		}
	}

	id := sb.String()
	if err := ValidateAreaID(id); err != nil {
		return "", err
	}
	return id, nil
}

// ValidateAreaID checks an already normalized identifier.
func ValidateAreaID(id string) error {
	if err := validateAreaID(id); err != nil {
		return NewValidationError("areaId", err)
	}
	return nil
}

// ValidateAreaName checks the display name of a destination.
func ValidateAreaName(name string) error {
	if err := validateAreaName(name); err != nil {
		return NewValidationError("areaName", err)
	}
	return nil
}
