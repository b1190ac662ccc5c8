// Package validate provides input validation for identifiers and free text
// accepted by the Highlights API.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// String validation errors
var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrInvalidUTF8       = errors.New("string is not valid UTF-8")
	ErrEmpty             = errors.New("string is empty")
)

// Limits for the helpers below.
const (
	MaxIdentifierLength = 128
	MaxFreeTextLength   = 2000
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_:.\-]+$`)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength      int            // Minimum length in runes (0 = no minimum)
	MaxLength      int            // Maximum length in runes (0 = no maximum)
	AllowedPattern *regexp.Regexp // Optional regex pattern for allowed characters
	RejectControl  bool           // Reject control characters other than tab and newline
	AllowEmpty     bool           // Whether empty strings are allowed
	TrimSpace      bool           // Whether to trim whitespace before validation
}

// String validates a string against the given constraints.
// Returns the validated (and optionally trimmed) string and an error if validation fails.
func String(s string, constraints StringConstraints) (string, error) {
	if !utf8.ValidString(s) {
		return "", ErrInvalidUTF8
	}

	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	// Get actual character count (not byte count)
	length := utf8.RuneCountInString(s)

	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}
	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}

	if constraints.AllowedPattern != nil && !constraints.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}

	if constraints.RejectControl {
		for _, r := range s {
			if unicode.IsControl(r) && r != '\n' && r != '\t' {
				return "", fmt.Errorf("%w: control character %U", ErrInvalidCharacters, r)
			}
		}
	}

	return s, nil
}

// Identifier validates a user or post id:
// - 1-128 characters
// - Letters, digits, underscore, colon, period and dash only
func Identifier(id string) (string, error) {
	return String(id, StringConstraints{
		MinLength:      1,
		MaxLength:      MaxIdentifierLength,
		AllowedPattern: identifierPattern,
	})
}

// FreeText validates optional user-supplied text such as an event label:
// - Optional (can be empty)
// - Max 2000 characters
// - No control characters besides tab and newline
func FreeText(s string) (string, error) {
	return String(s, StringConstraints{
		MaxLength:     MaxFreeTextLength,
		RejectControl: true,
		AllowEmpty:    true,
	})
}
