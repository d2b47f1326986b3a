package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// one or more syllables of letters followed by a tone digit
	jyutpingRegex = regexp.MustCompile(`^[a-z]+[1-6](?: [a-z]+[1-6])*$`)
)

const (
	maxWordLength     = 32
	maxDeckNameLength = 100
	MaxTopWordsLimit  = 100
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// RequireID checks that an identifier was supplied
func RequireID(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{Field: field, Message: field + " is required"}
	}
	return nil
}

// ResponseTime rejects negative times and clamps anything above max to max
func ResponseTime(ms, max int) (int, error) {
	if ms < 0 {
		return 0, ValidationError{Field: "responseTimeMs", Message: "response time must not be negative"}
	}
	if ms > max {
		return max, nil
	}
	return ms, nil
}

// Limit bounds a requested result count. Zero means the caller's default.
func Limit(n int) error {
	if n < 0 || n > MaxTopWordsLimit {
		return ValidationError{Field: "limit", Message: fmt.Sprintf("limit must be between 1 and %d", MaxTopWordsLimit)}
	}
	return nil
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidateDeckName checks if a deck name is valid
func ValidateDeckName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ValidationError{Field: "name", Message: "deck name is required"}
	}
	if utf8.RuneCountInString(name) > maxDeckNameLength {
		return ValidationError{Field: "name", Message: fmt.Sprintf("deck name must be at most %d characters", maxDeckNameLength)}
	}
	return nil
}

// ValidateWord checks a word's display text and its jyutping romanization.
// Jyutping must already be lowercase with single-space syllable separators.
func ValidateWord(text, jyutping string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ValidationError{Field: "text", Message: "word text is required"}
	}
	if utf8.RuneCountInString(text) > maxWordLength {
		return ValidationError{Field: "text", Message: fmt.Sprintf("word must be at most %d characters", maxWordLength)}
	}
	if !jyutpingRegex.MatchString(jyutping) {
		return ValidationError{Field: "jyutping", Message: fmt.Sprintf("invalid jyutping %q", jyutping)}
	}
	return nil
}
