package domain

import (
	"strings"
	"unicode/utf8"
)

const minQuestionLength = 3

// ValidateQuestion checks that a question is non-trivial before it is
// embedded. Questions are stateless; there is nothing else to validate.
func ValidateQuestion(text string) error {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < minQuestionLength {
		return Wrapf(ErrQuestionTooShort, "domain.ValidateQuestion", "got %d runes, need %d", utf8.RuneCountInString(trimmed), minQuestionLength)
	}
	return nil
}
