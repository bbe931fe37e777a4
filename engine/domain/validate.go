package domain

import (
	"strings"
	"unicode/utf8"
)

// MaxQueryRunes bounds the question length accepted by Search.
const MaxQueryRunes = 4000

// ValidateQuery rejects blank or oversized questions.
func ValidateQuery(q string) error {
	text := strings.TrimSpace(q)
	if text == "" {
		return NewValidationError("query", q, ErrInvalidQuery)
	}
	if n := utf8.RuneCountInString(text); n > MaxQueryRunes {
		return NewValidationError("query", string([]rune(text)[:64])+"...", ErrQueryTooLong)
	}
	return nil
}
