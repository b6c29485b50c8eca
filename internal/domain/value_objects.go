package domain

import (
	"strings"
	"unicode/utf8"
)

// MaxTitleLength bounds the required text field of any row.
const MaxTitleLength = 500

// Title is a validated title value object (1-500 characters after trimming).
type Title struct {
	value string
}

// NewTitle creates a new Title, validating the input.
func NewTitle(s string) (Title, error) {
	s = strings.TrimSpace(s)

	if s == "" {
		return Title{}, ErrTitleRequired
	}

	if utf8.RuneCountInString(s) > MaxTitleLength {
		return Title{}, ErrTitleTooLong
	}

	return Title{value: s}, nil
}

// String returns the title value.
func (t Title) String() string {
	return t.value
}

// IsBlank reports whether v would be rejected as a title.
// Non-string values count as blank.
func IsBlank(v any) bool {
	s, ok := v.(string)
	if !ok {
		return true
	}
	return strings.TrimSpace(s) == ""
}
