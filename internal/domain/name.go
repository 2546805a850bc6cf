package domain

import (
	"errors"
	"unicode/utf8"
)

const MaxDisplayNameLen = 64

var (
	ErrNameEmpty   = errors.New("display name empty")
	ErrNameTooLong = errors.New("display name too long")
)

// NewDisplayName validates an attacker-controlled display name. Names are not
// unique; only length is enforced.
func NewDisplayName(name string) (string, error) {
	if name == "" {
		return "", ErrNameEmpty
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLen {
		return "", ErrNameTooLong
	}
	return name, nil
}
