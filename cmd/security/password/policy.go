package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var trivialPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "123456": {}, "1234567": {}, "12345678": {},
	"qwerty": {}, "qwerty123": {}, "letmein": {}, "111111": {}, "abc123": {},
}

// Validate checks the length policy and, when enabled, rejects trivially guessable passwords.
func (c Config) Validate(password string) error {
	n := utf8.RuneCountInString(password)
	switch {
	case n < c.Policy.MinLength:
		return ErrPasswordTooShort
	case n > c.Policy.MaxLength:
		return ErrPasswordTooLong
	}
	if c.Policy.RejectVeryWeak && looksVeryWeak(password) {
		return ErrWeakPassword
	}
	return nil
}

func looksVeryWeak(pw string) bool {
	s := strings.TrimSpace(pw)
	if s == "" {
		return true
	}
	if _, ok := trivialPasswords[strings.ToLower(s)]; ok {
		return true
	}

	first, _ := utf8.DecodeRuneInString(s)
	repeated, digits := true, true
	for _, r := range s {
		if r != first {
			repeated = false
		}
		if !unicode.IsDigit(r) {
			digits = false
		}
	}
	return repeated || (digits && utf8.RuneCountInString(s) < 10)
}
