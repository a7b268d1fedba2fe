package models

import (
	"strings"
	"unicode"
)

// DigitsOnly strips every non-digit rune from s.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeCPF reduces a CPF to its canonical 11-digit form by stripping
// mask characters. It does not validate length.
func NormalizeCPF(cpf string) string {
	return DigitsOnly(cpf)
}

// FormatCPF applies the display mask XXX.XXX.XXX-XX. Inputs shorter than
// 11 digits are masked as far as they go, matching the incremental masking
// the admin UI applies while the user types.
func FormatCPF(cpf string) string {
	digits := DigitsOnly(cpf)
	if len(digits) > 11 {
		digits = digits[:11]
	}

	var b strings.Builder
	for i, r := range digits {
		switch i {
		case 3, 6:
			b.WriteByte('.')
		case 9:
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FormatName capitalizes the first letter of each word and lowercases the
// rest, e.g. "ana MARIA souza" -> "Ana Maria Souza".
func FormatName(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// ContainsDigit reports whether s contains any decimal digit rune.
func ContainsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
