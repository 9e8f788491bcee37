// internal/sms/phone.go
package sms

import "strings"

// stripNonDigits drops everything except ASCII digits.
func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidatePhoneNumber accepts numbers that normalize to exactly 10 US digits
// with a valid NANP pattern: the first digit of the area code and of the
// exchange code must be in [2-9].
func ValidatePhoneNumber(phone string) bool {
	digits := stripNonDigits(phone)
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return false
	}
	if digits[0] < '2' || digits[0] > '9' {
		return false
	}
	if digits[3] < '2' || digits[3] > '9' {
		return false
	}
	return true
}

// FormatPhoneNumber normalizes a US number to E.164. 10-digit numbers get a
// +1 prefix, 11-digit numbers already starting with 1 get a bare + prefix.
// Anything else is returned unchanged and the caller must treat it as
// unformattable.
func FormatPhoneNumber(phone string) string {
	digits := stripNonDigits(phone)
	switch {
	case len(digits) == 10:
		return "+1" + digits
	case len(digits) == 11 && digits[0] == '1':
		return "+" + digits
	default:
		return phone
	}
}
