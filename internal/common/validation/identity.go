package validation

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	// Indian mobile numbers, optionally prefixed with +91 or 0
	phonePattern   = regexp.MustCompile(`^(?:\+91|0)?[6-9]\d{9}$`)
	aadhaarPattern = regexp.MustCompile(`^[2-9]\d{11}$`)
	panPattern     = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
)

func ValidateEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

// ValidatePhone ignores spaces and dashes.
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(stripSeparators(phone))
}

// ValidateAadhaar accepts the 12 digit number with or without grouping spaces.
func ValidateAadhaar(number string) bool {
	return aadhaarPattern.MatchString(stripSeparators(number))
}

func ValidatePAN(number string) bool {
	return panPattern.MatchString(strings.ToUpper(strings.TrimSpace(number)))
}

// NormalizePhone returns a valid Indian mobile number in E.164 form
// (+91XXXXXXXXXX).
func NormalizePhone(phone string) (string, bool) {
	p := stripSeparators(phone)
	if !phonePattern.MatchString(p) {
		return "", false
	}
	return "+91" + p[len(p)-10:], true
}

func stripSeparators(s string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(s))
}
