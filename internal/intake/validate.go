package intake

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	zipPattern   = regexp.MustCompile(`\b(\d{5})(?:-\d{4})?\b`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nonDigit     = regexp.MustCompile(`\D`)
	spaces       = regexp.MustCompile(`\s+`)
)

// MatchOption returns the canonical option equal to input, ignoring case
// and surrounding whitespace.
func MatchOption(options []string, input string) (string, bool) {
	needle := normalize(input)
	for _, opt := range options {
		if normalize(opt) == needle {
			return opt, true
		}
	}
	return "", false
}

// ParseLocation pulls the 5-digit ZIP out of free text; whatever precedes it
// is taken as the city.
func ParseLocation(input string) (city, zip string, ok bool) {
	input = collapse(input)
	loc := zipPattern.FindStringSubmatchIndex(input)
	if loc == nil {
		return "", "", false
	}
	zip = input[loc[2]:loc[3]]
	city = strings.Trim(input[:loc[0]], " ,.-")
	// "OH 43952" style answers: drop a trailing two-letter state code.
	if fields := strings.Fields(city); len(fields) > 1 {
		last := fields[len(fields)-1]
		if len(last) == 2 && isUpperAlpha(last) {
			city = strings.Trim(strings.Join(fields[:len(fields)-1], " "), " ,")
		}
	}
	return city, zip, true
}

// CleanName accepts 2-80 characters containing at least one letter. Text
// with a question mark is never a name.
func CleanName(input string) (string, bool) {
	name := collapse(input)
	if strings.Contains(name, "?") {
		return "", false
	}
	if len([]rune(name)) < 2 || len([]rune(name)) > 80 {
		return "", false
	}
	for _, r := range name {
		if unicode.IsLetter(r) {
			return name, true
		}
	}
	return "", false
}

// ValidEmail is a deliberately loose shape check; the mailbox is verified by
// whoever follows up.
func ValidEmail(input string) (string, bool) {
	email := strings.TrimRight(strings.ToLower(strings.TrimSpace(input)), "?")
	if !emailPattern.MatchString(email) {
		return "", false
	}
	return email, true
}

// NormalizePhone converts a US number to E.164. Ten digits, or eleven with a
// leading 1, are accepted.
func NormalizePhone(input string) (string, bool) {
	digits := nonDigit.ReplaceAllString(input, "")
	switch {
	case len(digits) == 10:
		return "+1" + digits, true
	case len(digits) == 11 && digits[0] == '1':
		return "+" + digits, true
	}
	return "", false
}

// FirstName returns the first word of a full name.
func FirstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func normalize(s string) string {
	return strings.ToLower(collapse(s))
}

func collapse(s string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

func isUpperAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
