package upload

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	leadingFloat = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)`)
	leadingInt   = regexp.MustCompile(`^[+-]?\d+`)
	slugJunk     = regexp.MustCompile(`[^a-z0-9]+`)
)

// ParsePrice reads a legacy price such as "299,90" or "1.234,56". When a
// decimal comma is present, dots are thousands separators. Returns nil for
// empty or non-numeric input.
func ParsePrice(raw string) *float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}

	num := leadingFloat.FindString(s)
	if num == "" {
		return nil
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ParseInt reads the leading integer of raw. ok is false when there is none
// or when it is zero, which callers treat as "use the default".
func ParseInt(raw string) (int, bool) {
	num := leadingInt.FindString(strings.TrimSpace(raw))
	if num == "" {
		return 0, false
	}
	v, err := strconv.Atoi(num)
	if err != nil || v == 0 {
		return 0, false
	}
	return v, true
}

// ParseIntDefault is ParseInt with a fallback.
func ParseIntDefault(raw string, def int) int {
	if v, ok := ParseInt(raw); ok {
		return v
	}
	return def
}

// ParseIntOrNil is ParseInt with a nil fallback.
func ParseIntOrNil(raw string) *int {
	if v, ok := ParseInt(raw); ok {
		return &v
	}
	return nil
}

// ParseBool is true only for the literal "true".
func ParseBool(raw string) bool {
	return raw == "true"
}

// Slugify lowercases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	return strings.Trim(slugJunk.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// SafeName replaces every character outside [A-Za-z0-9] with an underscore.
func SafeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
