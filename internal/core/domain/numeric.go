package domain

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseLeadingInt reads the base-10 integer prefix of raw, ignoring leading
// whitespace and anything after the last digit. ok is false when no digit is found.
func ParseLeadingInt(raw string) (int, bool) {
	s := strings.TrimLeftFunc(raw, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
