package domain

import (
	"strings"
	"time"
)

// ValidAirportCode accepts an empty code or exactly three uppercase letters.
func ValidAirportCode(code string) bool {
	if code == "" {
		return true
	}
	if len(code) != 3 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return false
		}
	}
	return true
}

// ValidAirlineCode accepts a two character IATA designator (letters or digits, e.g. "QF", "3K").
func ValidAirlineCode(code string) bool {
	if len(code) != 2 {
		return false
	}
	for i := 0; i < 2; i++ {
		c := code[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

const (
	ISODateLayout   = "2006-01-02"
	TimeOfDayLayout = "15:04"
)

func ValidISODate(s string) bool {
	if s == "" {
		return true
	}
	_, err := time.Parse(ISODateLayout, s)
	return err == nil
}

func ValidTimeOfDay(s string) bool {
	if s == "" {
		return true
	}
	_, err := time.Parse(TimeOfDayLayout, s)
	return err == nil
}

// SameCarrier compares airline codes case-insensitively.
func SameCarrier(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// NormalizeCodes upper-cases, trims and de-duplicates a code list.
func NormalizeCodes(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
