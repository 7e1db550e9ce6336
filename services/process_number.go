package services

import (
	"fmt"
	"strings"
)

// ProcessNumberComponents contains the parsed parts of a CNJ unified process number
// Format (20 digits): NNNNNNN-DD.AAAA.J.TR.OOOO
type ProcessNumberComponents struct {
	Sequence    string // 7 digits
	CheckDigits string // 2 digits
	Year        string // 4 digits
	Segment     string // 1 digit (8 = state courts, 5 = labour, 4 = federal...)
	Tribunal    string // 2 digits
	Origin      string // 4 digits, originating court unit
}

// Formatted returns the masked form NNNNNNN-DD.AAAA.J.TR.OOOO
func (c ProcessNumberComponents) Formatted() string {
	return fmt.Sprintf("%s-%s.%s.%s.%s.%s", c.Sequence, c.CheckDigits, c.Year, c.Segment, c.Tribunal, c.Origin)
}

// Valid reports whether the check digits match the ISO 7064 mod 97-10 rule
func (c ProcessNumberComponents) Valid() bool {
	return c.CheckDigits == ProcessNumberCheckDigits(c.Sequence, c.Year, c.Segment, c.Tribunal, c.Origin)
}

// ParseProcessNumber accepts a masked or digits-only CNJ number
func ParseProcessNumber(number string) (*ProcessNumberComponents, error) {
	digits := onlyDigits(number)
	if len(digits) != 20 {
		return nil, fmt.Errorf("process number must have exactly 20 digits, got %d", len(digits))
	}

	return &ProcessNumberComponents{
		Sequence:    digits[0:7],
		CheckDigits: digits[7:9],
		Year:        digits[9:13],
		Segment:     digits[13:14],
		Tribunal:    digits[14:16],
		Origin:      digits[16:20],
	}, nil
}

// ProcessNumberCheckDigits computes DD for the remaining parts of a CNJ number
func ProcessNumberCheckDigits(sequence, year, segment, tribunal, origin string) string {
	r := mod97(sequence + year + segment + tribunal + origin + "00")
	return fmt.Sprintf("%02d", 98-r)
}

// NormalizeProcessNumber masks a bare 20-digit number; anything else is only trimmed
func NormalizeProcessNumber(number string) string {
	number = strings.TrimSpace(number)
	if len(number) != 20 || onlyDigits(number) != number {
		return number
	}
	c, err := ParseProcessNumber(number)
	if err != nil {
		return number
	}
	return c.Formatted()
}

func mod97(digits string) int {
	r := 0
	for _, ch := range digits {
		r = (r*10 + int(ch-'0')) % 97
	}
	return r
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, ch := range s {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	return b.String()
}
