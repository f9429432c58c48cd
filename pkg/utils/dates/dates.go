// Package dates normalizes the calendar-date notations that appear in
// journal entries and queries: hyphenated (2026-1-25), slash (2026/1/25) and
// the Japanese form (2026年1月25日).
package dates

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	hyphenExact = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	slashExact  = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})$`)
	kanjiExact  = regexp.MustCompile(`^(\d{4})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日$`)

	slashAny  = regexp.MustCompile(`(\d{4})/(\d{1,2})/(\d{1,2})`)
	hyphenAny = regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`)
	kanjiAny  = regexp.MustCompile(`(\d{4})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日`)
)

// NormalizeToISO converts a date string in any accepted notation to
// YYYY-MM-DD. It returns false when the input matches no notation or has an
// out-of-range month or day.
func NormalizeToISO(s string) (string, bool) {
	for _, re := range []*regexp.Regexp{hyphenExact, slashExact, kanjiExact} {
		if m := re.FindStringSubmatch(s); m != nil {
			return toISO(m[1], m[2], m[3])
		}
	}
	return "", false
}

// ExtractFromQuery finds the first date notation anywhere in query text and
// returns it normalized to YYYY-MM-DD.
func ExtractFromQuery(q string) (string, bool) {
	for _, re := range []*regexp.Regexp{slashAny, hyphenAny, kanjiAny} {
		if m := re.FindStringSubmatch(q); m != nil {
			if iso, ok := toISO(m[1], m[2], m[3]); ok {
				return iso, true
			}
		}
	}
	return "", false
}

func toISO(yyyy, mm, dd string) (string, bool) {
	y, _ := strconv.Atoi(yyyy)
	m, _ := strconv.Atoi(mm)
	d, _ := strconv.Atoi(dd)
	if m < 1 || m > 12 {
		return "", false
	}
	if d < 1 || d > 31 {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d), true
}
