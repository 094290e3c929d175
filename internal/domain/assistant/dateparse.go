package assistant

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// maxOffsetDays bounds relative phrases; larger offsets are passed through.
const maxOffsetDays = 100_000

var (
	inPattern      = regexp.MustCompile(`\bin\s+(\d+)\s+(day|week|month)s?\b`)
	fromNowPattern = regexp.MustCompile(`\b(\d+)\s+(day|week|month)s?\s+from\s+now\b`)
)

// ResolveDate turns a relative date phrase into an RFC 3339 timestamp
// measured from now. Anything it does not recognize is returned unchanged,
// so absolute dates pass straight through. A month counts as 30 days.
func ResolveDate(text string, now time.Time) string {
	phrase := strings.ToLower(strings.TrimSpace(text))

	switch phrase {
	case "today", "now":
		return format(now)
	case "tomorrow":
		return format(now.AddDate(0, 0, 1))
	case "next week":
		return format(now.AddDate(0, 0, 7))
	case "next month":
		return format(now.AddDate(0, 0, 30))
	}

	for _, re := range []*regexp.Regexp{inPattern, fromNowPattern} {
		m := re.FindStringSubmatch(phrase)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n > maxOffsetDays/unitDays(m[2]) {
			return text
		}
		return format(now.AddDate(0, 0, n*unitDays(m[2])))
	}
	return text
}

func unitDays(unit string) int {
	switch unit {
	case "week":
		return 7
	case "month":
		return 30
	default:
		return 1
	}
}

func format(t time.Time) string {
	return t.Format(time.RFC3339)
}
