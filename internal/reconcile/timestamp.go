package reconcile

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// The sheet's date column has gone through several formats: epoch millis
// written as a number, ru-RU locale strings ("25.12.2023, 14:30:00") and
// ISO strings. Historical rows are never migrated, so every format that was
// ever written must keep parsing.
var ruDateRe = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})(?:\s*,?\s*(\d{1,2}):(\d{2})(?::(\d{2}))?)?$`)

var genericLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123,
	time.ANSIC,
}

// ParseTimestamp resolves a loosely-typed sheet value to epoch milliseconds.
// Returns 0 when the value cannot be interpreted; callers must treat 0 as
// "timestamp unknown" and exclude it from age-based decisions.
func ParseTimestamp(value any) int64 {
	switch v := value.(type) {
	case nil:
		return 0
	case int64:
		return clamp(v)
	case int:
		return clamp(int64(v))
	case float64:
		return clamp(int64(v))
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return clamp(int64(f))
		}
		return 0
	case time.Time:
		return clamp(v.UnixMilli())
	case string:
		return parseString(v)
	default:
		return 0
	}
}

func parseString(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	// a numeric string is epoch millis from an older script version
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return clamp(n)
	}

	if ms, ok := parseRuDate(s); ok {
		return clamp(ms)
	}

	for _, layout := range genericLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return clamp(t.UnixMilli())
		}
	}

	return 0
}

// parseRuDate handles "DD.MM.YYYY" with an optional ", HH:mm[:ss]" tail,
// interpreted in local time like the producing script wrote it.
func parseRuDate(s string) (int64, bool) {
	m := ruDateRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}

	nums := make([]int, 6)
	for i := 1; i <= 6; i++ {
		if m[i] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i])
		if err != nil {
			return 0, false
		}
		nums[i-1] = n
	}

	day, month, year := nums[0], nums[1], nums[2]
	hour, minute, sec := nums[3], nums[4], nums[5]
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, false
	}

	t := time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.Local)
	return t.UnixMilli(), true
}

func clamp(ms int64) int64 {
	if ms < 0 {
		return 0
	}
	return ms
}
