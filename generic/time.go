package generic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// CALENDAR RULES - Local calendar dates as YYYY-MM-DD strings
// =============================================================================

// DateLayout is the only date format stored in the ledger.
const DateLayout = "2006-01-02"

// maxWorkdayScan bounds NextWorkdayAfter against a holiday set covering every day.
const maxWorkdayScan = 3 * 366

var isoDatePattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)

// ParseLocalDate parses a strict YYYY-MM-DD string into local midnight.
// Out-of-range components (2024-02-30) are rejected rather than normalized.
func ParseLocalDate(iso string) (time.Time, bool) {
	m := isoDatePattern.FindStringSubmatch(iso)
	if m == nil {
		return time.Time{}, false
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.Local)
	if t.Year() != y || int(t.Month()) != mo || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

// ToLocalISO formats the wall-clock date of t. It never converts zones.
func ToLocalISO(t time.Time) string {
	return fmt.Sprintf("%04d-%02d-%02d", t.Year(), int(t.Month()), t.Day())
}

// NormalizeToISO turns a date, an ISO string, or a millisecond timestamp into
// a local YYYY-MM-DD string. It returns "" when the value cannot be read.
//
// Strings that start with a date keep that date verbatim, so
// "2024-06-03T23:30:00-05:00" is 2024-06-03 in every process zone.
// Only numbers are timestamps; a digit-only string such as "20240603" is
// not a date.
func NormalizeToISO(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return ToLocalISO(x)
	case *time.Time:
		if x == nil {
			return ""
		}
		return NormalizeToISO(*x)
	case string:
		return normalizeDateString(x)
	case json.Number:
		if ms, err := x.Int64(); err == nil {
			return fromMillis(ms)
		}
		if f, err := x.Float64(); err == nil {
			return fromMillis(int64(f))
		}
		return ""
	case json.RawMessage:
		return NormalizeToISO(decodeLoose(x))
	case float64:
		return fromMillis(int64(x))
	case int64:
		return fromMillis(x)
	case int:
		return fromMillis(int64(x))
	default:
		return ""
	}
}

func normalizeDateString(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if _, ok := ParseLocalDate(s); ok {
		return s
	}
	if len(s) > 10 && (s[10] == 'T' || s[10] == ' ') {
		if _, ok := ParseLocalDate(s[:10]); ok {
			return s[:10]
		}
	}
	if t, err := time.ParseInLocation("2006/01/02", s, time.Local); err == nil {
		return ToLocalISO(t)
	}
	return ""
}

func fromMillis(ms int64) string {
	if ms <= 0 {
		return ""
	}
	return ToLocalISO(time.UnixMilli(ms).In(time.Local))
}

// decodeLoose decodes raw JSON keeping numbers as json.Number.
func decodeLoose(raw []byte) any {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

// IsWeekend reports whether iso falls on a Saturday or Sunday.
// Unparseable input is not a weekend.
func IsWeekend(iso string) bool {
	t, ok := ParseLocalDate(iso)
	return ok && isWeekendDay(t)
}

func isWeekendDay(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// WeekdayCountInclusive counts days in [start, end] that are neither weekend
// days nor holidays. Invalid dates or start > end count as zero.
func WeekdayCountInclusive(startISO, endISO string, holidays HolidaySet) int {
	start, ok := ParseLocalDate(startISO)
	if !ok {
		return 0
	}
	end, ok := ParseLocalDate(endISO)
	if !ok || start.After(end) {
		return 0
	}

	count := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if isWeekendDay(d) || holidays.Contains(ToLocalISO(d)) {
			continue
		}
		count++
	}
	return count
}

// NextWorkdayAfter returns the first non-weekend, non-holiday date strictly
// after endISO, or "" if endISO is not a valid date.
func NextWorkdayAfter(endISO string, holidays HolidaySet) string {
	end, ok := ParseLocalDate(endISO)
	if !ok {
		return ""
	}
	d := end.AddDate(0, 0, 1)
	for i := 0; i < maxWorkdayScan; i++ {
		iso := ToLocalISO(d)
		if !isWeekendDay(d) && !holidays.Contains(iso) {
			return iso
		}
		d = d.AddDate(0, 0, 1)
	}
	return ToLocalISO(d)
}

// IsWorkday reports whether iso is a valid date that is neither weekend nor holiday.
func IsWorkday(iso string, holidays HolidaySet) bool {
	t, ok := ParseLocalDate(iso)
	return ok && !isWeekendDay(t) && !holidays.Contains(iso)
}

// =============================================================================
// HOLIDAY SET - Normalized ISO dates excluded from day counts
// =============================================================================

// HolidaySet is a set of YYYY-MM-DD dates. A nil set contains nothing.
type HolidaySet map[string]struct{}

// NewHolidaySet normalizes each value through NormalizeToISO and drops
// anything unreadable.
func NewHolidaySet(values ...any) HolidaySet {
	set := make(HolidaySet, len(values))
	for _, v := range values {
		set.Add(v)
	}
	return set
}

// Add inserts a normalized date. It reports whether the value was readable.
func (s HolidaySet) Add(v any) bool {
	iso := NormalizeToISO(v)
	if iso == "" {
		return false
	}
	s[iso] = struct{}{}
	return true
}

func (s HolidaySet) Contains(iso string) bool {
	_, ok := s[iso]
	return ok
}

// Dates returns the set in ascending order.
func (s HolidaySet) Dates() []string {
	out := make([]string, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// LoadHolidaySet reads the holiday collaborator's document: a JSON array whose
// entries are date strings, timestamps, or objects with a "date" field.
// Bad entries are skipped; only a malformed document is an error.
func LoadHolidaySet(raw []byte) (HolidaySet, error) {
	set := HolidaySet{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return set, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("holiday document: %w", err)
	}

	for _, e := range entries {
		switch v := decodeLoose(e).(type) {
		case map[string]any:
			set.Add(v["date"])
		default:
			set.Add(v)
		}
	}
	return set, nil
}
