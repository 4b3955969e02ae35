// Package timeutil centralizes publish-time normalization, weekday gating and
// the date tokens used by subject templates. All stored times are ISO-8601 UTC;
// conversion to the display timezone happens only at render time.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// Canonical is the stored form of a publish time: RFC 3339 seconds, UTC.
const Canonical = "2006-01-02T15:04:05Z07:00"

// DefaultZone is the display timezone when PIPELINE_TZ is unset.
const DefaultZone = "Asia/Shanghai"

// sentinel fills a missing datetime component once the observed prefix has
// diverged from the reference "now".
const sentinel = 11

// publishFormats are tried in order when parsing a publish string. RFC 2822
// style feeds first, then ISO-8601 with and without offsets, then the loose
// forms some scrapers emit.
var publishFormats = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02 15:04",
	"2006/01/02",
}

// ParsePublish parses a publish string in any accepted format and returns the
// instant in UTC.
func ParsePublish(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty publish time")
	}
	for _, format := range publishFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized publish time %q", s)
}

// Normalize parses s and re-renders it in canonical form. Normalizing an
// already-canonical string yields itself. Empty input stays empty; anything
// unparseable also stays empty so a bad source date never poisons a row.
func Normalize(s string) string {
	t, err := ParsePublish(s)
	if err != nil {
		return ""
	}
	return t.Format(Canonical)
}

// Partial is a possibly incomplete parsed datetime. Absent components are -1.
// Loc is the zone the components were observed in; nil means UTC.
type Partial struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
	Loc    *time.Location
}

// NormalizePartial completes a partial datetime against the reference now and
// returns the canonical UTC string. While the observed prefix
// (year, month, day, hour, ...) still equals now's, missing components are
// propagated from now; after the first divergence each missing component gets
// the sentinel value, and out-of-range results are clamped.
func NormalizePartial(p Partial, now time.Time) string {
	loc := p.Loc
	if loc == nil {
		loc = time.UTC
	}
	ref := now.In(loc)
	refParts := []int{ref.Year(), int(ref.Month()), ref.Day(), ref.Hour(), ref.Minute(), ref.Second()}
	parts := []int{p.Year, p.Month, p.Day, p.Hour, p.Minute, p.Second}

	matched := true
	for i, v := range parts {
		if v < 0 {
			if matched {
				parts[i] = refParts[i]
			} else {
				parts[i] = sentinel
			}
			continue
		}
		if v != refParts[i] {
			matched = false
		}
	}

	year, month, day := parts[0], parts[1], parts[2]
	month = clamp(month, 1, 12)
	day = clamp(day, 1, daysIn(year, time.Month(month)))
	hour := clamp(parts[3], 0, 23)
	minute := clamp(parts[4], 0, 59)
	second := clamp(parts[5], 0, 59)

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, loc)
	return t.UTC().Format(Canonical)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ISOWeekday returns the ISO-8601 weekday (Monday=1 .. Sunday=7) of t in loc.
func ISOWeekday(t time.Time, loc *time.Location) int {
	wd := int(t.In(loc).Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// NormalizeWeekdays validates and deduplicates a weekday set. Unknown days
// are rejected.
func NormalizeWeekdays(days []int) ([]int, error) {
	seen := make(map[int]bool)
	var out []int
	for _, d := range days {
		if d < 1 || d > 7 {
			return nil, fmt.Errorf("unknown ISO weekday %d", d)
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	if out == nil {
		out = []int{}
	}
	return out, nil
}

// WeekdayAllowed implements pipeline weekday gating: a nil set is
// unrestricted, an empty set never runs, otherwise today's ISO weekday in loc
// must be a member.
func WeekdayAllowed(weekdays *[]int, now time.Time, loc *time.Location) bool {
	if weekdays == nil {
		return true
	}
	today := ISOWeekday(now, loc)
	for _, d := range *weekdays {
		if d == today {
			return true
		}
	}
	return false
}

// LoadLocation resolves a timezone name, defaulting to Asia/Shanghai and
// falling back to a fixed UTC+8 zone when the tz database is unavailable.
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultZone
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone("CST", 8*3600)
}

// Timestamp renders t in loc as the artifact timestamp YYYYMMDD-HHMMSS.
func Timestamp(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("20060102-150405")
}

// DateZH renders t in loc as the Chinese date form YYYY年MM月DD日.
func DateZH(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006年01月02日")
}

// RenderSubject expands ${date_zh} and ${ts} in a subject or title template.
// Other text is left verbatim; an empty result degrades to the date.
func RenderSubject(tpl string, now time.Time, loc *time.Location) string {
	out := strings.ReplaceAll(tpl, "${date_zh}", DateZH(now, loc))
	out = strings.ReplaceAll(out, "${ts}", Timestamp(now, loc))
	out = strings.TrimSpace(out)
	if out == "" {
		return DateZH(now, loc)
	}
	return out
}
