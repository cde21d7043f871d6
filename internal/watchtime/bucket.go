// Package watchtime turns sparse per-day watch statistics into the dense,
// gap-filled daily series the watch time chart draws.
package watchtime

import (
	"fmt"
	"math"
	"time"
)

// DefaultItemTypes are the item types the dashboard charts
var DefaultItemTypes = []string{ItemTypeEpisode, ItemTypeMovie}

// Bucketer aligns watch records onto a daily grid for a fixed set of item types.
// A zero Bucketer tracks DefaultItemTypes. Bucketer holds no state between
// calls and is safe for concurrent use.
type Bucketer struct {
	ItemTypes []string
}

// New returns a Bucketer tracking the given item types, or DefaultItemTypes when none are given.
func New(itemTypes ...string) *Bucketer {
	types := make([]string, len(itemTypes))
	copy(types, itemTypes)
	return &Bucketer{ItemTypes: types}
}

// Bucket runs the default Bucketer.
func Bucket(records []Record, window TimeWindow, now time.Time) ([]Point, error) {
	var b Bucketer
	return b.Bucket(records, window, now)
}

// Bucket returns exactly window.Days()+1 points, one per calendar day from
// now-window through now, in ascending order. Days without a record are zero
// for every tracked item type; records outside the window are dropped.
//
// Every record is validated before windowing, so a malformed record fails the
// whole batch with ErrInvalidRecord even when it lies outside the window.
// When two records share a calendar day the later one wins.
func (b *Bucketer) Bucket(records []Record, window TimeWindow, now time.Time) ([]Point, error) {
	if !window.Valid() {
		return nil, fmt.Errorf("%w: unsupported time window %d", ErrInvalidArgument, int(window))
	}

	types := b.itemTypes()

	byDay := make(map[string]map[string]int64, len(records))
	for i, rec := range records {
		day, err := ParseDate(rec.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrInvalidRecord, i, err)
		}
		minutes, err := minutesByType(rec.WatchtimeByType, types)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d (%s): %v", ErrInvalidRecord, i, rec.Date, err)
		}
		byDay[day.Format(DateLayout)] = minutes
	}

	start, end := window.Range(now)
	points := make([]Point, 0, window.Days()+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(DateLayout)
		minutes, ok := byDay[key]
		if !ok {
			minutes = zeroMinutes(types)
		}
		points = append(points, Point{Date: key, Minutes: minutes})
	}
	return points, nil
}

func (b *Bucketer) itemTypes() []string {
	if b == nil || len(b.ItemTypes) == 0 {
		return DefaultItemTypes
	}
	return b.ItemTypes
}

// Range returns the first and last calendar day covered by w, anchored at now.
// Both are midnight UTC values.
func (w TimeWindow) Range(now time.Time) (start, end time.Time) {
	end = calendarDate(now)
	return end.AddDate(0, 0, -w.Days()), end
}

// ParseDate reduces a record date to its calendar day. Plain YYYY-MM-DD dates
// are taken as written; RFC 3339 timestamps are moved to UTC first.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable date %q", s)
	}
	return calendarDate(t.UTC()), nil
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// minutesByType floors each tracked type's seconds to whole minutes. The first
// entry for a type is used, as a day carries at most one entry per type.
func minutesByType(durations []TypeDuration, types []string) (map[string]int64, error) {
	for _, d := range durations {
		if math.IsNaN(d.TotalDuration) || math.IsInf(d.TotalDuration, 0) || d.TotalDuration < 0 {
			return nil, fmt.Errorf("bad duration %v for item type %q", d.TotalDuration, d.ItemType)
		}
		// float64(math.MaxInt64) is 2^63, the first value int64 cannot hold
		if d.TotalDuration/60 >= float64(math.MaxInt64) {
			return nil, fmt.Errorf("duration %v for item type %q overflows minutes", d.TotalDuration, d.ItemType)
		}
	}

	minutes := zeroMinutes(types)
	seen := make(map[string]bool, len(types))
	for _, d := range durations {
		if _, tracked := minutes[d.ItemType]; !tracked || seen[d.ItemType] {
			continue
		}
		seen[d.ItemType] = true
		minutes[d.ItemType] = int64(math.Floor(d.TotalDuration / 60))
	}
	return minutes, nil
}

func zeroMinutes(types []string) map[string]int64 {
	m := make(map[string]int64, len(types))
	for _, t := range types {
		m[t] = 0
	}
	return m
}
