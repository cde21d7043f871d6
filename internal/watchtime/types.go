package watchtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrInvalidRecord is returned when a record's date or duration cannot be normalized.
	ErrInvalidRecord = errors.New("invalid watchtime record")
	// ErrInvalidArgument is returned for an unrecognized time window selector.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Item types tracked by the default bucketer
const (
	ItemTypeEpisode = "Episode"
	ItemTypeMovie   = "Movie"
)

// DateLayout is the calendar date form used for bucketed points
const DateLayout = "2006-01-02"

// TypeDuration is the total watch duration of one item type on one day.
type TypeDuration struct {
	ItemType      string  `json:"item_type"`
	TotalDuration float64 `json:"total_duration"` // seconds
}

// Record holds the watch statistics of a single calendar day.
type Record struct {
	Date            string         `json:"date"`
	WatchtimeByType []TypeDuration `json:"watchtime_by_type"`
}

// Point is one day of the dense series handed to the chart layer.
type Point struct {
	Date    string
	Minutes map[string]int64
}

// MarshalJSON flattens the point into {"date": ..., "<type>": minutes, ...}.
func (p Point) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Minutes)+1)
	for itemType, minutes := range p.Minutes {
		out[itemType] = minutes
	}
	out["date"] = p.Date
	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON. Every key other than "date" must be an integer.
func (p *Point) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.Date = ""
	p.Minutes = make(map[string]int64, len(raw))
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if k == "date" {
			if err := json.Unmarshal(raw[k], &p.Date); err != nil {
				return fmt.Errorf("point date: %w", err)
			}
			continue
		}
		var minutes int64
		if err := json.Unmarshal(raw[k], &minutes); err != nil {
			return fmt.Errorf("point %q minutes: %w", k, err)
		}
		p.Minutes[k] = minutes
	}
	return nil
}

// TimeWindow selects how many trailing days are shown, today included.
type TimeWindow int

const (
	Window7d  TimeWindow = 7
	Window30d TimeWindow = 30
	Window90d TimeWindow = 90
)

// Windows lists the supported windows, shortest first
var Windows = []TimeWindow{Window7d, Window30d, Window90d}

// ParseTimeWindow converts a selector such as "30d" into a TimeWindow.
func ParseTimeWindow(s string) (TimeWindow, error) {
	switch s {
	case "7d":
		return Window7d, nil
	case "30d":
		return Window30d, nil
	case "90d":
		return Window90d, nil
	}
	return 0, fmt.Errorf("%w: unknown time window %q", ErrInvalidArgument, s)
}

// Valid reports whether w is one of the supported windows.
func (w TimeWindow) Valid() bool {
	switch w {
	case Window7d, Window30d, Window90d:
		return true
	}
	return false
}

// Days returns the number of days subtracted from today to find the first bucket.
func (w TimeWindow) Days() int {
	return int(w)
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("%dd", int(w))
}

// Label is the human readable name the dashboard shows for the window.
func (w TimeWindow) Label() string {
	switch w {
	case Window7d:
		return "Last 7 days"
	case Window30d:
		return "Last 30 days"
	case Window90d:
		return "Last 3 months"
	}
	return w.String()
}
