// Package chart holds the watch time chart configuration and a server-side
// PNG renderer for bucketed series.
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"streamystats/internal/watchtime"
)

// Series maps one item type to its legend label and bar color.
type Series struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// Config is passed explicitly to the renderer and to API clients.
type Config struct {
	Title  string   `json:"title"`
	Series []Series `json:"series"`
	Width  int      `json:"width"`
	Height int      `json:"height"`
}

const (
	MinWidth  = 200
	MinHeight = 120
)

// DefaultConfig returns the Episode/Movie chart used by the dashboard.
func DefaultConfig() Config {
	return Config{
		Title: "Watch Time Per Day",
		Series: []Series{
			{Key: watchtime.ItemTypeEpisode, Label: "Episodes", Color: "#e76e50"},
			{Key: watchtime.ItemTypeMovie, Label: "Movies", Color: "#f4a462"},
		},
		Width:  800,
		Height: 250,
	}
}

// Keys returns the item types drawn by the chart, in series order.
func (c Config) Keys() []string {
	keys := make([]string, len(c.Series))
	for i, s := range c.Series {
		keys[i] = s.Key
	}
	return keys
}

// Validate checks dimensions, series keys and colors.
func (c Config) Validate() error {
	if c.Width < MinWidth || c.Height < MinHeight {
		return fmt.Errorf("chart size %dx%d is below the %dx%d minimum", c.Width, c.Height, MinWidth, MinHeight)
	}
	if len(c.Series) == 0 {
		return errors.New("chart needs at least one series")
	}
	seen := make(map[string]bool, len(c.Series))
	for _, s := range c.Series {
		if s.Key == "" {
			return errors.New("chart series key must not be empty")
		}
		if s.Key == "date" {
			return errors.New(`chart series key "date" is reserved for the point date`)
		}
		if seen[s.Key] {
			return fmt.Errorf("duplicate chart series %q", s.Key)
		}
		seen[s.Key] = true
		if _, err := ParseHexColor(s.Color); err != nil {
			return fmt.Errorf("series %q: %w", s.Key, err)
		}
	}
	return nil
}

// ParseHexColor parses "#rgb" or "#rrggbb" into an opaque color.
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 || !strings.HasPrefix(s, "#") {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
