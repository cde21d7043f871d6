package watchtime

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, time.June, 15, 18, 30, 0, 0, time.UTC)

func day(offset int) string {
	return testNow.AddDate(0, 0, offset).Format(DateLayout)
}

func record(date string, durations ...TypeDuration) Record {
	return Record{Date: date, WatchtimeByType: durations}
}

func TestBucketEmptyInput(t *testing.T) {
	for _, w := range Windows {
		t.Run(w.String(), func(t *testing.T) {
			points, err := Bucket(nil, w, testNow)
			require.NoError(t, err)
			require.Len(t, points, w.Days()+1)

			assert.Equal(t, day(-w.Days()), points[0].Date)
			assert.Equal(t, day(0), points[len(points)-1].Date)

			for i, p := range points {
				assert.Equal(t, day(i-w.Days()), p.Date, "point %d", i)
				assert.Equal(t, map[string]int64{ItemTypeEpisode: 0, ItemTypeMovie: 0}, p.Minutes)
			}
		})
	}
}

func TestBucketFloorsSecondsToMinutes(t *testing.T) {
	records := []Record{
		record(day(0),
			TypeDuration{ItemType: ItemTypeMovie, TotalDuration: 125},
			TypeDuration{ItemType: ItemTypeEpisode, TotalDuration: 59.9},
		),
	}

	points, err := Bucket(records, Window7d, testNow)
	require.NoError(t, err)

	last := points[len(points)-1]
	assert.Equal(t, day(0), last.Date)
	assert.Equal(t, int64(2), last.Minutes[ItemTypeMovie])
	assert.Equal(t, int64(0), last.Minutes[ItemTypeEpisode])
}

func TestBucketMissingItemTypeIsZero(t *testing.T) {
	records := []Record{
		record(day(-1), TypeDuration{ItemType: ItemTypeEpisode, TotalDuration: 3600}),
	}

	points, err := Bucket(records, Window7d, testNow)
	require.NoError(t, err)

	p := points[len(points)-2]
	assert.Equal(t, day(-1), p.Date)
	assert.Equal(t, int64(60), p.Minutes[ItemTypeEpisode])
	assert.Equal(t, int64(0), p.Minutes[ItemTypeMovie])
}

func TestBucketWindowBoundary(t *testing.T) {
	records := []Record{
		record(day(-30), TypeDuration{ItemType: ItemTypeMovie, TotalDuration: 600}),
		record(day(-31), TypeDuration{ItemType: ItemTypeMovie, TotalDuration: 1200}),
		record(day(1), TypeDuration{ItemType: ItemTypeMovie, TotalDuration: 1800}),
	}

	points, err := Bucket(records, Window30d, testNow)
	require.NoError(t, err)
	require.Len(t, points, 31)

	assert.Equal(t, day(-30), points[0].Date)
	assert.Equal(t, int64(10), points[0].Minutes[ItemTypeMovie])

	var total int64
	for _, p := range points {
		total += p.Minutes[ItemTypeMovie]
	}
	assert.Equal(t, int64(10), total, "records outside the window must be dropped")
}

func TestBucketFillsGaps(t *testing.T) {
	records := []Record{
		record(day(-20), TypeDuration{ItemType: ItemTypeEpisode, TotalDuration: 120}),
		record(day(-10), TypeDuration{ItemType: ItemTypeEpisode, TotalDuration: 240}),
	}

	points, err := Bucket(records, Window90d, testNow)
	require.NoError(t, err)
	require.Len(t, points, 91)

	first := 90 - 20
	last := 90 - 10
	assert.Equal(t, int64(2), points[first].Minutes[ItemTypeEpisode])
	assert.Equal(t, int64(4), points[last].Minutes[ItemTypeEpisode])
	for i := first + 1; i < last; i++ {
		assert.Equal(t, int64(0), points[i].Minutes[ItemTypeEpisode], "day %s", points[i].Date)
		assert.Equal(t, int64(0), points[i].Minutes[ItemTypeMovie], "day %s", points[i].Date)
	}
}

func TestBucketUnsortedInput(t *testing.T) {
	records := []Record{
		record(day(-1), TypeDuration{ItemType: ItemTypeMovie, TotalDuration: 60}),
		record(day(-6), TypeDuration{ItemType: ItemTypeMovie, TotalDuration: 120}),
		record(day(-3), TypeDuration{ItemType: ItemTypeMovie, TotalDuration: 180}),
	}

	points, err := Bucket(records, Window7d, testNow)
	require.NoError(t, err)

	got := map[string]int64{}
	for i, p := range points {
		if i > 0 {
			assert.True(t, points[i-1].Date < p.Date, "dates must ascend")
		}
		got[p.Date] = p.Minutes[ItemTypeMovie]
	}
	assert.Equal(t, int64(1), got[day(-1)])
	assert.Equal(t, int64(2), got[day(-6)])
	assert.Equal(t, int64(3), got[day(-3)])
}

func TestBucketDuplicateDatesLastWins(t *testing.T) {
	records := []Record{
		record(day(-2), TypeDuration{ItemType: ItemTypeMovie, TotalDuration: 60}),
		record(day(-2)+"T10:00:00Z", TypeDuration{ItemType: ItemTypeMovie, TotalDuration: 600}),
	}

	points, err := Bucket(records, Window7d, testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(10), points[len(points)-3].Minutes[ItemTypeMovie])
}

func TestBucketNormalizesTimestamps(t *testing.T) {
	records := []Record{
		// 23:30 at UTC-5 is the next day in UTC
		record("2024-06-13T23:30:00-05:00", TypeDuration{ItemType: ItemTypeEpisode, TotalDuration: 300}),
		record("2024-06-12T08:15:00.123Z", TypeDuration{ItemType: ItemTypeEpisode, TotalDuration: 120}),
	}

	points, err := Bucket(records, Window7d, testNow)
	require.NoError(t, err)

	got := map[string]int64{}
	for _, p := range points {
		got[p.Date] = p.Minutes[ItemTypeEpisode]
	}
	assert.Equal(t, int64(5), got["2024-06-14"])
	assert.Equal(t, int64(0), got["2024-06-13"])
	assert.Equal(t, int64(2), got["2024-06-12"])
}

func TestBucketAnchorsOnCalendarDateOfNow(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	now := time.Date(2024, time.March, 1, 1, 0, 0, 0, loc)

	points, err := Bucket(nil, Window7d, now)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-23", points[0].Date)
	assert.Equal(t, "2024-03-01", points[len(points)-1].Date)
}

func TestBucketInvalidRecord(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
	}{
		{"garbage date", []Record{record("not-a-date")}},
		{"empty date", []Record{record("")}},
		{"out of window garbage", []Record{record(day(-1)), record("2019-13-45")}},
		{"negative duration", []Record{record(day(0), TypeDuration{ItemType: ItemTypeMovie, TotalDuration: -1})}},
		{"minutes overflow int64", []Record{record(day(0), TypeDuration{ItemType: ItemTypeMovie, TotalDuration: 1e30})}},
		{"overflow on untracked type", []Record{record(day(0), TypeDuration{ItemType: "Audio", TotalDuration: 6e20})}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			points, err := Bucket(tc.records, Window7d, testNow)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRecord), "got %v", err)
			assert.Nil(t, points)
		})
	}
}

func TestBucketLargestRepresentableDuration(t *testing.T) {
	// 2^62 minutes still fits in an int64
	seconds := math.Ldexp(60, 62)
	points, err := Bucket([]Record{record(day(0), TypeDuration{ItemType: ItemTypeMovie, TotalDuration: seconds})}, Window7d, testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(1)<<62, points[len(points)-1].Minutes[ItemTypeMovie])
}

func TestBucketInvalidWindow(t *testing.T) {
	for _, w := range []TimeWindow{0, 14, -7, 365} {
		_, err := Bucket(nil, w, testNow)
		assert.ErrorIs(t, err, ErrInvalidArgument, "window %d", int(w))
	}
}

func TestBucketIsIdempotentAndPure(t *testing.T) {
	records := []Record{
		record(day(-4), TypeDuration{ItemType: ItemTypeMovie, TotalDuration: 400}),
		record(day(-2)+"T12:00:00Z", TypeDuration{ItemType: ItemTypeEpisode, TotalDuration: 90}),
	}
	snapshot := make([]Record, len(records))
	copy(snapshot, records)

	first, err := Bucket(records, Window30d, testNow)
	require.NoError(t, err)
	second, err := Bucket(records, Window30d, testNow)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, records)

	// Points from separate calls must not share maps
	first[len(first)-1].Minutes[ItemTypeMovie] = 99
	assert.Equal(t, int64(0), second[len(second)-1].Minutes[ItemTypeMovie])
}

func TestBucketerCustomItemTypes(t *testing.T) {
	b := New("Audio", ItemTypeMovie)
	records := []Record{
		record(day(0),
			TypeDuration{ItemType: "Audio", TotalDuration: 180},
			TypeDuration{ItemType: ItemTypeEpisode, TotalDuration: 6000},
		),
	}

	points, err := b.Bucket(records, Window7d, testNow)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"Audio": 3, ItemTypeMovie: 0}, points[len(points)-1].Minutes)
	assert.Equal(t, map[string]int64{"Audio": 0, ItemTypeMovie: 0}, points[0].Minutes)
}

func TestParseTimeWindow(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeWindow
		wantErr bool
	}{
		{"7d", Window7d, false},
		{"30d", Window30d, false},
		{"90d", Window90d, false},
		{"", 0, true},
		{"14d", 0, true},
		{"90", 0, true},
		{"7D", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseTimeWindow(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.in, got.String())
		})
	}
}

func TestTimeWindowRange(t *testing.T) {
	start, end := Window7d.Range(testNow)
	assert.Equal(t, time.Date(2024, time.June, 8, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC), end)
}

func TestPointJSON(t *testing.T) {
	p := Point{Date: "2024-06-15", Minutes: map[string]int64{ItemTypeMovie: 2, ItemTypeEpisode: 0}}

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-06-15","Movie":2,"Episode":0}`, string(data))

	var back Point
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, p, back)

	assert.Error(t, json.Unmarshal([]byte(`{"date":"2024-06-15","Movie":"two"}`), &back))
}
