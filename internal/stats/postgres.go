package stats

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	_ "github.com/lib/pq"

	"streamystats/internal/watchtime"
)

// PostgresStore aggregates watch time from the playback session table:
//
//	servers(id bigint, name text, url text)
//	playback_sessions(server_id bigint, item_type text,
//	    play_duration double precision, start_time timestamptz)
//
// start_time must be timestamptz. Days are cut at midnight UTC by converting
// it with AT TIME ZONE 'UTC'; on a plain timestamp column that expression
// would instead shift by the session time zone.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens and pings the database at dsn.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	return newPostgresStore(db), nil
}

func newPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Servers(ctx context.Context) ([]Server, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, url FROM servers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query servers: %w", err)
	}
	defer rows.Close()

	var servers []Server
	for rows.Next() {
		var srv Server
		if err := rows.Scan(&srv.ID, &srv.Name, &srv.URL); err != nil {
			return nil, fmt.Errorf("scan server: %w", err)
		}
		servers = append(servers, srv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read servers: %w", err)
	}
	return servers, nil
}

// WatchtimePerDay sums play_duration (seconds) per UTC day and item type.
func (s *PostgresStore) WatchtimePerDay(ctx context.Context, serverID int64) ([]watchtime.Record, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM servers WHERE id = $1)`, serverID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("lookup server: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %d", ErrServerNotFound, serverID)
	}

	query := `SELECT to_char(date_trunc('day', ps.start_time AT TIME ZONE 'UTC'), 'YYYY-MM-DD') AS day,
		ps.item_type, COALESCE(SUM(ps.play_duration), 0)
		FROM playback_sessions ps
		WHERE ps.server_id = $1 AND ps.item_type IS NOT NULL
		GROUP BY 1, 2`
	rows, err := s.db.QueryContext(ctx, query, serverID)
	if err != nil {
		return nil, fmt.Errorf("query watchtime per day: %w", err)
	}
	defer rows.Close()

	var totals []dailyTotal
	for rows.Next() {
		var t dailyTotal
		if err := rows.Scan(&t.Day, &t.ItemType, &t.Seconds); err != nil {
			return nil, fmt.Errorf("scan watchtime per day: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read watchtime per day: %w", err)
	}
	return groupDailyTotals(totals), nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type dailyTotal struct {
	Day      string
	ItemType string
	Seconds  float64
}

// groupDailyTotals folds (day, type, seconds) rows into one Record per day,
// days ascending and item types sorted by name.
func groupDailyTotals(totals []dailyTotal) []watchtime.Record {
	byDay := make(map[string][]watchtime.TypeDuration)
	for _, t := range totals {
		byDay[t.Day] = append(byDay[t.Day], watchtime.TypeDuration{ItemType: t.ItemType, TotalDuration: t.Seconds})
	}

	days := make([]string, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Strings(days)

	records := make([]watchtime.Record, 0, len(days))
	for _, d := range days {
		durations := byDay[d]
		sort.Slice(durations, func(i, j int) bool { return durations[i].ItemType < durations[j].ItemType })
		records = append(records, watchtime.Record{Date: d, WatchtimeByType: durations})
	}
	return records
}
