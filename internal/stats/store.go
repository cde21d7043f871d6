// Package stats reads per-day watch statistics from the configured data
// source. Stores return records as the source holds them: unsorted and
// unwindowed.
package stats

import (
	"context"
	"errors"
	"fmt"

	"streamystats/internal/logger"
	"streamystats/internal/watchtime"
)

// ErrServerNotFound is returned when a server id is unknown to the store
var ErrServerNotFound = errors.New("server not found")

// Server is a monitored media server.
type Server struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Store is the read side of the statistics database.
type Store interface {
	Servers(ctx context.Context) ([]Server, error)
	WatchtimePerDay(ctx context.Context, serverID int64) ([]watchtime.Record, error)
	Close() error
}

// Options selects a backend. The first non-empty source wins, in field order.
type Options struct {
	DatabaseURL string
	S3          S3Options
	File        string
}

// Open returns the Store for the first configured source.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch {
	case opts.DatabaseURL != "":
		logger.Infof("Reading statistics from PostgreSQL")
		return NewPostgresStore(ctx, opts.DatabaseURL)
	case opts.S3.URI != "":
		logger.Infof("Reading statistics from %s", opts.S3.URI)
		return NewS3Store(ctx, opts.S3)
	case opts.File != "":
		logger.Infof("Reading statistics from %s", opts.File)
		return NewFileStore(opts.File)
	}
	return nil, fmt.Errorf("no statistics source configured")
}
