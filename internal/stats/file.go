package stats

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"streamystats/internal/logger"
	"streamystats/internal/watchtime"
)

// FileStore serves a Document from a local JSON file. The file is parsed
// again whenever its size or modification time changes.
type FileStore struct {
	path string

	mu      sync.Mutex
	modTime time.Time
	size    int64
	doc     *Document
}

// NewFileStore loads path once so a missing or malformed file fails at startup.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	if _, err := s.document(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) document() (*Document, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat statistics file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc != nil && info.ModTime().Equal(s.modTime) && info.Size() == s.size {
		return s.doc, nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open statistics file: %w", err)
	}
	defer f.Close()

	doc, err := ParseDocument(f)
	if err != nil {
		return nil, err
	}

	logger.Debugf("Loaded statistics file %s (%d servers)", s.path, len(doc.Servers))
	s.doc = doc
	s.modTime = info.ModTime()
	s.size = info.Size()
	return doc, nil
}

func (s *FileStore) Servers(ctx context.Context) ([]Server, error) {
	doc, err := s.document()
	if err != nil {
		return nil, err
	}
	return doc.servers(), nil
}

func (s *FileStore) WatchtimePerDay(ctx context.Context, serverID int64) ([]watchtime.Record, error) {
	doc, err := s.document()
	if err != nil {
		return nil, err
	}
	return doc.watchtime(serverID)
}

func (s *FileStore) Close() error {
	return nil
}
