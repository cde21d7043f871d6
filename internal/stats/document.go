package stats

import (
	"encoding/json"
	"fmt"
	"io"

	"streamystats/internal/watchtime"
)

// Document is the JSON export format shared by the file and S3 stores.
//
//	{"servers": [{"id": 1, "name": "home", "url": "http://jellyfin:8096",
//	  "watchtime_per_day": [{"date": "2024-06-01",
//	    "watchtime_by_type": [{"item_type": "Movie", "total_duration": 5400}]}]}]}
type Document struct {
	Servers []ServerStats `json:"servers"`
}

// ServerStats is a server together with its daily watch time.
type ServerStats struct {
	Server
	WatchtimePerDay []watchtime.Record `json:"watchtime_per_day"`
}

// ParseDocument decodes a Document and rejects duplicate server ids.
func ParseDocument(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode statistics document: %w", err)
	}

	seen := make(map[int64]bool, len(doc.Servers))
	for _, s := range doc.Servers {
		if seen[s.ID] {
			return nil, fmt.Errorf("duplicate server id %d in statistics document", s.ID)
		}
		seen[s.ID] = true
	}
	return &doc, nil
}

func (d *Document) servers() []Server {
	out := make([]Server, len(d.Servers))
	for i, s := range d.Servers {
		out[i] = s.Server
	}
	return out
}

func (d *Document) watchtime(serverID int64) ([]watchtime.Record, error) {
	for _, s := range d.Servers {
		if s.ID == serverID {
			out := make([]watchtime.Record, len(s.WatchtimePerDay))
			copy(out, s.WatchtimePerDay)
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrServerNotFound, serverID)
}
