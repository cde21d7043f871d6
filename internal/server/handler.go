package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"

	"streamystats/internal/chart"
	"streamystats/internal/logger"
	"streamystats/internal/stats"
	"streamystats/internal/version"
	"streamystats/internal/watchtime"
)

type WindowOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type ChartConfigResponse struct {
	Title        string         `json:"title"`
	Series       []chart.Series `json:"series"`
	DefaultRange string         `json:"default_range"`
	Ranges       []WindowOption `json:"ranges"`
}

type WatchtimeResponse struct {
	ServerID int64             `json:"server_id"`
	Range    string            `json:"range"`
	Start    string            `json:"start"`
	End      string            `json:"end"`
	Series   []chart.Series    `json:"series"`
	Data     []watchtime.Point `json:"data"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get())
}

func (s *Server) handleChartConfig(c *gin.Context) {
	// Longest window first, as in the range selector
	ranges := make([]WindowOption, 0, len(watchtime.Windows))
	for i := len(watchtime.Windows) - 1; i >= 0; i-- {
		w := watchtime.Windows[i]
		ranges = append(ranges, WindowOption{Value: w.String(), Label: w.Label()})
	}

	c.JSON(http.StatusOK, ChartConfigResponse{
		Title:        s.cfg.Chart.Title,
		Series:       s.cfg.Chart.Series,
		DefaultRange: s.cfg.DefaultWindow().String(),
		Ranges:       ranges,
	})
}

func (s *Server) handleServers(c *gin.Context) {
	servers, err := s.store.Servers(c.Request.Context())
	if err != nil {
		s.internalError(c, "failed to list servers", err)
		return
	}
	if servers == nil {
		servers = []stats.Server{}
	}
	c.JSON(http.StatusOK, gin.H{"servers": servers})
}

func (s *Server) handleWatchtime(c *gin.Context) {
	resp, ok := s.watchtimeSeries(c)
	if !ok {
		return
	}

	body, err := json.Marshal(resp)
	if err != nil {
		s.internalError(c, "failed to encode watch time", err)
		return
	}
	writeWithETag(c, "application/json; charset=utf-8", body)
}

func (s *Server) handleWatchtimeChart(c *gin.Context) {
	resp, ok := s.watchtimeSeries(c)
	if !ok {
		return
	}

	var key string
	if s.charts != nil {
		key = chart.CacheKey(resp.Data, s.cfg.Chart)
		if data, ok := s.charts.Get(key); ok {
			writeWithETag(c, "image/png", data)
			return
		}
	}

	var buf bytes.Buffer
	if err := chart.Render(&buf, resp.Data, s.cfg.Chart); err != nil {
		s.internalError(c, "failed to render chart", err)
		return
	}

	if s.charts != nil {
		removed, err := s.charts.Put(key, buf.Bytes())
		if err != nil {
			logger.Warnf("Failed to cache chart %s: %v", key, err)
		}
		if removed > 0 {
			logger.Infof("Chart cache pruned: removed_files=%d", removed)
		}
	}
	writeWithETag(c, "image/png", buf.Bytes())
}

// watchtimeSeries loads and buckets the series for the :id and ?range of the
// request. On failure it has already written the error response.
func (s *Server) watchtimeSeries(c *gin.Context) (*WatchtimeResponse, bool) {
	serverID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid server id %q", c.Param("id"))})
		return nil, false
	}

	window := s.cfg.DefaultWindow()
	if r := c.Query("range"); r != "" {
		window, err = watchtime.ParseTimeWindow(r)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return nil, false
		}
	}

	records, err := s.store.WatchtimePerDay(c.Request.Context(), serverID)
	if err != nil {
		if errors.Is(err, stats.ErrServerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return nil, false
		}
		s.internalError(c, "failed to load watch time", err)
		return nil, false
	}

	now := s.now()
	points, err := s.bucketer.Bucket(records, window, now)
	if err != nil {
		if errors.Is(err, watchtime.ErrInvalidRecord) {
			s.internalError(c, "invalid watch time data", err)
			return nil, false
		}
		s.internalError(c, "failed to bucket watch time", err)
		return nil, false
	}

	start, end := window.Range(now)
	return &WatchtimeResponse{
		ServerID: serverID,
		Range:    window.String(),
		Start:    start.Format(watchtime.DateLayout),
		End:      end.Format(watchtime.DateLayout),
		Series:   s.cfg.Chart.Series,
		Data:     points,
	}, true
}

func (s *Server) internalError(c *gin.Context, msg string, err error) {
	_ = c.Error(err)
	logger.Errorf("%s %s: %s: %v", c.Request.Method, c.Request.URL.Path, msg, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

// writeWithETag writes body with an xxhash ETag, answering a matching
// If-None-Match with 304 and no body.
func writeWithETag(c *gin.Context, contentType string, body []byte) {
	etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))
	c.Header("ETag", etag)
	c.Header("Cache-Control", "no-cache")

	if etagMatches(c.GetHeader("If-None-Match"), etag) {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, contentType, body)
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == etag || candidate == "*" {
			return true
		}
	}
	return false
}
