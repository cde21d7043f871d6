package stats

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"streamystats/internal/logger"
	"streamystats/internal/watchtime"
)

// DefaultS3RefreshInterval bounds how stale an S3-backed document may get
const DefaultS3RefreshInterval = 30 * time.Second

// S3Options locates a statistics Document in S3 or an S3-compatible service.
type S3Options struct {
	URI       string // s3://bucket/key
	Endpoint  string // custom endpoint, e.g. http://minio:9000
	Region    string
	PathStyle bool
	Refresh   time.Duration
}

type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store serves a Document stored as a single S3 object. The object is
// fetched again once the refresh interval has passed. A failed refresh, either
// a fetch or a parse error, keeps the previous copy for another interval.
type S3Store struct {
	client  objectGetter
	bucket  string
	key     string
	refresh time.Duration
	now     func() time.Time

	mu        sync.Mutex
	fetchedAt time.Time
	doc       *Document
}

// NewS3Store builds an S3 client from the default AWS credential chain.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	bucket, key, err := ParseS3URI(opts.URI)
	if err != nil {
		return nil, err
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	})

	s := newS3Store(client, bucket, key, opts.Refresh)
	if _, err := s.document(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func newS3Store(client objectGetter, bucket, key string, refresh time.Duration) *S3Store {
	if refresh <= 0 {
		refresh = DefaultS3RefreshInterval
	}
	return &S3Store{
		client:  client,
		bucket:  bucket,
		key:     key,
		refresh: refresh,
		now:     time.Now,
	}
}

// ParseS3URI splits s3://bucket/key into its parts.
func ParseS3URI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("invalid S3 URI %q: %w", uri, err)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Scheme != "s3" || u.Host == "" || key == "" {
		return "", "", fmt.Errorf("invalid S3 URI %q: want s3://bucket/key", uri)
	}
	return u.Host, key, nil
}

func (s *S3Store) document(ctx context.Context) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc != nil && s.now().Sub(s.fetchedAt) < s.refresh {
		return s.doc, nil
	}

	doc, err := s.fetch(ctx)
	if err != nil {
		if s.doc != nil {
			// Keep the previous copy for another interval rather than
			// hitting a failing bucket on every request
			logger.Warnf("Failed to refresh s3://%s/%s, serving previous copy: %v", s.bucket, s.key, err)
			s.fetchedAt = s.now()
			return s.doc, nil
		}
		return nil, err
	}

	logger.Debugf("Fetched s3://%s/%s (%d servers)", s.bucket, s.key, len(doc.Servers))
	s.doc = doc
	s.fetchedAt = s.now()
	return doc, nil
}

func (s *S3Store) fetch(ctx context.Context) (*Document, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer out.Body.Close()

	doc, err := ParseDocument(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return doc, nil
}

func (s *S3Store) Servers(ctx context.Context) ([]Server, error) {
	doc, err := s.document(ctx)
	if err != nil {
		return nil, err
	}
	return doc.servers(), nil
}

func (s *S3Store) WatchtimePerDay(ctx context.Context, serverID int64) ([]watchtime.Record, error) {
	doc, err := s.document(ctx)
	if err != nil {
		return nil, err
	}
	return doc.watchtime(serverID)
}

func (s *S3Store) Close() error {
	return nil
}
