package redis

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/geotile/blobstore"
	goredis "github.com/redis/go-redis/v9"
)

// Store keeps tile blobs as Redis strings. Suitable for fleets that share a
// hot set of small tiles; large rasters are better kept on disk or S3.
type Store struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix namespaces all keys.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithTTL expires blobs after d. Zero keeps them forever.
func WithTTL(d time.Duration) Option {
	return func(s *Store) { s.ttl = d }
}

// NewStore creates a Store on client.
func NewStore(client goredis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, prefix: "geotile:"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial parses a redis:// URL and creates a Store.
func Dial(url string, opts ...Option) (*Store, error) {
	o, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewStore(goredis.NewClient(o), opts...), nil
}

func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	data, err := s.client.Get(ctx, s.prefix+name).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	return blobstore.NewBytesBlob(data), nil
}

func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	return s.client.Set(ctx, s.prefix+name, data, s.ttl).Err()
}

func (s *Store) Delete(ctx context.Context, name string) error {
	return s.client.Del(ctx, s.prefix+name).Err()
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	iter := s.client.Scan(ctx, 0, s.prefix+prefix+"*", 512).Iterator()
	for iter.Next(ctx) {
		names = append(names, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
