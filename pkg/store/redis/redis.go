// Package redis stores project documents in Redis.
//
// Each project is a JSON string under "<prefix>project:<name>". A sorted
// set "<prefix>projects" indexes project names by last save time so List
// does not need to scan the keyspace.
package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"time"

	backend "github.com/redis/go-redis/v9"

	fgerrors "github.com/matzehuels/framegraph/pkg/errors"
	"github.com/matzehuels/framegraph/pkg/project"
	"github.com/matzehuels/framegraph/pkg/store"
)

// DefaultPrefix namespaces all keys written by the store.
const DefaultPrefix = "framegraph:"

// Config configures a Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Store implements store.Store on a Redis client.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	owned  bool
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithTTL expires projects that have not been saved for ttl.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	client := backend.NewClient(&backend.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	if cfg.Prefix != "" {
		opts = append([]Option{WithPrefix(cfg.Prefix)}, opts...)
	}
	s := NewFromClient(client, opts...)
	s.owned = true
	return s, nil
}

// NewFromClient wraps an existing client. Close does not close it.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(name string) string { return s.prefix + "project:" + name }
func (s *Store) indexKey() string      { return s.prefix + "projects" }

func (s *Store) Load(ctx context.Context, name string) (*project.Document, error) {
	if err := fgerrors.ValidateProjectName(name); err != nil {
		return nil, err
	}
	var data []byte
	err := store.RetryWithBackoff(ctx, func() error {
		var err error
		data, err = s.client.Get(ctx, s.key(name)).Bytes()
		return classify(err)
	})
	if errors.Is(err, backend.Nil) {
		return nil, store.NotFound(name)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return project.Unmarshal(data, project.FormatJSON)
}

func (s *Store) Save(ctx context.Context, doc *project.Document) error {
	if err := store.CheckDocument(doc); err != nil {
		return err
	}
	data, err := project.Marshal(doc, project.FormatJSON)
	if err != nil {
		return err
	}
	now := time.Now()
	err = store.RetryWithBackoff(ctx, func() error {
		pipe := s.client.TxPipeline()
		pipe.Set(ctx, s.key(doc.Name), data, s.ttl)
		pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: float64(now.Unix()), Member: doc.Name})
		_, err := pipe.Exec(ctx)
		return classify(err)
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", doc.Name, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	if err := fgerrors.ValidateProjectName(name); err != nil {
		return err
	}
	var deleted int64
	err := store.RetryWithBackoff(ctx, func() error {
		pipe := s.client.TxPipeline()
		del := pipe.Del(ctx, s.key(name))
		pipe.ZRem(ctx, s.indexKey(), name)
		if _, err := pipe.Exec(ctx); err != nil {
			return classify(err)
		}
		deleted = del.Val()
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	if deleted == 0 {
		return store.NotFound(name)
	}
	return nil
}

// List returns stored project names, sorted. With a TTL configured, index
// entries older than the TTL are pruned first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if s.ttl > 0 {
		cutoff := time.Now().Add(-s.ttl).Unix()
		if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("(%d", cutoff)).Err(); err != nil {
			return nil, fmt.Errorf("prune index: %w", err)
		}
	}
	names, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	slices.Sort(names)
	return names, nil
}

// Close closes the client if the store created it.
func (s *Store) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}

// classify marks network failures as retryable.
func classify(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return store.Retryable(err)
	}
	return err
}

var _ store.Store = (*Store)(nil)
