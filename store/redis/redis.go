// Package redis implements a shared tiercache store on top of go-redis.
//
// Entries of one collection live under the prefix
// "<Name>:v<Version>:<Collection>:" so several databases, versions and
// collections can share a single Redis deployment.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/tiercache/store"
)

var ErrNilClient = errors.New("redis store: nil client")

const defaultScanCount = 512

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this store exclusively owns the client
	store.Descriptor

	// TTL applied to every entry. 0 means no expiry.
	TTL time.Duration
	// ScanCount is the COUNT hint used by Clear. 0 => 512.
	ScanCount int64
}

type Store struct {
	rdb         goredis.UniversalClient
	closeClient bool
	prefix      string
	ttl         time.Duration
	scanCount   int64

	opened atomic.Bool
	closed atomic.Bool
}

var _ store.Store = (*Store)(nil)

func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	if err := cfg.Descriptor.Validate(); err != nil {
		return nil, err
	}
	if cfg.ScanCount <= 0 {
		cfg.ScanCount = defaultScanCount
	}
	return &Store{
		rdb:         cfg.Client,
		closeClient: cfg.CloseClient,
		prefix:      Prefix(cfg.Descriptor),
		ttl:         max(cfg.TTL, 0),
		scanCount:   cfg.ScanCount,
	}, nil
}

// Prefix returns the key prefix used for a descriptor.
func Prefix(d store.Descriptor) string {
	return d.Name + ":v" + strconv.Itoa(d.Version) + ":" + d.Collection + ":"
}

// Open verifies the server is reachable. Redis needs no schema.
func (s *Store) Open(ctx context.Context) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	if s.opened.Load() {
		return nil
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis store: ping: %w", err)
	}
	s.opened.Store(true)
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.usable(); err != nil {
		return nil, false, err
	}
	b, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := s.usable(); err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.prefix+key, value, s.ttl).Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.usable(); err != nil {
		return err
	}
	return s.rdb.Del(ctx, s.prefix+key).Err()
}

// Clear deletes every key under the collection prefix. On a cluster client
// each master is scanned.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.usable(); err != nil {
		return err
	}
	if cc, ok := s.rdb.(*goredis.ClusterClient); ok {
		return cc.ForEachMaster(ctx, func(ctx context.Context, node *goredis.Client) error {
			return s.clearNode(ctx, node)
		})
	}
	return s.clearNode(ctx, s.rdb)
}

func (s *Store) clearNode(ctx context.Context, c goredis.Cmdable) error {
	match := escapeGlob(s.prefix) + "*"
	var cursor uint64
	for {
		keys, next, err := c.Scan(ctx, cursor, match, s.scanCount).Result()
		if err != nil {
			return fmt.Errorf("redis store: scan: %w", err)
		}
		if len(keys) > 0 {
			// keys of one scan page may hash to different slots on a cluster
			if _, err := c.Pipelined(ctx, func(p goredis.Pipeliner) error {
				for _, k := range keys {
					p.Del(ctx, k)
				}
				return nil
			}); err != nil {
				return fmt.Errorf("redis store: delete: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Close releases the underlying redis client only when this store owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (s *Store) Close(context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

func (s *Store) usable() error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	if !s.opened.Load() {
		return store.ErrNotOpen
	}
	return nil
}

func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
