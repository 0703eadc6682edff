// Package bigcache implements a volatile, process-local tiercache store on
// allegro/bigcache. Entries do not survive a restart; use it for ephemeral
// sessions and tests.
package bigcache

import (
	"context"
	"errors"
	"sync"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/tiercache/store"
)

type Config struct {
	LifeWindow         time.Duration // 0 => entries never expire by age
	CleanWindow        time.Duration
	Shards             int
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

type Store struct {
	cfg Config

	mu     sync.RWMutex
	c      *bc.BigCache
	closed bool
}

var _ store.Store = (*Store)(nil)

func New(cfg Config) *Store { return &Store{cfg: cfg} }

func (s *Store) config() bc.Config {
	life := s.cfg.LifeWindow
	if life <= 0 {
		// bigcache has no "forever"; pick something longer than any session
		life = 100 * 365 * 24 * time.Hour
	}
	conf := bc.DefaultConfig(life)
	if s.cfg.CleanWindow > 0 {
		conf.CleanWindow = s.cfg.CleanWindow
	}
	if s.cfg.Shards > 0 {
		conf.Shards = s.cfg.Shards
	}
	if s.cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = s.cfg.MaxEntriesInWindow
	}
	if s.cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = s.cfg.MaxEntrySize
	}
	if s.cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = s.cfg.HardMaxCacheSizeMB
	}
	conf.Verbose = false
	return conf
}

func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	if s.c != nil {
		return nil
	}
	c, err := bc.New(ctx, s.config())
	if err != nil {
		return err
	}
	s.c = c
	return nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	c, err := s.cache()
	if err != nil {
		return nil, false, err
	}
	b, err := c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *Store) Put(_ context.Context, key string, value []byte) error {
	c, err := s.cache()
	if err != nil {
		return err
	}
	// bigcache does not support per-entry TTL; uses global LifeWindow.
	return c.Set(key, value)
}

func (s *Store) Delete(_ context.Context, key string) error {
	c, err := s.cache()
	if err != nil {
		return err
	}
	if err := c.Delete(key); err != nil && !errors.Is(err, bc.ErrEntryNotFound) {
		return err
	}
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	c, err := s.cache()
	if err != nil {
		return err
	}
	return c.Reset()
}

// Len reports the number of entries currently held.
func (s *Store) Len() int {
	c, err := s.cache()
	if err != nil {
		return 0
	}
	return c.Len()
}

func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.c == nil {
		return nil
	}
	return s.c.Close()
}

func (s *Store) cache() (*bc.BigCache, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	if s.c == nil {
		return nil, store.ErrNotOpen
	}
	return s.c, nil
}
