// Package appcache wires the two caches the client keeps: decoded audio for
// tracks and user profiles. Both are tiercache instances over separate
// versioned databases, so clearing or upgrading one never touches the other.
package appcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/tiercache"
	"github.com/unkn0wn-root/tiercache/codec"
	"github.com/unkn0wn-root/tiercache/genstore"
	"github.com/unkn0wn-root/tiercache/memory"
	"github.com/unkn0wn-root/tiercache/store"
	"github.com/unkn0wn-root/tiercache/store/bigcache"
	"github.com/unkn0wn-root/tiercache/store/disk"
	rstore "github.com/unkn0wn-root/tiercache/store/redis"
)

var (
	AudioDB   = store.Descriptor{Name: "AudioCache", Version: 1, Collection: "tracks"}
	ProfileDB = store.Descriptor{Name: "UserDataCache", Version: 1, Collection: "profiles"}
)

const (
	audioNS   = "audio"
	profileNS = "profiles"
)

type Backend string

const (
	BackendDisk   Backend = "disk"
	BackendRedis  Backend = "redis"
	BackendMemory Backend = "memory" // volatile, for tests and guest sessions
)

type Config struct {
	Backend Backend `validate:"oneof=disk redis memory"`

	// disk
	Dir              string `validate:"required_if=Backend disk"`
	AudioCompression int    `validate:"min=0,max=22"` // zstd level for audio files; 0 = off

	// redis
	Redis goredis.UniversalClient `validate:"-"`
	TTL   time.Duration           `validate:"min=0"`

	// memory tier
	ProfileEntries   int   `validate:"min=0"` // > 0 bounds profiles with an LRU
	AudioMemoryBytes int64 `validate:"min=0"` // > 0 bounds audio by bytes (ristretto)

	OpTimeout    time.Duration `validate:"min=0"`
	MaxAge       time.Duration `validate:"min=0"`
	SyncInterval time.Duration `validate:"min=0"` // redis backend only
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("appcache: invalid config: %w", err)
	}
	if c.Backend == BackendRedis && c.Redis == nil {
		return errors.New("appcache: invalid config: redis backend needs a client")
	}
	return nil
}

type options struct {
	logger tiercache.Logger
	hooks  tiercache.Hooks
}

type Option func(*options)

func WithLogger(l tiercache.Logger) Option { return func(o *options) { o.logger = l } }
func WithHooks(h tiercache.Hooks) Option   { return func(o *options) { o.hooks = h } }

// Caches holds both instances.
type Caches struct {
	Audio    tiercache.Cache[[]byte]
	Profiles tiercache.Cache[Profile]

	closers []func(context.Context) error
}

// Open builds both caches from cfg and opens their stores.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Caches, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	c := &Caches{}
	var gens genstore.GenStore
	if cfg.Backend == BackendRedis {
		rg, err := genstore.NewRedis(genstore.RedisConfig{Client: cfg.Redis})
		if err != nil {
			return nil, err
		}
		gens = rg
		c.closers = append(c.closers, rg.Close)
	}

	audioMem, err := newAudioMemory(cfg)
	if err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	if r, ok := audioMem.(*memory.Ristretto[memory.Item[[]byte]]); ok {
		c.closers = append(c.closers, func(context.Context) error { r.Close(); return nil })
	}

	audioStore, profileStore, err := newStores(cfg)
	if err != nil {
		_ = c.Close(ctx)
		return nil, err
	}

	c.Audio, err = tiercache.New(tiercache.Options[[]byte]{
		Namespace:    audioNS,
		Store:        audioStore,
		Codec:        codec.Bytes{},
		Memory:       audioMem,
		Logger:       o.logger,
		Hooks:        o.hooks,
		OpTimeout:    cfg.OpTimeout,
		MaxAge:       cfg.maxAge(),
		GenStore:     gens,
		SyncInterval: cfg.SyncInterval,
	})
	if err != nil {
		_ = c.Close(ctx)
		return nil, err
	}

	var profileMem memory.Layer[memory.Item[Profile]]
	if cfg.ProfileEntries > 0 {
		profileMem = memory.NewLRU[memory.Item[Profile]](cfg.ProfileEntries)
	}
	c.Profiles, err = tiercache.New(tiercache.Options[Profile]{
		Namespace:    profileNS,
		Store:        profileStore,
		Codec:        codec.JSON[Profile]{},
		Memory:       profileMem,
		Logger:       o.logger,
		Hooks:        o.hooks,
		OpTimeout:    cfg.OpTimeout,
		MaxAge:       cfg.maxAge(),
		GenStore:     gens,
		SyncInterval: cfg.SyncInterval,
	})
	if err != nil {
		_ = c.Close(ctx)
		return nil, err
	}

	if err := errors.Join(c.Audio.Open(ctx), c.Profiles.Open(ctx)); err != nil {
		_ = c.Close(ctx)
		return nil, fmt.Errorf("appcache: open: %w", err)
	}
	return c, nil
}

func newStores(cfg Config) (audio, profiles store.Store, err error) {
	switch cfg.Backend {
	case BackendDisk:
		a, err := disk.New(disk.Config{Dir: cfg.Dir, Descriptor: AudioDB, CompressionLevel: cfg.AudioCompression})
		if err != nil {
			return nil, nil, err
		}
		p, err := disk.New(disk.Config{Dir: cfg.Dir, Descriptor: ProfileDB})
		if err != nil {
			return nil, nil, err
		}
		return a, p, nil
	case BackendRedis:
		a, err := rstore.New(rstore.Config{Client: cfg.Redis, Descriptor: AudioDB, TTL: cfg.TTL})
		if err != nil {
			return nil, nil, err
		}
		p, err := rstore.New(rstore.Config{Client: cfg.Redis, Descriptor: ProfileDB, TTL: cfg.TTL})
		if err != nil {
			return nil, nil, err
		}
		return a, p, nil
	case BackendMemory:
		return bigcache.New(bigcache.Config{LifeWindow: cfg.TTL}), bigcache.New(bigcache.Config{LifeWindow: cfg.TTL}), nil
	}
	return nil, nil, fmt.Errorf("appcache: unknown backend %q", cfg.Backend)
}

func newAudioMemory(cfg Config) (memory.Layer[memory.Item[[]byte]], error) {
	if cfg.AudioMemoryBytes <= 0 {
		return nil, nil
	}
	return memory.NewRistretto(memory.RistrettoConfig[memory.Item[[]byte]]{
		// assume ~64KiB clips when sizing the admission counters
		NumCounters: max(10*cfg.AudioMemoryBytes/(64<<10), 100),
		MaxCost:     cfg.AudioMemoryBytes,
		Cost:        func(it memory.Item[[]byte]) int64 { return int64(len(it.Value)) },
	})
}

// maxAge caps MaxAge at the store TTL, so memory never serves an entry the
// store has already expired.
func (c Config) maxAge() time.Duration {
	if c.Backend == BackendDisk || c.TTL <= 0 {
		return c.MaxAge
	}
	if c.MaxAge == 0 || c.MaxAge > c.TTL {
		return c.TTL
	}
	return c.MaxAge
}

// PutProfile caches p under its user id.
func (c *Caches) PutProfile(ctx context.Context, p Profile) error {
	if p.User.ID == "" {
		return tiercache.ErrInvalidKey
	}
	return c.Profiles.Set(ctx, p.User.ID, p)
}

// ClearAll empties both caches, e.g. on logout. Both are attempted; failures
// are joined.
func (c *Caches) ClearAll(ctx context.Context) error {
	return errors.Join(c.Audio.ClearAll(ctx), c.Profiles.ClearAll(ctx))
}

func (c *Caches) Close(ctx context.Context) error {
	var errs []error
	if c.Audio != nil {
		errs = append(errs, c.Audio.Close(ctx))
	}
	if c.Profiles != nil {
		errs = append(errs, c.Profiles.Close(ctx))
	}
	for _, fn := range c.closers {
		errs = append(errs, fn(ctx))
	}
	return errors.Join(errs...)
}
