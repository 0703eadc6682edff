// Package config loads settings for the tiercache command.
//
// Sources, lowest precedence first: built-in defaults, a YAML file
// (tiercache.yml in the user config dirs, or an explicit path), a .env file,
// then TIERCACHE_* environment variables. Nested keys map to env names with
// "_" (redis.addr => TIERCACHE_REDIS_ADDR).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/unkn0wn-root/tiercache/appcache"
)

const appName = "tiercache"

// Logging is read straight from the environment so it is usable before the
// config file is located.
type Logging struct {
	Level  string `env:"TIERCACHE_LOG_LEVEL"  envDefault:"info" validate:"oneof=debug info warn error"`
	Format string `env:"TIERCACHE_LOG_FORMAT" envDefault:"text" validate:"oneof=text json logfmt"`
	File   string `env:"TIERCACHE_LOG_FILE"`
}

type Redis struct {
	Addrs    []string `validate:"omitempty,dive,hostname_port"`
	Username string
	Password string
	DB       int `validate:"min=0"`
}

type Settings struct {
	Backend string `validate:"oneof=disk redis memory"`
	Dir     string `validate:"required_if=Backend disk"`
	Redis   Redis

	TTL              time.Duration `validate:"min=0"`
	OpTimeout        time.Duration `validate:"min=0"`
	MaxAge           time.Duration `validate:"min=0"`
	SyncInterval     time.Duration `validate:"min=0"`
	AudioCompression int           `validate:"min=0,max=22"`
	AudioMemoryBytes int64         `validate:"min=0"`
	ProfileEntries   int           `validate:"min=0"`

	Log Logging

	// ConfigFile is the file actually read, empty when none was found.
	ConfigFile string `validate:"-"`
}

type LoadOptions struct {
	// ConfigFile, when set, must exist. Otherwise tiercache.yml is looked up in
	// $TIERCACHE_CONFIG_HOME, $XDG_CONFIG_HOME/tiercache and the user config dirs.
	ConfigFile string
	// EnvFile is loaded into the process environment when present. Variables
	// already set win. Default ".env".
	EnvFile string
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func Load(opts LoadOptions) (*Settings, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(appName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		path, err := homedir.Expand(opts.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		dirs, err := configDirs()
		if err != nil {
			return nil, err
		}
		for _, d := range dirs {
			v.AddConfigPath(d)
		}
		v.SetConfigName(appName)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
	}

	s := &Settings{
		Backend: v.GetString("backend"),
		Dir:     v.GetString("dir"),
		Redis: Redis{
			Addrs:    splitAddrs(v.GetStringSlice("redis.addrs")),
			Username: v.GetString("redis.username"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		TTL:              v.GetDuration("ttl"),
		OpTimeout:        v.GetDuration("op_timeout"),
		MaxAge:           v.GetDuration("max_age"),
		SyncInterval:     v.GetDuration("sync_interval"),
		AudioCompression: v.GetInt("audio.compression"),
		AudioMemoryBytes: v.GetInt64("audio.memory_bytes"),
		ProfileEntries:   v.GetInt("profiles.entries"),
		ConfigFile:       v.ConfigFileUsed(),
	}

	if s.Dir == "" {
		dir, err := gap.NewScope(gap.User, appName).CacheDir()
		if err != nil {
			return nil, fmt.Errorf("config: locate cache dir: %w", err)
		}
		s.Dir = dir
	}
	dir, err := homedir.Expand(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("config: dir: %w", err)
	}
	s.Dir = dir

	s.Log, err = env.ParseAs[Logging]()
	if err != nil {
		return nil, fmt.Errorf("config: logging env: %w", err)
	}
	if s.Log.File != "" {
		if s.Log.File, err = homedir.Expand(s.Log.File); err != nil {
			return nil, fmt.Errorf("config: log file: %w", err)
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if s.Backend == string(appcache.BackendRedis) && len(s.Redis.Addrs) == 0 {
		return errors.New("config: redis backend needs redis.addrs")
	}
	return nil
}

// Cache maps the settings onto appcache.Config. rdb is only used by the redis
// backend.
func (s *Settings) Cache(rdb goredis.UniversalClient) appcache.Config {
	return appcache.Config{
		Backend:          appcache.Backend(s.Backend),
		Dir:              s.Dir,
		AudioCompression: s.AudioCompression,
		Redis:            rdb,
		TTL:              s.TTL,
		ProfileEntries:   s.ProfileEntries,
		AudioMemoryBytes: s.AudioMemoryBytes,
		OpTimeout:        s.OpTimeout,
		MaxAge:           s.MaxAge,
		SyncInterval:     s.SyncInterval,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", string(appcache.BackendDisk))
	v.SetDefault("dir", "")
	v.SetDefault("redis.addrs", []string{})
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("ttl", time.Duration(0))
	v.SetDefault("op_timeout", 5*time.Second)
	v.SetDefault("max_age", time.Duration(0))
	v.SetDefault("sync_interval", time.Duration(0))
	v.SetDefault("audio.compression", 3)
	v.SetDefault("audio.memory_bytes", int64(0))
	v.SetDefault("profiles.entries", 0)
}

func configDirs() ([]string, error) {
	dirs, err := gap.NewScope(gap.User, appName).ConfigDirs()
	if err != nil {
		return nil, fmt.Errorf("config: locate config dirs: %w", err)
	}
	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, appName)}, dirs...)
	}
	if c := os.Getenv("TIERCACHE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}
	return dirs, nil
}

// env vars arrive as one comma separated string
func splitAddrs(in []string) []string {
	var out []string
	for _, s := range in {
		for _, a := range strings.Split(s, ",") {
			if a = strings.TrimSpace(a); a != "" {
				out = append(out, a)
			}
		}
	}
	return out
}

// RedisClient builds a client for the configured addresses; a cluster client
// when more than one is given.
func (s *Settings) RedisClient() goredis.UniversalClient {
	return goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:    s.Redis.Addrs,
		Username: s.Redis.Username,
		Password: s.Redis.Password,
		DB:       s.Redis.DB,
	})
}
