package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/tiercache/appcache"
	"github.com/unkn0wn-root/tiercache/store"
	"github.com/unkn0wn-root/tiercache/store/disk"
)

const (
	kindAudio   = "audio"
	kindProfile = "profile"
)

var (
	outFile string

	getCmd = &cobra.Command{
		Use:       "get {audio|profile} KEY",
		Short:     "Print a cached entry",
		Long:      "Print a cached entry. Audio is written raw (use --out for a file), profiles as JSON.",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{kindAudio, kindProfile},
		RunE:      runGet,
	}
	putCmd = &cobra.Command{
		Use:   "put {audio KEY FILE | profile FILE}",
		Short: "Store an entry; FILE may be - for stdin",
		Args:  cobra.RangeArgs(2, 3),
		RunE:  runPut,
	}
	invalidateCmd = &cobra.Command{
		Use:   "invalidate {audio|profile} KEY",
		Short: "Remove one entry from the cache",
		Args:  cobra.ExactArgs(2),
		RunE:  runInvalidate,
	}
	clearCmd = &cobra.Command{
		Use:   "clear [audio|profile]",
		Short: "Remove every entry (both caches when no kind is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runClear,
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show entry counts and disk usage (disk backend)",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}
)

func init() {
	getCmd.Flags().StringVarP(&outFile, "out", "o", "", "write audio to this file instead of stdout")
}

// withCaches opens both caches for the duration of fn.
func withCaches(ctx context.Context, fn func(*appcache.Caches) error) error {
	cfg := settings.Cache(nil)
	if settings.Backend == string(appcache.BackendRedis) {
		rdb := settings.RedisClient()
		defer rdb.Close()
		cfg.Redis = rdb
	}
	c, err := appcache.Open(ctx, cfg, cacheOptions()...)
	if err != nil {
		return err
	}
	err = fn(c)
	return errors.Join(err, c.Close(ctx))
}

func badKind(kind string) error {
	return fmt.Errorf("unknown kind %q (want %s or %s)", kind, kindAudio, kindProfile)
}

func runGet(cmd *cobra.Command, args []string) error {
	kind, key := args[0], args[1]
	ctx := cmd.Context()
	return withCaches(ctx, func(c *appcache.Caches) error {
		switch kind {
		case kindAudio:
			clip, ok, err := c.Audio.Get(ctx, key)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("audio %q not cached", key)
			}
			if outFile == "" {
				_, err = cmd.OutOrStdout().Write(clip)
				return err
			}
			if err := os.WriteFile(outFile, clip, 0o644); err != nil {
				return err
			}
			logger.Info("wrote audio", "key", key, "size", humanize.Bytes(uint64(len(clip))), "path", outFile)
			return nil
		case kindProfile:
			p, ok, err := c.Profiles.Get(ctx, key)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("profile %q not cached", key)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		}
		return badKind(kind)
	})
}

func runPut(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	switch args[0] {
	case kindAudio:
		if len(args) != 3 {
			return errors.New("usage: put audio KEY FILE")
		}
		clip, err := readInput(cmd, args[2])
		if err != nil {
			return err
		}
		return withCaches(ctx, func(c *appcache.Caches) error {
			if err := c.Audio.Set(ctx, args[1], clip); err != nil {
				return err
			}
			logger.Info("cached audio", "key", args[1], "size", humanize.Bytes(uint64(len(clip))))
			return nil
		})
	case kindProfile:
		if len(args) != 2 {
			return errors.New("usage: put profile FILE")
		}
		raw, err := readInput(cmd, args[1])
		if err != nil {
			return err
		}
		var p appcache.Profile
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("parse profile: %w", err)
		}
		return withCaches(ctx, func(c *appcache.Caches) error {
			if err := c.PutProfile(ctx, p); err != nil {
				return err
			}
			logger.Info("cached profile", "user", p.User.ID)
			return nil
		})
	}
	return badKind(args[0])
}

func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}

func runInvalidate(cmd *cobra.Command, args []string) error {
	kind, key := args[0], args[1]
	ctx := cmd.Context()
	return withCaches(ctx, func(c *appcache.Caches) error {
		switch kind {
		case kindAudio:
			return c.Audio.Invalidate(ctx, key)
		case kindProfile:
			return c.Profiles.Invalidate(ctx, key)
		}
		return badKind(kind)
	})
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withCaches(ctx, func(c *appcache.Caches) error {
		if len(args) == 0 {
			return c.ClearAll(ctx)
		}
		switch args[0] {
		case kindAudio:
			return c.Audio.ClearAll(ctx)
		case kindProfile:
			return c.Profiles.ClearAll(ctx)
		}
		return badKind(args[0])
	})
}

func runStats(cmd *cobra.Command, _ []string) error {
	if settings.Backend != string(appcache.BackendDisk) {
		return fmt.Errorf("stats needs the disk backend, configured: %s", settings.Backend)
	}
	ctx := cmd.Context()
	w := cmd.OutOrStdout()
	for _, d := range []store.Descriptor{appcache.AudioDB, appcache.ProfileDB} {
		st, version, err := diskStats(ctx, d)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%-14s v%d %-9s %8s entries %10s\n",
			d.Name, version, d.Collection, humanize.Comma(int64(st.Entries)), humanize.Bytes(uint64(st.Bytes)))
	}
	return nil
}

func diskStats(ctx context.Context, d store.Descriptor) (disk.Stats, int, error) {
	s, err := disk.New(disk.Config{Dir: settings.Dir, Descriptor: d})
	if err != nil {
		return disk.Stats{}, 0, err
	}
	if err := s.Open(ctx); err != nil {
		return disk.Stats{}, 0, err
	}
	defer s.Close(ctx)
	st, err := s.Stats(ctx)
	if err != nil {
		return disk.Stats{}, 0, err
	}
	v, err := s.Version()
	return st, v, err
}
