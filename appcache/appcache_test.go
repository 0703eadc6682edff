package appcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/tiercache"
	"github.com/unkn0wn-root/tiercache/store/disk"
)

func openDisk(t *testing.T, dir string) *Caches {
	t.Helper()
	c, err := Open(context.Background(), Config{Backend: BackendDisk, Dir: dir, AudioCompression: 3})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

var user7 = Profile{User: User{ID: "user-7", Name: "Alice", Username: "seven", Premium: true}}

// Store a 5KB clip and a profile, read both back, clear, and confirm both are
// gone even after a restart.
func TestConcreteScenario(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := openDisk(t, dir)

	clip := bytes.Repeat([]byte{0x01, 0x02, 0x03, 0x04, 0x05}, 1024)
	if err := c.Audio.Set(ctx, "track-42", clip); err != nil {
		t.Fatalf("Audio.Set: %v", err)
	}
	if err := c.PutProfile(ctx, user7); err != nil {
		t.Fatalf("PutProfile: %v", err)
	}

	got, ok, err := c.Audio.Get(ctx, "track-42")
	if err != nil || !ok || !bytes.Equal(got, clip) {
		t.Fatalf("Audio.Get ok=%v err=%v len=%d", ok, err, len(got))
	}
	p, ok, err := c.Profiles.Get(ctx, "user-7")
	if err != nil || !ok || p.User.Name != "Alice" {
		t.Fatalf("Profiles.Get = %+v ok=%v err=%v", p, ok, err)
	}
	if sha256.Sum256(got) != sha256.Sum256(clip) {
		t.Fatalf("audio content hash changed")
	}

	if err := c.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if _, ok, _ := c.Audio.Get(ctx, "track-42"); ok {
		t.Fatalf("audio survived ClearAll")
	}
	if _, ok, _ := c.Profiles.Get(ctx, "user-7"); ok {
		t.Fatalf("profile survived ClearAll")
	}

	_ = c.Close(ctx)
	again := openDisk(t, dir)
	if _, ok, _ := again.Audio.Get(ctx, "track-42"); ok {
		t.Fatalf("audio back after restart")
	}
	if _, ok, _ := again.Profiles.Get(ctx, "user-7"); ok {
		t.Fatalf("profile back after restart")
	}
}

func TestDurableAcrossRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := openDisk(t, dir)
	_ = c.PutProfile(ctx, user7)
	_ = c.Audio.Set(ctx, "track-42", []byte("clip"))
	_ = c.Close(ctx)

	again := openDisk(t, dir)
	if p, ok, _ := again.Profiles.Get(ctx, "user-7"); !ok || p.User.Username != "seven" {
		t.Fatalf("profile lost across restart: %+v ok=%v", p, ok)
	}
	if v, ok, _ := again.Audio.Get(ctx, "track-42"); !ok || string(v) != "clip" {
		t.Fatalf("audio lost across restart: %q ok=%v", v, ok)
	}
}

func TestInstancesAreIsolated(t *testing.T) {
	ctx := context.Background()
	c := openDisk(t, t.TempDir())

	// same key in both
	_ = c.Audio.Set(ctx, "user-7", []byte("not a profile"))
	_ = c.PutProfile(ctx, user7)

	if err := c.Profiles.ClearAll(ctx); err != nil {
		t.Fatalf("Profiles.ClearAll: %v", err)
	}
	if v, ok, _ := c.Audio.Get(ctx, "user-7"); !ok || string(v) != "not a profile" {
		t.Fatalf("clearing profiles touched audio: %q ok=%v", v, ok)
	}
}

func TestPutProfileNeedsID(t *testing.T) {
	c, err := Open(context.Background(), Config{Backend: BackendMemory})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close(context.Background())
	if err := c.PutProfile(context.Background(), Profile{}); !errors.Is(err, tiercache.ErrInvalidKey) {
		t.Fatalf("want ErrInvalidKey, got %v", err)
	}
}

func TestProfileWireFormat(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := openDisk(t, dir)
	_ = c.PutProfile(ctx, user7)

	st, err := disk.New(disk.Config{Dir: dir, Descriptor: ProfileDB})
	if err != nil {
		t.Fatalf("disk.New: %v", err)
	}
	if err := st.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close(ctx)
	raw, ok, err := st.Get(ctx, "user-7")
	if err != nil || !ok {
		t.Fatalf("raw Get ok=%v err=%v", ok, err)
	}
	if !bytes.Contains(raw, []byte(`"_id":"user-7"`)) {
		t.Fatalf("profile not stored as JSON with _id: %q", raw)
	}
}

func TestMemoryBackendWithBoundedTiers(t *testing.T) {
	ctx := context.Background()
	c, err := Open(ctx, Config{Backend: BackendMemory, ProfileEntries: 1, AudioMemoryBytes: 1 << 20})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close(ctx)

	_ = c.PutProfile(ctx, user7)
	_ = c.PutProfile(ctx, Profile{User: User{ID: "user-8"}})
	// user-7 fell out of the LRU but is still in the store
	if p, ok, _ := c.Profiles.Get(ctx, "user-7"); !ok || p != user7 {
		t.Fatalf("Profiles.Get = %+v ok=%v", p, ok)
	}

	clip := bytes.Repeat([]byte{9}, 5*1024)
	_ = c.Audio.Set(ctx, "track-42", clip)
	if v, ok, _ := c.Audio.Get(ctx, "track-42"); !ok || !bytes.Equal(v, clip) {
		t.Fatalf("Audio.Get ok=%v", ok)
	}
}

func TestRedisBackendSharesStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := Config{Backend: BackendRedis, Redis: rdb, TTL: time.Hour, SyncInterval: time.Hour}
	first, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer first.Close(ctx)
	second, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer second.Close(ctx)

	_ = first.PutProfile(ctx, user7)
	if p, ok, _ := second.Profiles.Get(ctx, "user-7"); !ok || p != user7 {
		t.Fatalf("second process did not see profile: %+v ok=%v", p, ok)
	}
	if !mr.Exists("UserDataCache:v1:profiles:user-7") {
		t.Fatalf("unexpected redis layout: %v", mr.Keys())
	}
	if err := second.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if mr.Exists("UserDataCache:v1:profiles:user-7") {
		t.Fatalf("ClearAll left the profile in redis")
	}
	// closing the caches must not close a client they do not own
	_ = first.Close(ctx)
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Fatalf("client closed by appcache: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	cases := []Config{
		{},
		{Backend: "floppy"},
		{Backend: BackendDisk},
		{Backend: BackendRedis},
		{Backend: BackendMemory, AudioCompression: 40},
		{Backend: BackendMemory, TTL: -time.Second},
	}
	for i, cfg := range cases {
		if err := cfg.Validate(); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
	if err := (Config{Backend: BackendMemory}).Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestMaxAgeFollowsStoreTTL(t *testing.T) {
	cases := []struct {
		cfg  Config
		want time.Duration
	}{
		{Config{Backend: BackendDisk, TTL: time.Minute, MaxAge: time.Hour}, time.Hour},
		{Config{Backend: BackendRedis}, 0},
		{Config{Backend: BackendRedis, MaxAge: time.Hour}, time.Hour},
		{Config{Backend: BackendRedis, TTL: time.Minute}, time.Minute},
		{Config{Backend: BackendRedis, TTL: time.Minute, MaxAge: time.Hour}, time.Minute},
		{Config{Backend: BackendRedis, TTL: time.Hour, MaxAge: time.Minute}, time.Minute},
		{Config{Backend: BackendMemory, TTL: time.Minute}, time.Minute},
	}
	for i, tc := range cases {
		if got := tc.cfg.maxAge(); got != tc.want {
			t.Fatalf("case %d: maxAge = %v want %v", i, got, tc.want)
		}
	}
}

// Once redis has expired an entry, the memory copy must not outlive it.
func TestRedisTTLExpiresMemoryCopy(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	c, err := Open(ctx, Config{Backend: BackendRedis, Redis: rdb, TTL: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close(ctx)

	if err := c.PutProfile(ctx, user7); err != nil {
		t.Fatalf("PutProfile: %v", err)
	}
	if _, ok, _ := c.Profiles.Get(ctx, "user-7"); !ok {
		t.Fatalf("fresh profile not served")
	}

	time.Sleep(150 * time.Millisecond)
	mr.FastForward(time.Second)
	if mr.Exists("UserDataCache:v1:profiles:user-7") {
		t.Fatalf("redis kept the entry past its TTL")
	}
	if p, ok, _ := c.Profiles.Get(ctx, "user-7"); ok {
		t.Fatalf("memory served %+v after redis expired it", p)
	}
}

func TestOpenOwnsAuxiliaryLayers(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cfg := Config{Backend: BackendRedis, Redis: rdb, AudioMemoryBytes: 1 << 20}

	c, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	// the generation store and the ristretto layer
	if len(c.closers) != 2 {
		t.Fatalf("closers = %d want 2", len(c.closers))
	}
	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Fatalf("client closed by appcache: %v", err)
	}

	mr.Close()
	if c, err := Open(ctx, cfg); err == nil {
		_ = c.Close(ctx)
		t.Fatalf("Open against a dead redis should fail")
	}
}
