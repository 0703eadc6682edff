package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	err := rootCmd.Execute()
	return out.String(), err
}

func setupEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("TIERCACHE_CONFIG_HOME", home)
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("TIERCACHE_BACKEND", "disk")
	t.Setenv("TIERCACHE_DIR", filepath.Join(home, "cache"))
	t.Setenv("TIERCACHE_LOG_FILE", filepath.Join(home, "tiercache.log"))
	envFile = filepath.Join(home, "none.env")
	return home
}

func TestPutGetClear(t *testing.T) {
	home := setupEnv(t)
	clip := filepath.Join(home, "clip.pcm")
	if err := os.WriteFile(clip, bytes.Repeat([]byte("pcm"), 2000), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, "", "put", "audio", "track-1", clip, "--env-file", envFile); err != nil {
		t.Fatalf("put audio: %v", err)
	}
	profile := `{"user":{"_id":"user-7","name":"Seven","username":"seven","premium":true}}`
	if _, err := run(t, profile, "put", "profile", "-", "--env-file", envFile); err != nil {
		t.Fatalf("put profile: %v", err)
	}

	out, err := run(t, "", "get", "audio", "track-1", "--env-file", envFile)
	if err != nil || out != strings.Repeat("pcm", 2000) {
		t.Fatalf("get audio: err=%v len=%d", err, len(out))
	}
	out, err = run(t, "", "get", "profile", "user-7", "--env-file", envFile)
	if err != nil || !strings.Contains(out, `"_id": "user-7"`) {
		t.Fatalf("get profile: err=%v out=%q", err, out)
	}

	out, err = run(t, "", "stats", "--env-file", envFile)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(out, "AudioCache") || !strings.Contains(out, "UserDataCache") {
		t.Fatalf("stats output %q", out)
	}

	if _, err := run(t, "", "clear", "--env-file", envFile); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := run(t, "", "get", "audio", "track-1", "--env-file", envFile); err == nil {
		t.Fatalf("audio still cached after clear")
	}
	if _, err := run(t, "", "get", "profile", "user-7", "--env-file", envFile); err == nil {
		t.Fatalf("profile still cached after clear")
	}
}

func TestInvalidate(t *testing.T) {
	setupEnv(t)
	profile := `{"user":{"_id":"user-9","username":"nine"}}`
	if _, err := run(t, profile, "put", "profile", "-", "--env-file", envFile); err != nil {
		t.Fatalf("put profile: %v", err)
	}
	if _, err := run(t, "", "invalidate", "profile", "user-9", "--env-file", envFile); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := run(t, "", "get", "profile", "user-9", "--env-file", envFile); err == nil {
		t.Fatalf("profile still cached after invalidate")
	}
}

func TestBadInput(t *testing.T) {
	setupEnv(t)
	if _, err := run(t, "", "get", "video", "x", "--env-file", envFile); err == nil {
		t.Fatalf("unknown kind accepted")
	}
	if _, err := run(t, `{"user":{}}`, "put", "profile", "-", "--env-file", envFile); err == nil {
		t.Fatalf("profile without id accepted")
	}
	t.Setenv("TIERCACHE_BACKEND", "memory")
	if _, err := run(t, "", "stats", "--env-file", envFile); err == nil {
		t.Fatalf("stats on memory backend accepted")
	}
}
