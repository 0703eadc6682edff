// Package disk implements a durable, versioned tiercache store on the local
// filesystem.
//
// Layout under Config.Dir:
//
//	<Name>/manifest.json          database name, version, collections
//	<Name>/<Collection>/<h>.entry one file per key (h = sha256 prefix of key)
//
// Each entry file is: flags(1) | keyLen(u16 be) | key | data. Flag bit 0 marks
// zstd-compressed data. Writes go to a temp file that is renamed into place.
package disk

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/unkn0wn-root/tiercache/internal/util"
	"github.com/unkn0wn-root/tiercache/store"
)

const (
	entryExt      = ".entry"
	headerLen     = 1 + 2
	maxKeyLen     = 0xFFFF
	defaultMinZip = 1024

	flagZstd byte = 1 << 0
)

var (
	// ErrVersionDowngrade is returned by Open when the database on disk was
	// created by a newer schema version than the one requested.
	ErrVersionDowngrade = errors.New("disk: database version is newer than requested")
	// ErrKeyTooLong is returned by Put for keys longer than 65535 bytes.
	ErrKeyTooLong = errors.New("disk: key too long")
)

type Config struct {
	Dir string // root directory; one sub-directory per database
	store.Descriptor

	// CompressionLevel is a zstd level (1-22). 0 disables compression.
	CompressionLevel int
	// CompressMin is the smallest value (bytes) worth compressing. 0 => 1KiB.
	CompressMin int
}

// Stats describes the collection's on-disk footprint.
type Stats struct {
	Entries int
	Bytes   int64 // on disk, after compression
}

type Store struct {
	cfg    Config
	dbDir  string
	colDir string

	mu     sync.RWMutex
	opened bool
	closed bool

	enc *zstd.Encoder
	dec *zstd.Decoder
}

var _ store.Store = (*Store)(nil)

func New(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("disk: dir is required")
	}
	if err := cfg.Descriptor.Validate(); err != nil {
		return nil, err
	}
	if cfg.CompressMin <= 0 {
		cfg.CompressMin = defaultMinZip
	}
	dbDir := filepath.Join(cfg.Dir, cfg.Name)
	return &Store{
		cfg:    cfg,
		dbDir:  dbDir,
		colDir: filepath.Join(dbDir, cfg.Collection),
	}, nil
}

// Open creates the database directory and the collection when missing and
// records the requested version in the manifest ("upgrade"). Opening an older
// version than the one on disk fails with ErrVersionDowngrade.
func (s *Store) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	if s.opened {
		return nil
	}

	if err := os.MkdirAll(s.dbDir, 0o755); err != nil {
		return fmt.Errorf("disk: create database dir: %w", err)
	}
	m, err := readManifest(s.dbDir)
	if err != nil {
		return err
	}
	if m.Version > s.cfg.Version {
		return fmt.Errorf("%w: %s on disk is v%d, requested v%d", ErrVersionDowngrade, s.cfg.Name, m.Version, s.cfg.Version)
	}
	if err := os.MkdirAll(s.colDir, 0o755); err != nil {
		return fmt.Errorf("disk: create collection dir: %w", err)
	}
	if m.Version < s.cfg.Version || !m.has(s.cfg.Collection) {
		m.Name = s.cfg.Name
		m.Version = s.cfg.Version
		m.add(s.cfg.Collection)
		if err := writeManifest(s.dbDir, m); err != nil {
			return err
		}
	}

	if s.cfg.CompressionLevel > 0 {
		s.enc, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(s.cfg.CompressionLevel)))
		if err != nil {
			return fmt.Errorf("disk: create zstd encoder: %w", err)
		}
	}
	// always able to read compressed entries, even if compression was turned off
	s.dec, err = zstd.NewReader(nil)
	if err != nil {
		return fmt.Errorf("disk: create zstd decoder: %w", err)
	}

	s.opened = true
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.usable(); err != nil {
		return nil, false, err
	}

	path := s.path(key)
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("disk: read %s: %w", filepath.Base(path), err)
	}

	flags, k, data, err := decodeFile(raw)
	if err != nil {
		_ = os.Remove(path) // self-heal corrupt file
		return nil, false, nil
	}
	if k != key {
		// hash collision: the file belongs to another key
		return nil, false, nil
	}
	if flags&flagZstd != 0 {
		data, err = s.dec.DecodeAll(data, nil)
		if err != nil {
			_ = os.Remove(path)
			return nil, false, nil
		}
	}
	return data, true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(key) > maxKeyLen {
		return ErrKeyTooLong
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.usable(); err != nil {
		return err
	}

	var flags byte
	data := value
	if s.enc != nil && len(value) >= s.cfg.CompressMin {
		// keep compression only when it actually helps
		if z := s.enc.EncodeAll(value, nil); len(z) < len(value) {
			data = z
			flags |= flagZstd
		}
	}
	return writeAtomic(s.colDir, s.path(key), encodeFile(flags, key, data))
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.usable(); err != nil {
		return err
	}

	path := s.path(key)
	owner, err := readKey(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err == nil && owner != key {
		return nil
	}
	// unreadable header: remove anyway, it would self-heal on read
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("disk: delete: %w", err)
	}
	return nil
}

// Clear removes every file in the collection. It waits for in-flight
// operations on this store to finish.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}

	entries, err := os.ReadDir(s.colDir)
	if err != nil {
		return fmt.Errorf("disk: list collection: %w", err)
	}
	var errs []error
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.colDir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("disk: clear %s: %w", s.cfg.Descriptor, errors.Join(errs...))
	}
	return nil
}

// Stats counts entry files and their on-disk size.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.usable(); err != nil {
		return Stats{}, err
	}

	entries, err := os.ReadDir(s.colDir)
	if err != nil {
		return Stats{}, fmt.Errorf("disk: list collection: %w", err)
	}
	var st Stats
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), entryExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed concurrently
		}
		st.Entries++
		st.Bytes += info.Size()
	}
	return st, nil
}

// Version returns the schema version recorded on disk (0 if none yet).
func (s *Store) Version() (int, error) {
	m, err := readManifest(s.dbDir)
	if err != nil {
		return 0, err
	}
	return m.Version, nil
}

// Location returns the file backing key.
func (s *Store) Location(key string) string { return s.path(key) }

func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if s.enc != nil {
		err = s.enc.Close()
	}
	if s.dec != nil {
		s.dec.Close()
	}
	return err
}

// must be called with lock held
func (s *Store) usable() error {
	if s.closed {
		return store.ErrClosed
	}
	if !s.opened {
		return store.ErrNotOpen
	}
	return nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.colDir, util.FileName(key, entryExt))
}

func encodeFile(flags byte, key string, data []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(headerLen + len(key) + len(data))
	buf.WriteByte(flags)
	var u2 [2]byte
	binary.BigEndian.PutUint16(u2[:], uint16(len(key)))
	buf.Write(u2[:])
	buf.WriteString(key)
	buf.Write(data)
	return buf.Bytes()
}

var errBadFile = errors.New("disk: malformed entry file")

func decodeFile(b []byte) (flags byte, key string, data []byte, err error) {
	if len(b) < headerLen {
		return 0, "", nil, errBadFile
	}
	flags = b[0]
	if flags&^flagZstd != 0 {
		return 0, "", nil, errBadFile
	}
	klen := int(binary.BigEndian.Uint16(b[1:3]))
	if klen > len(b)-headerLen {
		return 0, "", nil, errBadFile
	}
	return flags, string(b[headerLen : headerLen+klen]), b[headerLen+klen:], nil
}

func readKey(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	var hdr [headerLen]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return "", errBadFile
	}
	k := make([]byte, binary.BigEndian.Uint16(hdr[1:3]))
	if _, err := io.ReadFull(f, k); err != nil {
		return "", errBadFile
	}
	return string(k), nil
}

// writeAtomic writes data to a temp file in dir and renames it onto path.
func writeAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("disk: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	_, err = tmp.Write(data)
	closeErr := tmp.Close()
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("disk: write: %w", err)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("disk: write: %w", closeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("disk: rename: %w", err)
	}
	return nil
}
