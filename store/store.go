// Package store persists the engine's collections in PebbleDB. Records are
// JSON encoded under string keys; collections are key prefixes with
// secondary indexes for the business keys that can change over a record's
// lifecycle (topic/oracle address, order id).
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"github.com/openpredict/chainsync/internal/constants"
)

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrClosed is returned when the store has been closed
	ErrClosed = errors.New("store is closed")

	// ErrReadOnly is returned for writes against a read-only store
	ErrReadOnly = errors.New("store is read-only")

	// ErrAmountConflict is returned when a trade would push an order's
	// remaining amount below zero
	ErrAmountConflict = errors.New("trade amount exceeds order remaining amount")
)

// Config holds store configuration
type Config struct {
	Path     string
	ReadOnly bool

	// Cache is the block cache size in MB
	Cache int
	// WriteBuffer is the memtable size in MB
	WriteBuffer int
	MaxOpenFiles int
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// SetDefaults fills zero fields with defaults
func (c *Config) SetDefaults() {
	if c.Cache == 0 {
		c.Cache = constants.DefaultCacheSize
	}
	if c.WriteBuffer == 0 {
		c.WriteBuffer = constants.DefaultWriteBuffer
	}
	if c.MaxOpenFiles == 0 {
		c.MaxOpenFiles = constants.DefaultMaxOpenFiles
	}
}

// Store is the PebbleDB-backed collection store
type Store struct {
	db     *pebble.DB
	config *Config
	logger *zap.Logger
	closed atomic.Bool
}

// Open opens (creating if needed) a store at the configured path
func Open(cfg *Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.SetDefaults()

	opts := &pebble.Options{
		Cache:        pebble.NewCache(int64(cfg.Cache) << 20),
		MemTableSize: uint64(cfg.WriteBuffer) << 20,
		MaxOpenFiles: cfg.MaxOpenFiles,
		ReadOnly:     cfg.ReadOnly,
	}

	db, err := pebble.Open(cfg.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Store{
		db:     db,
		config: cfg,
		logger: zap.NewNop(),
	}, nil
}

// SetLogger sets the logger for the store
func (s *Store) SetLogger(logger *zap.Logger) {
	s.logger = logger
}

// Close closes the store and releases resources
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) ensureNotClosed() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (s *Store) ensureWritable() error {
	if err := s.ensureNotClosed(); err != nil {
		return err
	}
	if s.config.ReadOnly {
		return ErrReadOnly
	}
	return nil
}

// getJSON reads a key and decodes its JSON value into out
func (s *Store) getJSON(key []byte, out any) error {
	if err := s.ensureNotClosed(); err != nil {
		return err
	}
	val, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	defer closer.Close()

	if err := json.Unmarshal(val, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// putJSON JSON-encodes v and writes it under key
func (s *Store) putJSON(key []byte, v any) error {
	if err := s.ensureWritable(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.db.Set(key, data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// getRaw reads a key's raw value
func (s *Store) getRaw(key []byte) ([]byte, error) {
	if err := s.ensureNotClosed(); err != nil {
		return nil, err
	}
	val, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	defer closer.Close()

	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (s *Store) putRaw(key, val []byte) error {
	if err := s.ensureWritable(); err != nil {
		return err
	}
	if err := s.db.Set(key, val, pebble.Sync); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *Store) delete(key []byte) error {
	if err := s.ensureWritable(); err != nil {
		return err
	}
	if err := s.db.Delete(key, pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// forEach iterates every value under prefix in key order. The callback
// returning false stops the iteration early.
func (s *Store) forEach(prefix string, decode func(val []byte) (bool, error)) error {
	if err := s.ensureNotClosed(); err != nil {
		return err
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("failed to create iterator for %s: %w", prefix, err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		cont, err := decode(iter.Value())
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return iter.Error()
}

// deletePrefix removes every key under prefix in one batch
func (s *Store) deletePrefix(prefix string) error {
	if err := s.ensureWritable(); err != nil {
		return err
	}
	if err := s.db.DeleteRange([]byte(prefix), prefixUpperBound(prefix), pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete range %s: %w", prefix, err)
	}
	return nil
}
