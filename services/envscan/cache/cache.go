// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache persists per-file scan results in BadgerDB so repeated runs
// skip files whose content has not changed.
//
// Keys are derived from (path, content hash); a changed file gets a new hash
// and therefore a cache miss, so invalidation is automatic. Entries carry a
// TTL so keys for deleted or long-unchanged paths age out instead of
// accumulating.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
// This package follows Apache 2.0 guidelines for attribution and usage.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/envscope/services/envscan"
)

// Config holds configuration for a scan cache instance.
type Config struct {
	// Path is the directory for cache files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// TTL is how long an entry survives without being rewritten.
	// Default: 30 days. Zero disables expiry.
	TTL time.Duration

	// Logger receives cache read/write failures. Cache failures are
	// never fatal; a failed read is a miss and a failed write is skipped.
	// If nil, failures are silent and BadgerDB's internal logging is
	// disabled.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults: persistent, 30-day TTL.
func DefaultConfig(path string) Config {
	return Config{
		Path: path,
		TTL:  30 * 24 * time.Hour,
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a BadgerDB-backed implementation of envscan.ScanCache.
type Store struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
}

// Open creates and opens a scan cache with the given configuration.
//
// # Description
//
// Opens a BadgerDB database at the configured path, or in memory if
// InMemory is true. Creates the directory if it doesn't exist.
//
// # Outputs
//
//   - *Store: The opened cache. Caller must call Close() when done.
//   - error: Non-nil if the path is invalid or the database cannot be
//     opened.
//
// # Thread Safety
//
// The returned *Store is safe for concurrent use.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent cache")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open scan cache: %w", err)
	}

	return &Store{db: db, ttl: cfg.TTL, logger: cfg.Logger}, nil
}

// OpenInMemory opens an in-memory cache for testing. Data is lost on Close.
func OpenInMemory() (*Store, error) {
	return Open(Config{InMemory: true})
}

// Get returns the cached usages for (path, contentHash), or false on miss.
// A read failure is reported as a miss; the caller rescans the file.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) Get(path, contentHash string) ([]envscan.Usage, bool) {
	var usages []envscan.Usage
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(envscan.CacheKey(path, contentHash)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &usages)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) && s.logger != nil {
			s.logger.Warn("scan cache read failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return nil, false
	}
	return usages, true
}

// Put stores the usages for (path, contentHash). A write failure is logged
// and dropped; the next run simply rescans the file.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) Put(path, contentHash string, usages []envscan.Usage) {
	data, err := json.Marshal(usages)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("scan cache encode failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(envscan.CacheKey(path, contentHash)), data)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("scan cache write failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}

// Close closes the underlying database. Safe to call once.
func (s *Store) Close() error {
	return s.db.Close()
}

// compile-time interface check
var _ envscan.ScanCache = (*Store)(nil)
