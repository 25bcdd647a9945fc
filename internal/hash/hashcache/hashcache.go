// Package hashcache persists computed fingerprints across analysis sessions.
// Entries are keyed by file path and validated against the file's size and
// modification time, so a changed file is rehashed instead of served a stale
// fingerprint.
package hashcache

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/DougOr/fiftyone-brain/internal/hash"
)

// Options configures the cache store.
type Options struct {
	// Dir is the directory for the cache's data files. Required unless
	// InMemory is set.
	Dir string

	// InMemory runs the store in memory-only mode (no disk persistence).
	// Useful for testing with a real badger engine.
	InMemory bool
}

// Cache is a fingerprint cache backed by BadgerDB v4.
type Cache struct {
	db *badger.DB
}

// Open opens or creates a cache store.
func Open(opts Options) (*Cache, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("hashcache: Options.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(quietLogger{})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("hashcache: open: %w", err)
	}
	return &Cache{db: db}, nil
}

// Lookup returns the cached fingerprint for path if the entry matches the
// file's current size and mtime. The boolean reports a usable hit.
func (c *Cache) Lookup(path string) (string, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", false, fmt.Errorf("hashcache: stat %s: %w", path, err)
	}

	var val []byte
	err = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(path))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("hashcache: get %s: %w", path, err)
	}

	parts := strings.SplitN(string(val), "|", 3)
	if len(parts) != 3 {
		return "", false, nil
	}
	if parts[0] != fmt.Sprint(info.Size()) || parts[1] != fmt.Sprint(info.ModTime().UnixNano()) {
		return "", false, nil
	}
	return parts[2], true, nil
}

// Store records the fingerprint for path alongside the file's current size
// and mtime.
func (c *Cache) Store(path, fingerprint string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("hashcache: stat %s: %w", path, err)
	}
	val := fmt.Sprintf("%d|%d|%s", info.Size(), info.ModTime().UnixNano(), fingerprint)
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(path), []byte(val))
	})
	if err != nil {
		return fmt.Errorf("hashcache: set %s: %w", path, err)
	}
	return nil
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Cached wraps a fingerprinter with this cache: hits skip the inner
// computation, misses are computed and stored. Store failures are logged,
// not fatal; a broken cache must not fail an analysis.
func (c *Cache) Cached(inner hash.Fingerprinter) hash.Fingerprinter {
	return cachedFingerprinter{cache: c, inner: inner}
}

type cachedFingerprinter struct {
	cache *Cache
	inner hash.Fingerprinter
}

func (cf cachedFingerprinter) Fingerprint(path string) (string, error) {
	if fp, ok, err := cf.cache.Lookup(path); err == nil && ok {
		return fp, nil
	}
	fp, err := cf.inner.Fingerprint(path)
	if err != nil {
		return "", err
	}
	if err := cf.cache.Store(path, fp); err != nil {
		log.Printf("[HASHCACHE] store failed for %s: %v", path, err)
	}
	return fp, nil
}

// quietLogger suppresses badger's debug and info output, routing warnings
// and errors through the standard logger.
type quietLogger struct{}

func (quietLogger) Errorf(f string, v ...interface{})   { log.Printf("[HASHCACHE] ERROR: "+f, v...) }
func (quietLogger) Warningf(f string, v ...interface{}) { log.Printf("[HASHCACHE] WARN: "+f, v...) }
func (quietLogger) Infof(string, ...interface{})        {}
func (quietLogger) Debugf(string, ...interface{})       {}
