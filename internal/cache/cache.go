// Package cache provides a persistent, on-disk cache of whole-file content
// hashes, keyed by canonical path and modification time. It exists so a
// repeated run over an unchanged tree never re-reads file bytes it has
// already hashed.
package cache

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/foldersweep/dupefind/internal/errs"
)

const bucketName = "content_hashes"

// Cache is a single long-lived BoltDB, opened for the duration of a run (or
// longer, if the host keeps it open across runs). Unlike a self-cleaning
// swap-on-close design, entries persist indefinitely until Clear is called;
// a stale entry is simply one whose key (path, mtime) no longer matches the
// file on disk, and is naturally superseded by the fresh entry the next
// Lookup writes.
type Cache struct {
	db      *bolt.DB
	enabled bool
}

// Open opens (creating if necessary) the cache database at path. An empty
// path returns a disabled cache whose Lookup always recomputes.
func Open(path string) (*Cache, error) {
	if path == "" {
		return &Cache{enabled: false}, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.CacheErrorf(err, "create cache directory %q", dir)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errs.CacheErrorf(err, "open cache %q", path)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, errs.CacheErrorf(err, "initialize cache bucket")
	}

	return &Cache{db: db, enabled: true}, nil
}

// Close releases the underlying database file.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	if err := c.db.Close(); err != nil {
		return errs.CacheErrorf(err, "close cache")
	}
	return nil
}

// makeKey builds the deterministic lookup key: the canonical path and the
// modification time (seconds.nanoseconds) joined by "|", so any change to
// either component is a miss. Kept as a plain UTF-8 string, not a binary
// encoding, so the cache file can be inspected with any bbolt browser.
func makeKey(canonicalPath string, modTime time.Time) []byte {
	return []byte(fmt.Sprintf("%s|%d.%09d", canonicalPath, modTime.Unix(), modTime.Nanosecond()))
}

// Lookup returns the full-file content hash for path, computing and
// persisting it on a cache miss. The path half of the key is path made
// absolute with filepath.Abs (symlinks are not resolved), and the file is
// stat'd internally to obtain the mtime half.
func (c *Cache) Lookup(path string) (uint64, error) {
	canonical, err := filepath.Abs(path)
	if err != nil {
		canonical = filepath.Clean(path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, errs.IOErrorf(err, "stat %q", path)
	}

	if c.enabled {
		if hash, ok, err := c.get(canonical, info.ModTime()); err != nil {
			return 0, err
		} else if ok {
			return hash, nil
		}
	}

	hash, err := hashFile(path)
	if err != nil {
		return 0, err
	}

	if c.enabled {
		if err := c.put(canonical, info.ModTime(), hash); err != nil {
			return 0, err
		}
	}

	return hash, nil
}

func (c *Cache) get(canonicalPath string, modTime time.Time) (uint64, bool, error) {
	key := makeKey(canonicalPath, modTime)
	var hash uint64
	var found bool

	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		data := b.Get(key)
		if len(data) != 8 {
			return nil
		}
		hash = binary.LittleEndian.Uint64(data)
		found = true
		return nil
	})
	if err != nil {
		return 0, false, errs.CacheErrorf(err, "cache lookup")
	}
	return hash, found, nil
}

func (c *Cache) put(canonicalPath string, modTime time.Time, hash uint64) error {
	val := make([]byte, 8)
	binary.LittleEndian.PutUint64(val, hash)

	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		return b.Put(makeKey(canonicalPath, modTime), val)
	})
	if err != nil {
		return errs.CacheErrorf(err, "cache store")
	}
	return nil
}

// Count returns the number of cached entries.
func (c *Cache) Count() (int, error) {
	if !c.enabled {
		return 0, nil
	}
	var n int
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		n = b.Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, errs.CacheErrorf(err, "cache count")
	}
	return n, nil
}

// Clear removes every cached entry, forcing the next Lookup of every file
// to recompute from bytes.
func (c *Cache) Clear() error {
	if !c.enabled {
		return nil
	}
	err := c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
	if err != nil {
		return errs.CacheErrorf(err, "cache clear")
	}
	return nil
}

func hashFile(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errs.IOErrorf(err, "open %q", path)
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, errs.IOErrorf(err, "read %q", path)
	}
	return h.Sum64(), nil
}
