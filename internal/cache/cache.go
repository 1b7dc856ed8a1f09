// Package cache provides a file-backed store used to skip redundant expensive
// model calls. Two disciplines share the same storage: content-addressed
// entries (keyed by a digest of the input corpus, no expiry) and timed
// entries (masked on read once older than a caller-supplied max age).
//
// Entries persist across process restarts and are never evicted; a stale
// timed entry is simply overwritten on the next miss. A Cache is constructed
// explicitly by the flow invoker and passed into the stages that need it.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// now is overridden in tests to exercise expiry deterministically.
var now = time.Now

// Cache stores JSON-encoded values as individual files under a root directory.
type Cache struct {
	dir string
}

// New creates (if needed) the cache directory and returns a Cache rooted there.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache root directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Get reads the entry for key into out. A missing, unreadable, or corrupt
// entry is a miss, never an error.
func (c *Cache) Get(key string, out any) bool {
	data, err := os.ReadFile(c.entryPath(key))
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		log.Warn().Str("key", key).Err(err).Msg("Discarding corrupt cache entry")
		return false
	}
	return true
}

// Put stores v under key, overwriting any existing entry. The write goes to a
// temp file first and is renamed into place so a concurrent reader never
// observes a partial value.
func (c *Cache) Put(key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}
	return c.writeAtomic(key, data)
}

// timedEnvelope wraps a timed entry's payload with its creation time.
type timedEnvelope struct {
	CachedAt time.Time       `json:"cached_at"`
	Data     json.RawMessage `json:"data"`
}

// PutTimed stores v under key together with the current time.
func (c *Cache) PutTimed(key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}
	data, err := json.MarshalIndent(timedEnvelope{CachedAt: now(), Data: payload}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache envelope %s: %w", key, err)
	}
	return c.writeAtomic(key, data)
}

// GetWithin reads a timed entry into out. Entries whose age is maxAge or more
// are treated as absent; the stored file is left alone (masked, not evicted).
func (c *Cache) GetWithin(key string, maxAge time.Duration, out any) bool {
	data, err := os.ReadFile(c.entryPath(key))
	if err != nil {
		return false
	}

	var env timedEnvelope
	if err := json.Unmarshal(data, &env); err != nil || env.CachedAt.IsZero() {
		log.Warn().Str("key", key).Msg("Discarding corrupt timed cache entry")
		return false
	}

	age := now().Sub(env.CachedAt)
	if age >= maxAge {
		log.Debug().Str("key", key).Dur("age", age).Dur("max_age", maxAge).Msg("Timed cache entry expired")
		return false
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		log.Warn().Str("key", key).Err(err).Msg("Discarding corrupt timed cache payload")
		return false
	}

	log.Debug().Str("key", key).Dur("age", age).Msg("Timed cache hit")
	return true
}

func (c *Cache) writeAtomic(key string, data []byte) error {
	final := c.entryPath(key)

	tmp, err := os.CreateTemp(c.dir, ".cache-*")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cache entry %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close cache entry %s: %w", key, err)
	}

	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to commit cache entry %s: %w", key, err)
	}
	return nil
}

func (c *Cache) entryPath(key string) string {
	return filepath.Join(c.dir, sanitizeKey(key)+".json")
}

// sanitizeKey keeps keys usable as file names.
func sanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		}
		return '_'
	}, key)
}

// DirDigest computes a content-addressed key for a directory: a SHA-256 over
// the sorted relative path and modification time of every regular file under
// root. Any file added, removed, renamed, or touched changes the digest.
func DirDigest(root string) (string, error) {
	type fileStamp struct {
		rel   string
		mtime int64
	}

	var stamps []fileStamp
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		stamps = append(stamps, fileStamp{rel: filepath.ToSlash(rel), mtime: info.ModTime().UnixNano()})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to scan %s: %w", root, err)
	}

	sort.Slice(stamps, func(i, j int) bool { return stamps[i].rel < stamps[j].rel })

	h := sha256.New()
	for _, s := range stamps {
		fmt.Fprintf(h, "%s\x00%d\x00", s.rel, s.mtime)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
