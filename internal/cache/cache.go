// Package cache provides a Badger-backed cache for derived playback values,
// keyed by build identity so stale entries can never be served: every key
// embeds the build's canonical hash, and publishing a new build invalidates
// the old build's prefix.
package cache

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// Cache wraps a Badger database instance for derived values.
type Cache struct {
	db     *badger.DB
	logger *slog.Logger
}

// New opens the cache at the given path.
func New(path string, logger *slog.Logger) (*Cache, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable Badger's internal logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger cache: %w", err)
	}

	if logger != nil {
		logger.Info("derived-value cache opened", "path", path)
	}

	return &Cache{db: db, logger: logger}, nil
}

// Close gracefully closes the cache.
func (c *Cache) Close() error {
	return c.db.Close()
}

// paragraphKey builds the cache key for one rendered paragraph. The canonical
// hash is part of the key: a rebuilt chapter can never hit old entries even
// if a stale caller passes the old build ID.
func paragraphKey(buildID, canonicalHash string, paragraphIndex int) []byte {
	return fmt.Appendf(nil, "para:%s:%s:%d", buildID, canonicalHash, paragraphIndex)
}

func buildPrefix(buildID string) []byte {
	return fmt.Appendf(nil, "para:%s:", buildID)
}

// GetParagraph returns the cached rendered text for a paragraph, if present.
func (c *Cache) GetParagraph(buildID, canonicalHash string, paragraphIndex int) (string, bool, error) {
	var text string
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(paragraphKey(buildID, canonicalHash, paragraphIndex))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			text = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

// SetParagraph stores the rendered text for a paragraph.
func (c *Cache) SetParagraph(buildID, canonicalHash string, paragraphIndex int, text string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(paragraphKey(buildID, canonicalHash, paragraphIndex), []byte(text))
	})
}

// InvalidateBuild drops every cached value belonging to the build. Called
// when a build is deleted or superseded.
func (c *Cache) InvalidateBuild(buildID string) error {
	return c.db.DropPrefix(buildPrefix(buildID))
}
