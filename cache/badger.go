package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/config"
)

// Badger is a persistent Cache backed by BadgerDB. Fuzzy similarity
// scores survive across runs here, so identical comparisons are never
// re-issued to the collaborator.
type Badger struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
}

// badgerLogger adapts slog to badger's logger interface, at Debug level
// so badger's chatter stays out of normal output.
type badgerLogger struct {
	logger *slog.Logger
}

func (b badgerLogger) Errorf(f string, v ...any)   { b.logger.Error(fmt.Sprintf(f, v...)) }
func (b badgerLogger) Warningf(f string, v ...any) { b.logger.Warn(fmt.Sprintf(f, v...)) }
func (b badgerLogger) Infof(f string, v ...any)    { b.logger.Debug(fmt.Sprintf(f, v...)) }
func (b badgerLogger) Debugf(f string, v ...any)   { b.logger.Debug(fmt.Sprintf(f, v...)) }

// OpenBadger opens (or creates) the persistent cache at cfg.Path.
func OpenBadger(cfg config.CacheConfig, logger *slog.Logger) (*Badger, error) {
	if cfg.Path == "" {
		return nil, errors.New("cache path is required for persistent cache")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Path).
		WithLogger(badgerLogger{logger: logger}).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}

	return &Badger{db: db, ttl: cfg.TTL, logger: logger}, nil
}

func badgerKey(namespace, key string) []byte {
	return []byte(namespace + "/" + key)
}

// Get implements Cache.
func (b *Badger) Get(namespace, key string) ([]byte, bool, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(namespace, key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	return value, true, nil
}

// Set implements Cache.
func (b *Badger) Set(namespace, key string, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(badgerKey(namespace, key), value)
		if b.ttl > 0 {
			entry = entry.WithTTL(b.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate implements Cache by dropping every key under the namespace
// prefix.
func (b *Badger) Invalidate(namespace string) error {
	prefix := badgerKey(namespace, "")
	err := b.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false, Prefix: prefix})
		defer it.Close()

		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache invalidate %s: %w", namespace, err)
	}
	return nil
}

// Close implements Cache.
func (b *Badger) Close() error {
	return b.db.Close()
}
