package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/kozaktomas/fingerprint-matcher/internal/fingerprint"
)

// Badger is an embedded on-disk cache for single-node deployments.
// Entry expiry is handled by Badger's per-entry TTL.
type Badger struct {
	db     *badger.DB
	prefix string
}

// NewBadger opens a Badger database at path. An empty path runs in memory.
func NewBadger(path, prefix string) (*Badger, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Badger{db: db, prefix: prefix}, nil
}

func (b *Badger) Get(ctx context.Context, key string) (fingerprint.ComparisonResult, bool, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fingerprint.ComparisonResult{}, false, nil
	}
	if err != nil {
		return fingerprint.ComparisonResult{}, false, fmt.Errorf("badger get: %w", err)
	}

	value, err := decode(data)
	if err != nil {
		return fingerprint.ComparisonResult{}, false, err
	}
	return value, true, nil
}

func (b *Badger) Set(ctx context.Context, key string, value fingerprint.ComparisonResult, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), data).WithTTL(ttl))
	})
	if err != nil {
		return fmt.Errorf("badger set: %w", err)
	}
	return nil
}

// Clear counts the live keys under the prefix, then drops them.
func (b *Badger) Clear(ctx context.Context) (int, error) {
	prefix := []byte(b.prefix + ":")
	count := 0
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("badger scan: %w", err)
	}

	if err := b.db.DropPrefix(prefix); err != nil {
		return 0, fmt.Errorf("badger drop prefix: %w", err)
	}
	return count, nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}
