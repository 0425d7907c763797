package adapter

import (
	"context"
	"fmt"
	"os"

	bolt "go.etcd.io/bbolt"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// bucketName is the single bucket all records live in.
var bucketName = []byte("strata")

// Bolt is the bbolt-backed ordered store adapter behind the kv-bolt
// backend. Single-key operations each run in their own bbolt transaction;
// batch writes run in one native transaction.
type Bolt struct {
	path string
	db   *bolt.DB
}

var _ types.Adapter = (*Bolt)(nil)

// NewBolt creates a bbolt adapter storing its database file at path.
func NewBolt(path string) *Bolt {
	return &Bolt{path: path}
}

func (b *Bolt) Init(ctx context.Context) error {
	if b.db != nil {
		return nil
	}
	db, err := bolt.Open(b.path, 0o600, nil)
	if err != nil {
		return fmt.Errorf("opening bbolt store at %s: %w", b.path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		db.Close()
		return fmt.Errorf("ensuring root bucket: %w", err)
	}
	b.db = db
	return nil
}

func (b *Bolt) Close() error {
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

func (b *Bolt) Destroy() error {
	if err := b.Close(); err != nil {
		return err
	}
	if err := os.Remove(b.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing bbolt store: %w", err)
	}
	return nil
}

func (b *Bolt) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		if raw := tx.Bucket(bucketName).Get([]byte(key)); raw != nil {
			value = make([]byte, len(raw))
			copy(value, raw)
			found = true
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("reading %q: %w", key, err)
	}
	return value, found, nil
}

func (b *Bolt) Set(ctx context.Context, key string, value []byte) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("writing %q: %w", key, err)
	}
	return nil
}

func (b *Bolt) Delete(ctx context.Context, key string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	return nil
}

func (b *Bolt) Exists(ctx context.Context, key string) (bool, error) {
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketName).Get([]byte(key)) != nil
		return nil
	})
	return found, err
}

func (b *Bolt) Clear(ctx context.Context) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketName); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketName)
		return err
	})
}

func (b *Bolt) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	return keys, nil
}

// GetBatch reads every key in one view transaction. Absent keys are
// simply missing from the result.
func (b *Bolt) GetBatch(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		for _, key := range keys {
			if raw := bucket.Get([]byte(key)); raw != nil {
				value := make([]byte, len(raw))
				copy(value, raw)
				out[key] = value
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("batch read: %w", err)
	}
	return out, nil
}

// SetBatch writes every entry in one native bbolt transaction.
func (b *Bolt) SetBatch(ctx context.Context, entries map[string][]byte) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		for key, value := range entries {
			if err := bucket.Put([]byte(key), value); err != nil {
				return fmt.Errorf("set %q: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("batch write: %w", err)
	}
	return nil
}

func (b *Bolt) DeleteBatch(ctx context.Context, keys []string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		for _, key := range keys {
			if err := bucket.Delete([]byte(key)); err != nil {
				return fmt.Errorf("delete %q: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("batch delete: %w", err)
	}
	return nil
}

func (b *Bolt) Info(ctx context.Context) (types.StorageInfo, error) {
	fi, err := os.Stat(b.path)
	if err != nil {
		return types.StorageInfo{}, fmt.Errorf("stat bbolt store: %w", err)
	}
	return types.StorageInfo{Used: fi.Size()}, nil
}
