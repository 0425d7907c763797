package adapter

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// valueExt is appended to encoded key file names so stray files in the
// directory are ignored.
const valueExt = ".v"

// Dir is a file-per-key adapter rooted at a directory. It backs both the
// kv-dir backend (data directory, large quota) and the kv-sync backend
// (user configuration directory, small quota).
type Dir struct {
	root    string
	backend types.BackendID
	quota   int64
	used    atomic.Int64
}

var _ types.Adapter = (*Dir)(nil)

// NewDir creates a directory adapter rooted at root. quota <= 0 means
// unlimited. backend labels quota errors and storage info.
func NewDir(root string, quota int64, backend types.BackendID) *Dir {
	return &Dir{root: root, backend: backend, quota: quota}
}

// Init creates the root directory and takes the initial usage tally.
func (d *Dir) Init(ctx context.Context) error {
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}
	used, err := d.tally()
	if err != nil {
		return err
	}
	d.used.Store(used)
	return nil
}

func (d *Dir) Close() error { return nil }

// Destroy removes the whole store directory.
func (d *Dir) Destroy() error {
	return os.RemoveAll(d.root)
}

func (d *Dir) path(key string) string {
	return filepath.Join(d.root, base64.RawURLEncoding.EncodeToString([]byte(key))+valueExt)
}

func (d *Dir) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(d.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %q: %w", key, err)
	}
	return data, true, nil
}

func (d *Dir) Set(ctx context.Context, key string, value []byte) error {
	path := d.path(key)
	var prev int64
	if fi, err := os.Stat(path); err == nil {
		prev = fi.Size()
	}
	delta := int64(len(value)) - prev
	if d.quota > 0 && d.used.Load()+delta > d.quota {
		return &types.StorageQuotaError{Backend: d.backend, Used: d.used.Load(), Quota: d.quota}
	}
	if err := os.WriteFile(path, value, 0o644); err != nil {
		return fmt.Errorf("writing %q: %w", key, err)
	}
	d.used.Add(delta)
	return nil
}

func (d *Dir) Delete(ctx context.Context, key string) error {
	path := d.path(key)
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %q: %w", key, err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	d.used.Add(-fi.Size())
	return nil
}

func (d *Dir) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(d.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %q: %w", key, err)
	}
	return true, nil
}

func (d *Dir) Clear(ctx context.Context) error {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return fmt.Errorf("listing store directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), valueExt) {
			continue
		}
		if err := os.Remove(filepath.Join(d.root, entry.Name())); err != nil {
			return fmt.Errorf("clearing store: %w", err)
		}
	}
	d.used.Store(0)
	return nil
}

func (d *Dir) Keys(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("listing store directory: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, valueExt) {
			continue
		}
		raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSuffix(name, valueExt))
		if err != nil {
			// Not one of ours; skip.
			continue
		}
		keys = append(keys, string(raw))
	}
	return keys, nil
}

func (d *Dir) GetBatch(ctx context.Context, keys []string) (map[string][]byte, error) {
	return concurrentGet(ctx, keys, d.Get)
}

func (d *Dir) SetBatch(ctx context.Context, entries map[string][]byte) error {
	return concurrentSet(ctx, entries, d.Set)
}

func (d *Dir) DeleteBatch(ctx context.Context, keys []string) error {
	return concurrentDelete(ctx, keys, d.Delete)
}

func (d *Dir) Info(ctx context.Context) (types.StorageInfo, error) {
	used := d.used.Load()
	info := types.StorageInfo{Used: used, Quota: d.quota}
	if d.quota > 0 {
		info.Available = d.quota - used
	}
	return info, nil
}

// tally sums the sizes of all value files under root.
func (d *Dir) tally() (int64, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return 0, fmt.Errorf("listing store directory: %w", err)
	}
	var used int64
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), valueExt) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		used += fi.Size()
	}
	return used, nil
}
