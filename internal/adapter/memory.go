package adapter

import (
	"context"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// Memory is the in-process adapter backing the kv-memory fallback. It has
// no durability; Close and Destroy both drop the data.
type Memory struct {
	data  *xsync.MapOf[string, []byte]
	used  atomic.Int64
	quota int64
}

var _ types.Adapter = (*Memory)(nil)

// NewMemory creates a memory adapter. quota <= 0 means unlimited.
func NewMemory(quota int64) *Memory {
	return &Memory{
		data:  xsync.NewMapOf[string, []byte](),
		quota: quota,
	}
}

func (m *Memory) Init(ctx context.Context) error { return nil }

func (m *Memory) Close() error {
	m.data.Clear()
	m.used.Store(0)
	return nil
}

func (m *Memory) Destroy() error { return m.Close() }

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, ok := m.data.Load(key)
	if !ok {
		return nil, false, nil
	}
	// Copy so callers cannot mutate the stored slice.
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	prev, _ := m.data.Load(key)
	delta := int64(len(key) + len(value) - len(prev))
	if m.quota > 0 && m.used.Load()+delta > m.quota {
		return &types.StorageQuotaError{Backend: types.BackendMemory, Used: m.used.Load(), Quota: m.quota}
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.data.Store(key, stored)
	m.used.Add(delta)
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if prev, ok := m.data.LoadAndDelete(key); ok {
		m.used.Add(-int64(len(key) + len(prev)))
	}
	return nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.data.Load(key)
	return ok, nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.data.Clear()
	m.used.Store(0)
	return nil
}

func (m *Memory) Keys(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, m.data.Size())
	m.data.Range(func(key string, _ []byte) bool {
		keys = append(keys, key)
		return true
	})
	return keys, nil
}

func (m *Memory) GetBatch(ctx context.Context, keys []string) (map[string][]byte, error) {
	return concurrentGet(ctx, keys, m.Get)
}

func (m *Memory) SetBatch(ctx context.Context, entries map[string][]byte) error {
	return concurrentSet(ctx, entries, m.Set)
}

func (m *Memory) DeleteBatch(ctx context.Context, keys []string) error {
	return concurrentDelete(ctx, keys, m.Delete)
}

func (m *Memory) Info(ctx context.Context) (types.StorageInfo, error) {
	used := m.used.Load()
	info := types.StorageInfo{Used: used, Quota: m.quota}
	if m.quota > 0 {
		info.Available = m.quota - used
	}
	return info, nil
}
