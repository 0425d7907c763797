package keyvalue

import (
	"sort"
	"sync"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// lockTable hands out per-table reader/writer locks for emulated
// transactions. Locks are acquired in sorted table order so transactions
// with overlapping table sets cannot deadlock. The locks are
// process-local: they do not protect against other processes writing to
// the same physical store.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sync.RWMutex)}
}

func (lt *lockTable) lockFor(table string) *sync.RWMutex {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	l, ok := lt.locks[table]
	if !ok {
		l = &sync.RWMutex{}
		lt.locks[table] = l
	}
	return l
}

// acquire blocks until every table in the set is held: shared for
// read-only transactions, exclusive for read-write. A read-write
// transaction therefore starts only after in-flight transactions on
// overlapping tables reach a terminal state. The returned release must
// be called exactly once.
func (lt *lockTable) acquire(tables []string, mode types.TxnMode) (release func()) {
	ordered := append([]string(nil), tables...)
	sort.Strings(ordered)
	// Dedupe after sorting; locking the same table twice would self-deadlock.
	uniq := ordered[:0]
	for i, t := range ordered {
		if i == 0 || t != ordered[i-1] {
			uniq = append(uniq, t)
		}
	}

	held := make([]*sync.RWMutex, 0, len(uniq))
	for _, table := range uniq {
		l := lt.lockFor(table)
		if mode == types.ReadWrite {
			l.Lock()
		} else {
			l.RLock()
		}
		held = append(held, l)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				if mode == types.ReadWrite {
					held[i].Unlock()
				} else {
					held[i].RUnlock()
				}
			}
		})
	}
}
