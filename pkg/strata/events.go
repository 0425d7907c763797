package strata

import (
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// listenerRegistry is a lock-free event-name -> (listener-id -> callback)
// map. Listener sets grow and shrink concurrently with emits.
type listenerRegistry struct {
	events *xsync.MapOf[string, *xsync.MapOf[string, func(payload any)]]
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{
		events: xsync.NewMapOf[string, *xsync.MapOf[string, func(payload any)]](),
	}
}

func (r *listenerRegistry) add(event string, fn func(payload any)) string {
	id := uuid.NewString()
	set, _ := r.events.LoadOrCompute(event, func() *xsync.MapOf[string, func(payload any)] {
		return xsync.NewMapOf[string, func(payload any)]()
	})
	set.Store(id, fn)
	return id
}

func (r *listenerRegistry) remove(event, id string) bool {
	set, ok := r.events.Load(event)
	if !ok {
		return false
	}
	_, removed := set.LoadAndDelete(id)
	return removed
}

// On registers fn for event and returns the listener id used by Off.
func (db *DB) On(event string, fn func(payload any)) string {
	return db.listeners.add(event, fn)
}

// Off removes a listener registered by On. It reports whether the
// listener was still registered.
func (db *DB) Off(event, id string) bool {
	return db.listeners.remove(event, id)
}

// emit invokes every listener for event synchronously. A panicking
// listener is logged and skipped; it never takes the operation down.
func (db *DB) emit(event string, payload any) {
	set, ok := db.listeners.events.Load(event)
	if !ok {
		return
	}
	set.Range(func(id string, fn func(payload any)) bool {
		func() {
			defer func() {
				if r := recover(); r != nil {
					db.logger.Error("event listener panicked",
						zap.String("event", event),
						zap.String("listener", id),
						zap.Any("panic", r))
				}
			}()
			fn(payload)
		}()
		return true
	})
}
