package strata

import "go.uber.org/zap"

// Option adjusts DB construction.
type Option func(*openOptions)

type openOptions struct {
	logger    *zap.Logger
	listeners []pendingListener
}

type pendingListener struct {
	event string
	fn    func(payload any)
}

func defaultOptions() openOptions {
	return openOptions{logger: zap.NewNop()}
}

// WithLogger attaches a structured logger. The default discards
// everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *openOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithListener registers an event listener before initialization runs, so
// it also observes the ready event.
func WithListener(event string, fn func(payload any)) Option {
	return func(o *openOptions) {
		o.listeners = append(o.listeners, pendingListener{event: event, fn: fn})
	}
}
