package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// batchWorkers caps concurrent dispatch inside the generic batch helpers.
const batchWorkers = 8

// concurrentGet fans single-key reads out over a bounded worker pool.
// A key whose read fails or misses is absent from the result; batch reads
// tolerate partial failure by contract.
func concurrentGet(ctx context.Context, keys []string, get func(context.Context, string) ([]byte, bool, error)) (map[string][]byte, error) {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, batchWorkers)
		out = make(map[string][]byte, len(keys))
	)
	for _, key := range keys {
		wg.Add(1)
		sem <- struct{}{}
		go func(key string) {
			defer wg.Done()
			defer func() { <-sem }()
			value, ok, err := get(ctx, key)
			if err != nil || !ok {
				return
			}
			mu.Lock()
			out[key] = value
			mu.Unlock()
		}(key)
	}
	wg.Wait()
	return out, nil
}

// concurrentSet fans single-key writes out over a bounded worker pool.
// Every entry is attempted; failures are aggregated into the returned
// error so the successful writes stay durable.
func concurrentSet(ctx context.Context, entries map[string][]byte, set func(context.Context, string, []byte) error) error {
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		sem  = make(chan struct{}, batchWorkers)
		errs []error
	)
	for key, value := range entries {
		wg.Add(1)
		sem <- struct{}{}
		go func(key string, value []byte) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := set(ctx, key, value); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("set %q: %w", key, err))
				mu.Unlock()
			}
		}(key, value)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// concurrentDelete fans single-key deletes out over a bounded worker pool,
// aggregating failures like concurrentSet.
func concurrentDelete(ctx context.Context, keys []string, del func(context.Context, string) error) error {
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		sem  = make(chan struct{}, batchWorkers)
		errs []error
	)
	for _, key := range keys {
		wg.Add(1)
		sem <- struct{}{}
		go func(key string) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := del(ctx, key); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("delete %q: %w", key, err))
				mu.Unlock()
			}
		}(key)
	}
	wg.Wait()
	return errors.Join(errs...)
}
