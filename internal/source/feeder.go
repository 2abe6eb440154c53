package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	appLog "evcal/internal/log"
	"evcal/internal/metrics"
	"evcal/internal/store"
)

const defaultFetchTimeout = 30 * time.Second

// Feeder refreshes the store from a fixed set of sources. Sources are
// fetched concurrently; every result goes through one channel and only the
// goroutine running RefreshAll writes to the store.
type Feeder struct {
	store   *store.Store
	sources []Source
	metrics *metrics.Metrics
	timeout time.Duration

	mu sync.Mutex
}

func NewFeeder(st *store.Store, m *metrics.Metrics, sources ...Source) *Feeder {
	return &Feeder{store: st, sources: sources, metrics: m, timeout: defaultFetchTimeout}
}

// SetTimeout bounds each source's Fetch.
func (f *Feeder) SetTimeout(d time.Duration) {
	if d > 0 {
		f.timeout = d
	}
}

func (f *Feeder) Sources() []Source { return f.sources }

type fetchResult struct {
	name  string
	batch store.Batch
	err   error
}

// RefreshAll fetches every source and applies the successful snapshots.
// A failed source keeps its previous records; its error is wrapped with
// ErrDataSource and joined into the returned error.
func (f *Feeder) RefreshAll(ctx context.Context) ([]store.ApplyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	results := make(chan fetchResult, len(f.sources))
	var wg sync.WaitGroup
	for _, src := range f.sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results <- fetchResult{name: src.Name(), err: fmt.Errorf("panic: %v", r)}
				}
			}()
			fctx, cancel := context.WithTimeout(ctx, f.timeout)
			defer cancel()
			b, err := src.Fetch(fctx)
			b.Source = src.Name()
			results <- fetchResult{name: src.Name(), batch: b, err: err}
		}(src)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	applied := make([]store.ApplyResult, 0, len(f.sources))
	var errs []error
	for r := range results {
		f.metrics.SourceRefreshed(r.name, r.err)
		if r.err != nil {
			err := fmt.Errorf("%w: %s: %w", ErrDataSource, r.name, r.err)
			appLog.Error("source refresh failed", r.err, "source", r.name)
			errs = append(errs, err)
			continue
		}
		res := f.store.Apply(r.batch)
		appLog.Info("source refreshed", "source", r.name, "events", res.Events, "holidays", res.Holidays, "skipped", res.Skipped)
		applied = append(applied, res)
	}

	events, holidays := f.store.Counts()
	f.metrics.SetRecords(events, holidays)
	return applied, errors.Join(errs...)
}
