package nomadclient

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cljohnso/terracotta-platform/internal/wire"
)

// discoverAll queries every target concurrently, bounded by maxParallelism
// (spec §4.3 step 1: "bounded parallelism, never one goroutine per server
// unbounded"). Targets that error or time out are reported separately from
// those that answered, so the caller can distinguish "disagreed" from
// "unreachable".
func discoverAll(ctx context.Context, targets []Target, maxParallelism int) (map[string]wire.DiscoverResponse, []string) {
	responses := make(map[string]wire.DiscoverResponse, len(targets))
	var unreachable []string
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelism)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			resp, err := t.Conn.Discover(gctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warningf("discover: %s unreachable: %v", t.Address, err)
				unreachable = append(unreachable, t.Address)
				return nil
			}
			responses[t.Address] = resp
			return nil
		})
	}
	_ = g.Wait()
	return responses, unreachable
}
