package nomadclient

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cljohnso/terracotta-platform/internal/wire"
)

// ackResult pairs a target's address with the AcceptRejectResponse it
// returned, or the transport error that kept it from answering at all.
type ackResult struct {
	Address string
	Resp    wire.AcceptRejectResponse
	Err     error
}

func (r ackResult) ok() bool { return r.Err == nil && r.Resp.Accepted }

// mutateFn is any of Prepare/Commit/Rollback/Takeover bound to its message.
type mutateFn func(ctx context.Context, conn ServerConn) (wire.AcceptRejectResponse, error)

// fanOutMutate sends the same mutating call to every target with bounded
// parallelism, collecting one ackResult per target regardless of outcome
// (spec §4.3 steps 4-6: "Prepare-all", "Commit-all" never stop early on the
// first response, every server must be asked").
func fanOutMutate(ctx context.Context, targets []Target, maxParallelism int, fn mutateFn) []ackResult {
	results := make([]ackResult, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelism)
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			resp, err := fn(gctx, t.Conn)
			results[i] = ackResult{Address: t.Address, Resp: resp, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func prepareAll(ctx context.Context, targets []Target, maxParallelism int, msg wire.PrepareMessage) []ackResult {
	return fanOutMutate(ctx, targets, maxParallelism, func(ctx context.Context, conn ServerConn) (wire.AcceptRejectResponse, error) {
		return conn.Prepare(ctx, msg)
	})
}

func commitAll(ctx context.Context, targets []Target, maxParallelism int, msg wire.CommitMessage) []ackResult {
	return fanOutMutate(ctx, targets, maxParallelism, func(ctx context.Context, conn ServerConn) (wire.AcceptRejectResponse, error) {
		return conn.Commit(ctx, msg)
	})
}

func rollbackAll(ctx context.Context, targets []Target, maxParallelism int, msg wire.RollbackMessage) []ackResult {
	return fanOutMutate(ctx, targets, maxParallelism, func(ctx context.Context, conn ServerConn) (wire.AcceptRejectResponse, error) {
		return conn.Rollback(ctx, msg)
	})
}

func takeoverAll(ctx context.Context, targets []Target, maxParallelism int, msg wire.TakeoverMessage) []ackResult {
	return fanOutMutate(ctx, targets, maxParallelism, func(ctx context.Context, conn ServerConn) (wire.AcceptRejectResponse, error) {
		return conn.Takeover(ctx, msg)
	})
}

// retryCommitAll retries commitAll against only the targets that failed,
// with exponential backoff, up to maxAttempts total attempts (spec §4.3 step
// 6: "the coordinator retries Commit against stragglers with bounded
// backoff before surfacing TWO_PHASE_COMMIT_FAILED" -- once every server has
// accepted Prepare, a straggling Commit is retried rather than rolled back,
// since rollback after a quorum-independent single-version commit protocol
// would risk divergent outcomes across servers).
func retryCommitAll(ctx context.Context, targets []Target, maxParallelism int, msg wire.CommitMessage, maxAttempts int, backoff func(attempt int) <-chan struct{}) []ackResult {
	pending := targets
	var final []ackResult
	byAddress := map[string]ackResult{}

	for attempt := 1; attempt <= maxAttempts && len(pending) > 0; attempt++ {
		results := commitAll(ctx, pending, maxParallelism, msg)
		var next []Target
		for i, r := range results {
			if r.ok() {
				byAddress[r.Address] = r
				continue
			}
			byAddress[r.Address] = r
			next = append(next, pending[i])
		}
		pending = next
		if len(pending) > 0 && attempt < maxAttempts {
			logger.Warningf("commit: %d server(s) still outstanding after attempt %d, retrying", len(pending), attempt)
			if backoff != nil {
				<-backoff(attempt)
			}
		}
	}

	for _, t := range targets {
		final = append(final, byAddress[t.Address])
	}
	return final
}

func summarizeFailures(results []ackResult) string {
	var failed []string
	for _, r := range results {
		if r.ok() {
			continue
		}
		if r.Err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", r.Address, r.Err))
		} else {
			failed = append(failed, fmt.Sprintf("%s: %s (%s)", r.Address, r.Resp.RejectionReason, r.Resp.RejectionMessage))
		}
	}
	if len(failed) == 0 {
		return ""
	}
	return fmt.Sprintf("%v", failed)
}
