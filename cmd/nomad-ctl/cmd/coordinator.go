package cmd

import (
	"context"
	"fmt"

	"github.com/cactus/go-statsd-client/v5/statsd"

	"github.com/cljohnso/terracotta-platform/internal/nomadclient"
)

func newCoordinator(ctx context.Context) (*nomadclient.Coordinator, error) {
	addrs, err := serverAddresses()
	if err != nil {
		return nil, err
	}
	targets, err := dialTargets(ctx, addrs)
	if err != nil {
		return nil, err
	}
	host, user := operatorIdentity()
	return nomadclient.New(targets, nomadclient.Options{
		Timeout:            v.GetDuration("timeout"),
		CommitRetries:      3,
		CommitRetryBackoff: v.GetDuration("retry-interval"),
		Force:               v.GetBool("force"),
		Host:                host,
		User:                user,
		Stats:               coordinatorStatter(),
	}), nil
}

// coordinatorStatter builds the statsd client the Coordinator times its
// discover/prepare/commit phases against (--statsd-addr), falling back to a
// no-op client when unset or unreachable, matching nomad-agent's own
// statsd-or-noop fallback.
func coordinatorStatter() statsd.Statter {
	addr := v.GetString("statsd-addr")
	if addr == "" {
		stats, _ := statsd.NewNoopClient()
		return stats
	}
	stats, err := statsd.NewClientWithConfig(&statsd.ClientConfig{Address: addr})
	if err != nil {
		logger.Warningf("statsd client unavailable (%v), falling back to a no-op client", err)
		stats, _ = statsd.NewNoopClient()
	}
	return stats
}

// resultToErr maps a nomadclient.Result's failure reason to the spec §7
// exit-code taxonomy, naming the offending server(s) and rejection reason
// rather than a generic failure.
func resultToErr(result nomadclient.Result, err error) error {
	if err == nil && result.Success {
		return nil
	}
	switch result.Reason {
	case nomadclient.FailureUnreachable, nomadclient.FailureDiverged:
		return newCliError(ExitConsistency, fmt.Errorf("nomad-ctl: %s: %w", describeDivergence(result), err))
	case nomadclient.FailurePrepareRejected, nomadclient.FailureTwoPhaseCommit, nomadclient.FailureTakeoverRejected:
		return newCliError(ExitTwoPhaseCommit, fmt.Errorf("nomad-ctl: %s: %w", describeAcks(result.PerServerAck), err))
	default:
		if err != nil {
			return newCliError(ExitIOError, err)
		}
		return newCliError(ExitIOError, fmt.Errorf("nomad-ctl: run did not succeed for an unspecified reason"))
	}
}

func describeAcks(acks []nomadclient.PerServerAck) string {
	rejected := make([]string, 0)
	for _, a := range acks {
		if !a.Accepted {
			rejected = append(rejected, fmt.Sprintf("%s: %s (%s)", a.Address, a.Reason, a.Message))
		}
	}
	if len(rejected) == 0 {
		return "no server reported a rejection reason"
	}
	msg := rejected[0]
	for _, r := range rejected[1:] {
		msg += "; " + r
	}
	return msg
}

func describeDivergence(result nomadclient.Result) string {
	if result.Divergence == nil {
		return "servers unreachable or diverged"
	}
	return fmt.Sprintf("%d unreachable, %d disagreeing with reference %s",
		len(result.Divergence.Unreachable), len(result.Divergence.Mismatched), result.Divergence.Reference)
}
