// Package nomadclient implements the coordinator side of the Nomad protocol
// (spec §4.3): discovering servers, detecting and resolving interrupted
// prior changes, and driving a two-phase Prepare/Commit across a replica
// set. The RPC transport itself is an external collaborator (spec §1
// Non-goals); callers supply one ServerConn per target.
package nomadclient

import (
	"context"
	"fmt"
	"time"

	"github.com/cactus/go-statsd-client/v5/statsd"
	logging "github.com/op/go-logging"

	"github.com/cljohnso/terracotta-platform/internal/change"
	"github.com/cljohnso/terracotta-platform/internal/wire"
)

var logger *logging.Logger

func init() {
	logger = logging.MustGetLogger("nomadclient")
}

// FailureReason enumerates the ways a Coordinator run can fail, mirroring
// spec §7's server-side RejectionReason taxonomy at the coordinator level.
type FailureReason string

const (
	FailureNone                FailureReason = ""
	FailureUnreachable         FailureReason = "SERVERS_UNREACHABLE"
	FailureDiverged            FailureReason = "SERVERS_DIVERGED"
	FailurePrepareRejected     FailureReason = "PREPARE_FAILED"
	FailureTwoPhaseCommit      FailureReason = "TWO_PHASE_COMMIT_FAILED"
	FailureTakeoverRejected    FailureReason = "TAKEOVER_FAILED"
)

// PerServerAck records one target's final Accept/Reject outcome.
type PerServerAck struct {
	Address  string
	Accepted bool
	Reason   wire.RejectionReason
	Message  string
}

// Result is the coordinator's outcome for one change (spec §4.3 step 7:
// "{success, perServerAck}").
type Result struct {
	Success      bool
	Reason       FailureReason
	PerServerAck []PerServerAck
	Divergence   *DivergenceReport
	Recovery     RecoveryReport
}

// Options configures one Coordinator run (spec §6's -t/-r/-e/-f flags).
type Options struct {
	// Timeout bounds a whole Propose run (discovery, recovery, Prepare,
	// Commit and its retries together). Individual RPCs get no deadline of
	// their own, and Diagnose and Takeover do not apply it.
	Timeout time.Duration
	// MaxParallelism bounds concurrent in-flight RPCs per fan-out step.
	MaxParallelism int
	// CommitRetries is the total number of Commit attempts (the first one
	// included) made before the run is reported as TWO_PHASE_COMMIT_FAILED.
	CommitRetries int
	// CommitRetryBackoff is the base delay between Commit retries (spec §6
	// "-r"); doubled on each successive attempt.
	CommitRetryBackoff time.Duration
	// Force tolerates unreachable or divergent servers rather than failing
	// outright (spec §6 "-f"): the run proceeds against whatever servers it
	// could reach and reports the rest in Result.Divergence.
	Force bool
	// Host/User identify the operator for journal provenance and the
	// mutative-message counter handshake.
	Host string
	User string
	// Stats receives per-phase timings (nomad.client.discover/prepare/commit)
	// the same way nomadserver.Server counts per-message outcomes. A nil
	// Stats is replaced with a no-op client.
	Stats statsd.Statter
}

// Coordinator drives the Nomad protocol across a fixed replica set.
type Coordinator struct {
	targets []Target
	opts    Options
	stats   statsd.Statter
}

func New(targets []Target, opts Options) *Coordinator {
	if opts.MaxParallelism <= 0 {
		opts.MaxParallelism = len(targets)
		if opts.MaxParallelism == 0 {
			opts.MaxParallelism = 1
		}
	}
	if opts.CommitRetries <= 0 {
		opts.CommitRetries = 1
	}
	stats := opts.Stats
	if stats == nil {
		stats, _ = statsd.NewNoopClient()
	}
	return &Coordinator{targets: targets, opts: opts, stats: stats}
}

// discoverAndReconcile runs spec §4.3 steps 1-4: discover every server,
// check consistency, resolve any interrupted prior change, and re-check
// consistency against the post-recovery state. It returns the reconciled
// DiscoverResponse set (keyed by address, unreachable servers absent), the
// divergence report and the recovery report; callers derive {m, h} from
// the responses.
func (c *Coordinator) discoverAndReconcile(ctx context.Context) (map[string]wire.DiscoverResponse, *DivergenceReport, RecoveryReport, error) {
	start := time.Now()
	defer func() { c.stats.TimingDuration("nomad.client.discover", time.Since(start), 1) }()

	responses, unreachable := discoverAll(ctx, c.targets, c.opts.MaxParallelism)
	if len(responses) == 0 {
		return nil, nil, RecoveryReport{}, fmt.Errorf("nomadclient: no server in the replica set was reachable")
	}
	if len(unreachable) > 0 && !c.opts.Force {
		report := checkConsistency(responses, unreachable)
		return responses, report, RecoveryReport{}, fmt.Errorf("nomadclient: %d server(s) unreachable and -f not set", len(unreachable))
	}

	recovery, responses, err := resolveIncompleteChange(ctx, c.targets, c.opts.MaxParallelism, responses, highestCounter(responses), c.opts.Host, c.opts.User)
	if err != nil {
		return responses, nil, recovery, err
	}

	report := checkConsistency(responses, unreachable)
	if !report.empty() && !c.opts.Force {
		return responses, report, recovery, fmt.Errorf("nomadclient: servers disagree on cluster state")
	}
	return responses, report, recovery, nil
}

func highestCounter(responses map[string]wire.DiscoverResponse) uint64 {
	var max uint64
	for _, r := range responses {
		if r.MutativeMessageCount > max {
			max = r.MutativeMessageCount
		}
	}
	return max
}

// Diagnose runs discovery and consistency/recovery resolution without
// fencing or proposing anything, for read-only inspection (spec §6
// "diagnostic").
func (c *Coordinator) Diagnose(ctx context.Context) (Result, error) {
	responses, divergence, recovery, err := c.discoverAndReconcile(ctx)
	if err != nil && !c.opts.Force {
		return Result{Success: false, Reason: FailureDiverged, Divergence: divergence, Recovery: recovery}, err
	}
	acks := make([]PerServerAck, 0, len(responses))
	for addr, r := range responses {
		acks = append(acks, PerServerAck{Address: addr, Accepted: true, Message: fmt.Sprintf("mode=%s v=%d h=%d", r.Mode, r.CurrentVersion, r.HighestVersion)})
	}
	return Result{Success: true, PerServerAck: acks, Divergence: divergence, Recovery: recovery}, nil
}

// Takeover fences any previous coordinator by bumping every reachable
// server's mutative-message counter (spec §4.3 step 4).
func (c *Coordinator) Takeover(ctx context.Context) (Result, error) {
	responses, divergence, recovery, err := c.discoverAndReconcile(ctx)
	if err != nil && !c.opts.Force {
		return Result{Success: false, Reason: FailureDiverged, Divergence: divergence, Recovery: recovery}, err
	}

	results := takeoverAll(ctx, c.targets, c.opts.MaxParallelism, wire.TakeoverMessage{
		ExpectedMutativeMessageCount: highestCounter(responses),
		Host:                         c.opts.Host,
		User:                         c.opts.User,
	})
	acks := toAcks(results)
	if !allAccepted(results) && !c.opts.Force {
		return Result{Success: false, Reason: FailureTakeoverRejected, PerServerAck: acks, Divergence: divergence, Recovery: recovery}, fmt.Errorf("nomadclient: takeover rejected by one or more servers")
	}
	return Result{Success: true, PerServerAck: acks, Divergence: divergence, Recovery: recovery}, nil
}

// Propose drives one full Prepare/Commit round for c against every target
// (spec §4.3 steps 1-7). newVersion and counter are derived from the
// reconciled Discover state; the caller supplies the decoded change and the
// wire format version to encode it at (spec §6, V1 vs V2 ChangeDoc).
func (c *Coordinator) Propose(ctx context.Context, ch change.Change, formatVersion int) (Result, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	responses, divergence, recovery, err := c.discoverAndReconcile(ctx)
	if err != nil {
		return Result{Success: false, Reason: FailureDiverged, Divergence: divergence, Recovery: recovery}, err
	}

	counter := highestCounter(responses)
	var newVersion uint64
	for _, r := range responses {
		if r.HighestVersion+1 > newVersion {
			newVersion = r.HighestVersion + 1
		}
	}

	doc, err := wire.EncodeChange(ch, formatVersion)
	if err != nil {
		return Result{Success: false, Reason: FailurePrepareRejected, Divergence: divergence, Recovery: recovery}, fmt.Errorf("nomadclient: encoding change: %w", err)
	}

	// Servers that did not answer Discover (tolerated only under Force) are
	// left out of Prepare, Rollback and Commit.
	targets := make([]Target, 0, len(responses))
	for _, t := range c.targets {
		if _, ok := responses[t.Address]; ok {
			targets = append(targets, t)
		}
	}

	prepareStart := time.Now()
	prepareResults := prepareAll(ctx, targets, c.opts.MaxParallelism, wire.PrepareMessage{
		ExpectedMutativeMessageCount: counter,
		NewVersion:                   newVersion,
		Change:                       doc,
	})
	c.stats.TimingDuration("nomad.client.prepare", time.Since(prepareStart), 1)
	if !allAccepted(prepareResults) {
		rollbackAll(ctx, targets, c.opts.MaxParallelism, wire.RollbackMessage{
			ExpectedMutativeMessageCount: counter + 1,
			Version:                     newVersion,
		})
		logger.Warningf("propose: prepare rejected by one or more servers, rolled back v%d", newVersion)
		return Result{Success: false, Reason: FailurePrepareRejected, PerServerAck: toAcks(prepareResults), Divergence: divergence, Recovery: recovery}, fmt.Errorf("nomadclient: prepare rejected: %s", summarizeFailures(prepareResults))
	}

	commitMsg := wire.CommitMessage{ExpectedMutativeMessageCount: counter + 1, Version: newVersion}
	baseBackoff := c.opts.CommitRetryBackoff
	commitStart := time.Now()
	commitResults := retryCommitAll(ctx, targets, c.opts.MaxParallelism, commitMsg, c.opts.CommitRetries, func(attempt int) <-chan struct{} {
		done := make(chan struct{})
		delay := baseBackoff
		for i := 1; i < attempt; i++ {
			delay *= 2
		}
		timer := time.NewTimer(delay)
		go func() {
			<-timer.C
			close(done)
		}()
		return done
	})
	c.stats.TimingDuration("nomad.client.commit", time.Since(commitStart), 1)

	if !allAccepted(commitResults) {
		logger.Warningf("propose: v%d commit incomplete after %d attempt(s): %s", newVersion, c.opts.CommitRetries, summarizeFailures(commitResults))
		return Result{Success: false, Reason: FailureTwoPhaseCommit, PerServerAck: toAcks(commitResults), Divergence: divergence, Recovery: recovery}, fmt.Errorf("nomadclient: two-phase commit incomplete: %s", summarizeFailures(commitResults))
	}

	logger.Infof("propose: v%d committed across %d server(s)", newVersion, len(targets))
	return Result{Success: true, PerServerAck: toAcks(commitResults), Divergence: divergence, Recovery: recovery}, nil
}

func allAccepted(results []ackResult) bool {
	for _, r := range results {
		if !r.ok() {
			return false
		}
	}
	return true
}

func toAcks(results []ackResult) []PerServerAck {
	acks := make([]PerServerAck, len(results))
	for i, r := range results {
		acks[i] = PerServerAck{
			Address:  r.Address,
			Accepted: r.Resp.Accepted,
			Reason:   r.Resp.RejectionReason,
			Message:  r.Resp.RejectionMessage,
		}
		if r.Err != nil {
			acks[i].Message = r.Err.Error()
		}
	}
	return acks
}
