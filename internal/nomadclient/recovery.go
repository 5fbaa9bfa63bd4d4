package nomadclient

import (
	"context"

	"github.com/cljohnso/terracotta-platform/internal/wire"
)

// RecoveryAction names what the coordinator did, if anything, about a prior
// interrupted coordinator run it found in progress.
type RecoveryAction string

const (
	// RecoveryNone means no server was left PREPARED; nothing to resolve.
	RecoveryNone RecoveryAction = "NONE"
	// RecoveryCommitted means every PREPARED server agreed on the same
	// outstanding version, so the coordinator finished the commit on their
	// behalf before proceeding (spec §4.3 step 3: "if every server already
	// agrees, finish the interrupted commit rather than rolling back work
	// a prior coordinator run had already secured").
	RecoveryCommitted RecoveryAction = "COMMITTED"
	// RecoveryRolledBack means the PREPARED servers disagreed (or only some
	// servers were PREPARED), so the coordinator rolled the outstanding
	// version back everywhere it could reach.
	RecoveryRolledBack RecoveryAction = "ROLLED_BACK"
)

// RecoveryReport summarizes what, if anything, the coordinator did to
// resolve a prior interrupted two-phase commit before starting its own.
type RecoveryReport struct {
	Action  RecoveryAction
	Version uint64
}

// resolveIncompleteChange inspects the Discover responses collected by
// discoverAll and, if one or more servers are PREPARED, either finishes or
// rolls back the outstanding version (spec §4.3 step 3). It returns the
// possibly-updated responses map reflecting post-recovery state.
func resolveIncompleteChange(ctx context.Context, targets []Target, maxParallelism int, responses map[string]wire.DiscoverResponse, counter uint64, host, user string) (RecoveryReport, map[string]wire.DiscoverResponse, error) {
	var prepared []Target
	var version uint64
	allAgree := true

	for _, t := range targets {
		resp, ok := responses[t.Address]
		if !ok || resp.Mode != wire.ModePrepared {
			continue
		}
		if len(prepared) == 0 {
			version = resp.HighestVersion
		} else if resp.HighestVersion != version {
			allAgree = false
		}
		prepared = append(prepared, t)
	}

	if len(prepared) == 0 {
		return RecoveryReport{Action: RecoveryNone}, responses, nil
	}
	if len(prepared) != len(targets) {
		allAgree = false
	}

	if allAgree {
		results := commitAll(ctx, prepared, maxParallelism, wire.CommitMessage{
			ExpectedMutativeMessageCount: counter,
			Version:                     version,
		})
		for _, r := range results {
			if !r.ok() {
				allAgree = false
				break
			}
		}
		if allAgree {
			refreshed, _ := discoverAll(ctx, targets, maxParallelism)
			return RecoveryReport{Action: RecoveryCommitted, Version: version}, refreshed, nil
		}
	}

	rollbackAll(ctx, prepared, maxParallelism, wire.RollbackMessage{
		ExpectedMutativeMessageCount: counter,
		Version:                     version,
	})
	refreshed, _ := discoverAll(ctx, targets, maxParallelism)
	return RecoveryReport{Action: RecoveryRolledBack, Version: version}, refreshed, nil
}
