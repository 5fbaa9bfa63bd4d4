package nomadserver

import (
	"time"

	"github.com/cljohnso/terracotta-platform/internal/change"
	"github.com/cljohnso/terracotta-platform/internal/clustermodel"
	"github.com/cljohnso/terracotta-platform/internal/storage"
	"github.com/cljohnso/terracotta-platform/internal/wire"
)

func (s *Server) currentClusterUnsafe() *clustermodel.Cluster {
	if s.committedContext == nil {
		return nil
	}
	return s.committedContext.Cluster
}

// Prepare handles a PrepareMessage (spec §4.2). It accepts iff the server is
// ACCEPTING, the caller's counter matches, the proposed version is exactly
// h+1, and the decoded change both CanApply and leaves the cluster
// passing validation.
func (s *Server) Prepare(req wire.PrepareMessage, host, user string) wire.AcceptRejectResponse {
	s.lock.Lock()
	defer s.lock.Unlock()

	if resp, ok := s.replayUnsafe("prepare", req.ExpectedMutativeMessageCount, req.NewVersion); ok {
		logger.Debugf("prepare: replaying durable response for v%d (retried message)", req.NewVersion)
		return resp
	}

	if s.mode != wire.ModeAccepting {
		return wire.Reject(wire.ReasonWrongMode, "server is not in ACCEPTING mode", s.stateUnsafe())
	}
	if req.ExpectedMutativeMessageCount != s.m {
		return wire.Reject(wire.ReasonStaleCounter, "mutative message counter mismatch", s.stateUnsafe())
	}
	if req.NewVersion != s.h+1 {
		return wire.Reject(wire.ReasonWrongVersion, "new version must be highestVersion+1", s.stateUnsafe())
	}

	decoded, err := wire.DecodeChange(req.Change, s.catalog, s.currentClusterUnsafe())
	if err != nil {
		return wire.Reject(wire.ReasonChangeUnapplicable, err.Error(), s.stateUnsafe())
	}
	if err := decoded.CanApply(s.currentClusterUnsafe()); err != nil {
		return wire.Reject(wire.ReasonChangeUnapplicable, err.Error(), s.stateUnsafe())
	}

	newCluster, err := decoded.Apply(s.currentClusterUnsafe())
	if err != nil {
		return wire.Reject(wire.ReasonChangeUnapplicable, err.Error(), s.stateUnsafe())
	}
	if err := s.validator.Validate(newCluster); err != nil {
		return wire.Reject(wire.ReasonChangeUnapplicable, err.Error(), s.stateUnsafe())
	}

	_, isActivation := decoded.(*change.ClusterActivationChange)
	proposedCtx, err := s.nextContextUnsafe(newCluster, isActivation)
	if err != nil {
		return wire.Reject(wire.ReasonChangeUnapplicable, err.Error(), s.stateUnsafe())
	}

	resultHash, err := storage.HashNodeContext(proposedCtx)
	if err != nil {
		return wire.Reject(wire.ReasonStorageFailure, err.Error(), s.stateUnsafe())
	}

	prevHash := ""
	if last, lerr := s.repo.Journal.Latest(); lerr == nil && last != nil {
		if h, herr := last.Hash(); herr == nil {
			prevHash = h
		}
	}

	record := &storage.Record{
		Version:         req.NewVersion,
		PrevVersionHash: prevHash,
		State:           storage.RecordPrepared,
		Change:          req.Change,
		ChangeSummary:   decoded.Summary(),
		RequiresRestart: decoded.RequiresRestart(),
		ResultHash:      resultHash,
		CreationHost:    host,
		CreationUser:    user,
		CreationTime:    time.Now().UTC(),
	}
	if err := s.repo.Journal.Append(record); err != nil {
		return wire.Reject(wire.ReasonStorageFailure, err.Error(), s.stateUnsafe())
	}
	if err := s.repo.Config.Save(req.NewVersion, proposedCtx); err != nil {
		return wire.Reject(wire.ReasonStorageFailure, err.Error(), s.stateUnsafe())
	}

	s.mode = wire.ModePrepared
	s.h = req.NewVersion
	s.pendingRecord = record
	s.m++
	s.lastMutationHost, s.lastMutationUser = host, user
	if err := s.repo.State.Save(storage.ServerStateSnapshot{
		MutativeMessageCount: s.m,
		LastMutationHost:     s.lastMutationHost,
		LastMutationUser:     s.lastMutationUser,
	}); err != nil {
		return wire.Reject(wire.ReasonStorageFailure, err.Error(), s.stateUnsafe())
	}

	logger.Infof("prepare: accepted v%d (%s)", req.NewVersion, decoded.Summary())
	s.stats.Inc("nomad.prepare.accepted", 1, 1)
	resp := wire.Accept(s.stateUnsafe())
	s.recordTransitionUnsafe("prepare", req.ExpectedMutativeMessageCount, req.NewVersion, resp)
	return resp
}
