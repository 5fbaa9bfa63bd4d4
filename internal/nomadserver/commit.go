package nomadserver

import (
	"time"

	"github.com/cljohnso/terracotta-platform/internal/storage"
	"github.com/cljohnso/terracotta-platform/internal/wire"
)

// Commit finalizes a previously prepared version (spec §4.2). The committed
// NodeContext is handed to the listener after the lock is released, so a
// re-entrant listener can never deadlock the server (spec §4.2 "Suspension
// points... must not be performed while holding any lock").
func (s *Server) Commit(req wire.CommitMessage, host, user string) wire.AcceptRejectResponse {
	s.lock.Lock()

	if resp, ok := s.replayUnsafe("commit", req.ExpectedMutativeMessageCount, req.Version); ok {
		logger.Debugf("commit: replaying durable response for v%d (retried message)", req.Version)
		s.lock.Unlock()
		return resp
	}

	if s.mode != wire.ModePrepared {
		resp := wire.Reject(wire.ReasonWrongMode, "server is not in PREPARED mode", s.stateUnsafe())
		s.lock.Unlock()
		return resp
	}
	if req.ExpectedMutativeMessageCount != s.m {
		resp := wire.Reject(wire.ReasonStaleCounter, "mutative message counter mismatch", s.stateUnsafe())
		s.lock.Unlock()
		return resp
	}
	if req.Version != s.h {
		resp := wire.Reject(wire.ReasonWrongVersion, "version does not match the outstanding PREPARED record", s.stateUnsafe())
		s.lock.Unlock()
		return resp
	}

	record := s.pendingRecord
	if record == nil || record.Version != req.Version {
		resp := wire.Reject(wire.ReasonStorageFailure, "no matching outstanding prepared record", s.stateUnsafe())
		s.lock.Unlock()
		return resp
	}

	now := time.Now().UTC()
	record.State = storage.RecordCommitted
	record.AppliedHost, record.AppliedUser, record.AppliedTime = host, user, now
	if err := s.repo.Journal.Append(record); err != nil {
		resp := wire.Reject(wire.ReasonStorageFailure, err.Error(), s.stateUnsafe())
		s.lock.Unlock()
		return resp
	}

	committedCtx, err := s.repo.Config.Load(req.Version)
	if err != nil {
		resp := wire.Reject(wire.ReasonStorageFailure, err.Error(), s.stateUnsafe())
		s.lock.Unlock()
		return resp
	}

	s.v = req.Version
	s.mode = wire.ModeAccepting
	s.pendingRecord = nil
	s.m++
	s.lastMutationHost, s.lastMutationUser = host, user
	s.committedContext = committedCtx
	s.latestChange = &wire.LatestChangeInfo{
		Version:       req.Version,
		Summary:       record.ChangeSummary,
		AppliedHost:   host,
		AppliedUser:   user,
		AppliedAtUnix: now.Unix(),
	}
	if err := s.repo.State.Save(storage.ServerStateSnapshot{
		MutativeMessageCount: s.m,
		LastMutationHost:     s.lastMutationHost,
		LastMutationUser:     s.lastMutationUser,
	}); err != nil {
		resp := wire.Reject(wire.ReasonStorageFailure, err.Error(), s.stateUnsafe())
		s.lock.Unlock()
		return resp
	}

	resp := wire.Accept(s.stateUnsafe())
	s.recordTransitionUnsafe("commit", req.ExpectedMutativeMessageCount, req.Version, resp)
	listener, notifyCtx, requiresRestart := s.listener, committedCtx, record.RequiresRestart
	s.lock.Unlock()

	logger.Infof("commit: v%d committed (%s)", req.Version, record.ChangeSummary)
	s.stats.Inc("nomad.commit.accepted", 1, 1)
	if listener != nil {
		listener.OnCommit(notifyCtx, requiresRestart)
	}
	return resp
}
