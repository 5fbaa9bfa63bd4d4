package nomadserver

import (
	"time"

	"github.com/cljohnso/terracotta-platform/internal/storage"
	"github.com/cljohnso/terracotta-platform/internal/wire"
)

// Rollback discards a previously prepared version (spec §4.2): the
// PREPARED record is marked ROLLED_BACK and its config snapshot deleted,
// returning the server to ACCEPTING without ever having changed v.
func (s *Server) Rollback(req wire.RollbackMessage, host, user string) wire.AcceptRejectResponse {
	s.lock.Lock()
	defer s.lock.Unlock()

	if resp, ok := s.replayUnsafe("rollback", req.ExpectedMutativeMessageCount, req.Version); ok {
		logger.Debugf("rollback: replaying durable response for v%d (retried message)", req.Version)
		return resp
	}

	if s.mode != wire.ModePrepared {
		return wire.Reject(wire.ReasonWrongMode, "server is not in PREPARED mode", s.stateUnsafe())
	}
	if req.ExpectedMutativeMessageCount != s.m {
		return wire.Reject(wire.ReasonStaleCounter, "mutative message counter mismatch", s.stateUnsafe())
	}
	if req.Version != s.h {
		return wire.Reject(wire.ReasonWrongVersion, "version does not match the outstanding PREPARED record", s.stateUnsafe())
	}

	record := s.pendingRecord
	if record == nil || record.Version != req.Version {
		return wire.Reject(wire.ReasonStorageFailure, "no matching outstanding prepared record", s.stateUnsafe())
	}

	record.State = storage.RecordRolledBack
	record.AppliedHost, record.AppliedUser, record.AppliedTime = host, user, time.Now().UTC()
	if err := s.repo.Journal.Append(record); err != nil {
		return wire.Reject(wire.ReasonStorageFailure, err.Error(), s.stateUnsafe())
	}
	if err := s.repo.Config.Delete(req.Version); err != nil {
		return wire.Reject(wire.ReasonStorageFailure, err.Error(), s.stateUnsafe())
	}

	s.mode = wire.ModeAccepting
	s.pendingRecord = nil
	s.m++
	s.lastMutationHost, s.lastMutationUser = host, user
	if err := s.repo.State.Save(storage.ServerStateSnapshot{
		MutativeMessageCount: s.m,
		LastMutationHost:     s.lastMutationHost,
		LastMutationUser:     s.lastMutationUser,
	}); err != nil {
		return wire.Reject(wire.ReasonStorageFailure, err.Error(), s.stateUnsafe())
	}

	logger.Infof("rollback: v%d discarded", req.Version)
	s.stats.Inc("nomad.rollback.accepted", 1, 1)
	resp := wire.Accept(s.stateUnsafe())
	s.recordTransitionUnsafe("rollback", req.ExpectedMutativeMessageCount, req.Version, resp)
	return resp
}
