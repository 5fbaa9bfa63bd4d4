package nomadserver

import (
	"github.com/cljohnso/terracotta-platform/internal/storage"
	"github.com/cljohnso/terracotta-platform/internal/wire"
)

// Takeover fences prior coordinators: it updates the last-mutation identity
// and bumps the counter without touching v, h or mode (spec §4.2, §4.3 step
// 4). It accepts regardless of mode, since a new coordinator must be able
// to fence an in-progress PREPARED session too.
func (s *Server) Takeover(req wire.TakeoverMessage) wire.AcceptRejectResponse {
	s.lock.Lock()
	defer s.lock.Unlock()

	if resp, ok := s.replayUnsafe("takeover", req.ExpectedMutativeMessageCount, 0); ok {
		logger.Debugf("takeover: replaying durable response (retried message)")
		return resp
	}

	if req.ExpectedMutativeMessageCount != s.m {
		return wire.Reject(wire.ReasonStaleCounter, "mutative message counter mismatch", s.stateUnsafe())
	}

	s.m++
	s.lastMutationHost, s.lastMutationUser = req.Host, req.User
	if err := s.repo.State.Save(storage.ServerStateSnapshot{
		MutativeMessageCount: s.m,
		LastMutationHost:     s.lastMutationHost,
		LastMutationUser:     s.lastMutationUser,
	}); err != nil {
		return wire.Reject(wire.ReasonStorageFailure, err.Error(), s.stateUnsafe())
	}

	logger.Infof("takeover: fenced by host=%s user=%s", req.Host, req.User)
	s.stats.Inc("nomad.takeover.accepted", 1, 1)
	resp := wire.Accept(s.stateUnsafe())
	s.recordTransitionUnsafe("takeover", req.ExpectedMutativeMessageCount, 0, resp)
	return resp
}
