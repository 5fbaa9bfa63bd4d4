package nomadserver

import "github.com/cljohnso/terracotta-platform/internal/wire"

// Discover reports the server's current state without mutating it (spec
// §4.2). It is safe to call from any number of goroutines.
func (s *Server) Discover() wire.DiscoverResponse {
	s.lock.Lock()
	defer s.lock.Unlock()

	return wire.DiscoverResponse{
		Mode:                 s.mode,
		MutativeMessageCount: s.m,
		LastMutationHost:     s.lastMutationHost,
		LastMutationUser:     s.lastMutationUser,
		CurrentVersion:       s.v,
		HighestVersion:       s.h,
		LatestChange:         s.latestChange,
	}
}
