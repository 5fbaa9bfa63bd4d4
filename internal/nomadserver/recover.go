package nomadserver

import (
	"fmt"

	"github.com/cljohnso/terracotta-platform/internal/storage"
	"github.com/cljohnso/terracotta-platform/internal/wire"
)

// recoverUnsafe rebuilds mode/v/h/m/latestChange/committedContext from the
// journal and config store, so a restarted node resumes exactly where it
// left off (spec §4.2).
func (s *Server) recoverUnsafe() error {
	snap, err := s.repo.State.Load()
	if err != nil {
		return err
	}
	s.m = snap.MutativeMessageCount
	s.lastMutationHost = snap.LastMutationHost
	s.lastMutationUser = snap.LastMutationUser

	records, err := s.repo.Journal.ReadAll()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		s.mode = wire.ModeAccepting
		return nil
	}

	var committed *storage.Record
	latest := records[len(records)-1]

	for i := len(records) - 1; i >= 0; i-- {
		if records[i].State == storage.RecordCommitted {
			committed = records[i]
			break
		}
	}

	switch latest.State {
	case storage.RecordPrepared:
		s.mode = wire.ModePrepared
		s.h = latest.Version
		s.pendingRecord = latest
	case storage.RecordCommitted, storage.RecordRolledBack:
		s.mode = wire.ModeAccepting
		s.h = latest.Version
	default:
		return fmt.Errorf("nomadserver: journal record v%d has unknown state %q", latest.Version, latest.State)
	}

	if committed != nil {
		s.v = committed.Version
		s.latestChange = &wire.LatestChangeInfo{
			Version:       committed.Version,
			Summary:       committed.ChangeSummary,
			AppliedHost:   committed.AppliedHost,
			AppliedUser:   committed.AppliedUser,
			AppliedAtUnix: committed.AppliedTime.Unix(),
		}
		ctx, loadErr := s.repo.Config.Load(committed.Version)
		if loadErr != nil {
			return fmt.Errorf("nomadserver: loading committed context v%d: %w", committed.Version, loadErr)
		}
		s.committedContext = ctx
	}
	return nil
}
