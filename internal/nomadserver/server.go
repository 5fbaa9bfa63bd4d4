// Package nomadserver implements the per-node Nomad state machine: the
// single logical serializer that accepts Discover/Prepare/Commit/Rollback/
// Takeover messages, enforces the mutative-message counter and durably
// journals every transition before replying (spec §4.2).
package nomadserver

import (
	"fmt"
	"sync"

	logging "github.com/op/go-logging"
	"github.com/cactus/go-statsd-client/v5/statsd"

	"github.com/cljohnso/terracotta-platform/internal/clustermodel"
	"github.com/cljohnso/terracotta-platform/internal/settingcatalog"
	"github.com/cljohnso/terracotta-platform/internal/storage"
	"github.com/cljohnso/terracotta-platform/internal/validate"
	"github.com/cljohnso/terracotta-platform/internal/wire"
)

var logger *logging.Logger

func init() {
	logger = logging.MustGetLogger("nomadserver")
}

// CommitListener receives the NodeContext resulting from a committed
// change, outside of the server's lock (spec §4.7). A nil listener is
// legal; notification is then skipped.
type CommitListener interface {
	OnCommit(ctx *clustermodel.NodeContext, requiresRestart bool)
}

// Server is one node's Nomad state machine. All exported operations
// serialize through lock: the spec requires a single logical serializer
// per node, and a mutex is the simplest implementation that satisfies it
// (spec §4.2 "Scheduling model").
type Server struct {
	lock sync.Mutex

	repo     *storage.Repository
	catalog  *settingcatalog.Catalog
	validator *validate.Validator
	listener CommitListener
	stats    statsd.Statter

	mode                 wire.Mode
	v                     uint64
	h                     uint64
	m                     uint64
	lastMutationHost      string
	lastMutationUser      string
	latestChange          *wire.LatestChangeInfo
	committedContext      *clustermodel.NodeContext

	// pendingRecord is the outstanding PREPARED record, held in memory so
	// Commit/Rollback never need to read the journal back (the server is the
	// journal's only writer and only reader).
	pendingRecord *storage.Record

	// lastTransition remembers the most recently consumed mutating message
	// so a retried send with the same expectedMutativeMessageCount (a lost
	// reply, not a conflicting request) replays the durable response rather
	// than being rejected as stale (spec §4.2 "idempotent on matching
	// counters").
	lastTransition *transitionRecord
}

// transitionRecord is the replay cache for one applied mutating message.
type transitionRecord struct {
	expectedCounter uint64
	kind            string
	version         uint64
	response        wire.AcceptRejectResponse
}

// replayUnsafe returns the cached response for req if it is a retry of the
// most recently applied transition of the given kind/version, or (zero,
// false) otherwise.
func (s *Server) replayUnsafe(kind string, expectedCounter, version uint64) (wire.AcceptRejectResponse, bool) {
	t := s.lastTransition
	if t == nil || t.kind != kind || t.expectedCounter != expectedCounter || t.version != version {
		return wire.AcceptRejectResponse{}, false
	}
	return t.response, true
}

func (s *Server) recordTransitionUnsafe(kind string, expectedCounter, version uint64, resp wire.AcceptRejectResponse) {
	s.lastTransition = &transitionRecord{expectedCounter: expectedCounter, kind: kind, version: version, response: resp}
}

// New builds a Server over repo, recovering its state from the journal's
// most recent record (spec §4.2 recovery: a restarted node must resume
// exactly where its journal left off).
func New(repo *storage.Repository, catalog *settingcatalog.Catalog, validator *validate.Validator, listener CommitListener, stats statsd.Statter) (*Server, error) {
	if stats == nil {
		stats, _ = statsd.NewNoopClient()
	}
	s := &Server{
		repo:      repo,
		catalog:   catalog,
		validator: validator,
		listener:  listener,
		stats:     stats,
		mode:      wire.ModeAccepting,
	}
	if err := s.recoverUnsafe(); err != nil {
		return nil, fmt.Errorf("nomadserver: recovering state: %w", err)
	}
	return s, nil
}

func (s *Server) stateUnsafe() wire.ServerState {
	return wire.ServerState{MutativeMessageCount: s.m, CurrentVersion: s.v, HighestVersion: s.h, Mode: s.mode}
}

func rejectionError(reason wire.RejectionReason, format string, args ...interface{}) error {
	return fmt.Errorf("nomadserver: %s: %s", reason, fmt.Sprintf(format, args...))
}
