package nomadclient

import (
	"context"

	"github.com/cljohnso/terracotta-platform/internal/wire"
)

// ServerConn is the coordinator's view of one remote Nomad server: the
// message set from spec §6, each call cancellable via ctx (spec §5
// "I/O to remote servers is the only unbounded wait and must be
// cancellable").
type ServerConn interface {
	Discover(ctx context.Context) (wire.DiscoverResponse, error)
	Prepare(ctx context.Context, msg wire.PrepareMessage) (wire.AcceptRejectResponse, error)
	Commit(ctx context.Context, msg wire.CommitMessage) (wire.AcceptRejectResponse, error)
	Rollback(ctx context.Context, msg wire.RollbackMessage) (wire.AcceptRejectResponse, error)
	Takeover(ctx context.Context, msg wire.TakeoverMessage) (wire.AcceptRejectResponse, error)
}

// Target names one server the coordinator addresses.
type Target struct {
	Address string
	Conn    ServerConn
}
