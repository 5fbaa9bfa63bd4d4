package nomadserver

import (
	"context"

	"github.com/cljohnso/terracotta-platform/internal/nomadclient"
	"github.com/cljohnso/terracotta-platform/internal/wire"
)

// LoopbackConn adapts a local Server to nomadclient.ServerConn, for
// in-process coordinators (tests, and a single-node nomad-agent acting as
// its own coordinator) that have no need for a real wire transport. Host
// and User stand in for the caller identity a real transport would derive
// from its own session (spec §6: Prepare/Commit/Rollback carry no identity
// of their own; Takeover does, on the wire).
type LoopbackConn struct {
	Server *Server
	Host   string
	User   string
}

var _ nomadclient.ServerConn = (*LoopbackConn)(nil)

func (c *LoopbackConn) Discover(ctx context.Context) (wire.DiscoverResponse, error) {
	return c.Server.Discover(), nil
}

func (c *LoopbackConn) Prepare(ctx context.Context, msg wire.PrepareMessage) (wire.AcceptRejectResponse, error) {
	return c.Server.Prepare(msg, c.Host, c.User), nil
}

func (c *LoopbackConn) Commit(ctx context.Context, msg wire.CommitMessage) (wire.AcceptRejectResponse, error) {
	return c.Server.Commit(msg, c.Host, c.User), nil
}

func (c *LoopbackConn) Rollback(ctx context.Context, msg wire.RollbackMessage) (wire.AcceptRejectResponse, error) {
	return c.Server.Rollback(msg, c.Host, c.User), nil
}

func (c *LoopbackConn) Takeover(ctx context.Context, msg wire.TakeoverMessage) (wire.AcceptRejectResponse, error) {
	return c.Server.Takeover(msg), nil
}
