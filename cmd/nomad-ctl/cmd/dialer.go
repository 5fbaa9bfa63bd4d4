package cmd

import (
	"context"
	"fmt"

	"github.com/cljohnso/terracotta-platform/internal/nomadclient"
)

// Dialer opens one nomadclient.ServerConn per address the coordinator needs
// to talk to. It is the single point where this command tree depends on a
// real RPC transport, which remains an external collaborator (spec §1
// Non-goals): production builds inject a Dialer backed by whatever wire
// framing the deployment chooses; this tree ships only the stub below, so
// every subcommand fails fast and explicitly rather than silently no-op'ing.
type Dialer interface {
	Dial(ctx context.Context, address string) (nomadclient.ServerConn, error)
}

// unimplementedDialer is the zero-value Dialer: it reports plainly that no
// transport has been wired in, instead of pretending to connect.
type unimplementedDialer struct{}

func (unimplementedDialer) Dial(ctx context.Context, address string) (nomadclient.ServerConn, error) {
	return nil, fmt.Errorf("nomad-ctl: no transport wired for %q; RPC transport is an external collaborator (see cmd/nomad-ctl/cmd.Dialer)", address)
}

// activeDialer is the Dialer this process uses to reach servers. Tests and
// embedders override it via SetDialer; the default reports the transport
// gap explicitly rather than guessing at a wire protocol.
var activeDialer Dialer = unimplementedDialer{}

// SetDialer installs the Dialer the command tree uses to reach servers. A
// caller embedding this CLI as a library provides a real one.
func SetDialer(d Dialer) {
	if d == nil {
		d = unimplementedDialer{}
	}
	activeDialer = d
}

func dialTargets(ctx context.Context, addresses []string) ([]nomadclient.Target, error) {
	targets := make([]nomadclient.Target, 0, len(addresses))
	for _, addr := range addresses {
		conn, err := activeDialer.Dial(ctx, addr)
		if err != nil {
			return nil, newCliError(ExitIOError, fmt.Errorf("dialing %s: %w", addr, err))
		}
		targets = append(targets, nomadclient.Target{Address: addr, Conn: conn})
	}
	return targets, nil
}
