package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var diagnosticCmd = &cobra.Command{
	Use:   "diagnostic",
	Short: "report per-server state and any consistency divergence across the replica set",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		coord, err := newCoordinator(ctx)
		if err != nil {
			return err
		}
		result, err := coord.Diagnose(ctx)
		out := cmd.OutOrStdout()
		if result.Divergence != nil && (len(result.Divergence.Unreachable) > 0 || len(result.Divergence.Mismatched) > 0) {
			fmt.Fprintf(out, "reference: %s\n", result.Divergence.Reference)
			for _, addr := range result.Divergence.Unreachable {
				fmt.Fprintf(out, "  %s: unreachable\n", addr)
			}
			for addr, fd := range result.Divergence.Mismatched {
				fmt.Fprintf(out, "  %s: version=%v highestVersion=%v latestChange=%v\n", addr, fd.Version, fd.HighestVersion, fd.LatestChange)
			}
		} else {
			fmt.Fprintln(out, "no divergence detected")
		}
		if result.Recovery.Action != "" {
			fmt.Fprintf(out, "recovery: %s (v%d)\n", result.Recovery.Action, result.Recovery.Version)
		}
		for _, ack := range result.PerServerAck {
			status := "accepted"
			if !ack.Accepted {
				status = fmt.Sprintf("rejected: %s (%s)", ack.Reason, ack.Message)
			}
			fmt.Fprintf(out, "  %s: %s\n", ack.Address, status)
		}
		if err != nil && !v.GetBool("force") {
			return resultToErr(result, err)
		}
		return nil
	},
}
