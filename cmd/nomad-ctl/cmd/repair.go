package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "fence any stuck prior coordinator and resolve an interrupted two-phase commit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		coord, err := newCoordinator(ctx)
		if err != nil {
			return err
		}
		result, err := coord.Takeover(ctx)
		if result.Recovery.Action != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "recovery: %s (v%d)\n", result.Recovery.Action, result.Recovery.Version)
		}
		for _, ack := range result.PerServerAck {
			status := "fenced"
			if !ack.Accepted {
				status = fmt.Sprintf("rejected: %s (%s)", ack.Reason, ack.Message)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", ack.Address, status)
		}
		return resultToErr(result, err)
	},
}
