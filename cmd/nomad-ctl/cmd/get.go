package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cljohnso/terracotta-platform/internal/wire"
)

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "print each server's discovered state (mode, version, latest change)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		addrs, err := serverAddresses()
		if err != nil {
			return err
		}
		targets, err := dialTargets(ctx, addrs)
		if err != nil {
			return err
		}
		for _, t := range targets {
			resp, err := t.Conn.Discover(ctx)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tUNREACHABLE\t%v\n", t.Address, err)
				continue
			}
			printDiscover(cmd, t.Address, resp)
		}
		return nil
	},
}

func printDiscover(cmd *cobra.Command, addr string, resp wire.DiscoverResponse) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\tmode=%s\tv=%d\th=%d\tm=%d\n", addr, resp.Mode, resp.CurrentVersion, resp.HighestVersion, resp.MutativeMessageCount)
	if resp.LatestChange != nil {
		fmt.Fprintf(out, "\tlatest: v%d %q by %s@%s\n", resp.LatestChange.Version, resp.LatestChange.Summary, resp.LatestChange.AppliedUser, resp.LatestChange.AppliedHost)
	}
}
