package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cljohnso/terracotta-platform/internal/change"
)

// exportDoc is the file shape "export" writes and "import" reads: the
// replica set's agreed current state (spec §6). "export" never fills
// Cluster; "import" reads a topology from it when one is present.
type exportDoc struct {
	Addresses []string        `json:"addresses"`
	Latest    map[string]any  `json:"latest"`
	Cluster   json.RawMessage `json:"cluster,omitempty"`
}

var exportCmd = &cobra.Command{
	Use:   "export <out.json>",
	Short: "snapshot each server's discovered state to a file",
	Args:  cobra.ExactArgs(1),
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
		doc := exportDoc{Addresses: addrs, Latest: map[string]any{}}
		for _, t := range targets {
			resp, err := t.Conn.Discover(ctx)
			if err != nil {
				doc.Latest[t.Address] = fmt.Sprintf("unreachable: %v", err)
				continue
			}
			doc.Latest[t.Address] = resp
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return newCliError(ExitIOError, err)
		}
		if err := os.WriteFile(args[0], data, 0o644); err != nil {
			return newCliError(ExitIOError, fmt.Errorf("nomad-ctl: writing %s: %w", args[0], err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <cluster.json>",
	Short: "propose an edited cluster document as a whole-topology replacement (spec §4.6)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cluster, err := loadCluster(args[0])
		if err != nil {
			return err
		}
		description, _ := cmd.Flags().GetString("description")
		if description == "" {
			description = "import edited topology from " + args[0]
		}
		ch := change.NewTopologyChange(cluster.UID, cluster, description)
		return proposeAndReport(cmd, ch)
	},
}

var formatUpgradeCmd = &cobra.Command{
	Use:   "format-upgrade",
	Short: "propose a wire format upgrade from one ChangeDoc version to another",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetInt("from")
		to, _ := cmd.Flags().GetInt("to")
		if to <= from {
			return newCliError(ExitUserError, fmt.Errorf("nomad-ctl: --to must be greater than --from"))
		}
		return proposeAndReport(cmd, change.NewFormatUpgradeChange(from, to))
	},
}

func init() {
	importCmd.Flags().String("description", "", "human-readable summary recorded with the change")
	importCmd.Flags().Int("format-version", 2, "wire format version to encode the change at")
	formatUpgradeCmd.Flags().Int("from", 1, "wire format version currently in effect")
	formatUpgradeCmd.Flags().Int("to", 2, "wire format version to upgrade to")
	formatUpgradeCmd.Flags().Int("format-version", 2, "wire format version to encode the change at")
	rootCmd.AddCommand(formatUpgradeCmd)
}
