package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cljohnso/terracotta-platform/internal/change"
	"github.com/cljohnso/terracotta-platform/internal/clustermodel"
)

// attach/detach take a local copy of the cluster's current topology (a
// JSON-encoded Cluster; "nomad-ctl export" does not write one) and propose the edited result as a
// TopologyChange; the server rejects it if that local copy's cluster UID no
// longer matches what is actually committed (spec §4.6).

var attachCmd = &cobra.Command{
	Use:   "attach <cluster.json> <stripe-uid> <reference-node-uid> <name> <addr>",
	Short: "attach a new node to a stripe, cloning the reference node's settings",
	Args:  cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		clusterPath, stripeUID, refUID, name, addr := args[0], clustermodel.UID(args[1]), clustermodel.UID(args[2]), args[3], args[4]
		cluster, err := loadCluster(clusterPath)
		if err != nil {
			return err
		}
		expectedUID := cluster.UID
		mutated := cluster.Clone()
		stripe := mutated.StripeByUID(stripeUID)
		if stripe == nil {
			return newCliError(ExitUserError, fmt.Errorf("nomad-ctl: stripe %s not found in %s", stripeUID, clusterPath))
		}
		ref := stripe.NodeByUID(refUID)
		if ref == nil {
			return newCliError(ExitUserError, fmt.Errorf("nomad-ctl: reference node %s not found in stripe %s", refUID, stripeUID))
		}
		if err := stripe.AttachNode(ref.CloneForAttachment(name, addr)); err != nil {
			return newCliError(ExitUserError, fmt.Errorf("nomad-ctl: %w", err))
		}
		ch := change.NewAttachChange(expectedUID, mutated, name, addr)
		return proposeAndReport(cmd, ch)
	},
}

var detachCmd = &cobra.Command{
	Use:   "detach <cluster.json> <stripe-uid> <node-addr>",
	Short: "detach the node with the given public address from a stripe",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		clusterPath, stripeUID, addr := args[0], clustermodel.UID(args[1]), args[2]
		cluster, err := loadCluster(clusterPath)
		if err != nil {
			return err
		}
		expectedUID := cluster.UID
		mutated := cluster.Clone()
		stripe := mutated.StripeByUID(stripeUID)
		if stripe == nil {
			return newCliError(ExitUserError, fmt.Errorf("nomad-ctl: stripe %s not found in %s", stripeUID, clusterPath))
		}
		removed, err := stripe.DetachNode(addr)
		if err != nil {
			return newCliError(ExitUserError, fmt.Errorf("nomad-ctl: %w", err))
		}
		if !removed {
			return newCliError(ExitUserError, fmt.Errorf("nomad-ctl: node %s not present in stripe %s", addr, stripeUID))
		}
		ch := change.NewDetachChange(expectedUID, mutated, addr)
		return proposeAndReport(cmd, ch)
	},
}

func init() {
	attachCmd.Flags().Int("format-version", 2, "wire format version to encode the change at")
	detachCmd.Flags().Int("format-version", 2, "wire format version to encode the change at")
}
