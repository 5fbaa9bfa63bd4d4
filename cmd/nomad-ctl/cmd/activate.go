package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cljohnso/terracotta-platform/internal/change"
	"github.com/cljohnso/terracotta-platform/internal/clustermodel"
)

func loadCluster(path string) (*clustermodel.Cluster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newCliError(ExitIOError, fmt.Errorf("nomad-ctl: reading cluster document %s: %w", path, err))
	}
	var c clustermodel.Cluster
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, newCliError(ExitUserError, fmt.Errorf("nomad-ctl: parsing cluster document %s: %w", path, err))
	}
	return &c, nil
}

func loadLicense(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newCliError(ExitIOError, fmt.Errorf("nomad-ctl: reading license %s: %w", path, err))
	}
	return data, nil
}

var activateCmd = &cobra.Command{
	Use:   "activate <cluster.json>",
	Short: "activate an empty replica set with the given cluster topology (spec §4.4)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cluster, err := loadCluster(args[0])
		if err != nil {
			return err
		}
		license, err := loadLicense(cmd.Flag("license").Value.String())
		if err != nil {
			return err
		}
		ch := change.NewClusterActivationChange(cluster, license)
		return proposeAndReport(cmd, ch)
	},
}

func init() {
	activateCmd.Flags().String("license", "", "path to a license file to attach to the activation")
	activateCmd.Flags().Int("format-version", 2, "wire format version to encode the change at")
}
