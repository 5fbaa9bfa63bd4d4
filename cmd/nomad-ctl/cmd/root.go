// Package cmd implements the nomad-ctl command tree (spec §6): activate,
// get, set, unset, attach, detach, diagnostic, export, import and repair,
// each driving internal/nomadclient.Coordinator against the server
// addresses supplied on -s.
package cmd

import (
	"fmt"
	"strings"
	"time"

	logging "github.com/op/go-logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cljohnso/terracotta-platform/internal/obslog"
	"github.com/cljohnso/terracotta-platform/internal/support"
)

var logger *logging.Logger

func init() {
	logger = logging.MustGetLogger("nomad-ctl")
}

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:           "nomad-ctl",
	Short:         "drive cluster configuration changes through the Nomad protocol",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return obslog.Configure(obslog.Config{Level: v.GetString("log-level")})
	},
}

// Execute runs the command tree; its returned error should be inspected for
// ExitCoder by main() to derive the process exit code.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringSliceP("servers", "s", nil, "comma-separated replica set addresses (host:port)")
	flags.DurationP("timeout", "t", 5*time.Second, "time limit for a whole proposing run (discovery, prepare and commit together)")
	flags.DurationP("retry-interval", "r", 500*time.Millisecond, "base backoff between commit retries")
	flags.DurationP("envelope", "e", 30*time.Second, "overall time budget for the run; parsed but not applied by any command")
	flags.BoolP("force", "f", false, "tolerate unreachable or divergent servers rather than failing outright")
	flags.String("host", "", "operator host identity recorded in the journal (defaults to local hostname)")
	flags.String("user", "", "operator user identity recorded in the journal")
	flags.String("log-level", "INFO", "log verbosity: CRITICAL, ERROR, WARNING, NOTICE, INFO, DEBUG")
	flags.String("statsd-addr", "", "statsd endpoint for coordinator phase timings (disabled if empty)")

	_ = v.BindPFlags(flags)

	rootCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(unsetCmd)
	rootCmd.AddCommand(attachCmd)
	rootCmd.AddCommand(detachCmd)
	rootCmd.AddCommand(diagnosticCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(repairCmd)
}

func serverAddresses() ([]string, error) {
	addrs := v.GetStringSlice("servers")
	if len(addrs) == 0 {
		return nil, newCliError(ExitUserError, fmt.Errorf("nomad-ctl: -s/--servers is required"))
	}
	cleaned := make([]string, 0, len(addrs))
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a != "" {
			cleaned = append(cleaned, a)
		}
	}
	return cleaned, nil
}

func operatorIdentity() (host, user string) {
	host, user = v.GetString("host"), v.GetString("user")
	if host == "" {
		if h, err := support.SystemHostInfo.Hostname(); err == nil {
			host = h
		}
	}
	return host, user
}
