// Command nomad-ctl is the coordinator-side config tool (spec.md §6): it
// drives activate/get/set/unset/attach/detach/diagnostic/export/import/repair
// against a replica set of Nomad servers, exiting with the code the
// spec's CLI surface prescribes.
package main

import (
	"fmt"
	"os"

	"github.com/cljohnso/terracotta-platform/cmd/nomad-ctl/cmd"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := cmd.Execute(); err != nil {
		if ec, ok := err.(cmd.ExitCoder); ok {
			fmt.Fprintln(os.Stderr, err)
			return ec.ExitCode()
		}
		fmt.Fprintln(os.Stderr, err)
		return cmd.ExitIOError
	}
	return cmd.ExitSuccess
}
