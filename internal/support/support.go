// Package support holds the small collaborator interfaces that keep the
// dynamic-config service free of global mutable state: wall-clock time,
// delayed execution, the node restart hook, and local host identity (spec
// §9: "global mutable state... becomes an explicit collaborator object").
// Each has a real implementation for production wiring and a fake for
// tests.
package support

import (
	"os"
	"time"

	logging "github.com/op/go-logging"
)

var logger *logging.Logger

func init() {
	logger = logging.MustGetLogger("support")
}

// Clock abstracts wall-clock time so tests can control it deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// SystemClock is the production Clock, backed by time.Now.
var SystemClock Clock = systemClock{}

func (systemClock) Now() time.Time { return time.Now() }

// Scheduler abstracts delayed, cancellable execution, used for the
// dynamic-config service's restart(delay) (spec §4.7).
type Scheduler interface {
	// After runs fn once delay has elapsed, unless the returned cancel func
	// is called first. Cancel is idempotent and safe to call after fn has
	// already run.
	After(delay time.Duration, fn func()) (cancel func())
}

type systemScheduler struct{}

// SystemScheduler is the production Scheduler, backed by time.AfterFunc.
var SystemScheduler Scheduler = systemScheduler{}

func (systemScheduler) After(delay time.Duration, fn func()) func() {
	t := time.AfterFunc(delay, fn)
	return func() { t.Stop() }
}

// RestartHook performs the actual node restart. Implementations are
// necessarily process/platform specific; the dynamic-config service only
// ever calls Restart, never os.Exit or exec directly.
type RestartHook interface {
	Restart() error
}

// ProcessExitRestartHook restarts the node by exiting the process with a
// status code the supervising process manager is configured to restart on.
type ProcessExitRestartHook struct {
	ExitCode int
}

func (h ProcessExitRestartHook) Restart() error {
	logger.Warning("restart hook invoked, exiting process")
	os.Exit(h.ExitCode)
	return nil
}

// HostInfo abstracts local identity lookups the coordinator and server need
// for journal provenance (creationHost, lastMutationHost).
type HostInfo interface {
	Hostname() (string, error)
}

type osHostInfo struct{}

// SystemHostInfo is the production HostInfo, backed by os.Hostname.
var SystemHostInfo HostInfo = osHostInfo{}

func (osHostInfo) Hostname() (string, error) { return os.Hostname() }
