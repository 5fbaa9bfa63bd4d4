// Package change implements the Nomad change algebra: typed mutations that
// are pure functions of a Cluster, composable into atomic multi-changes, and
// carrying enough metadata for the dynamic-config service to know whether
// their effect requires a restart (spec §4.4).
package change

import (
	"fmt"

	"github.com/cljohnso/terracotta-platform/internal/clustermodel"
	"github.com/cljohnso/terracotta-platform/internal/settingcatalog"
)

// Change is the common interface every NomadChange variant implements.
// CanApply and Apply must be pure and deterministic: for the same (change,
// cluster) pair they always agree, independent of wall-clock time (spec §4.4
// "change purity", spec §8 testable property).
type Change interface {
	// CanApply reports whether the change is legal against the given
	// cluster, returning nil if so.
	CanApply(c *clustermodel.Cluster) error

	// Apply returns the cluster that results from applying the change. It
	// must not mutate c. Callers must have already checked CanApply.
	Apply(c *clustermodel.Cluster) (*clustermodel.Cluster, error)

	// Summary renders a short, human-readable description for logs,
	// journal records, and the config-tool's output (spec §6 "latestChange").
	Summary() string

	// RequiresRestart reports whether applying this change needs a node
	// restart to take full effect in the runtime context (spec §4.7).
	RequiresRestart() bool
}

// Op enumerates the SettingChange mutation kinds.
type Op string

const (
	OpSet   Op = "set"
	OpUnset Op = "unset"
)

// ErrNotApplicable is wrapped by every CanApply failure so callers can
// distinguish "change rejected because it doesn't apply" from other error
// classes (maps to spec §7's CHANGE_UNAPPLICABLE reason).
var ErrNotApplicable = fmt.Errorf("change: not applicable")

func notApplicable(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotApplicable, fmt.Sprintf(format, args...))
}

// Catalog is an alias for *settingcatalog.Catalog, the full catalog type.
type Catalog = *settingcatalog.Catalog
