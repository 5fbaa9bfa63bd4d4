package change

import (
	"fmt"

	"github.com/cljohnso/terracotta-platform/internal/clustermodel"
)

// FormatUpgradeChange marks the persisted shape of a cluster snapshot as
// upgraded without altering its semantic content (spec §3, §4.4, §6:
// "a cluster stored in V1 form is upgraded via FormatUpgradeChange before
// further changes are accepted").
type FormatUpgradeChange struct {
	FromVersion int
	ToVersion   int
}

// NewFormatUpgradeChange returns a change marking the format transition.
func NewFormatUpgradeChange(from, to int) *FormatUpgradeChange {
	return &FormatUpgradeChange{FromVersion: from, ToVersion: to}
}

func (f *FormatUpgradeChange) CanApply(c *clustermodel.Cluster) error {
	if f.ToVersion <= f.FromVersion {
		return notApplicable("format upgrade must move forward (from=%d to=%d)", f.FromVersion, f.ToVersion)
	}
	return nil
}

// Apply is a no-op on the model: FormatUpgradeChange carries no semantic
// model change. The storage layer does not read it; snapshots are written
// in the same shape before and after an upgrade.
func (f *FormatUpgradeChange) Apply(c *clustermodel.Cluster) (*clustermodel.Cluster, error) {
	return c.Clone(), nil
}

func (f *FormatUpgradeChange) Summary() string {
	return fmt.Sprintf("upgrade format v%d -> v%d", f.FromVersion, f.ToVersion)
}

func (f *FormatUpgradeChange) RequiresRestart() bool { return false }
