package change

import (
	"fmt"

	"github.com/cljohnso/terracotta-platform/internal/clustermodel"
)

// MultiSettingChange composes several SettingChanges into one atomic change.
// CanApply checks every child against the progressively transformed
// cluster, so later children may depend on earlier ones having already
// applied; Apply does the same transformation for real (spec §4.4).
type MultiSettingChange struct {
	Children []*SettingChange
}

// NewMultiSettingChange wraps the given children.
func NewMultiSettingChange(children ...*SettingChange) *MultiSettingChange {
	return &MultiSettingChange{Children: children}
}

func (m *MultiSettingChange) CanApply(c *clustermodel.Cluster) error {
	if len(m.Children) == 0 {
		return notApplicable("multi-change has no children")
	}
	cur := c
	for i, child := range m.Children {
		if err := child.CanApply(cur); err != nil {
			return fmt.Errorf("child %d: %w", i, err)
		}
		next, err := child.Apply(cur)
		if err != nil {
			return fmt.Errorf("child %d: %w", i, err)
		}
		cur = next
	}
	return nil
}

func (m *MultiSettingChange) Apply(c *clustermodel.Cluster) (*clustermodel.Cluster, error) {
	cur := c
	for i, child := range m.Children {
		next, err := child.Apply(cur)
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		cur = next
	}
	return cur, nil
}

func (m *MultiSettingChange) Summary() string {
	s := fmt.Sprintf("multi-change (%d changes)", len(m.Children))
	for _, child := range m.Children {
		s += "; " + child.Summary()
	}
	return s
}

// RequiresRestart is conservative: if any child needs a restart, the whole
// multi-change is treated as requiring one, since the Nomad layer applies it
// atomically and the service must not show a partially-applied runtime
// context (spec §4.4, §8 scenario 3).
func (m *MultiSettingChange) RequiresRestart() bool {
	for _, child := range m.Children {
		if child.RequiresRestart() {
			return true
		}
	}
	return false
}
