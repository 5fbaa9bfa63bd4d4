package change

import (
	"github.com/cljohnso/terracotta-platform/internal/clustermodel"
)

// ClusterActivationChange sets a fresh node's initial state: the cluster
// must currently be empty (single-node diagnostic mode), and the result is
// exactly the provided cluster (spec §3, §4.4).
type ClusterActivationChange struct {
	Cluster        *clustermodel.Cluster
	LicenseContent []byte // opaque; license parsing is out of scope (spec §1)
}

// NewClusterActivationChange wraps the proposed cluster and optional license
// bytes.
func NewClusterActivationChange(cluster *clustermodel.Cluster, license []byte) *ClusterActivationChange {
	return &ClusterActivationChange{Cluster: cluster, LicenseContent: license}
}

func (a *ClusterActivationChange) CanApply(c *clustermodel.Cluster) error {
	if !c.Empty() {
		return notApplicable("cluster is already activated")
	}
	if a.Cluster == nil || a.Cluster.Empty() {
		return notApplicable("proposed cluster has no stripes")
	}
	return nil
}

func (a *ClusterActivationChange) Apply(c *clustermodel.Cluster) (*clustermodel.Cluster, error) {
	return a.Cluster.Clone(), nil
}

func (a *ClusterActivationChange) Summary() string {
	return "activate cluster " + a.Cluster.Name
}

// RequiresRestart is always false: activation is the first state a node
// ever has, so there is nothing running yet to be out of sync with.
func (a *ClusterActivationChange) RequiresRestart() bool { return false }
