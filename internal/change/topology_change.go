package change

import (
	"github.com/cljohnso/terracotta-platform/internal/clustermodel"
)

// TopologyChange replaces the set of nodes in one stripe of an already
// active cluster: attaching a new node or detaching an existing one (spec
// §4.6). Unlike ClusterActivationChange it requires the cluster to already
// be active and to match the UID the change was computed against, so a
// stale coordinator's topology edit is rejected rather than silently
// clobbering a newer activation.
type TopologyChange struct {
	ExpectedClusterUID clustermodel.UID
	Cluster            *clustermodel.Cluster
	Description        string
}

// NewAttachChange proposes a stripe with a newly attached node.
func NewAttachChange(expectedClusterUID clustermodel.UID, mutated *clustermodel.Cluster, nodeName, addr string) *TopologyChange {
	return &TopologyChange{ExpectedClusterUID: expectedClusterUID, Cluster: mutated, Description: "attach node " + nodeName + " (" + addr + ")"}
}

// NewDetachChange proposes a stripe with a node removed.
func NewDetachChange(expectedClusterUID clustermodel.UID, mutated *clustermodel.Cluster, addr string) *TopologyChange {
	return &TopologyChange{ExpectedClusterUID: expectedClusterUID, Cluster: mutated, Description: "detach node " + addr}
}

// NewTopologyChange proposes an arbitrary whole-cluster topology replacement
// (spec §6 "import"): the operator's own edited cluster document, accepted
// wholesale as long as it still matches the cluster the coordinator expects.
func NewTopologyChange(expectedClusterUID clustermodel.UID, mutated *clustermodel.Cluster, description string) *TopologyChange {
	return &TopologyChange{ExpectedClusterUID: expectedClusterUID, Cluster: mutated, Description: description}
}

func (t *TopologyChange) CanApply(c *clustermodel.Cluster) error {
	if c.Empty() {
		return notApplicable("cluster is not yet activated")
	}
	if c.UID != t.ExpectedClusterUID {
		return notApplicable("topology change was computed against cluster %s, current cluster is %s", t.ExpectedClusterUID, c.UID)
	}
	if t.Cluster == nil || t.Cluster.Empty() {
		return notApplicable("proposed topology has no stripes")
	}
	return nil
}

func (t *TopologyChange) Apply(c *clustermodel.Cluster) (*clustermodel.Cluster, error) {
	return t.Cluster.Clone(), nil
}

func (t *TopologyChange) Summary() string { return t.Description }

// RequiresRestart is always true: the set of nodes a stripe's consensus
// group consists of cannot change without the affected nodes restarting.
func (t *TopologyChange) RequiresRestart() bool { return true }
