package nomadserver

import (
	"fmt"

	"github.com/cljohnso/terracotta-platform/internal/clustermodel"
)

// resolveOwnIdentityUnsafe locates this server's own node within cluster by
// the node name the repository was opened with, used right after a
// ClusterActivationChange establishes topology for the first time (spec
// §4.6: NodeContext resolves by stripe/node UID once known, by name until
// then).
func (s *Server) resolveOwnIdentityUnsafe(cluster *clustermodel.Cluster) (clustermodel.UID, clustermodel.UID, error) {
	for _, stripe := range cluster.Stripes {
		if node := stripe.NodeByName(s.repo.NodeName); node != nil {
			return stripe.UID, node.UID, nil
		}
	}
	return "", "", fmt.Errorf("nomadserver: node %q not found in proposed cluster", s.repo.NodeName)
}

// nextContextUnsafe builds the NodeContext a newly-applied cluster produces
// for this server: a fresh identity resolution on activation, or the
// previously-resolved identity carried forward for any other change (a
// SettingChange never moves a node to a different stripe or gives it a new
// UID; only attach/detach topology operations do, and those replace the
// whole cluster via a TopologyChange rather than through identity fields).
func (s *Server) nextContextUnsafe(newCluster *clustermodel.Cluster, isActivation bool) (*clustermodel.NodeContext, error) {
	var stripeUID, nodeUID clustermodel.UID
	if isActivation || s.committedContext == nil {
		var err error
		stripeUID, nodeUID, err = s.resolveOwnIdentityUnsafe(newCluster)
		if err != nil {
			return nil, err
		}
	} else {
		stripeUID, nodeUID = s.committedContext.StripeUID, s.committedContext.NodeUID
	}
	ctx := clustermodel.NewNodeContext(newCluster, stripeUID, nodeUID)
	return &ctx, nil
}
