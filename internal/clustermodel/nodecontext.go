package clustermodel

import "fmt"

// ResolveError distinguishes the two ways resolving a NodeContext against its
// Cluster snapshot can fail, so callers (the coordinator, the service) can
// report which lookup failed rather than a generic "not found" (SPEC_FULL
// §12.1).
type ResolveError struct {
	StripeUID UID
	NodeUID   UID
	Reason    string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("clustermodel: cannot resolve node (stripe=%s node=%s): %s", e.StripeUID, e.NodeUID, e.Reason)
}

// NodeContext pins a node within a cluster snapshot: the full cluster as of
// some Nomad version, plus the stripe and node UID identifying "this node"
// (spec §3).
type NodeContext struct {
	Cluster   *Cluster
	StripeUID UID
	NodeUID   UID

	// Name is retained for the V1 name-based fallback resolution path; it is
	// empty once UIDs are known.
	Name string
}

// NewNodeContext builds a context from a cluster snapshot and the owning
// node's identifiers.
func NewNodeContext(cluster *Cluster, stripeUID, nodeUID UID) NodeContext {
	return NodeContext{Cluster: cluster, StripeUID: stripeUID, NodeUID: nodeUID}
}

// Resolve returns the concrete Stripe and Node this context points at.
// Resolution prefers UIDs; when both are empty it falls back to matching by
// Name against every node in the cluster, for backward compatibility with
// V1-persisted contexts that predate UID addressing (spec §3, §4.6).
func (ctx NodeContext) Resolve() (*Stripe, *Node, error) {
	if ctx.Cluster == nil {
		return nil, nil, &ResolveError{ctx.StripeUID, ctx.NodeUID, "no cluster snapshot"}
	}

	if !ctx.StripeUID.Empty() || !ctx.NodeUID.Empty() {
		stripe := ctx.Cluster.StripeByUID(ctx.StripeUID)
		if stripe == nil {
			return nil, nil, &ResolveError{ctx.StripeUID, ctx.NodeUID, "stripe UID not found in cluster snapshot"}
		}
		node := stripe.NodeByUID(ctx.NodeUID)
		if node == nil {
			return nil, nil, &ResolveError{ctx.StripeUID, ctx.NodeUID, "node UID not found in stripe"}
		}
		return stripe, node, nil
	}

	if ctx.Name == "" {
		return nil, nil, &ResolveError{ctx.StripeUID, ctx.NodeUID, "neither UIDs nor name set"}
	}
	for _, stripe := range ctx.Cluster.Stripes {
		if node := stripe.NodeByName(ctx.Name); node != nil {
			return stripe, node, nil
		}
	}
	return nil, nil, &ResolveError{ctx.StripeUID, ctx.NodeUID, fmt.Sprintf("no node named %q in cluster snapshot", ctx.Name)}
}

// Clone deep-copies the context, including the embedded cluster snapshot.
func (ctx NodeContext) Clone() NodeContext {
	return NodeContext{Cluster: ctx.Cluster.Clone(), StripeUID: ctx.StripeUID, NodeUID: ctx.NodeUID, Name: ctx.Name}
}
