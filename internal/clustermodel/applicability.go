package clustermodel

// Scope identifies how broadly a Setting or an Applicability applies.
type Scope string

const (
	ScopeCluster Scope = "cluster"
	ScopeStripe  Scope = "stripe"
	ScopeNode    Scope = "node"
	// ScopeAny is only valid on a Setting descriptor (meaning it may be
	// applied at any of the three scopes above); it is never a legal value
	// of an Applicability.
	ScopeAny Scope = "any"
)

// Applicability is the scope a change targets: the whole cluster, one
// stripe, or one node (spec §3, GLOSSARY).
type Applicability struct {
	Scope     Scope
	StripeUID UID
	NodeUID   UID
}

// Cluster-wide applicability.
func ClusterApplicability() Applicability {
	return Applicability{Scope: ScopeCluster}
}

// StripeApplicability targets a single stripe.
func StripeApplicability(stripeUID UID) Applicability {
	return Applicability{Scope: ScopeStripe, StripeUID: stripeUID}
}

// NodeApplicability targets a single node within a stripe.
func NodeApplicability(stripeUID, nodeUID UID) Applicability {
	return Applicability{Scope: ScopeNode, StripeUID: stripeUID, NodeUID: nodeUID}
}

// Contains reports whether the setting scope s is broad enough to host an
// applicability scope narrower than or equal to it: cluster ⊇ stripe ⊇ node,
// and "any" contains everything (spec §4.4: "Setting scope ⊇ Applicability
// scope").
func (s Scope) Contains(other Scope) bool {
	if s == ScopeAny {
		return true
	}
	rank := map[Scope]int{ScopeNode: 0, ScopeStripe: 1, ScopeCluster: 2}
	sr, ok1 := rank[s]
	or, ok2 := rank[other]
	if !ok1 || !ok2 {
		return false
	}
	return sr >= or
}
