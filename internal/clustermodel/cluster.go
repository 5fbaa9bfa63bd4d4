package clustermodel

import "time"

// FailoverPriorityKind selects how a stripe picks an active node when its
// current active fails.
type FailoverPriorityKind string

const (
	FailoverAvailability FailoverPriorityKind = "availability"
	FailoverConsistency  FailoverPriorityKind = "consistency"
)

// FailoverPriority is the cluster-wide failover policy. VoterCount is only
// meaningful when Kind is FailoverConsistency (spec validator rule 5).
type FailoverPriority struct {
	Kind       FailoverPriorityKind `json:"kind"`
	VoterCount int                  `json:"voterCount,omitempty"`
}

// Cluster is the immutable-by-convention value type at the root of the
// topology model: a name, failover policy, client timing, cluster-wide
// offheap resources and an ordered list of Stripes (spec §3).
type Cluster struct {
	UID  UID    `json:"uid"`
	Name string `json:"name"`

	FailoverPriority FailoverPriority `json:"failoverPriority"`

	ClientReconnectWindow time.Duration `json:"clientReconnectWindow"`
	ClientLeaseDuration   time.Duration `json:"clientLeaseDuration"`

	// Offheap maps a cluster-wide offheap resource name to its size in
	// bytes. Offheap is cluster-scoped per the invariant in §3.
	Offheap map[string]int64 `json:"offheap,omitempty"`

	Stripes []*Stripe `json:"stripes"`
}

// NewCluster returns an empty, freshly-UID'd cluster with initialized maps.
func NewCluster(name string) *Cluster {
	return &Cluster{
		UID:     NewUID(),
		Name:    name,
		Offheap: make(map[string]int64),
	}
}

// Empty reports whether the cluster has no stripes, i.e. is in the
// single-node diagnostic state ClusterActivationChange requires as its
// precondition (spec §4.4).
func (c *Cluster) Empty() bool {
	return c == nil || len(c.Stripes) == 0
}

// Clone deep-copies the cluster, every stripe and every node. apply() on a
// NomadChange must only ever operate on a Clone, never the original, so that
// canApply/apply stay referentially transparent (spec §4.4).
func (c *Cluster) Clone() *Cluster {
	if c == nil {
		return nil
	}
	cp := &Cluster{
		UID:                   c.UID,
		Name:                  c.Name,
		FailoverPriority:      c.FailoverPriority,
		ClientReconnectWindow: c.ClientReconnectWindow,
		ClientLeaseDuration:   c.ClientLeaseDuration,
		Offheap:               cloneInt64Map(c.Offheap),
		Stripes:               make([]*Stripe, len(c.Stripes)),
	}
	for i, s := range c.Stripes {
		cp.Stripes[i] = s.Clone()
	}
	return cp
}

// StripeByUID returns the stripe with the given UID, or nil.
func (c *Cluster) StripeByUID(uid UID) *Stripe {
	for _, s := range c.Stripes {
		if s.UID == uid {
			return s
		}
	}
	return nil
}

// StripeByName returns the stripe with the given name, or nil.
func (c *Cluster) StripeByName(name string) *Stripe {
	for _, s := range c.Stripes {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// AllNodes returns every node in the cluster, stripe order then node order.
func (c *Cluster) AllNodes() []*Node {
	nodes := make([]*Node, 0)
	for _, s := range c.Stripes {
		nodes = append(nodes, s.Nodes...)
	}
	return nodes
}

// FindNodeByAddr returns the node with the given public address and the
// stripe it belongs to, or (nil, nil) if none matches.
func (c *Cluster) FindNodeByAddr(addr string) (*Stripe, *Node) {
	for _, s := range c.Stripes {
		for _, n := range s.Nodes {
			if n.PublicAddr == addr {
				return s, n
			}
		}
	}
	return nil, nil
}

func cloneInt64Map(m map[string]int64) map[string]int64 {
	if m == nil {
		return nil
	}
	cp := make(map[string]int64, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
