package clustermodel

import "fmt"

// Stripe is a failure-domain grouping of Nodes within a Cluster.
type Stripe struct {
	UID   UID     `json:"uid"`
	Name  string  `json:"name"`
	Nodes []*Node `json:"nodes"`
}

// NewStripe returns an empty, freshly-UID'd stripe.
func NewStripe(name string) *Stripe {
	return &Stripe{UID: NewUID(), Name: name}
}

// Clone deep-copies the stripe and every node in it.
func (s *Stripe) Clone() *Stripe {
	if s == nil {
		return nil
	}
	cp := &Stripe{UID: s.UID, Name: s.Name, Nodes: make([]*Node, len(s.Nodes))}
	for i, n := range s.Nodes {
		cp.Nodes[i] = n.Clone()
	}
	return cp
}

// NodeByUID returns the node with the given UID, or nil.
func (s *Stripe) NodeByUID(uid UID) *Node {
	for _, n := range s.Nodes {
		if n.UID == uid {
			return n
		}
	}
	return nil
}

// NodeByName returns the node with the given name, or nil. Used for the V1
// name-based fallback lookup path (spec §3, §4.6).
func (s *Stripe) NodeByName(name string) *Node {
	for _, n := range s.Nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// AttachNode adds a node to the stripe. The stripe must already contain at
// least one node (a clone-for-attachment reference point), and the new
// node's public address must not duplicate an existing one in the stripe
// (spec §4.6). Cluster-wide address uniqueness is checked by the validator.
func (s *Stripe) AttachNode(n *Node) error {
	if len(s.Nodes) == 0 {
		return fmt.Errorf("clustermodel: cannot attach to empty stripe %q; attachment requires a reference node", s.Name)
	}
	for _, existing := range s.Nodes {
		if existing.PublicAddr == n.PublicAddr {
			return fmt.Errorf("clustermodel: node with address %q already present in stripe %q", n.PublicAddr, s.Name)
		}
	}
	s.Nodes = append(s.Nodes, n)
	return nil
}

// DetachNode removes the node with the given public address. It is
// idempotent: detaching an address that is not present returns
// (false, nil).
func (s *Stripe) DetachNode(addr string) (bool, error) {
	for i, n := range s.Nodes {
		if n.PublicAddr == addr {
			s.Nodes = append(s.Nodes[:i], s.Nodes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}
