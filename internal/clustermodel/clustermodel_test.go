package clustermodel

import "testing"

func sampleCluster() *Cluster {
	n1 := &Node{UID: "n1", Name: "node-1", PublicAddr: "10.0.0.1:9410"}
	n2 := &Node{UID: "n2", Name: "node-2", PublicAddr: "10.0.0.2:9410"}
	s1 := &Stripe{UID: "s1", Name: "stripe-1", Nodes: []*Node{n1}}
	s2 := &Stripe{UID: "s2", Name: "stripe-2", Nodes: []*Node{n2}}
	return &Cluster{UID: "c1", Name: "mycluster", Stripes: []*Stripe{s1, s2}}
}

func TestScopeContainsOrdering(t *testing.T) {
	cases := []struct {
		setting Scope
		target  Scope
		want    bool
	}{
		{ScopeCluster, ScopeNode, true},
		{ScopeCluster, ScopeStripe, true},
		{ScopeCluster, ScopeCluster, true},
		{ScopeStripe, ScopeNode, true},
		{ScopeStripe, ScopeCluster, false},
		{ScopeNode, ScopeStripe, false},
		{ScopeAny, ScopeNode, true},
	}
	for _, c := range cases {
		if got := c.setting.Contains(c.target); got != c.want {
			t.Errorf("Scope(%s).Contains(%s) = %v, want %v", c.setting, c.target, got, c.want)
		}
	}
}

func TestClusterCloneIsDeep(t *testing.T) {
	c := sampleCluster()
	clone := c.Clone()
	clone.Name = "renamed"
	clone.Stripes[0].Nodes[0].PublicAddr = "changed"

	if c.Name == clone.Name {
		t.Fatalf("expected clone mutation to leave original name untouched")
	}
	if c.Stripes[0].Nodes[0].PublicAddr == clone.Stripes[0].Nodes[0].PublicAddr {
		t.Fatalf("expected clone mutation to leave original node untouched")
	}
}

func TestClusterAllNodesFlattensStripes(t *testing.T) {
	c := sampleCluster()
	nodes := c.AllNodes()
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
}

func TestClusterEmpty(t *testing.T) {
	var nilCluster *Cluster
	if !nilCluster.Empty() {
		t.Fatalf("expected nil cluster to be empty")
	}
	if !(&Cluster{}).Empty() {
		t.Fatalf("expected a stripe-less cluster to be empty")
	}
	if sampleCluster().Empty() {
		t.Fatalf("expected a cluster with stripes to be non-empty")
	}
}

func TestStripeByUIDAndNodeByUID(t *testing.T) {
	c := sampleCluster()
	s := c.StripeByUID("s2")
	if s == nil || s.Name != "stripe-2" {
		t.Fatalf("expected to find stripe-2, got %+v", s)
	}
	if c.StripeByUID("missing") != nil {
		t.Fatalf("expected nil for unknown stripe UID")
	}
	n := s.NodeByUID("n2")
	if n == nil || n.Name != "node-2" {
		t.Fatalf("expected to find node-2, got %+v", n)
	}
}

func TestNodeContextResolveByUID(t *testing.T) {
	c := sampleCluster()
	ctx := NewNodeContext(c, "s1", "n1")
	stripe, node, err := ctx.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if stripe.UID != "s1" || node.UID != "n1" {
		t.Fatalf("unexpected resolution: stripe=%s node=%s", stripe.UID, node.UID)
	}
}

func TestNodeContextResolveFallsBackToName(t *testing.T) {
	c := sampleCluster()
	ctx := NodeContext{Cluster: c, Name: "node-2"}
	stripe, node, err := ctx.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if stripe.UID != "s2" || node.UID != "n2" {
		t.Fatalf("unexpected resolution: stripe=%s node=%s", stripe.UID, node.UID)
	}
}

func TestNodeContextResolveFailsWithoutClusterOrIdentity(t *testing.T) {
	if _, _, err := (NodeContext{}).Resolve(); err == nil {
		t.Fatalf("expected resolution to fail with no cluster")
	}
	if _, _, err := (NodeContext{Cluster: sampleCluster()}).Resolve(); err == nil {
		t.Fatalf("expected resolution to fail with no UIDs or name")
	}
}
