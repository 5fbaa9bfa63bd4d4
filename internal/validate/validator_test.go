package validate

import (
	"errors"
	"testing"

	"github.com/cljohnso/terracotta-platform/internal/clustermodel"
)

func soundCluster() *clustermodel.Cluster {
	n1 := &clustermodel.Node{UID: "n1", Name: "node-1", PublicAddr: "10.0.0.1:9410", LogDir: "/var/log/tc"}
	n2 := &clustermodel.Node{UID: "n2", Name: "node-2", PublicAddr: "10.0.0.2:9410", LogDir: "/var/log/tc"}
	stripe := &clustermodel.Stripe{UID: "s1", Name: "stripe-1", Nodes: []*clustermodel.Node{n1, n2}}
	return &clustermodel.Cluster{
		UID:                   "c1",
		Name:                  "mycluster",
		Stripes:               []*clustermodel.Stripe{stripe},
		ClientReconnectWindow: 120_000_000_000,
		ClientLeaseDuration:   20_000_000_000,
	}
}

func violationRule(t *testing.T, err error) int {
	t.Helper()
	var v *Violation
	if !errors.As(err, &v) {
		t.Fatalf("expected a *Violation, got %T: %v", err, err)
	}
	return v.Rule
}

func TestValidateAcceptsSoundCluster(t *testing.T) {
	if err := New().Validate(soundCluster()); err != nil {
		t.Fatalf("expected a sound cluster to validate, got %v", err)
	}
}

func TestValidateRejectsEmptyName(t *testing.T) {
	c := soundCluster()
	c.Name = "  "
	err := New().Validate(c)
	if err == nil {
		t.Fatalf("expected rejection")
	}
	if rule := violationRule(t, err); rule != 1 {
		t.Fatalf("expected rule 1, got %d", rule)
	}
}

func TestValidateRejectsDuplicatePublicAddr(t *testing.T) {
	c := soundCluster()
	c.Stripes[0].Nodes[1].PublicAddr = c.Stripes[0].Nodes[0].PublicAddr
	err := New().Validate(c)
	if rule := violationRule(t, err); rule != 2 {
		t.Fatalf("expected rule 2, got %d", rule)
	}
}

func TestValidateRejectsDuplicateNodeNameInStripe(t *testing.T) {
	c := soundCluster()
	c.Stripes[0].Nodes[1].Name = c.Stripes[0].Nodes[0].Name
	err := New().Validate(c)
	if rule := violationRule(t, err); rule != 3 {
		t.Fatalf("expected rule 3, got %d", rule)
	}
}

func TestValidateRejectsNonUniformDataDirs(t *testing.T) {
	c := soundCluster()
	c.Stripes[0].Nodes[0].DataDirs = map[string]string{"main": "/data/main"}
	c.Stripes[0].Nodes[1].DataDirs = map[string]string{"other": "/data/other"}
	err := New().Validate(c)
	if rule := violationRule(t, err); rule != 4 {
		t.Fatalf("expected rule 4, got %d", rule)
	}
}

func TestValidateRejectsBadVoterParity(t *testing.T) {
	c := soundCluster()
	c.FailoverPriority = clustermodel.FailoverPriority{Kind: clustermodel.FailoverConsistency, VoterCount: 1}
	// 2*1 + 2 nodes = 4, even -> violation.
	err := New().Validate(c)
	if rule := violationRule(t, err); rule != 5 {
		t.Fatalf("expected rule 5, got %d", rule)
	}
}

func TestValidateRejectsInconsistentSecurity(t *testing.T) {
	c := soundCluster()
	c.Stripes[0].Nodes[0].Security.SslTLS = true
	err := New().Validate(c)
	if rule := violationRule(t, err); rule != 6 {
		t.Fatalf("expected rule 6, got %d", rule)
	}
}

func TestValidateRejectsCertificateAuthcWithoutTLS(t *testing.T) {
	c := soundCluster()
	for _, n := range c.AllNodes() {
		n.Security.Authc = clustermodel.AuthcCertificate
		n.Security.SecurityDir = "/etc/tc/security"
	}
	err := New().Validate(c)
	if rule := violationRule(t, err); rule != 6 {
		t.Fatalf("expected rule 6, got %d", rule)
	}
}

func TestValidateRejectsNonPositiveOffheap(t *testing.T) {
	c := soundCluster()
	c.Offheap = map[string]int64{"main": 0}
	err := New().Validate(c)
	if rule := violationRule(t, err); rule != 7 {
		t.Fatalf("expected rule 7, got %d", rule)
	}
}

func TestValidateRejectsLeaseExceedingReconnectWindow(t *testing.T) {
	c := soundCluster()
	c.ClientLeaseDuration = c.ClientReconnectWindow + 1
	err := New().Validate(c)
	if rule := violationRule(t, err); rule != 8 {
		t.Fatalf("expected rule 8, got %d", rule)
	}
}

func TestValidateRejectsInvalidPath(t *testing.T) {
	c := soundCluster()
	c.Stripes[0].Nodes[0].BackupDir = "."
	err := New().Validate(c)
	if rule := violationRule(t, err); rule != 9 {
		t.Fatalf("expected rule 9, got %d", rule)
	}
}

func TestValidateRunsLicenseCheckAfterStructuralRules(t *testing.T) {
	called := false
	v := New().WithLicenseCheck(func(c *clustermodel.Cluster) error {
		called = true
		return errors.New("capability not licensed")
	})
	if err := v.Validate(soundCluster()); err == nil {
		t.Fatalf("expected license check failure to propagate")
	}
	if !called {
		t.Fatalf("expected license check to run")
	}
}

func TestValidateStopsAtFirstViolation(t *testing.T) {
	c := soundCluster()
	c.Name = ""
	c.Offheap = map[string]int64{"main": -1}
	err := New().Validate(c)
	// Rule 1 (name) precedes rule 7 (offheap) in evaluation order.
	if rule := violationRule(t, err); rule != 1 {
		t.Fatalf("expected the earlier rule (1) to fire first, got %d", rule)
	}
}
