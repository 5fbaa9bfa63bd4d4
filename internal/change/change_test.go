package change

import (
	"errors"
	"testing"

	"github.com/cljohnso/terracotta-platform/internal/clustermodel"
	"github.com/cljohnso/terracotta-platform/internal/settingcatalog"
)

func baseCluster() *clustermodel.Cluster {
	node := &clustermodel.Node{UID: "n1", Name: "node-1", PublicAddr: "10.0.0.1:9410"}
	stripe := &clustermodel.Stripe{UID: "s1", Name: "stripe-1", Nodes: []*clustermodel.Node{node}}
	return &clustermodel.Cluster{
		UID:                   "c1",
		Name:                  "mycluster",
		Stripes:               []*clustermodel.Stripe{stripe},
		ClientReconnectWindow: 120_000_000_000,
		ClientLeaseDuration:   20_000_000_000,
	}
}

func TestSettingChangeSetAndUnsetClusterScope(t *testing.T) {
	catalog := settingcatalog.NewCatalog()
	c := baseCluster()

	set := NewSettingChange(catalog, clustermodel.ClusterApplicability(), settingcatalog.ClusterLease, OpSet, "", "30000")
	if err := set.CanApply(c); err != nil {
		t.Fatalf("CanApply: %v", err)
	}
	applied, err := set.Apply(c)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if applied.ClientLeaseDuration != 30000 {
		t.Fatalf("expected lease duration 30000, got %d", applied.ClientLeaseDuration)
	}
	// Apply must not mutate its input.
	if c.ClientLeaseDuration == applied.ClientLeaseDuration {
		t.Fatalf("expected original cluster to be left untouched")
	}

	unset := NewSettingChange(catalog, clustermodel.ClusterApplicability(), settingcatalog.ClusterLease, OpUnset, "", "")
	afterUnset, err := unset.Apply(applied)
	if err != nil {
		t.Fatalf("Apply (unset): %v", err)
	}
	if afterUnset.ClientLeaseDuration != 20000 {
		t.Fatalf("expected unset to restore default 20000, got %d", afterUnset.ClientLeaseDuration)
	}
}

func TestSettingChangeRejectsUnknownSetting(t *testing.T) {
	catalog := settingcatalog.NewCatalog()
	sc := NewSettingChange(catalog, clustermodel.ClusterApplicability(), "not.a.setting", OpSet, "", "1")
	err := sc.CanApply(baseCluster())
	if err == nil {
		t.Fatalf("expected rejection")
	}
	if !errors.Is(err, ErrNotApplicable) {
		t.Fatalf("expected ErrNotApplicable, got %v", err)
	}
}

func TestSettingChangeRejectsWrongScope(t *testing.T) {
	catalog := settingcatalog.NewCatalog()
	// ClusterLease is cluster-scoped only; applying it at node scope must fail.
	sc := NewSettingChange(catalog, clustermodel.NodeApplicability("s1", "n1"), settingcatalog.ClusterLease, OpSet, "", "30000")
	if err := sc.CanApply(baseCluster()); err == nil {
		t.Fatalf("expected rejection for out-of-scope applicability")
	}
}

func TestSettingChangeRejectsInvalidValue(t *testing.T) {
	catalog := settingcatalog.NewCatalog()
	sc := NewSettingChange(catalog, clustermodel.ClusterApplicability(), settingcatalog.ClusterLease, OpSet, "", "not-a-number")
	if err := sc.CanApply(baseCluster()); err == nil {
		t.Fatalf("expected rejection for invalid value")
	}
}

func TestSettingChangeNodeScopedTarget(t *testing.T) {
	catalog := settingcatalog.NewCatalog()
	sc := NewSettingChange(catalog, clustermodel.NodeApplicability("s1", "n1"), settingcatalog.NodeBackupDir, OpSet, "", "/backup")
	c := baseCluster()
	if err := sc.CanApply(c); err != nil {
		t.Fatalf("CanApply: %v", err)
	}
	applied, err := sc.Apply(c)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if applied.Stripes[0].Nodes[0].BackupDir != "/backup" {
		t.Fatalf("expected backup dir set, got %q", applied.Stripes[0].Nodes[0].BackupDir)
	}
}

func TestSettingChangeRequiresRestartReflectsCatalog(t *testing.T) {
	catalog := settingcatalog.NewCatalog()
	runtime := NewSettingChange(catalog, clustermodel.ClusterApplicability(), settingcatalog.ClusterLease, OpSet, "", "30000")
	if runtime.RequiresRestart() {
		t.Fatalf("expected cluster lease change to be runtime-applicable")
	}
	restart := NewSettingChange(catalog, clustermodel.NodeApplicability("s1", "n1"), settingcatalog.NodeLogDir, OpSet, "", "/var/log/tc")
	if !restart.RequiresRestart() {
		t.Fatalf("expected log-dir change to require a restart")
	}
}

func TestMultiSettingChangeAppliesChildrenInOrder(t *testing.T) {
	catalog := settingcatalog.NewCatalog()
	c1 := NewSettingChange(catalog, clustermodel.ClusterApplicability(), settingcatalog.ClusterLease, OpSet, "", "30000")
	c2 := NewSettingChange(catalog, clustermodel.ClusterApplicability(), settingcatalog.ClusterReconnect, OpSet, "", "150000")
	multi := NewMultiSettingChange(c1, c2)

	c := baseCluster()
	if err := multi.CanApply(c); err != nil {
		t.Fatalf("CanApply: %v", err)
	}
	applied, err := multi.Apply(c)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if applied.ClientLeaseDuration != 30000 || applied.ClientReconnectWindow != 150000 {
		t.Fatalf("unexpected result: %+v", applied)
	}
}

func TestMultiSettingChangeFailsFastOnFirstInvalidChild(t *testing.T) {
	catalog := settingcatalog.NewCatalog()
	good := NewSettingChange(catalog, clustermodel.ClusterApplicability(), settingcatalog.ClusterLease, OpSet, "", "30000")
	bad := NewSettingChange(catalog, clustermodel.ClusterApplicability(), "not.a.setting", OpSet, "", "x")
	multi := NewMultiSettingChange(good, bad)
	if err := multi.CanApply(baseCluster()); err == nil {
		t.Fatalf("expected rejection due to invalid second child")
	}
}

func TestMultiSettingChangeRequiresRestartIfAnyChildDoes(t *testing.T) {
	catalog := settingcatalog.NewCatalog()
	runtimeOnly := NewSettingChange(catalog, clustermodel.ClusterApplicability(), settingcatalog.ClusterLease, OpSet, "", "30000")
	needsRestart := NewSettingChange(catalog, clustermodel.NodeApplicability("s1", "n1"), settingcatalog.NodeLogDir, OpSet, "", "/var/log/tc")
	multi := NewMultiSettingChange(runtimeOnly, needsRestart)
	if !multi.RequiresRestart() {
		t.Fatalf("expected multi-change to require restart when any child does")
	}
}

func TestClusterActivationChangeRequiresEmptyCluster(t *testing.T) {
	proposed := baseCluster()
	ch := NewClusterActivationChange(proposed, nil)

	empty := &clustermodel.Cluster{}
	if err := ch.CanApply(empty); err != nil {
		t.Fatalf("expected activation to apply against an empty cluster, got %v", err)
	}

	if err := ch.CanApply(proposed); err == nil {
		t.Fatalf("expected activation to be rejected against an already-activated cluster")
	}
	if ch.RequiresRestart() {
		t.Fatalf("activation must never require a restart")
	}
}

func TestFormatUpgradeChangeMustMoveForward(t *testing.T) {
	upgrade := NewFormatUpgradeChange(1, 2)
	if err := upgrade.CanApply(baseCluster()); err != nil {
		t.Fatalf("CanApply: %v", err)
	}
	backwards := NewFormatUpgradeChange(2, 1)
	if err := backwards.CanApply(baseCluster()); err == nil {
		t.Fatalf("expected rejection of a backwards format upgrade")
	}
}
