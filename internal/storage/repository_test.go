package storage

import (
	"os"
	"testing"
	"time"

	"github.com/cljohnso/terracotta-platform/internal/clustermodel"
)

func testNodeContext(t *testing.T) *clustermodel.NodeContext {
	t.Helper()
	node := &clustermodel.Node{UID: "node-1", Name: "node-1", PublicAddr: "127.0.0.1:9410"}
	stripe := &clustermodel.Stripe{UID: "stripe-1", Name: "stripe-1", Nodes: []*clustermodel.Node{node}}
	cluster := &clustermodel.Cluster{UID: "cluster-1", Name: "mycluster", Stripes: []*clustermodel.Stripe{stripe}}
	ctx := clustermodel.NewNodeContext(cluster, "stripe-1", "node-1")
	return &ctx
}

func TestOpenCreatesFreshRepository(t *testing.T) {
	dir, err := os.MkdirTemp("", "storage-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)

	repo, err := Open(dir, "node-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if repo.NodeName != "node-1" {
		t.Fatalf("expected node name node-1, got %s", repo.NodeName)
	}
	for _, d := range []string{"config", "license", "sanskrit"} {
		if info, err := os.Stat(dir + "/" + d); err != nil || !info.IsDir() {
			t.Fatalf("expected subdir %s to exist", d)
		}
	}
}

func TestOpenRejectsPartiallyFormedRepository(t *testing.T) {
	dir, err := os.MkdirTemp("", "storage-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)

	if err := os.MkdirAll(dir+"/config", 0o750); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if _, err := Open(dir, "node-1"); err == nil {
		t.Fatalf("expected error opening a partially-formed repository")
	}
}

func TestOpenDiscoversNodeNameFromExistingSnapshots(t *testing.T) {
	dir, err := os.MkdirTemp("", "storage-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)

	repo, err := Open(dir, "node-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := repo.Config.Save(1, testNodeContext(t)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened, err := Open(dir, "")
	if err != nil {
		t.Fatalf("Open (reopen, no node name supplied): %v", err)
	}
	if reopened.NodeName != "node-1" {
		t.Fatalf("expected discovered node name node-1, got %s", reopened.NodeName)
	}
}

func TestJournalAppendAndReadAll(t *testing.T) {
	dir, err := os.MkdirTemp("", "storage-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)

	repo, err := Open(dir, "node-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	r1 := &Record{Version: 1, State: RecordCommitted, ChangeSummary: "activate", CreationTime: time.Now().UTC()}
	r2 := &Record{Version: 2, State: RecordCommitted, ChangeSummary: "set lease", CreationTime: time.Now().UTC()}
	if err := repo.Journal.Append(r1); err != nil {
		t.Fatalf("Append r1: %v", err)
	}
	if err := repo.Journal.Append(r2); err != nil {
		t.Fatalf("Append r2: %v", err)
	}

	all, err := repo.Journal.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
	if all[0].Version != 1 || all[1].Version != 2 {
		t.Fatalf("expected records in append order, got %d, %d", all[0].Version, all[1].Version)
	}

	latest, err := repo.Journal.Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.Version != 2 {
		t.Fatalf("expected latest v2, got v%d", latest.Version)
	}

	found, err := repo.Journal.FindByVersion(1)
	if err != nil {
		t.Fatalf("FindByVersion: %v", err)
	}
	if found == nil || found.ChangeSummary != "activate" {
		t.Fatalf("unexpected FindByVersion result: %+v", found)
	}

	listed, err := repo.Journal.List(1, 1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 1 || listed[0].Version != 1 {
		t.Fatalf("expected exactly v1 in range, got %+v", listed)
	}
}

func TestJournalResetBacksUpAndStartsFresh(t *testing.T) {
	dir, err := os.MkdirTemp("", "storage-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)

	repo, err := Open(dir, "node-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := repo.Journal.Append(&Record{Version: 1, State: RecordCommitted, CreationTime: time.Now().UTC()}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := repo.Journal.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	all, err := repo.Journal.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll after reset: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected empty journal after reset, got %d records", len(all))
	}
}

func TestConfigStoreSaveLoadRoundTrip(t *testing.T) {
	dir, err := os.MkdirTemp("", "storage-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)

	repo, err := Open(dir, "node-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := testNodeContext(t)
	if err := repo.Config.Save(1, ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := repo.Config.Load(1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Cluster.Name != "mycluster" {
		t.Fatalf("expected round-tripped cluster name mycluster, got %s", loaded.Cluster.Name)
	}

	versions, err := repo.Config.Versions()
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(versions) != 1 || versions[0] != 1 {
		t.Fatalf("expected [1], got %v", versions)
	}

	if err := repo.Config.Delete(1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Config.Load(1); err == nil {
		t.Fatalf("expected error loading deleted snapshot")
	}
}

func TestServerStateSaveLoadRoundTrip(t *testing.T) {
	dir, err := os.MkdirTemp("", "storage-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)

	repo, err := Open(dir, "node-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	fresh, err := repo.State.Load()
	if err != nil {
		t.Fatalf("Load (fresh): %v", err)
	}
	if fresh.MutativeMessageCount != 0 {
		t.Fatalf("expected fresh server state at m=0, got %d", fresh.MutativeMessageCount)
	}

	snap := ServerStateSnapshot{MutativeMessageCount: 5, LastMutationHost: "h", LastMutationUser: "u"}
	if err := repo.State.Save(snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := repo.State.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded != snap {
		t.Fatalf("expected %+v, got %+v", snap, loaded)
	}
}

func TestRecordHashIsStableAndExcludesResultHash(t *testing.T) {
	r1 := &Record{Version: 1, State: RecordCommitted, ChangeSummary: "x", ResultHash: "aaa"}
	r2 := &Record{Version: 1, State: RecordCommitted, ChangeSummary: "x", ResultHash: "bbb"}
	h1, err := r1.Hash()
	if err != nil {
		t.Fatalf("Hash r1: %v", err)
	}
	h2, err := r2.Hash()
	if err != nil {
		t.Fatalf("Hash r2: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected hash to be independent of ResultHash, got %s != %s", h1, h2)
	}

	r3 := &Record{Version: 2, State: RecordCommitted, ChangeSummary: "x"}
	h3, err := r3.Hash()
	if err != nil {
		t.Fatalf("Hash r3: %v", err)
	}
	if h1 == h3 {
		t.Fatalf("expected different versions to hash differently")
	}
}
