package nomadserver

import (
	"os"
	"testing"

	"github.com/cljohnso/terracotta-platform/internal/change"
	"github.com/cljohnso/terracotta-platform/internal/clustermodel"
	"github.com/cljohnso/terracotta-platform/internal/settingcatalog"
	"github.com/cljohnso/terracotta-platform/internal/storage"
	"github.com/cljohnso/terracotta-platform/internal/validate"
	"github.com/cljohnso/terracotta-platform/internal/wire"
)

func newTestServer(t *testing.T, nodeName string) (*Server, *storage.Repository) {
	t.Helper()
	dir, err := os.MkdirTemp("", "nomadserver-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	repo, err := storage.Open(dir, nodeName)
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	srv, err := New(repo, settingcatalog.NewCatalog(), validate.New(), nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv, repo
}

func testCluster(nodeName string) *clustermodel.Cluster {
	node := &clustermodel.Node{UID: "node-1", Name: nodeName, PublicAddr: "127.0.0.1:9410"}
	stripe := &clustermodel.Stripe{UID: "stripe-1", Name: "stripe-1", Nodes: []*clustermodel.Node{node}}
	return &clustermodel.Cluster{
		UID:                   "cluster-1",
		Name:                  "mycluster",
		Stripes:               []*clustermodel.Stripe{stripe},
		ClientReconnectWindow: 120_000_000_000,
		ClientLeaseDuration:   20_000_000_000,
	}
}

func activationChangeDoc(t *testing.T, nodeName string) wire.ChangeDoc {
	t.Helper()
	ch := change.NewClusterActivationChange(testCluster(nodeName), nil)
	doc, err := wire.EncodeChange(ch, 2)
	if err != nil {
		t.Fatalf("EncodeChange: %v", err)
	}
	return doc
}

func activate(t *testing.T, srv *Server, nodeName string) wire.AcceptRejectResponse {
	t.Helper()
	return srv.Prepare(wire.PrepareMessage{
		ExpectedMutativeMessageCount: 0,
		NewVersion:                   1,
		Change:                       activationChangeDoc(t, nodeName),
	}, "host1", "user1")
}

func TestPrepareAcceptsActivationOnFreshServer(t *testing.T) {
	srv, _ := newTestServer(t, "node-1")
	resp := activate(t, srv, "node-1")
	if !resp.Accepted {
		t.Fatalf("expected acceptance, got reject reason=%s message=%s", resp.RejectionReason, resp.RejectionMessage)
	}
	if resp.CurrentState.HighestVersion != 1 {
		t.Fatalf("expected h=1, got %d", resp.CurrentState.HighestVersion)
	}
	if resp.CurrentState.Mode != wire.ModePrepared {
		t.Fatalf("expected PREPARED, got %s", resp.CurrentState.Mode)
	}
}

func TestPrepareRejectsWrongMode(t *testing.T) {
	srv, _ := newTestServer(t, "node-1")
	if resp := activate(t, srv, "node-1"); !resp.Accepted {
		t.Fatalf("setup activation failed: %s", resp.RejectionMessage)
	}
	// Server is now PREPARED; a second Prepare must be rejected WRONG_MODE.
	resp := srv.Prepare(wire.PrepareMessage{ExpectedMutativeMessageCount: 1, NewVersion: 2, Change: activationChangeDoc(t, "node-1")}, "h", "u")
	if resp.Accepted {
		t.Fatalf("expected rejection")
	}
	if resp.RejectionReason != wire.ReasonWrongMode {
		t.Fatalf("expected WRONG_MODE, got %s", resp.RejectionReason)
	}
}

func TestPrepareRejectsStaleCounter(t *testing.T) {
	srv, _ := newTestServer(t, "node-1")
	resp := srv.Prepare(wire.PrepareMessage{ExpectedMutativeMessageCount: 5, NewVersion: 1, Change: activationChangeDoc(t, "node-1")}, "h", "u")
	if resp.Accepted {
		t.Fatalf("expected rejection")
	}
	if resp.RejectionReason != wire.ReasonStaleCounter {
		t.Fatalf("expected STALE_COUNTER, got %s", resp.RejectionReason)
	}
}

func TestPrepareRejectsWrongVersion(t *testing.T) {
	srv, _ := newTestServer(t, "node-1")
	resp := srv.Prepare(wire.PrepareMessage{ExpectedMutativeMessageCount: 0, NewVersion: 2, Change: activationChangeDoc(t, "node-1")}, "h", "u")
	if resp.Accepted {
		t.Fatalf("expected rejection")
	}
	if resp.RejectionReason != wire.ReasonWrongVersion {
		t.Fatalf("expected WRONG_VERSION, got %s", resp.RejectionReason)
	}
}

func TestPrepareRejectsUnapplicableChange(t *testing.T) {
	srv, _ := newTestServer(t, "node-1")
	if resp := activate(t, srv, "node-1"); !resp.Accepted {
		t.Fatalf("setup activation failed: %s", resp.RejectionMessage)
	}
	commitResp := srv.Commit(wire.CommitMessage{ExpectedMutativeMessageCount: 1, Version: 1}, "h", "u")
	if !commitResp.Accepted {
		t.Fatalf("setup commit failed: %s", commitResp.RejectionMessage)
	}

	// Unknown setting name must be rejected CHANGE_UNAPPLICABLE.
	sc := change.NewSettingChange(settingcatalog.NewCatalog(), clustermodel.ClusterApplicability(), "not.a.real.setting", change.OpSet, "", "1")
	doc, err := wire.EncodeChange(sc, 2)
	if err != nil {
		t.Fatalf("EncodeChange: %v", err)
	}
	resp := srv.Prepare(wire.PrepareMessage{ExpectedMutativeMessageCount: 2, NewVersion: 2, Change: doc}, "h", "u")
	if resp.Accepted {
		t.Fatalf("expected rejection")
	}
	if resp.RejectionReason != wire.ReasonChangeUnapplicable {
		t.Fatalf("expected CHANGE_UNAPPLICABLE, got %s", resp.RejectionReason)
	}
}

func TestFullPrepareCommitCycle(t *testing.T) {
	srv, _ := newTestServer(t, "node-1")
	if resp := activate(t, srv, "node-1"); !resp.Accepted {
		t.Fatalf("activation rejected: %s", resp.RejectionMessage)
	}
	commitResp := srv.Commit(wire.CommitMessage{ExpectedMutativeMessageCount: 1, Version: 1}, "h", "u")
	if !commitResp.Accepted {
		t.Fatalf("commit rejected: %s", commitResp.RejectionMessage)
	}
	if commitResp.CurrentState.CurrentVersion != 1 {
		t.Fatalf("expected v=1, got %d", commitResp.CurrentState.CurrentVersion)
	}
	if commitResp.CurrentState.Mode != wire.ModeAccepting {
		t.Fatalf("expected ACCEPTING after commit, got %s", commitResp.CurrentState.Mode)
	}

	disc := srv.Discover()
	if disc.CurrentVersion != 1 || disc.HighestVersion != 1 {
		t.Fatalf("unexpected discover response: %+v", disc)
	}
	if disc.LatestChange == nil || disc.LatestChange.Version != 1 {
		t.Fatalf("expected latestChange for v1, got %+v", disc.LatestChange)
	}
}

func TestCommitRejectsWrongMode(t *testing.T) {
	srv, _ := newTestServer(t, "node-1")
	// Server starts ACCEPTING; committing with no outstanding prepare must fail.
	resp := srv.Commit(wire.CommitMessage{ExpectedMutativeMessageCount: 0, Version: 1}, "h", "u")
	if resp.Accepted {
		t.Fatalf("expected rejection")
	}
	if resp.RejectionReason != wire.ReasonWrongMode {
		t.Fatalf("expected WRONG_MODE, got %s", resp.RejectionReason)
	}
}

func TestCommitRejectsWrongVersion(t *testing.T) {
	srv, _ := newTestServer(t, "node-1")
	if resp := activate(t, srv, "node-1"); !resp.Accepted {
		t.Fatalf("activation rejected: %s", resp.RejectionMessage)
	}
	resp := srv.Commit(wire.CommitMessage{ExpectedMutativeMessageCount: 1, Version: 2}, "h", "u")
	if resp.Accepted {
		t.Fatalf("expected rejection")
	}
	if resp.RejectionReason != wire.ReasonWrongVersion {
		t.Fatalf("expected WRONG_VERSION, got %s", resp.RejectionReason)
	}
}

func TestRollbackReturnsToAccepting(t *testing.T) {
	srv, _ := newTestServer(t, "node-1")
	if resp := activate(t, srv, "node-1"); !resp.Accepted {
		t.Fatalf("activation rejected: %s", resp.RejectionMessage)
	}
	resp := srv.Rollback(wire.RollbackMessage{ExpectedMutativeMessageCount: 1, Version: 1}, "h", "u")
	if !resp.Accepted {
		t.Fatalf("rollback rejected: %s", resp.RejectionMessage)
	}
	if resp.CurrentState.Mode != wire.ModeAccepting {
		t.Fatalf("expected ACCEPTING, got %s", resp.CurrentState.Mode)
	}
	if resp.CurrentState.CurrentVersion != 0 {
		t.Fatalf("expected v unchanged at 0, got %d", resp.CurrentState.CurrentVersion)
	}
	// h is not reused: a subsequent activation must propose v=2, not v=1.
	next := srv.Prepare(wire.PrepareMessage{ExpectedMutativeMessageCount: 2, NewVersion: 1, Change: activationChangeDoc(t, "node-1")}, "h", "u")
	if next.Accepted {
		t.Fatalf("expected rejection re-using a rolled-back version")
	}
	if next.RejectionReason != wire.ReasonWrongVersion {
		t.Fatalf("expected WRONG_VERSION, got %s", next.RejectionReason)
	}
}

func TestTakeoverFencesRegardlessOfMode(t *testing.T) {
	srv, _ := newTestServer(t, "node-1")
	resp := srv.Takeover(wire.TakeoverMessage{ExpectedMutativeMessageCount: 0, Host: "newcoord", User: "op"})
	if !resp.Accepted {
		t.Fatalf("takeover rejected: %s", resp.RejectionMessage)
	}
	if resp.CurrentState.MutativeMessageCount != 1 {
		t.Fatalf("expected m=1, got %d", resp.CurrentState.MutativeMessageCount)
	}

	// Takeover while PREPARED must still be accepted. The first takeover
	// consumed counter 0, so the activation is sent at counter 1.
	if r := srv.Prepare(wire.PrepareMessage{ExpectedMutativeMessageCount: 1, NewVersion: 1, Change: activationChangeDoc(t, "node-1")}, "h", "u"); !r.Accepted {
		t.Fatalf("activation rejected: %s", r.RejectionMessage)
	}
	resp2 := srv.Takeover(wire.TakeoverMessage{ExpectedMutativeMessageCount: 2, Host: "newcoord2", User: "op2"})
	if !resp2.Accepted {
		t.Fatalf("takeover while PREPARED rejected: %s", resp2.RejectionMessage)
	}
	if resp2.CurrentState.Mode != wire.ModePrepared {
		t.Fatalf("takeover must not change mode, got %s", resp2.CurrentState.Mode)
	}
}

func TestIdempotentReplayOfRetriedPrepare(t *testing.T) {
	srv, _ := newTestServer(t, "node-1")
	doc := activationChangeDoc(t, "node-1")
	first := srv.Prepare(wire.PrepareMessage{ExpectedMutativeMessageCount: 0, NewVersion: 1, Change: doc}, "h", "u")
	if !first.Accepted {
		t.Fatalf("first prepare rejected: %s", first.RejectionMessage)
	}
	// A retried message with the same counter must replay, not re-evaluate
	// (a fresh evaluation would hit WRONG_MODE since we are now PREPARED).
	retry := srv.Prepare(wire.PrepareMessage{ExpectedMutativeMessageCount: 0, NewVersion: 1, Change: doc}, "h", "u")
	if !retry.Accepted {
		t.Fatalf("retried prepare should replay acceptance, got reject reason=%s", retry.RejectionReason)
	}
	if retry.CurrentState != first.CurrentState {
		t.Fatalf("replayed response state mismatch: first=%+v retry=%+v", first.CurrentState, retry.CurrentState)
	}
}

func TestIdempotentReplayOfRetriedCommit(t *testing.T) {
	srv, _ := newTestServer(t, "node-1")
	if resp := activate(t, srv, "node-1"); !resp.Accepted {
		t.Fatalf("activation rejected: %s", resp.RejectionMessage)
	}
	first := srv.Commit(wire.CommitMessage{ExpectedMutativeMessageCount: 1, Version: 1}, "h", "u")
	if !first.Accepted {
		t.Fatalf("first commit rejected: %s", first.RejectionMessage)
	}
	retry := srv.Commit(wire.CommitMessage{ExpectedMutativeMessageCount: 1, Version: 1}, "h", "u")
	if !retry.Accepted {
		t.Fatalf("retried commit should replay acceptance, got reject reason=%s", retry.RejectionReason)
	}
	if retry.CurrentState != first.CurrentState {
		t.Fatalf("replayed response state mismatch: first=%+v retry=%+v", first.CurrentState, retry.CurrentState)
	}
}

func TestRecoveryResumesFromJournalAfterRestart(t *testing.T) {
	dir, err := os.MkdirTemp("", "nomadserver-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	repo, err := storage.Open(dir, "node-1")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	srv, err := New(repo, settingcatalog.NewCatalog(), validate.New(), nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if resp := activate(t, srv, "node-1"); !resp.Accepted {
		t.Fatalf("activation rejected: %s", resp.RejectionMessage)
	}
	if resp := srv.Commit(wire.CommitMessage{ExpectedMutativeMessageCount: 1, Version: 1}, "h", "u"); !resp.Accepted {
		t.Fatalf("commit rejected: %s", resp.RejectionMessage)
	}

	// Re-open the same repository root, simulating a restart.
	repo2, err := storage.Open(dir, "")
	if err != nil {
		t.Fatalf("storage.Open (reopen): %v", err)
	}
	srv2, err := New(repo2, settingcatalog.NewCatalog(), validate.New(), nil, nil)
	if err != nil {
		t.Fatalf("New (reopen): %v", err)
	}
	disc := srv2.Discover()
	if disc.CurrentVersion != 1 || disc.HighestVersion != 1 {
		t.Fatalf("expected recovered v=1 h=1, got %+v", disc)
	}
	if disc.Mode != wire.ModeAccepting {
		t.Fatalf("expected recovered ACCEPTING, got %s", disc.Mode)
	}
	if disc.MutativeMessageCount != 2 {
		t.Fatalf("expected recovered m=2, got %d", disc.MutativeMessageCount)
	}
}

func TestRecoveryResumesPreparedAfterCrashDuringPrepare(t *testing.T) {
	dir, err := os.MkdirTemp("", "nomadserver-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	repo, err := storage.Open(dir, "node-1")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	srv, err := New(repo, settingcatalog.NewCatalog(), validate.New(), nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if resp := activate(t, srv, "node-1"); !resp.Accepted {
		t.Fatalf("activation rejected: %s", resp.RejectionMessage)
	}
	// Crash here: never commits or rolls back.

	repo2, err := storage.Open(dir, "")
	if err != nil {
		t.Fatalf("storage.Open (reopen): %v", err)
	}
	srv2, err := New(repo2, settingcatalog.NewCatalog(), validate.New(), nil, nil)
	if err != nil {
		t.Fatalf("New (reopen): %v", err)
	}
	disc := srv2.Discover()
	if disc.Mode != wire.ModePrepared {
		t.Fatalf("expected recovered PREPARED, got %s", disc.Mode)
	}
	if disc.HighestVersion != 1 {
		t.Fatalf("expected recovered h=1, got %d", disc.HighestVersion)
	}
	if disc.CurrentVersion != 0 {
		t.Fatalf("expected recovered v=0 (never committed), got %d", disc.CurrentVersion)
	}
}
