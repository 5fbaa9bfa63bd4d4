// Package wire defines the Nomad protocol's semantic message shapes (spec
// §6). Encoding is JSON, chosen the way the spec calls out as the typical
// implementation choice; the framing/transport itself remains an external
// collaborator (spec §1 Non-goals).
package wire

import "github.com/cljohnso/terracotta-platform/internal/clustermodel"

// Mode mirrors the Nomad server's two-state machine (spec §4.2).
type Mode string

const (
	ModeAccepting Mode = "ACCEPTING"
	ModePrepared  Mode = "PREPARED"
)

// RejectionReason enumerates the explicit reasons a server can reject a
// mutating message (spec §4.2, §7).
type RejectionReason string

const (
	ReasonWrongMode         RejectionReason = "WRONG_MODE"
	ReasonStaleCounter      RejectionReason = "STALE_COUNTER"
	ReasonWrongVersion      RejectionReason = "WRONG_VERSION"
	ReasonChangeUnapplicable RejectionReason = "CHANGE_UNAPPLICABLE"
	ReasonStorageFailure    RejectionReason = "STORAGE_FAILURE"
)

// ServerState is the snapshot of counters/mode a rejection (or a Discover)
// carries back to the coordinator so it can resynchronize (spec §4.2: "Every
// rejection carries the server's current {m, v, h, mode}").
type ServerState struct {
	MutativeMessageCount uint64 `json:"m"`
	CurrentVersion       uint64 `json:"v"`
	HighestVersion       uint64 `json:"h"`
	Mode                 Mode   `json:"mode"`
}

// LatestChangeInfo is the committed-change metadata a Discover response
// carries, used by the coordinator's consistency check (spec §4.3 step 2).
type LatestChangeInfo struct {
	Version       uint64 `json:"version"`
	Summary       string `json:"summary"`
	AppliedHost   string `json:"appliedHost"`
	AppliedUser   string `json:"appliedUser"`
	AppliedAtUnix int64  `json:"appliedAtUnix"`
}

// DiscoverRequest carries no fields; every server answers it the same way
// regardless of caller identity.
type DiscoverRequest struct{}

// DiscoverResponse is the non-mutating status report (spec §6).
type DiscoverResponse struct {
	Mode                 Mode              `json:"mode"`
	MutativeMessageCount uint64            `json:"mutativeMessageCount"`
	LastMutationHost     string            `json:"lastMutationHost"`
	LastMutationUser     string            `json:"lastMutationUser"`
	CurrentVersion       uint64            `json:"currentVersion"`
	HighestVersion       uint64            `json:"highestVersion"`
	LatestChange         *LatestChangeInfo `json:"latestChange,omitempty"`
}

// PrepareMessage proposes a new version with its change (spec §6). Change is
// carried as a versioned ChangeDoc; the server decodes it (V1 or V2) with
// DecodeChange when it handles the Prepare.
type PrepareMessage struct {
	ExpectedMutativeMessageCount uint64    `json:"expectedMutativeMessageCount"`
	NewVersion                   uint64    `json:"newVersion"`
	Change                       ChangeDoc `json:"change"`
}

// CommitMessage finalizes a previously prepared version.
type CommitMessage struct {
	ExpectedMutativeMessageCount uint64 `json:"expectedMutativeMessageCount"`
	Version                      uint64 `json:"version"`
}

// RollbackMessage discards a previously prepared version.
type RollbackMessage struct {
	ExpectedMutativeMessageCount uint64 `json:"expectedMutativeMessageCount"`
	Version                      uint64 `json:"version"`
}

// TakeoverMessage fences prior coordinators without touching committed
// state (spec §4.2, §4.3 step 4).
type TakeoverMessage struct {
	ExpectedMutativeMessageCount uint64 `json:"expectedMutativeMessageCount"`
	Host                         string `json:"host"`
	User                         string `json:"user"`
}

// AcceptRejectResponse is the uniform reply to Prepare/Commit/Rollback/
// Takeover (spec §6).
type AcceptRejectResponse struct {
	Accepted         bool            `json:"accepted"`
	RejectionReason  RejectionReason `json:"rejectionReason,omitempty"`
	RejectionMessage string          `json:"rejectionMessage,omitempty"`
	CurrentState     ServerState     `json:"currentState"`
}

// Accept builds an acceptance response carrying the server's post-accept
// state.
func Accept(state ServerState) AcceptRejectResponse {
	return AcceptRejectResponse{Accepted: true, CurrentState: state}
}

// Reject builds a rejection response with an explicit reason, never a
// generic failure (spec §7: "never a generic failure").
func Reject(reason RejectionReason, message string, state ServerState) AcceptRejectResponse {
	return AcceptRejectResponse{Accepted: false, RejectionReason: reason, RejectionMessage: message, CurrentState: state}
}

// ApplicabilityV2 is the UID-addressed applicability wire shape (spec §6).
type ApplicabilityV2 struct {
	Scope     clustermodel.Scope `json:"scope"`
	StripeUID clustermodel.UID   `json:"stripeUID,omitempty"`
	NodeUID   clustermodel.UID   `json:"nodeUID,omitempty"`
}

// ApplicabilityV1 is the index+name wire shape accepted for backward read
// compatibility (spec §6).
type ApplicabilityV1 struct {
	Scope     clustermodel.Scope `json:"scope"`
	StripeID  int                `json:"stripeId,omitempty"`
	NodeName  string             `json:"nodeName,omitempty"`
}
