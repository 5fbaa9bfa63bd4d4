package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cljohnso/terracotta-platform/internal/clustermodel"
	"github.com/cljohnso/terracotta-platform/internal/wire"
)

// RecordState is the terminal or non-terminal state of a Nomad log record
// (spec §3, §4.2).
type RecordState string

const (
	RecordPrepared    RecordState = "PREPARED"
	RecordCommitted   RecordState = "COMMITTED"
	RecordRolledBack  RecordState = "ROLLED_BACK"
)

// Record is one entry of the sanskrit journal: a single Nomad version's full
// lifecycle metadata (spec §3 "Nomad log record").
type Record struct {
	Version         uint64          `json:"version"`
	PrevVersionHash string          `json:"prevVersionHash,omitempty"`
	State           RecordState     `json:"state"`
	Change          wire.ChangeDoc  `json:"change"`
	ChangeSummary   string          `json:"changeSummary"`
	RequiresRestart bool            `json:"requiresRestart"`
	ResultHash      string          `json:"resultHash"`
	CreationHost    string          `json:"creationHost"`
	CreationUser    string          `json:"creationUser"`
	CreationTime    time.Time       `json:"creationTime"`
	AppliedHost     string          `json:"appliedHost,omitempty"`
	AppliedUser     string          `json:"appliedUser,omitempty"`
	AppliedTime     time.Time       `json:"appliedTime,omitempty"`
}

// Hash computes the record's content hash the way the next record's
// PrevVersionHash links to it: canonical JSON over every field except
// ResultHash, SHA-256, hex-encoded. Two records with identical content (same
// version, state, change, timestamps) hash identically. Replay of a resent
// Prepare/Commit is detected by the server's last-transition cache, not by
// this hash.
func (r *Record) Hash() (string, error) {
	tmp := *r
	tmp.ResultHash = ""
	data, err := json.Marshal(&tmp)
	if err != nil {
		return "", fmt.Errorf("storage: hashing record v%d: %w", r.Version, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// HashNodeContext computes the result-hash a Record stores for the
// NodeContext a Prepare produces. It is only stored; nothing compares it
// against the config store.
func HashNodeContext(ctx *clustermodel.NodeContext) (string, error) {
	data, err := json.Marshal(ctx)
	if err != nil {
		return "", fmt.Errorf("storage: hashing node context: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
