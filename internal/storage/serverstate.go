package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const serverStateFile = "server-state.json"

// ServerStateSnapshot is the small piece of Nomad server state that does not
// belong to any one version: the mutative-message counter and the identity
// of whoever sent the last mutating message. It must survive a Takeover,
// which bumps the counter without creating a new journal version (spec
// §4.2), so it is tracked separately from the per-version journal records.
type ServerStateSnapshot struct {
	MutativeMessageCount uint64 `json:"mutativeMessageCount"`
	LastMutationHost     string `json:"lastMutationHost"`
	LastMutationUser     string `json:"lastMutationUser"`
}

// ServerState is the atomically-persisted holder for ServerStateSnapshot,
// written with the same write-temp-then-rename discipline as the config
// store (spec §4.1).
type ServerState struct {
	path string
	mu   sync.Mutex
}

func newServerState(path string) *ServerState {
	return &ServerState{path: path}
}

// Load returns the last-persisted snapshot, or the zero value if none has
// been written yet (a fresh server starts at m=0).
func (s *ServerState) Load() (ServerStateSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return ServerStateSnapshot{}, nil
	}
	if err != nil {
		return ServerStateSnapshot{}, fmt.Errorf("storage: reading server state: %w", err)
	}
	var snap ServerStateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return ServerStateSnapshot{}, fmt.Errorf("storage: decoding server state: %w", err)
	}
	return snap, nil
}

// Save persists snap atomically.
func (s *ServerState) Save(snap ServerStateSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("storage: marshal server state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("storage: write temp server state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("storage: rename server state into place: %w", err)
	}
	return nil
}

func serverStatePath(root string) string {
	return filepath.Join(root, sanskritSubdir, serverStateFile)
}
