package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cljohnso/terracotta-platform/internal/clustermodel"
)

// configFileRE matches "<node-name>-v<version>.json", the on-disk filename
// shape for versioned NodeContext snapshots (spec §4.1: "filenames in
// config/ encode (node-name, version)").
var configFileRE = regexp.MustCompile(`^(.+)-v(\d+)\.json$`)

// ConfigStore is the versioned NodeContext snapshot store: a total function
// version -> NodeContext, persisted durably with atomic write-temp-then-
// rename so a crash mid-write can never leave a partially-written snapshot
// visible at its target name (spec §4.1).
type ConfigStore struct {
	dir      string
	nodeName string

	mu    sync.Mutex
	cache *lru.Cache[uint64, *clustermodel.NodeContext]
}

const configCacheSize = 32

func newConfigStore(dir, nodeName string) (*ConfigStore, error) {
	cache, err := lru.New[uint64, *clustermodel.NodeContext](configCacheSize)
	if err != nil {
		return nil, fmt.Errorf("storage: building config cache: %w", err)
	}
	return &ConfigStore{dir: dir, nodeName: nodeName, cache: cache}, nil
}

func (s *ConfigStore) path(version uint64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-v%d.json", s.nodeName, version))
}

// Save persists ctx at version, atomically: write to a temp file in the
// same directory, fsync, then rename over the target (spec §4.1: "Writes
// must be atomic (write-temp-then-rename)").
func (s *ConfigStore) Save(version uint64, ctx *clustermodel.NodeContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal node context v%d: %w", version, err)
	}

	target := s.path(version)
	tmp := target + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("storage: create temp config file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("storage: write temp config file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("storage: fsync temp config file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("storage: close temp config file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("storage: rename config file into place: %w", err)
	}

	s.cache.Add(version, ctx.Clone())
	return nil
}

// Load returns the NodeContext persisted at version. A cache hit avoids the
// disk read entirely (spec_full §11: "avoiding a disk read on every
// Discover").
func (s *ConfigStore) Load(version uint64) (*clustermodel.NodeContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.cache.Get(version); ok {
		return cached.Clone(), nil
	}

	data, err := os.ReadFile(s.path(version))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("storage: no config snapshot at version %d", version)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read config snapshot v%d: %w", version, err)
	}

	var ctx clustermodel.NodeContext
	if err := json.Unmarshal(data, &ctx); err != nil {
		return nil, fmt.Errorf("storage: decode config snapshot v%d: %w", version, err)
	}
	s.cache.Add(version, ctx.Clone())
	return &ctx, nil
}

// Versions returns every version number with a persisted snapshot, sorted
// ascending.
func (s *ConfigStore) Versions() ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versionsUnsafe()
}

func (s *ConfigStore) versionsUnsafe() ([]uint64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: list config dir: %w", err)
	}
	var versions []uint64
	for _, e := range entries {
		m := configFileRE.FindStringSubmatch(e.Name())
		if m == nil || m[1] != s.nodeName {
			continue
		}
		v, err := strconv.ParseUint(m[2], 10, 64)
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

// LoadLatest returns the highest-versioned snapshot on disk.
func (s *ConfigStore) LoadLatest() (*clustermodel.NodeContext, uint64, error) {
	versions, err := s.Versions()
	if err != nil {
		return nil, 0, err
	}
	if len(versions) == 0 {
		return nil, 0, nil
	}
	max := versions[0]
	for _, v := range versions[1:] {
		if v > max {
			max = v
		}
	}
	ctx, err := s.Load(max)
	return ctx, max, err
}

// Delete removes the snapshot at version, used by Rollback (spec §4.2:
// "delete the associated config snapshot"). Deleting an absent version is a
// no-op.
func (s *ConfigStore) Delete(version uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(version)
	if err := os.Remove(s.path(version)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: delete config snapshot v%d: %w", version, err)
	}
	return nil
}

// discoverNodeName inspects dir for existing snapshot filenames and returns
// the single node-name they encode (spec §4.1: "a fully-formed repository
// must contain records for exactly one node-name"). It returns "" if dir is
// empty.
func discoverNodeName(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("storage: list config dir: %w", err)
	}
	found := ""
	for _, e := range entries {
		m := configFileRE.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if found == "" {
			found = m[1]
		} else if found != m[1] {
			return "", fmt.Errorf("storage: repository has snapshots for multiple node names (%q and %q)", found, m[1])
		}
	}
	return found, nil
}
