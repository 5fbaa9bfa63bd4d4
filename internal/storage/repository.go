package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	configSubdir   = "config"
	licenseSubdir  = "license"
	sanskritSubdir = "sanskrit"
	journalFile    = "journal.log"
	licenseFile    = "license.xml"
)

// Repository is the on-disk container for one node's durable state: a
// versioned config store, an append-only journal and an optional license
// file, living as three sibling subtrees under a single root (spec §4.1,
// §6 "Repository on-disk layout").
type Repository struct {
	root     string
	NodeName string

	Config  *ConfigStore
	Journal *Journal
	State   *ServerState
}

// Open reconciles root against the three-subtree shape the repository
// requires: all three present is a going concern, none present is a fresh
// repository (created here), and any other combination is a hard error
// (spec §4.1: "A partially-formed repository... is a hard error at
// startup"). nodeName is only used to seed a fresh repository; an existing
// one's node name is discovered from its config snapshot filenames.
func Open(root, nodeName string) (*Repository, error) {
	cfgDir := filepath.Join(root, configSubdir)
	licDir := filepath.Join(root, licenseSubdir)
	sksDir := filepath.Join(root, sanskritSubdir)

	present := map[string]bool{
		configSubdir:   dirExists(cfgDir),
		licenseSubdir:  dirExists(licDir),
		sanskritSubdir: dirExists(sksDir),
	}
	count := 0
	for _, ok := range present {
		if ok {
			count++
		}
	}

	switch count {
	case 0:
		logger.Infof("repository: creating fresh repository at %s", root)
		for _, d := range []string{cfgDir, licDir, sksDir} {
			if err := os.MkdirAll(d, 0o750); err != nil {
				return nil, fmt.Errorf("storage: creating %s: %w", d, err)
			}
		}
	case 3:
		logger.Debugf("repository: opening existing repository at %s", root)
	default:
		return nil, fmt.Errorf("storage: partially-formed repository at %s (present: %v): refusing to start", root, present)
	}

	discovered, err := discoverNodeName(cfgDir)
	if err != nil {
		return nil, err
	}
	if discovered != "" {
		nodeName = discovered
	}
	if nodeName == "" {
		return nil, fmt.Errorf("storage: repository at %s has no snapshots and no node name was supplied", root)
	}

	cfgStore, err := newConfigStore(cfgDir, nodeName)
	if err != nil {
		return nil, err
	}

	return &Repository{
		root:     root,
		NodeName: nodeName,
		Config:   cfgStore,
		Journal:  newJournal(filepath.Join(sksDir, journalFile)),
		State:    newServerState(serverStatePath(root)),
	}, nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// LicensePath returns the path license content is read from and written to.
func (r *Repository) LicensePath() string {
	return filepath.Join(r.root, licenseSubdir, licenseFile)
}

// SaveLicense writes license content to the repository's license subtree.
func (r *Repository) SaveLicense(content []byte) error {
	if len(content) == 0 {
		return nil
	}
	if err := os.WriteFile(r.LicensePath(), content, 0o600); err != nil {
		return fmt.Errorf("storage: writing license: %w", err)
	}
	return nil
}

// LoadLicense reads the repository's license content, or (nil, nil) if
// none has been installed.
func (r *Repository) LoadLicense() ([]byte, error) {
	data, err := os.ReadFile(r.LicensePath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: reading license: %w", err)
	}
	return data, nil
}

// Reset moves the repository's journal and every config snapshot aside into
// timestamped backups and starts fresh, used when a node is detached from
// its cluster and returns to diagnostic mode (spec §5 scenario 6: "A's
// repository is reset (backed up); A returns to diagnostic mode").
func (r *Repository) Reset() error {
	if err := r.Journal.Reset(); err != nil {
		return err
	}

	versions, err := r.Config.Versions()
	if err != nil {
		return err
	}
	for _, v := range versions {
		p := r.Config.path(v)
		if err := os.Rename(p, backupPath(p)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("storage: backing up config snapshot v%d: %w", v, err)
		}
		r.Config.cache.Remove(v)
	}
	if err := r.State.Save(ServerStateSnapshot{}); err != nil {
		return fmt.Errorf("storage: resetting server state: %w", err)
	}
	logger.Infof("repository: reset, %d config snapshot(s) backed up", len(versions))
	return nil
}
