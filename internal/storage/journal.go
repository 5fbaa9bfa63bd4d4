package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	logging "github.com/op/go-logging"
)

var logger *logging.Logger

func init() {
	logger = logging.MustGetLogger("storage")
}

// backupPath returns the reset() destination for path, following the
// repository on-disk layout's backup naming convention (spec §6:
// "backup-<original>-<yyyyMMdd.HHmmss>").
func backupPath(path string) string {
	dir, base := filepath.Split(path)
	return filepath.Join(dir, fmt.Sprintf("backup-%s-%s", base, time.Now().Format("20060102.150405")))
}

// Journal is the append-only sequence of Nomad log records for one node,
// persisted as newline-delimited JSON under the repository's sanskrit/
// subtree (spec §4.1, §4.2). One line is one Record; appends are fsynced
// before Append returns so that durability precedes any server reply.
type Journal struct {
	path string
	mu   sync.Mutex
}

func newJournal(path string) *Journal {
	return &Journal{path: path}
}

// Append writes record as the next journal line and fsyncs it before
// returning (spec §4.2: "all state changes are written to the journal
// before the reply is emitted").
func (j *Journal) Append(record *Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("storage: marshal journal record v%d: %w", record.Version, err)
	}

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("storage: open journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("storage: write journal record v%d: %w", record.Version, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("storage: fsync journal after v%d: %w", record.Version, err)
	}
	logger.Debugf("journal: appended v%d state=%s", record.Version, record.State)
	return nil
}

// ReadAll returns every record currently in the journal, oldest first.
func (j *Journal) ReadAll() ([]*Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.readAllUnsafe()
}

func (j *Journal) readAllUnsafe() ([]*Record, error) {
	f, err := os.Open(j.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: open journal: %w", err)
	}
	defer f.Close()

	var records []*Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("storage: corrupt journal record: %w", err)
		}
		records = append(records, &rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("storage: scan journal: %w", err)
	}
	return records, nil
}

// Latest returns the journal's most recent record, or nil if the journal is
// empty.
func (j *Journal) Latest() (*Record, error) {
	records, err := j.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[len(records)-1], nil
}

// FindByVersion returns the record for the given version, or nil if absent.
func (j *Journal) FindByVersion(v uint64) (*Record, error) {
	records, err := j.ReadAll()
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.Version == v {
			return r, nil
		}
	}
	return nil, nil
}

// List returns every record with version in [from, to], inclusive.
func (j *Journal) List(from, to uint64) ([]*Record, error) {
	records, err := j.ReadAll()
	if err != nil {
		return nil, err
	}
	out := make([]*Record, 0, len(records))
	for _, r := range records {
		if r.Version >= from && r.Version <= to {
			out = append(out, r)
		}
	}
	return out, nil
}

// Reset moves the journal aside into a timestamped backup file and starts a
// fresh, empty journal in its place (spec §4.1 journal reset, used by node
// detachment returning to diagnostic mode per spec §5 scenario 6).
func (j *Journal) Reset() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := os.Stat(j.path); os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("storage: stat journal: %w", err)
	}

	backup := backupPath(j.path)
	if err := os.Rename(j.path, backup); err != nil {
		return fmt.Errorf("storage: backup journal: %w", err)
	}
	logger.Infof("journal: reset, backed up to %s", filepath.Base(backup))
	return nil
}
