// Package stats keeps cumulative certificate counters and an append-only log
// of batch runs on disk.
package stats

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// File names inside the ledger directory.
const (
	CountersFile = "counters.json"
	RunsFile     = "runs.log"
)

// Counters are the totals across every recorded run.
type Counters struct {
	Runs         int            `json:"runs"`
	Appeared     int            `json:"appeared"`
	Qualified    int            `json:"qualified"`
	NotQualified int            `json:"not_qualified"`
	Issued       int            `json:"issued"`
	Failed       int            `json:"failed"`
	ByIdentity   map[string]int `json:"by_identity"` // certificates issued per signed-in identity
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (c Counters) String() string {
	return fmt.Sprintf("Runs: %d, Appeared: %d, Qualified: %d, NotQualified: %d, Issued: %d, Failed: %d",
		c.Runs, c.Appeared, c.Qualified, c.NotQualified, c.Issued, c.Failed)
}

// Run is one line of the run log.
type Run struct {
	ID           string    `json:"id"`
	Time         time.Time `json:"time"`
	Identity     string    `json:"identity,omitempty"`
	Appeared     int       `json:"appeared"`
	Qualified    int       `json:"qualified"`
	NotQualified int       `json:"not_qualified"`
	Issued       int       `json:"issued"`
	Failed       int       `json:"failed,omitempty"`
}

// Ledger is the on-disk statistics store. Record performs a locked
// read-modify-write so overlapping batches in one process never lose updates.
type Ledger struct {
	mu     sync.Mutex
	dir    string
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the ledger's logger.
func WithLogger(l *zap.Logger) Option {
	return func(lg *Ledger) {
		if l != nil {
			lg.logger = l
		}
	}
}

// WithClock overrides the time source used to stamp runs.
func WithClock(now func() time.Time) Option {
	return func(lg *Ledger) { lg.now = now }
}

// Open returns a ledger stored in dir, creating the directory if needed.
func Open(dir string, opts ...Option) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create stats dir: %w", err)
	}
	l := &Ledger{dir: dir, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Dir is the directory holding the ledger files.
func (l *Ledger) Dir() string { return l.dir }

// Record adds run to the counters and appends it to the run log. ID and Time
// are filled in when empty. The stored entry is returned.
func (l *Ledger) Record(run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Time.IsZero() {
		run.Time = l.now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	c, err := l.loadLocked()
	if err != nil {
		return Run{}, err
	}
	c.Runs++
	c.Appeared += run.Appeared
	c.Qualified += run.Qualified
	c.NotQualified += run.NotQualified
	c.Issued += run.Issued
	c.Failed += run.Failed
	if run.Identity != "" {
		c.ByIdentity[run.Identity] += run.Issued
	}
	c.UpdatedAt = run.Time

	// counters only advance for runs that made it into the log
	if err := l.appendLocked(run); err != nil {
		return Run{}, fmt.Errorf("append run log: %w", err)
	}
	if err := l.saveLocked(c); err != nil {
		return Run{}, fmt.Errorf("save counters: %w", err)
	}
	l.logger.Info("run recorded",
		zap.String("run_id", run.ID),
		zap.String("identity", run.Identity),
		zap.Int("issued", run.Issued),
		zap.Int("total_issued", c.Issued),
	)
	return run, nil
}

// Counters returns the current totals.
func (l *Ledger) Counters() (Counters, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadLocked()
}

// Runs returns the most recent runs, oldest first. limit <= 0 returns all.
func (l *Ledger) Runs(limit int) ([]Run, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(filepath.Join(l.dir, RunsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var runs []Run
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var r Run
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			// a torn final write should not hide earlier history
			l.logger.Warn("skipping unreadable run log line", zap.Int("line", line), zap.Error(err))
			continue
		}
		runs = append(runs, r)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[len(runs)-limit:]
	}
	return runs, nil
}

func (l *Ledger) loadLocked() (Counters, error) {
	c := Counters{ByIdentity: map[string]int{}}
	data, err := os.ReadFile(filepath.Join(l.dir, CountersFile))
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("failed to parse %s: %w", CountersFile, err)
	}
	if c.ByIdentity == nil {
		c.ByIdentity = map[string]int{}
	}
	return c, nil
}

// saveLocked replaces the counters file atomically.
func (l *Ledger) saveLocked(c Counters) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(l.dir, CountersFile+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(l.dir, CountersFile))
}

func (l *Ledger) appendLocked(run Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(l.dir, RunsFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
