// Package detector handles target process detection.
package detector

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/retroenv/retrogolib/log"
	"github.com/shirou/gopsutil/v3/process"
)

var (
	// ErrProcessNotFound is returned if no process matches the name.
	ErrProcessNotFound = errors.New("process not found")
	// ErrAmbiguousProcess is returned if more than one process matches the name.
	ErrAmbiguousProcess = errors.New("multiple processes found")
)

// Candidate is a running process as seen by the detector.
type Candidate struct {
	PID  int
	Name string
}

// Lister lists the running processes.
type Lister interface {
	Processes(ctx context.Context) ([]Candidate, error)
	Exists(ctx context.Context, pid int) (bool, error)
}

// Detector finds the target process by its executable name.
type Detector struct {
	logger *log.Logger
	lister Lister
}

// New creates a new process detector using the system process list.
func New(logger *log.Logger) *Detector {
	return NewWithLister(logger, systemLister{})
}

// NewWithLister creates a detector over a custom process list.
func NewWithLister(logger *log.Logger, lister Lister) *Detector {
	return &Detector{
		logger: logger,
		lister: lister,
	}
}

// Find returns the id of the only process with the given executable name.
// The comparison ignores case and a missing .exe suffix.
func (d *Detector) Find(ctx context.Context, name string) (int, error) {
	if name == "" {
		return 0, fmt.Errorf("empty process name: %w", ErrProcessNotFound)
	}

	candidates, err := d.lister.Processes(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing processes: %w", err)
	}

	var matches []Candidate
	for _, c := range candidates {
		if matchName(c.Name, name) {
			matches = append(matches, c)
		}
	}

	switch len(matches) {
	case 0:
		return 0, fmt.Errorf("%s: %w", name, ErrProcessNotFound)
	case 1:
		d.logger.Debug("Found target process",
			log.String("name", matches[0].Name),
			log.Int("pid", matches[0].PID))
		return matches[0].PID, nil
	default:
		pids := make([]string, len(matches))
		for i, m := range matches {
			pids[i] = fmt.Sprint(m.PID)
		}
		return 0, fmt.Errorf("%s (pids %s): %w", name, strings.Join(pids, ", "), ErrAmbiguousProcess)
	}
}

// Alive returns whether the process still exists. Errors of the process
// list are treated as alive, the next check decides.
func (d *Detector) Alive(pid int) bool {
	exists, err := d.lister.Exists(context.Background(), pid)
	if err != nil {
		d.logger.Debug("Checking process failed", log.Int("pid", pid), log.Err(err))
		return true
	}
	return exists
}

func matchName(candidate, name string) bool {
	candidate = strings.ToLower(filepath.Base(candidate))
	name = strings.ToLower(name)
	return candidate == name || strings.TrimSuffix(candidate, ".exe") == strings.TrimSuffix(name, ".exe")
}

type systemLister struct{}

func (systemLister) Processes(ctx context.Context) ([]Candidate, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading process list: %w", err)
	}

	candidates := make([]Candidate, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// processes can exit while listing
			continue
		}
		candidates = append(candidates, Candidate{PID: int(p.Pid), Name: name})
	}
	return candidates, nil
}

func (systemLister) Exists(ctx context.Context, pid int) (bool, error) {
	exists, err := process.PidExistsWithContext(ctx, int32(pid))
	if err != nil {
		return false, fmt.Errorf("checking pid %d: %w", pid, err)
	}
	return exists, nil
}
