// Package processes tracks the running processes that match a set of
// process definitions for the close-apps workflow.
package processes

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/psadt/psadt-client/internal/wire"
)

// DefaultPollInterval is how often Start refreshes the tracked list.
const DefaultPollInterval = time.Second

var (
	ErrClosed         = errors.New("running process service closed")
	ErrAlreadyPolling = errors.New("the polling task is already running")
	ErrNotPolling     = errors.New("the polling task is not running")
)

// RunningProcess is a live process matched to the definition that selected it.
type RunningProcess struct {
	Process
	Description string
}

// ProcessToClose is one entry in the user-facing list, grouped by description.
type ProcessToClose struct {
	Name        string
	Description string
	Path        string
}

// Service matches live processes against definitions. It is owned by a
// single pipe session; the mutex only guards against its own polling loop.
type Service struct {
	defs   []wire.ProcessDefinition
	source Source

	mu        sync.Mutex
	running   []RunningProcess
	toClose   []ProcessToClose
	lastDescs []string
	closed    bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService builds a service over defs. A nil source reads the system table.
func NewService(defs []wire.ProcessDefinition, source Source) *Service {
	if source == nil {
		source = SystemSource{}
	}
	return &Service{defs: slices.Clone(defs), source: source}
}

// Definitions returns the definitions the service matches against.
func (s *Service) Definitions() []wire.ProcessDefinition {
	return slices.Clone(s.defs)
}

// RunningProcesses refreshes and returns the matched processes in
// definition order.
func (s *Service) RunningProcesses(ctx context.Context) ([]RunningProcess, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refreshLocked(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(s.running), nil
}

// ProcessesToClose refreshes and returns one entry per distinct description.
func (s *Service) ProcessesToClose(ctx context.Context) ([]ProcessToClose, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refreshLocked(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(s.toClose), nil
}

// ProcessNames lists the descriptions shown by the close-apps dialog.
func (s *Service) ProcessNames(ctx context.Context) ([]string, error) {
	list, err := s.ProcessesToClose(ctx)
	if err != nil {
		return nil, err
	}
	return descriptions(list), nil
}

// Kill terminates one tracked process. A process that already exited is not
// an error.
func (s *Service) Kill(ctx context.Context, pid int32) error {
	return s.source.Kill(ctx, pid)
}

// WaitForExit blocks until none of pids is running or timeout elapses.
func (s *Service) WaitForExit(ctx context.Context, pids []int32, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	pending := slices.Clone(pids)
	for {
		remaining := pending[:0]
		for _, pid := range pending {
			alive, err := s.source.Running(ctx, pid)
			if err != nil || alive {
				remaining = append(remaining, pid)
			}
		}
		pending = remaining
		if len(pending) == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("processes %v still running after %s", pending, timeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// Start polls the process table every interval and calls onChange whenever
// the set of descriptions to close changes.
func (s *Service) Start(ctx context.Context, interval time.Duration, onChange func([]ProcessToClose)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.cancel != nil {
		return ErrAlreadyPolling
	}

	pollCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.poll(pollCtx, interval, onChange, s.done)
	return nil
}

// Stop cancels polling and waits for the loop to exit.
func (s *Service) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return ErrNotPolling
	}
	cancel()
	<-done
	return nil
}

// Polling reports whether Start is active.
func (s *Service) Polling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Close stops polling if needed. The service is unusable afterwards.
func (s *Service) Close() error {
	if s.Polling() {
		_ = s.Stop()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.running, s.toClose = nil, nil
	return nil
}

func (s *Service) poll(ctx context.Context, interval time.Duration, onChange func([]ProcessToClose), done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s.mu.Lock()
		err := s.refreshLocked(ctx)
		var (
			changed bool
			snap    []ProcessToClose
		)
		if err == nil {
			descs := descriptions(s.toClose)
			if !slices.Equal(descs, s.lastDescs) {
				s.lastDescs = descs
				changed = true
				snap = slices.Clone(s.toClose)
			}
		}
		s.mu.Unlock()

		if changed && onChange != nil {
			onChange(snap)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) refreshLocked(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	procs, err := s.source.List(ctx)
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}
	s.running = Match(s.defs, procs)
	s.toClose = group(s.running)
	return nil
}

// Match returns the processes selected by defs, in definition order. A
// definition whose name contains a path separator matches the full
// executable path; otherwise the bare name is compared. Both comparisons
// ignore case and a trailing ".exe". A process is reported once, against the
// first definition that selects it.
func Match(defs []wire.ProcessDefinition, procs []Process) []RunningProcess {
	var out []RunningProcess
	seen := make(map[int32]bool, len(procs))
	for _, def := range defs {
		want := TrimExecutableExt(strings.TrimSpace(def.Name))
		if want == "" {
			continue
		}
		byPath := strings.ContainsAny(want, `\/`)
		for _, p := range procs {
			if seen[p.PID] {
				continue
			}
			got := p.Name
			if byPath {
				got = TrimExecutableExt(p.Path)
			}
			if !strings.EqualFold(got, want) {
				continue
			}
			seen[p.PID] = true
			desc := strings.TrimSpace(def.Description)
			if desc == "" {
				desc = p.Name
			}
			out = append(out, RunningProcess{Process: p, Description: desc})
		}
	}
	return out
}

func group(running []RunningProcess) []ProcessToClose {
	var out []ProcessToClose
	seen := make(map[string]bool, len(running))
	for _, rp := range running {
		if seen[rp.Description] {
			continue
		}
		seen[rp.Description] = true
		out = append(out, ProcessToClose{Name: rp.Name, Description: rp.Description, Path: rp.Path})
	}
	return out
}

func descriptions(list []ProcessToClose) []string {
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = p.Description
	}
	return out
}
