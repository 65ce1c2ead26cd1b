// Package closeapps asks the tracked applications of a pipe session to close
// their main windows, and kills the windowless ones when every window
// cooperated.
package closeapps

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/psadt/psadt-client/internal/clienterr"
	"github.com/psadt/psadt-client/internal/platform"
	"github.com/psadt/psadt-client/internal/processes"
	"github.com/psadt/psadt-client/internal/wire"
)

const (
	DefaultPollInterval    = 2 * time.Second
	DefaultKillWaitTimeout = 10 * time.Second
)

// Processes is the part of processes.Service the orchestrator drives.
type Processes interface {
	RunningProcesses(ctx context.Context) ([]processes.RunningProcess, error)
	Kill(ctx context.Context, pid int32) error
	WaitForExit(ctx context.Context, pids []int32, timeout time.Duration) error
}

// Result summarizes one run. Handles and pids are listed in the order they
// were acted on.
type Result struct {
	Closed   []uint64
	TimedOut []uint64
	Failed   []uint64
	Killed   []int32
}

// Orchestrator runs the close loop for one session.
type Orchestrator struct {
	procs   Processes
	windows platform.WindowManager
	logger  *slog.Logger

	pollInterval time.Duration
	killWait     time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

type Option func(*Orchestrator)

func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithKillWaitTimeout bounds the wait for killed processes to exit.
func WithKillWaitTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.killWait = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New builds an orchestrator over a session's process service and the
// desktop's window manager.
func New(procs Processes, windows platform.WindowManager, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		procs:        procs,
		windows:      windows,
		logger:       slog.New(slog.DiscardHandler),
		pollInterval: DefaultPollInterval,
		killWait:     DefaultKillWaitTimeout,
		now:          time.Now,
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run closes main windows until none is left to try, giving each window up
// to timeout. A window that refuses to come to the front or to accept the
// close request is never tried again within this run. A window that merely
// outlives its timeout is retried once on the next pass and then skipped, so
// Run always ends even when a window never closes.
func (o *Orchestrator) Run(ctx context.Context, timeout time.Duration) (Result, error) {
	var res Result
	failures := make(map[uint64]struct{})
	timeouts := make(map[uint64]int)

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		running, err := o.procs.RunningProcesses(ctx)
		if err != nil {
			return res, clienterr.Wrap(clienterr.OperationFailed, "Failed to refresh the running processes.", err)
		}
		if len(running) == 0 {
			break
		}
		candidates, err := o.candidates(ctx, running, failures, timeouts)
		if err != nil {
			return res, err
		}
		if len(candidates) == 0 {
			break
		}

		for _, w := range candidates {
			o.logger.InfoContext(ctx, fmt.Sprintf("Stopping process [%s] with window title [%s] and prompt to save if there is work to be saved (timeout in [%s])...", w.ParentProcess, w.WindowTitle, timeout))

			if err := o.windows.BringToFront(ctx, w.WindowHandle); err != nil {
				failures[w.WindowHandle] = struct{}{}
				res.Failed = append(res.Failed, w.WindowHandle)
				o.logger.ErrorContext(ctx, fmt.Sprintf("Failed to bring window [%s] to the foreground: %v", w.WindowTitle, err))
				continue
			}

			accepted, err := o.windows.CloseMainWindow(ctx, w.ParentProcessID)
			if err != nil || !accepted {
				failures[w.WindowHandle] = struct{}{}
				res.Failed = append(res.Failed, w.WindowHandle)
				msg := fmt.Sprintf("Failed to close the main window of process [%s] with window title [%s] because the main window may be disabled due to a modal dialog being shown.", w.ParentProcess, w.WindowTitle)
				if err != nil {
					msg = fmt.Sprintf("Failed to close window [%s] for process [%s]: %v", w.WindowTitle, w.ParentProcess, err)
				}
				o.logger.ErrorContext(ctx, msg)
				continue
			}

			closed, err := o.waitForClose(ctx, w.WindowHandle, timeout)
			if err != nil {
				return res, err
			}
			if closed {
				res.Closed = append(res.Closed, w.WindowHandle)
				o.logger.InfoContext(ctx, fmt.Sprintf("Window [%s] for process [%s] was successfully closed.", w.WindowTitle, w.ParentProcess))
				continue
			}
			timeouts[w.WindowHandle]++
			res.TimedOut = append(res.TimedOut, w.WindowHandle)
			o.logger.WarnContext(ctx, fmt.Sprintf("Exceeded the [%g] seconds timeout value for the user to save work associated with process [%s] with window title [%s].", timeout.Seconds(), w.ParentProcess, w.WindowTitle))
		}
	}

	if len(failures) > 0 {
		return res, nil
	}
	killed, err := o.killWindowless(ctx)
	res.Killed = killed
	return res, err
}

// candidates lists the main windows of the running processes that are
// still worth a close attempt.
func (o *Orchestrator) candidates(ctx context.Context, running []processes.RunningProcess, failures map[uint64]struct{}, timeouts map[uint64]int) ([]wire.WindowInfo, error) {
	pids := make([]uint32, 0, len(running))
	for _, rp := range running {
		pids = append(pids, uint32(rp.PID))
	}
	windows, err := o.windows.Windows(ctx, wire.WindowInfoOptions{ParentProcessIDFilter: pids})
	if err != nil {
		return nil, clienterr.Wrap(clienterr.OperationFailed, "Failed to enumerate the process windows.", err)
	}

	var out []wire.WindowInfo
	for _, w := range windows {
		if !w.IsMainWindow() {
			continue
		}
		if _, failed := failures[w.WindowHandle]; failed {
			continue
		}
		if timeouts[w.WindowHandle] > 1 {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

// waitForClose polls until handle disappears or timeout elapses.
func (o *Orchestrator) waitForClose(ctx context.Context, handle uint64, timeout time.Duration) (bool, error) {
	deadline := o.now().Add(timeout)
	for {
		open, err := o.windows.Windows(ctx, wire.WindowInfoOptions{WindowHandleFilter: []uint64{handle}})
		if err != nil {
			return false, clienterr.Wrap(clienterr.OperationFailed, "Failed to enumerate the process windows.", err)
		}
		if len(open) == 0 {
			return true, nil
		}
		remaining := deadline.Sub(o.now())
		if remaining <= 0 {
			return false, nil
		}
		if err := o.sleep(ctx, min(o.pollInterval, remaining)); err != nil {
			return false, err
		}
	}
}

// killWindowless terminates the tracked processes that have no main window
// left and waits for them to exit.
func (o *Orchestrator) killWindowless(ctx context.Context) ([]int32, error) {
	running, err := o.procs.RunningProcesses(ctx)
	if err != nil {
		return nil, clienterr.Wrap(clienterr.OperationFailed, "Failed to refresh the running processes.", err)
	}
	if len(running) == 0 {
		return nil, nil
	}
	windows, err := o.windows.Windows(ctx, wire.WindowInfoOptions{})
	if err != nil {
		return nil, clienterr.Wrap(clienterr.OperationFailed, "Failed to enumerate the process windows.", err)
	}
	withWindow := make(map[uint32]bool, len(windows))
	for _, w := range windows {
		if w.IsMainWindow() {
			withWindow[w.ParentProcessID] = true
		}
	}

	var (
		errs   *multierror.Error
		killed []int32
	)
	for _, rp := range running {
		if withWindow[uint32(rp.PID)] {
			continue
		}
		o.logger.InfoContext(ctx, fmt.Sprintf("Stopping process %s...", rp.Name))
		if err := o.procs.Kill(ctx, rp.PID); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("kill %s (%d): %w", rp.Name, rp.PID, err))
			continue
		}
		killed = append(killed, rp.PID)
	}
	if len(killed) > 0 {
		if err := o.procs.WaitForExit(ctx, slices.Clone(killed), o.killWait); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return killed, clienterr.Wrap(clienterr.OperationFailed, "Failed to stop the remaining processes.", err)
	}
	return killed, nil
}
