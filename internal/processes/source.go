package processes

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// Process is a snapshot of one running OS process.
type Process struct {
	PID  int32
	Name string
	Path string
}

// Source lists and terminates OS processes.
type Source interface {
	List(ctx context.Context) ([]Process, error)
	Kill(ctx context.Context, pid int32) error
	Running(ctx context.Context, pid int32) (bool, error)
}

// SystemSource reads the live process table.
type SystemSource struct{}

func (SystemSource) List(ctx context.Context) ([]Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Process, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			// exited or inaccessible
			continue
		}
		exe, _ := p.ExeWithContext(ctx)
		out = append(out, Process{PID: p.Pid, Name: TrimExecutableExt(name), Path: exe})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out, nil
}

func (SystemSource) Kill(ctx context.Context, pid int32) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return nil
		}
		return err
	}
	if err := p.KillWithContext(ctx); err != nil {
		if running, rerr := p.IsRunningWithContext(ctx); rerr == nil && !running {
			return nil
		}
		return err
	}
	return nil
}

func (SystemSource) Running(ctx context.Context, pid int32) (bool, error) {
	return process.PidExistsWithContext(ctx, pid)
}

// ParentProcessName returns the executable name of this process's parent,
// without its extension.
func ParentProcessName(ctx context.Context) (string, error) {
	self, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return "", err
	}
	parent, err := self.ParentWithContext(ctx)
	if err != nil {
		return "", err
	}
	name, err := parent.NameWithContext(ctx)
	if err != nil {
		return "", err
	}
	return TrimExecutableExt(name), nil
}

// TrimExecutableExt strips a trailing ".exe" in any case.
func TrimExecutableExt(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".exe") {
		return name[:len(name)-len(".exe")]
	}
	return name
}
