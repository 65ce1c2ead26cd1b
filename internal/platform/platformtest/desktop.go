// Package platformtest provides an in-memory desktop that implements every
// platform service, for tests of the dispatcher, the close-apps workflow and
// standalone mode.
package platformtest

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/psadt/psadt-client/internal/clienterr"
	"github.com/psadt/psadt-client/internal/platform"
	"github.com/psadt/psadt-client/internal/processes"
	"github.com/psadt/psadt-client/internal/wire"
)

// Window is one fake top-level window.
type Window struct {
	Info wire.WindowInfo

	Disabled    bool
	RefuseFront bool
	RefuseClose bool
	// ClosePolls is how many enumerations still show the window after a
	// close request. Negative keeps it open forever.
	ClosePolls int
	// ExitOnClose removes the owning process once the window is gone.
	ExitOnClose bool

	closing bool
}

// Desktop is a fake session: processes, windows, environment and shell.
type Desktop struct {
	mu sync.Mutex

	procs   map[int32]processes.Process
	windows []*Window

	env      map[string]string
	registry map[string]string

	Calls             []string
	Fronted           []uint64
	CloseRequests     []uint32
	Killed            []int32
	Keys              []string
	Balloons          []wire.BalloonTipOptions
	Renames           [][3]string
	Launches          []string
	ForegroundPID     uint32
	NotificationState wire.UserNotificationState
	LastInput         time.Time
	Restarts          int
	LocalSystem       bool
	LaunchExitCode    int
	// OnLaunch runs inside Launcher.Run before it returns.
	OnLaunch func(path string, args []string)
	// KillLeavesRunning keeps killed processes in the table.
	KillLeavesRunning bool
}

func NewDesktop() *Desktop {
	return &Desktop{
		procs:             make(map[int32]processes.Process),
		env:               make(map[string]string),
		registry:          make(map[string]string),
		NotificationState: wire.NotificationAcceptsNotifications,
	}
}

// Provider exposes the desktop as a full platform provider with headless
// dialogs.
func (d *Desktop) Provider() *platform.Provider {
	return &platform.Provider{
		Windows:     d,
		Shell:       d,
		Environment: (*desktopEnv)(d),
		Notifier:    d,
		Dialogs:     platform.NewHeadlessDialogs(),
		Identity:    d,
		Launcher:    d,
		Registry:    d,
	}
}

// AddProcess starts a fake process.
func (d *Desktop) AddProcess(pid int32, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.procs[pid] = processes.Process{PID: pid, Name: name, Path: `C:\Apps\` + name + ".exe"}
}

// AddWindow opens a window for an existing process. The first window added
// for a process becomes its main window.
func (d *Desktop) AddWindow(pid int32, handle uint64, title string) *Window {
	d.mu.Lock()
	defer d.mu.Unlock()
	main := handle
	for _, w := range d.windows {
		if w.Info.ParentProcessID == uint32(pid) {
			main = w.Info.ParentProcessMainWindowHandle
			break
		}
	}
	w := &Window{Info: wire.WindowInfo{
		WindowTitle:                   title,
		WindowHandle:                  handle,
		ParentProcess:                 d.procs[pid].Name,
		ParentProcessMainWindowHandle: main,
		ParentProcessID:               uint32(pid),
	}}
	d.windows = append(d.windows, w)
	return w
}

// ProcessRunning reports whether pid is still in the process table.
func (d *Desktop) ProcessRunning(pid int32) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.procs[pid]
	return ok
}

func (d *Desktop) record(call string) {
	d.Calls = append(d.Calls, call)
}

// Source returns the desktop's process table as a processes.Source.
func (d *Desktop) Source() processes.Source {
	return desktopSource{d}
}

type desktopSource struct{ d *Desktop }

func (s desktopSource) List(context.Context) ([]processes.Process, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	out := make([]processes.Process, 0, len(s.d.procs))
	for _, p := range s.d.procs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out, nil
}

func (s desktopSource) Kill(_ context.Context, pid int32) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.d.Killed = append(s.d.Killed, pid)
	if !s.d.KillLeavesRunning {
		delete(s.d.procs, pid)
	}
	return nil
}

func (s desktopSource) Running(_ context.Context, pid int32) (bool, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	_, ok := s.d.procs[pid]
	return ok, nil
}

func (d *Desktop) Windows(_ context.Context, opts wire.WindowInfoOptions) ([]wire.WindowInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("Windows")

	kept := d.windows[:0]
	for _, w := range d.windows {
		if w.closing && w.ClosePolls == 0 {
			if w.ExitOnClose {
				delete(d.procs, int32(w.Info.ParentProcessID))
			}
			continue
		}
		if w.closing && w.ClosePolls > 0 {
			w.ClosePolls--
		}
		kept = append(kept, w)
	}
	d.windows = kept

	var out []wire.WindowInfo
	for _, w := range d.windows {
		if _, alive := d.procs[int32(w.Info.ParentProcessID)]; !alive {
			continue
		}
		if platform.MatchWindow(opts, w.Info) {
			out = append(out, w.Info)
		}
	}
	return out, nil
}

func (d *Desktop) find(handle uint64) *Window {
	for _, w := range d.windows {
		if w.Info.WindowHandle == handle {
			return w
		}
	}
	return nil
}

func (d *Desktop) BringToFront(_ context.Context, handle uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(fmt.Sprintf("BringToFront(%d)", handle))
	w := d.find(handle)
	if w == nil {
		return clienterr.Newf(clienterr.OperationFailed, "The window handle [%d] does not exist.", handle)
	}
	if w.RefuseFront {
		return clienterr.Newf(clienterr.OperationFailed, "Failed to bring window [%d] to the foreground.", handle)
	}
	d.Fronted = append(d.Fronted, handle)
	d.ForegroundPID = w.Info.ParentProcessID
	return nil
}

func (d *Desktop) CloseMainWindow(_ context.Context, pid uint32) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(fmt.Sprintf("CloseMainWindow(%d)", pid))
	d.CloseRequests = append(d.CloseRequests, pid)
	for _, w := range d.windows {
		if w.Info.ParentProcessID != pid || !w.Info.IsMainWindow() {
			continue
		}
		if w.RefuseClose || w.Disabled {
			return false, nil
		}
		if !w.closing {
			w.closing = true
			if w.ClosePolls < 0 {
				w.closing = false
			}
		}
		return true, nil
	}
	return false, nil
}

func (d *Desktop) IsWindowEnabled(_ context.Context, handle uint64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w := d.find(handle)
	if w == nil {
		return false, clienterr.Newf(clienterr.InvalidArguments, "The window handle [%d] does not exist.", handle)
	}
	return !w.Disabled, nil
}

func (d *Desktop) SendKeys(_ context.Context, handle uint64, keys string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := platform.ParseKeys(keys); err != nil {
		return clienterr.Wrap(clienterr.InvalidArguments, "The specified keys are invalid.", err)
	}
	d.Keys = append(d.Keys, fmt.Sprintf("%d:%s", handle, keys))
	return nil
}

func (d *Desktop) ForegroundProcessID(context.Context) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ForegroundPID, nil
}

func (d *Desktop) MinimizeAllWindows(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("MinimizeAllWindows")
	return nil
}

func (d *Desktop) RestoreAllWindows(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("RestoreAllWindows")
	return nil
}

func (d *Desktop) RefreshDesktopAndEnvironmentVariables(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("RefreshDesktopAndEnvironmentVariables")
	return nil
}

func (d *Desktop) UserNotificationState(context.Context) (wire.UserNotificationState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.NotificationState, nil
}

func (d *Desktop) LastInputTime(context.Context) (time.Time, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.LastInput, nil
}

func (d *Desktop) GroupPolicyUpdate(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("GroupPolicyUpdate")
	return nil
}

func (d *Desktop) Restart(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Restarts++
	return nil
}

func (d *Desktop) ShowBalloonTip(_ context.Context, opts wire.BalloonTipOptions) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Balloons = append(d.Balloons, opts)
	return nil
}

func (d *Desktop) IsLocalSystem(context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.LocalSystem, nil
}

// SetRegistryValue stores a string value under keyPath.
func (d *Desktop) SetRegistryValue(keyPath, name, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.registry[keyPath+`\`+name] = value
}

func (d *Desktop) GetString(_ context.Context, keyPath, valueName string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.registry[keyPath+`\`+valueName]
	if !ok {
		return "", clienterr.Newf(clienterr.InvalidArguments, "The registry value [%s\\%s] does not exist.", keyPath, valueName)
	}
	return v, nil
}

func (d *Desktop) RenameKey(_ context.Context, parentPath, from, to string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Renames = append(d.Renames, [3]string{parentPath, from, to})
	return nil
}

func (d *Desktop) Run(_ context.Context, path string, args []string, _ string) (int, error) {
	d.mu.Lock()
	d.Launches = append(d.Launches, path)
	hook, code := d.OnLaunch, d.LaunchExitCode
	d.mu.Unlock()
	if hook != nil {
		hook(path, slices.Clone(args))
	}
	return code, nil
}

// Env returns the per-user environment as stored.
func (d *Desktop) Env(name string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.env[name]
	return v, ok
}

type desktopEnv Desktop

func (e *desktopEnv) Get(_ context.Context, name string) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.env[name]
	return v, ok, nil
}

func (e *desktopEnv) Set(_ context.Context, name, value string, _ bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.env[name] = value
	return nil
}

func (e *desktopEnv) Remove(_ context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.env, name)
	return nil
}
