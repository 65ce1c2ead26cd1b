package platform

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/psadt/psadt-client/internal/clienterr"
	"github.com/psadt/psadt-client/internal/wire"
)

// Unsupported answers every call with ErrUnsupported.
type Unsupported struct{}

func (Unsupported) Windows(context.Context, wire.WindowInfoOptions) ([]wire.WindowInfo, error) {
	return nil, ErrUnsupported
}
func (Unsupported) BringToFront(context.Context, uint64) error { return ErrUnsupported }
func (Unsupported) CloseMainWindow(context.Context, uint32) (bool, error) {
	return false, ErrUnsupported
}
func (Unsupported) IsWindowEnabled(context.Context, uint64) (bool, error) {
	return false, ErrUnsupported
}
func (Unsupported) SendKeys(context.Context, uint64, string) error { return ErrUnsupported }
func (Unsupported) ForegroundProcessID(context.Context) (uint32, error) {
	return 0, ErrUnsupported
}

func (Unsupported) MinimizeAllWindows(context.Context) error { return ErrUnsupported }
func (Unsupported) RestoreAllWindows(context.Context) error  { return ErrUnsupported }
func (Unsupported) RefreshDesktopAndEnvironmentVariables(context.Context) error {
	return ErrUnsupported
}
func (Unsupported) UserNotificationState(context.Context) (wire.UserNotificationState, error) {
	return 0, ErrUnsupported
}
func (Unsupported) LastInputTime(context.Context) (time.Time, error) {
	return time.Time{}, ErrUnsupported
}
func (Unsupported) GroupPolicyUpdate(context.Context) error { return ErrUnsupported }
func (Unsupported) Restart(context.Context) error           { return ErrUnsupported }

func (Unsupported) Get(context.Context, string) (string, bool, error) {
	return "", false, ErrUnsupported
}
func (Unsupported) Set(context.Context, string, string, bool) error { return ErrUnsupported }
func (Unsupported) Remove(context.Context, string) error            { return ErrUnsupported }
func (Unsupported) ShowBalloonTip(context.Context, wire.BalloonTipOptions) error {
	return ErrUnsupported
}

func (Unsupported) IsLocalSystem(context.Context) (bool, error) { return false, nil }

func (Unsupported) GetString(context.Context, string, string) (string, error) {
	return "", ErrUnsupported
}
func (Unsupported) RenameKey(context.Context, string, string, string) error { return ErrUnsupported }

// ExecLauncher runs a child process with os/exec.
type ExecLauncher struct{}

func (ExecLauncher) Run(ctx context.Context, path string, args []string, dir string) (int, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = dir
	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, err
	}
	return 0, nil
}

// HeadlessDialogs renders nothing. It keeps progress dialog state so the
// progress commands stay coherent, and reports modal dialogs as unsupported.
type HeadlessDialogs struct {
	mu       sync.Mutex
	open     bool
	style    wire.DialogStyle
	options  *structpb.Struct
	progress ProgressUpdate
}

func NewHeadlessDialogs() *HeadlessDialogs {
	return &HeadlessDialogs{}
}

func (d *HeadlessDialogs) ShowModal(_ context.Context, kind wire.DialogType, _ wire.DialogStyle, _ *structpb.Struct, _ CloseAppsSource) (*structpb.Value, error) {
	return nil, clienterr.Newf(clienterr.UnsupportedDialog, "The specified DialogType of [%s] is not supported.", kind)
}

func (d *HeadlessDialogs) ShowProgress(_ context.Context, style wire.DialogStyle, opts *structpb.Struct) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		return clienterr.New(clienterr.InvalidRequest, "A progress dialog is already open.")
	}
	d.open, d.style, d.options = true, style, opts
	d.progress = ProgressUpdate{}
	return nil
}

func (d *HeadlessDialogs) ProgressOpen(context.Context) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

func (d *HeadlessDialogs) UpdateProgress(_ context.Context, update ProgressUpdate) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return clienterr.New(clienterr.InvalidRequest, "The progress dialog is not open.")
	}
	if update.Message != nil {
		d.progress.Message = update.Message
	}
	if update.DetailMessage != nil {
		d.progress.DetailMessage = update.DetailMessage
	}
	if update.Percentage != nil {
		d.progress.Percentage = update.Percentage
	}
	if update.Alignment != nil {
		d.progress.Alignment = update.Alignment
	}
	return nil
}

// Progress returns the accumulated state of the open progress dialog.
func (d *HeadlessDialogs) Progress() ProgressUpdate {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.progress
}

func (d *HeadlessDialogs) CloseProgress(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	d.options = nil
	return nil
}

// MatchWindow reports whether w passes every non-empty filter in opts. Title
// filters match a case-insensitive substring; process filters ignore case
// and a trailing ".exe".
func MatchWindow(opts wire.WindowInfoOptions, w wire.WindowInfo) bool {
	if len(opts.WindowTitleFilter) > 0 && !anyString(opts.WindowTitleFilter, func(f string) bool {
		return strings.Contains(strings.ToLower(w.WindowTitle), strings.ToLower(f))
	}) {
		return false
	}
	if len(opts.WindowHandleFilter) > 0 && !contains(opts.WindowHandleFilter, w.WindowHandle) {
		return false
	}
	if len(opts.ParentProcessFilter) > 0 && !anyString(opts.ParentProcessFilter, func(f string) bool {
		return strings.EqualFold(strings.TrimSuffix(strings.ToLower(f), ".exe"), w.ParentProcess)
	}) {
		return false
	}
	if len(opts.ParentProcessIDFilter) > 0 && !contains(opts.ParentProcessIDFilter, w.ParentProcessID) {
		return false
	}
	if len(opts.ParentProcessMainWindowHandleFilter) > 0 && !contains(opts.ParentProcessMainWindowHandleFilter, w.ParentProcessMainWindowHandle) {
		return false
	}
	return true
}

func anyString(list []string, fn func(string) bool) bool {
	for _, s := range list {
		if fn(s) {
			return true
		}
	}
	return false
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
