// Package platform declares the OS services the dispatcher and the close-apps
// workflow depend on. Native implementations register themselves through
// NewProviderFunc from an init() in their own package.
package platform

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/psadt/psadt-client/internal/clienterr"
	"github.com/psadt/psadt-client/internal/wire"
)

// WindowManager enumerates and drives top-level windows.
type WindowManager interface {
	Windows(ctx context.Context, opts wire.WindowInfoOptions) ([]wire.WindowInfo, error)
	BringToFront(ctx context.Context, handle uint64) error
	// CloseMainWindow posts a close request to the process's main window. It
	// returns false when the window refuses it, typically behind a modal dialog.
	CloseMainWindow(ctx context.Context, pid uint32) (bool, error)
	IsWindowEnabled(ctx context.Context, handle uint64) (bool, error)
	SendKeys(ctx context.Context, handle uint64, keys string) error
	ForegroundProcessID(ctx context.Context) (uint32, error)
}

// Shell covers session-wide desktop operations.
type Shell interface {
	MinimizeAllWindows(ctx context.Context) error
	RestoreAllWindows(ctx context.Context) error
	RefreshDesktopAndEnvironmentVariables(ctx context.Context) error
	UserNotificationState(ctx context.Context) (wire.UserNotificationState, error)
	// LastInputTime returns when the user last provided input.
	LastInputTime(ctx context.Context) (time.Time, error)
	GroupPolicyUpdate(ctx context.Context) error
	Restart(ctx context.Context) error
}

// Environment reads and writes the current user's persistent environment.
type Environment interface {
	Get(ctx context.Context, name string) (value string, ok bool, err error)
	Set(ctx context.Context, name, value string, expandable bool) error
	Remove(ctx context.Context, name string) error
}

// Notifier shows tray notifications.
type Notifier interface {
	ShowBalloonTip(ctx context.Context, opts wire.BalloonTipOptions) error
}

// ProgressUpdate changes only the non-nil fields of an open progress dialog.
type ProgressUpdate struct {
	Message       *string
	DetailMessage *string
	Percentage    *float64
	Alignment     *wire.MessageAlignment
}

// CloseAppsSource feeds the close-apps dialog its live process list.
type CloseAppsSource interface {
	ProcessNames(ctx context.Context) ([]string, error)
}

// Dialogs renders dialogs. Options are passed through untouched.
type Dialogs interface {
	ShowModal(ctx context.Context, kind wire.DialogType, style wire.DialogStyle, opts *structpb.Struct, closeApps CloseAppsSource) (*structpb.Value, error)
	ShowProgress(ctx context.Context, style wire.DialogStyle, opts *structpb.Struct) error
	ProgressOpen(ctx context.Context) bool
	UpdateProgress(ctx context.Context, update ProgressUpdate) error
	CloseProgress(ctx context.Context) error
}

// Identity answers questions about the account the client runs as.
type Identity interface {
	IsLocalSystem(ctx context.Context) (bool, error)
}

// Launcher starts a process and waits for it.
type Launcher interface {
	Run(ctx context.Context, path string, args []string, dir string) (exitCode int, err error)
}

// Registry reads string values and renames subkeys. Paths use the
// HKEY_*\sub\key form.
type Registry interface {
	GetString(ctx context.Context, keyPath, valueName string) (string, error)
	RenameKey(ctx context.Context, parentPath, from, to string) error
}

// Provider bundles all platform backends for the current OS.
type Provider struct {
	Windows     WindowManager
	Shell       Shell
	Environment Environment
	Notifier    Notifier
	Dialogs     Dialogs
	Identity    Identity
	Launcher    Launcher
	Registry    Registry
}

// ErrUnsupported is returned by operations with no implementation on this OS.
var ErrUnsupported = clienterr.New(clienterr.PlatformUnsupported,
	fmt.Sprintf("The requested operation is not supported on %s/%s.", runtime.GOOS, runtime.GOARCH))

// NewProviderFunc is set by platform-specific packages via init().
var NewProviderFunc func() (*Provider, error)

// NewProvider returns a Provider for the current OS. Services the OS package
// did not supply answer with ErrUnsupported.
func NewProvider() (*Provider, error) {
	if NewProviderFunc == nil {
		return Fill(&Provider{}), nil
	}
	p, err := NewProviderFunc()
	if err != nil {
		return nil, err
	}
	return Fill(p), nil
}

// Fill replaces nil services in p with portable fallbacks.
func Fill(p *Provider) *Provider {
	var u Unsupported
	if p.Windows == nil {
		p.Windows = u
	}
	if p.Shell == nil {
		p.Shell = u
	}
	if p.Environment == nil {
		p.Environment = u
	}
	if p.Notifier == nil {
		p.Notifier = u
	}
	if p.Dialogs == nil {
		p.Dialogs = NewHeadlessDialogs()
	}
	if p.Identity == nil {
		p.Identity = u
	}
	if p.Launcher == nil {
		p.Launcher = ExecLauncher{}
	}
	if p.Registry == nil {
		p.Registry = u
	}
	return p
}
