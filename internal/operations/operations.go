// Package operations holds the client-side operations shared by the pipe
// dispatcher and standalone mode. Every method validates its input, calls
// the platform provider and returns a value the wire codec can encode.
package operations

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/psadt/psadt-client/internal/clienterr"
	"github.com/psadt/psadt-client/internal/platform"
	"github.com/psadt/psadt-client/internal/wire"
)

// UnsetSentinel is returned by GetEnvironmentVariable for a variable that
// does not exist, so callers can tell it apart from an empty value.
const UnsetSentinel = "\x1f"

// DefaultListSeparator joins list-valued environment variables.
const DefaultListSeparator = ";"

// Service runs operations against one platform provider.
type Service struct {
	p         *platform.Provider
	separator string
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithListSeparator sets the separator used by Append and Remove.
func WithListSeparator(sep string) Option {
	return func(s *Service) {
		if sep != "" {
			s.separator = sep
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds a Service. Nil services in p are filled with fallbacks.
func New(p *platform.Provider, opts ...Option) *Service {
	if p == nil {
		p = &platform.Provider{}
	}
	s := &Service{
		p:         platform.Fill(p),
		separator: DefaultListSeparator,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provider returns the platform services the operations run against.
func (s *Service) Provider() *platform.Provider {
	return s.p
}

// ParseDialog validates a dialog type and style pair.
func ParseDialog(dialogType, dialogStyle string) (wire.DialogType, wire.DialogStyle, error) {
	if strings.TrimSpace(dialogType) == "" {
		return 0, 0, clienterr.New(clienterr.NoDialogType, "No DialogType was provided.")
	}
	kind, ok := wire.ParseDialogType(dialogType)
	if !ok {
		return 0, 0, clienterr.Newf(clienterr.InvalidDialog, "The specified DialogType of [%s] is invalid.", dialogType)
	}
	style, err := ParseDialogStyle(dialogStyle)
	if err != nil {
		return 0, 0, err
	}
	return kind, style, nil
}

func ParseDialogStyle(dialogStyle string) (wire.DialogStyle, error) {
	if strings.TrimSpace(dialogStyle) == "" {
		return 0, clienterr.New(clienterr.NoDialogStyle, "No DialogStyle was provided.")
	}
	style, ok := wire.ParseDialogStyle(dialogStyle)
	if !ok {
		return 0, clienterr.Newf(clienterr.InvalidDialogStyle, "The specified DialogStyle of [%s] is invalid.", dialogStyle)
	}
	return style, nil
}

// ShowModalDialog renders a modal dialog and returns its result. A
// CloseAppsDialog needs the live process list of an initialized session.
func (s *Service) ShowModalDialog(ctx context.Context, req wire.ShowModalDialogRequest, closeApps platform.CloseAppsSource) (*structpb.Value, error) {
	kind, style, err := ParseDialog(req.DialogType, req.DialogStyle)
	if err != nil {
		return nil, err
	}
	if req.Options == nil {
		return nil, clienterr.New(clienterr.NoOptions, "The required options were not provided.")
	}
	if kind == wire.CloseAppsDialog && closeApps == nil {
		return nil, clienterr.New(clienterr.InvalidRequest, "A CloseAppsDialog can only be shown after InitCloseAppsDialog was called with process definitions.")
	}

	s.logger.DebugContext(ctx, "showing modal dialog", "dialog_type", kind.String(), "dialog_style", style.String())
	result, err := s.p.Dialogs.ShowModal(ctx, kind, style, req.Options, closeApps)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = structpb.NewNullValue()
	}
	return result, nil
}

// ShowProgressDialog opens the progress dialog and reports whether it is open.
func (s *Service) ShowProgressDialog(ctx context.Context, req wire.ShowProgressDialogRequest) (bool, error) {
	style, err := ParseDialogStyle(req.DialogStyle)
	if err != nil {
		return false, err
	}
	if req.Options == nil {
		return false, clienterr.New(clienterr.NoOptions, "The required options were not provided.")
	}
	if err := s.p.Dialogs.ShowProgress(ctx, style, req.Options); err != nil {
		return false, err
	}
	return s.p.Dialogs.ProgressOpen(ctx), nil
}

func (s *Service) ProgressDialogOpen(ctx context.Context) bool {
	return s.p.Dialogs.ProgressOpen(ctx)
}

// UpdateProgressDialog changes the fields that are set in req.
func (s *Service) UpdateProgressDialog(ctx context.Context, req wire.UpdateProgressDialogRequest) (bool, error) {
	var update platform.ProgressUpdate
	if req.Message != "" {
		update.Message = &req.Message
	}
	if req.DetailMessage != "" {
		update.DetailMessage = &req.DetailMessage
	}
	if req.Percentage != nil {
		pct := *req.Percentage
		if pct < 0 || pct > 100 {
			return false, clienterr.Newf(clienterr.InvalidOptions, "The specified ProgressPercentage of [%g] is outside 0-100.", pct)
		}
		update.Percentage = &pct
	}
	if req.Alignment != "" {
		align, ok := wire.ParseMessageAlignment(req.Alignment)
		if !ok {
			return false, clienterr.Newf(clienterr.InvalidOptions, "The specified MessageAlignment of [%s] is invalid.", req.Alignment)
		}
		update.Alignment = &align
	}
	if err := s.p.Dialogs.UpdateProgress(ctx, update); err != nil {
		return false, err
	}
	return true, nil
}

// CloseProgressDialog closes the progress dialog and reports whether it is
// now closed.
func (s *Service) CloseProgressDialog(ctx context.Context) (bool, error) {
	if err := s.p.Dialogs.CloseProgress(ctx); err != nil {
		return false, err
	}
	return !s.p.Dialogs.ProgressOpen(ctx), nil
}

func (s *Service) ShowBalloonTip(ctx context.Context, opts wire.BalloonTipOptions) (bool, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return false, clienterr.New(clienterr.InvalidOptions, "BalloonTipTitle value is null or invalid.")
	}
	if strings.TrimSpace(opts.Text) == "" {
		return false, clienterr.New(clienterr.InvalidOptions, "BalloonTipText value is null or invalid.")
	}
	if opts.Timeout < 0 {
		return false, clienterr.New(clienterr.InvalidOptions, "BalloonTipTime value is null or invalid.")
	}
	if err := s.p.Notifier.ShowBalloonTip(ctx, opts); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) MinimizeAllWindows(ctx context.Context) (bool, error) {
	if err := s.p.Shell.MinimizeAllWindows(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) RestoreAllWindows(ctx context.Context) (bool, error) {
	if err := s.p.Shell.RestoreAllWindows(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// SendKeys focuses the window and types keys into it. A disabled window is
// usually blocked behind a modal dialog and is refused.
func (s *Service) SendKeys(ctx context.Context, req wire.SendKeysRequest) (bool, error) {
	if req.WindowHandle == 0 {
		return false, clienterr.New(clienterr.InvalidOptions, "WindowHandle value is null or invalid.")
	}
	if req.Keys == "" {
		return false, clienterr.New(clienterr.InvalidOptions, "Keys value is null or invalid.")
	}
	if err := s.p.Windows.BringToFront(ctx, req.WindowHandle); err != nil {
		return false, err
	}
	enabled, err := s.p.Windows.IsWindowEnabled(ctx, req.WindowHandle)
	if err != nil {
		return false, err
	}
	if !enabled {
		return false, clienterr.New(clienterr.WindowNotEnabled, "Unable to send keys to window because it may be disabled due to a modal dialog being shown.")
	}
	if err := s.p.Windows.SendKeys(ctx, req.WindowHandle, req.Keys); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) GetProcessWindowInfo(ctx context.Context, opts wire.WindowInfoOptions) ([]wire.WindowInfo, error) {
	windows, err := s.p.Windows.Windows(ctx, opts)
	if err != nil {
		return nil, err
	}
	if windows == nil {
		windows = []wire.WindowInfo{}
	}
	return windows, nil
}

func (s *Service) RefreshDesktopAndEnvironmentVariables(ctx context.Context) (bool, error) {
	if err := s.p.Shell.RefreshDesktopAndEnvironmentVariables(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) GetUserNotificationState(ctx context.Context) (wire.UserNotificationState, error) {
	return s.p.Shell.UserNotificationState(ctx)
}

func (s *Service) GetForegroundWindowProcessID(ctx context.Context) (uint32, error) {
	return s.p.Windows.ForegroundProcessID(ctx)
}

func (s *Service) GroupPolicyUpdate(ctx context.Context) (bool, error) {
	if err := s.p.Shell.GroupPolicyUpdate(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// GetLastInputTime returns when the interactive user last provided input.
func (s *Service) GetLastInputTime(ctx context.Context) (time.Time, error) {
	return s.p.Shell.LastInputTime(ctx)
}

// dotNetEpochTicks is 1970-01-01 in 100ns ticks since 0001-01-01.
const dotNetEpochTicks = 621355968000000000

// Ticks renders t in the host's 100ns tick scale.
func Ticks(t time.Time) int64 {
	return t.UTC().UnixNano()/100 + dotNetEpochTicks
}

// SilentRestart waits delay, then restarts the computer.
func (s *Service) SilentRestart(ctx context.Context, delay time.Duration) (bool, error) {
	if delay < 0 {
		return false, clienterr.New(clienterr.InvalidArguments, "A required Delay was not specified on the command line.")
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}
	s.logger.InfoContext(ctx, "restarting computer", "delay", delay.String())
	if err := s.p.Shell.Restart(ctx); err != nil {
		return false, err
	}
	return true, nil
}
