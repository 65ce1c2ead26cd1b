// Package session answers the commands of one pipe session and owns the
// close-apps state that lives across them.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/psadt/psadt-client/internal/clienterr"
	"github.com/psadt/psadt-client/internal/closeapps"
	"github.com/psadt/psadt-client/internal/ipc"
	"github.com/psadt/psadt-client/internal/operations"
	"github.com/psadt/psadt-client/internal/platform"
	"github.com/psadt/psadt-client/internal/processes"
	"github.com/psadt/psadt-client/internal/wire"
)

// Config tunes the close-apps workflow for a session.
type Config struct {
	PollInterval        time.Duration
	KillWaitTimeout     time.Duration
	ProcessPollInterval time.Duration
	// ProcessSource overrides the system process table.
	ProcessSource processes.Source
}

type handlerFunc func(ctx context.Context, payload []byte) (any, error)

// Dispatcher maps each command to its operation. It is owned by a single
// Serve loop, so handlers never run concurrently.
type Dispatcher struct {
	ops    *operations.Service
	logger *slog.Logger
	cfg    Config
	id     string

	state    *CloseAppsDialogState
	handlers map[wire.Command]handlerFunc
}

// NewDispatcher builds a dispatcher with a fresh session id.
func NewDispatcher(ops *operations.Service, logger *slog.Logger, cfg Config) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if ops == nil {
		ops = operations.New(nil)
	}
	id := uuid.NewString()
	d := &Dispatcher{
		ops:    ops,
		logger: logger.With("session_id", id),
		cfg:    cfg,
		id:     id,
	}
	d.handlers = map[wire.Command]handlerFunc{
		wire.CommandOpen:                                  d.open,
		wire.CommandClose:                                 d.open,
		wire.CommandInitCloseAppsDialog:                   d.initCloseAppsDialog,
		wire.CommandPromptToCloseApps:                     d.promptToCloseApps,
		wire.CommandShowModalDialog:                       d.showModalDialog,
		wire.CommandShowProgressDialog:                    decoded(ops.ShowProgressDialog),
		wire.CommandProgressDialogOpen:                    d.progressDialogOpen,
		wire.CommandUpdateProgressDialog:                  decoded(ops.UpdateProgressDialog),
		wire.CommandCloseProgressDialog:                   noPayload(ops.CloseProgressDialog),
		wire.CommandShowBalloonTip:                        decoded(ops.ShowBalloonTip),
		wire.CommandMinimizeAllWindows:                    noPayload(ops.MinimizeAllWindows),
		wire.CommandRestoreAllWindows:                     noPayload(ops.RestoreAllWindows),
		wire.CommandSendKeys:                              decoded(ops.SendKeys),
		wire.CommandGetProcessWindowInfo:                  decoded(ops.GetProcessWindowInfo),
		wire.CommandRefreshDesktopAndEnvironmentVariables: noPayload(ops.RefreshDesktopAndEnvironmentVariables),
		wire.CommandGetUserNotificationState:              noPayload(ops.GetUserNotificationState),
		wire.CommandGetForegroundWindowProcessID:          noPayload(ops.GetForegroundWindowProcessID),
		wire.CommandGetEnvironmentVariable:                decoded(ops.GetEnvironmentVariable),
		wire.CommandSetEnvironmentVariable:                decoded(ops.SetEnvironmentVariable),
		wire.CommandRemoveEnvironmentVariable:             decoded(ops.RemoveEnvironmentVariable),
		wire.CommandGroupPolicyUpdate:                     noPayload(ops.GroupPolicyUpdate),
	}
	return d
}

func decoded[Req, Res any](fn func(context.Context, Req) (Res, error)) handlerFunc {
	return func(ctx context.Context, payload []byte) (any, error) {
		req, err := wire.Decode[Req](payload)
		if err != nil {
			return nil, err
		}
		return fn(ctx, req)
	}
}

func noPayload[Res any](fn func(context.Context) (Res, error)) handlerFunc {
	return func(ctx context.Context, _ []byte) (any, error) {
		return fn(ctx)
	}
}

// ID identifies the session in log records.
func (d *Dispatcher) ID() string {
	return d.id
}

// State returns the close-apps state, or nil before InitCloseAppsDialog.
func (d *Dispatcher) State() *CloseAppsDialogState {
	return d.state
}

// Handle runs one request. Operation failures and panics become Error
// replies, so one bad request never ends the session.
func (d *Dispatcher) Handle(ctx context.Context, req wire.Request) (ipc.Reply, error) {
	logger := d.logger.With("command", req.Command.String())
	logger.DebugContext(ctx, "dispatching request", "payload_bytes", len(req.Payload))

	result, err := d.invoke(ctx, req)
	if err == nil {
		body, encErr := wire.Encode(result)
		if encErr == nil {
			return ipc.Reply{Marker: wire.ResponseSuccess, Body: body, Close: req.Command == wire.CommandClose}, nil
		}
		err = encErr
	}

	logger.WarnContext(ctx, "request failed",
		"exit_code", clienterr.CodeOf(err).String(),
		"error", err.Error(),
	)
	body, encErr := wire.EncodeError(err)
	if encErr != nil {
		logger.ErrorContext(ctx, "failed to encode error reply", "error", encErr.Error())
		body, encErr = wire.EncodeError(errReplyEncoding)
		if encErr != nil {
			return ipc.Reply{}, encErr
		}
	}
	return ipc.Failure(body), nil
}

// errReplyEncoding replaces an error whose reply could not be encoded.
var errReplyEncoding = clienterr.New(clienterr.InvalidResult, "An error occurred while serializing the error response.")

func (d *Dispatcher) invoke(ctx context.Context, req wire.Request) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(ctx, "request handler panicked",
				"command", req.Command.String(),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			result = nil
			err = clienterr.Newf(clienterr.Unknown, "An unexpected error occurred while processing the [%s] command: %v", req.Command, r)
		}
	}()

	h, ok := d.handlers[req.Command]
	if !ok {
		return nil, clienterr.Newf(clienterr.UnknownCommand, "The specified command [%s] is not recognised.", req.Command)
	}
	return h(ctx, req.Payload)
}

func (d *Dispatcher) open(context.Context, []byte) (any, error) {
	return true, nil
}

func (d *Dispatcher) progressDialogOpen(ctx context.Context, _ []byte) (any, error) {
	return d.ops.ProgressDialogOpen(ctx), nil
}

func (d *Dispatcher) initCloseAppsDialog(ctx context.Context, payload []byte) (any, error) {
	req, err := wire.Decode[wire.InitCloseAppsDialogRequest](payload)
	if err != nil {
		return nil, err
	}
	if d.state != nil {
		if err := d.state.Close(); err != nil {
			d.logger.WarnContext(ctx, "failed to dispose the previous close-apps state", "error", err.Error())
		}
		d.state = nil
	}
	state, err := newCloseAppsDialogState(ctx, req.Processes, d.cfg, d.logger)
	if err != nil {
		return nil, err
	}
	d.state = state
	return true, nil
}

func (d *Dispatcher) promptToCloseApps(ctx context.Context, payload []byte) (any, error) {
	if d.state == nil || d.state.Processes == nil {
		return nil, clienterr.New(clienterr.InvalidRequest,
			"The PromptToCloseApps command can only be called when ProcessDefinitions were provided to the InitCloseAppsDialog command.")
	}
	req, err := wire.Decode[wire.PromptToCloseAppsRequest](payload)
	if err != nil {
		return nil, err
	}
	if req.Timeout <= 0 {
		return nil, clienterr.Newf(clienterr.InvalidOptions, "The PromptToCloseApps timeout [%s] must be positive.", req.Timeout)
	}

	opts := []closeapps.Option{closeapps.WithLogger(d.logger)}
	if d.cfg.PollInterval > 0 {
		opts = append(opts, closeapps.WithPollInterval(d.cfg.PollInterval))
	}
	if d.cfg.KillWaitTimeout > 0 {
		opts = append(opts, closeapps.WithKillWaitTimeout(d.cfg.KillWaitTimeout))
	}
	res, err := closeapps.New(d.state.Processes, d.ops.Provider().Windows, opts...).Run(ctx, req.Timeout)
	if err != nil {
		return nil, err
	}
	d.logger.InfoContext(ctx, "close-apps run finished",
		"closed", len(res.Closed),
		"timed_out", len(res.TimedOut),
		"failed", len(res.Failed),
		"killed", len(res.Killed),
	)
	return true, nil
}

func (d *Dispatcher) showModalDialog(ctx context.Context, payload []byte) (any, error) {
	req, err := wire.Decode[wire.ShowModalDialogRequest](payload)
	if err != nil {
		return nil, err
	}
	// A nil *processes.Service must not reach the dialog as a non-nil interface.
	var source platform.CloseAppsSource
	if d.state != nil && d.state.Processes != nil {
		source = d.state.Processes
	}
	return d.ops.ShowModalDialog(ctx, req, source)
}

// Close disposes the close-apps state. The Serve loop calls it on every
// exit path.
func (d *Dispatcher) Close() error {
	if d.state == nil {
		return nil
	}
	err := d.state.Close()
	d.state = nil
	return err
}
