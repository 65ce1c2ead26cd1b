package ipc

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/psadt/psadt-client/internal/clienterr"
	"github.com/psadt/psadt-client/internal/pipecrypt"
	"github.com/psadt/psadt-client/internal/wire"
)

// HostPipes are the host's ends of one pipe session.
type HostPipes struct {
	Requests  io.Writer
	Responses io.Reader
	Log       io.Reader
}

// Client is the host side of a pipe session. Calls are serialized; the
// protocol is strictly one response per request.
type Client struct {
	pipes HostPipes
	io    *pipecrypt.Channel
	log   *pipecrypt.Channel

	mu sync.Mutex
}

// Connect runs the host half of both key exchanges.
func Connect(pipes HostPipes, maxFrame int) (*Client, error) {
	ioCh, err := newChannel(maxFrame)
	if err != nil {
		return nil, err
	}
	if err := ioCh.PerformServerKeyExchange(pipes.Requests, pipes.Responses); err != nil {
		_ = ioCh.Close()
		return nil, clienterr.Wrap(clienterr.EncryptionError, "Failed to establish the encrypted pipe channel.", err)
	}
	c := &Client{pipes: pipes, io: ioCh}
	if pipes.Log == nil {
		return c, nil
	}
	logCh, err := newChannel(maxFrame)
	if err != nil {
		_ = ioCh.Close()
		return nil, err
	}
	if err := logCh.PerformServerKeyExchange(pipes.Requests, pipes.Log); err != nil {
		_ = ioCh.Close()
		_ = logCh.Close()
		return nil, clienterr.Wrap(clienterr.EncryptionError, "Failed to establish the encrypted log channel.", err)
	}
	c.log = logCh
	return c, nil
}

// Invoke sends one raw request and returns the Success body. An Error
// response comes back as the client error it carries.
func (c *Client) Invoke(cmd wire.Command, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.io.WriteEncrypted(c.pipes.Requests, wire.EncodeRequest(cmd, payload)); err != nil {
		return nil, classify(err)
	}
	frame, err := c.io.ReadEncrypted(c.pipes.Responses)
	if err != nil {
		return nil, classify(err)
	}
	resp, err := wire.DecodeResponse(frame)
	if err != nil {
		return nil, err
	}
	if resp.Marker == wire.ResponseError {
		return nil, wire.DecodeError(resp.Body)
	}
	return resp.Body, nil
}

func call[T any](c *Client, cmd wire.Command, payload any) (T, error) {
	var (
		raw []byte
		err error
	)
	if payload != nil {
		if raw, err = wire.Encode(payload); err != nil {
			var zero T
			return zero, err
		}
	}
	body, err := c.Invoke(cmd, raw)
	if err != nil {
		var zero T
		return zero, err
	}
	out, err := wire.Decode[T](body)
	if err != nil {
		return out, clienterr.Wrap(clienterr.InvalidResult, "The received result could not be decoded.", err)
	}
	return out, nil
}

func (c *Client) Open() (bool, error) {
	return call[bool](c, wire.CommandOpen, nil)
}

// Close asks the client to end the session. The client exits its loop
// after replying.
func (c *Client) Close() (bool, error) {
	return call[bool](c, wire.CommandClose, nil)
}

func (c *Client) InitCloseAppsDialog(defs []wire.ProcessDefinition) (bool, error) {
	return call[bool](c, wire.CommandInitCloseAppsDialog, wire.InitCloseAppsDialogRequest{Processes: defs})
}

func (c *Client) PromptToCloseApps(timeout time.Duration) (bool, error) {
	return call[bool](c, wire.CommandPromptToCloseApps, wire.PromptToCloseAppsRequest{Timeout: timeout})
}

func (c *Client) ShowModalDialog(dialogType wire.DialogType, style wire.DialogStyle, opts *structpb.Struct) (*structpb.Value, error) {
	return call[*structpb.Value](c, wire.CommandShowModalDialog, wire.ShowModalDialogRequest{
		DialogType:  dialogType.String(),
		DialogStyle: style.String(),
		Options:     opts,
	})
}

func (c *Client) ShowProgressDialog(style wire.DialogStyle, opts *structpb.Struct) (bool, error) {
	return call[bool](c, wire.CommandShowProgressDialog, wire.ShowProgressDialogRequest{DialogStyle: style.String(), Options: opts})
}

func (c *Client) ProgressDialogOpen() (bool, error) {
	return call[bool](c, wire.CommandProgressDialogOpen, nil)
}

func (c *Client) UpdateProgressDialog(req wire.UpdateProgressDialogRequest) (bool, error) {
	return call[bool](c, wire.CommandUpdateProgressDialog, req)
}

func (c *Client) CloseProgressDialog() (bool, error) {
	return call[bool](c, wire.CommandCloseProgressDialog, nil)
}

func (c *Client) ShowBalloonTip(opts wire.BalloonTipOptions) (bool, error) {
	return call[bool](c, wire.CommandShowBalloonTip, opts)
}

func (c *Client) MinimizeAllWindows() (bool, error) {
	return call[bool](c, wire.CommandMinimizeAllWindows, nil)
}

func (c *Client) RestoreAllWindows() (bool, error) {
	return call[bool](c, wire.CommandRestoreAllWindows, nil)
}

func (c *Client) SendKeys(handle uint64, keys string) (bool, error) {
	return call[bool](c, wire.CommandSendKeys, wire.SendKeysRequest{WindowHandle: handle, Keys: keys})
}

func (c *Client) GetProcessWindowInfo(opts wire.WindowInfoOptions) ([]wire.WindowInfo, error) {
	return call[[]wire.WindowInfo](c, wire.CommandGetProcessWindowInfo, opts)
}

func (c *Client) RefreshDesktopAndEnvironmentVariables() (bool, error) {
	return call[bool](c, wire.CommandRefreshDesktopAndEnvironmentVariables, nil)
}

func (c *Client) GetUserNotificationState() (wire.UserNotificationState, error) {
	return call[wire.UserNotificationState](c, wire.CommandGetUserNotificationState, nil)
}

func (c *Client) GetForegroundWindowProcessID() (uint32, error) {
	return call[uint32](c, wire.CommandGetForegroundWindowProcessID, nil)
}

func (c *Client) GetEnvironmentVariable(name string) (string, error) {
	return call[string](c, wire.CommandGetEnvironmentVariable, wire.EnvironmentVariableRequest{Variable: name})
}

func (c *Client) SetEnvironmentVariable(req wire.EnvironmentVariableRequest) (bool, error) {
	return call[bool](c, wire.CommandSetEnvironmentVariable, req)
}

func (c *Client) RemoveEnvironmentVariable(name string) (bool, error) {
	return call[bool](c, wire.CommandRemoveEnvironmentVariable, wire.EnvironmentVariableRequest{Variable: name})
}

func (c *Client) GroupPolicyUpdate() (bool, error) {
	return call[bool](c, wire.CommandGroupPolicyUpdate, nil)
}

// ReadLog delivers log entries to fn until the client closes its log pipe.
func (c *Client) ReadLog(fn func(wire.LogEntry)) error {
	if c.log == nil {
		return clienterr.New(clienterr.NoLogPipe, "The session has no log channel.")
	}
	for {
		frame, err := c.log.ReadEncrypted(c.pipes.Log)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return classify(err)
		}
		entry, err := wire.Decode[wire.LogEntry](frame)
		if err != nil {
			return err
		}
		fn(entry)
	}
}

// Dispose zeroes the keys of both channels.
func (c *Client) Dispose() error {
	var errs *multierror.Error
	if err := c.io.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("close request channel: %w", err))
	}
	if c.log != nil {
		if err := c.log.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close log channel: %w", err))
		}
	}
	return errs.ErrorOrNil()
}
