package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/psadt/psadt-client/internal/clienterr"
	"github.com/psadt/psadt-client/internal/fsm"
	"github.com/psadt/psadt-client/internal/pipecrypt"
	"github.com/psadt/psadt-client/internal/wire"
)

// Pipes are the client's ends of one pipe session. Names follow the
// client's view: Output is what the client emits.
type Pipes struct {
	Output io.Writer
	Input  io.Reader
	Log    io.Writer
}

// Session is an authenticated client-side pipe session.
type Session struct {
	pipes Pipes
	io    *pipecrypt.Channel
	log   *LogWriter

	mu    sync.Mutex
	state fsm.State
}

// Accept runs the key exchange for the request channel, then for the log
// channel when a log pipe is present. Both exchanges read the host's half
// from Input.
func Accept(pipes Pipes, maxFrame int) (*Session, error) {
	ioCh, err := newChannel(maxFrame)
	if err != nil {
		return nil, err
	}
	if err := ioCh.PerformClientKeyExchange(pipes.Output, pipes.Input); err != nil {
		_ = ioCh.Close()
		return nil, clienterr.Wrap(clienterr.EncryptionError, "Failed to establish the encrypted pipe channel.", err)
	}

	s := &Session{pipes: pipes, io: ioCh, state: fsm.StateAwaitingRequest}
	if pipes.Log == nil {
		return s, nil
	}
	logCh, err := newChannel(maxFrame)
	if err != nil {
		_ = ioCh.Close()
		return nil, err
	}
	if err := logCh.PerformClientKeyExchange(pipes.Log, pipes.Input); err != nil {
		_ = ioCh.Close()
		_ = logCh.Close()
		return nil, clienterr.Wrap(clienterr.EncryptionError, "Failed to establish the encrypted log channel.", err)
	}
	s.log = &LogWriter{w: pipes.Log, ch: logCh}
	return s, nil
}

func newChannel(maxFrame int) (*pipecrypt.Channel, error) {
	ch, err := pipecrypt.New()
	if err != nil {
		return nil, clienterr.Wrap(clienterr.EncryptionError, "Failed to create the pipe encryption channel.", err)
	}
	if maxFrame > 0 {
		ch.MaxFrameSize = maxFrame
	}
	return ch, nil
}

// Log returns the log channel writer, or nil when the session has none.
func (s *Session) Log() *LogWriter {
	return s.log
}

// State returns the session's lifecycle state.
func (s *Session) State() fsm.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) transition(event fsm.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fsm.Transition(s.state, event)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

// Serve answers requests in arrival order until the host sends Close or
// closes its pipe. Both end the session cleanly. Read, write and crypto
// faults end it with PipeReadWriteError or EncryptionError.
func (s *Session) Serve(ctx context.Context, h Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	for {
		frame, err := s.io.ReadEncrypted(s.pipes.Input)
		if errors.Is(err, io.EOF) || (err == nil && len(frame) == 0) {
			logger.DebugContext(ctx, "host closed the pipe")
			return s.transition(fsm.EventPeerClosed)
		}
		if err != nil {
			return s.fault(ctx, logger, classify(err))
		}
		if err := s.transition(fsm.EventFrameReceived); err != nil {
			return s.fault(ctx, logger, clienterr.Wrap(clienterr.PipeReadWriteError, "Failed to read or write from the pipe.", err))
		}

		req, err := wire.DecodeRequest(frame)
		if err != nil {
			return s.fault(ctx, logger, err)
		}
		reply, err := h.Handle(ctx, req)
		if err != nil {
			return s.fault(ctx, logger, clienterr.Ensure(err, clienterr.PipeReadWriteError, "Failed to read or write from the pipe."))
		}
		if err := s.io.WriteEncrypted(s.pipes.Output, wire.EncodeResponse(reply.Marker, reply.Body)); err != nil {
			return s.fault(ctx, logger, classify(err))
		}

		if reply.Close {
			logger.DebugContext(ctx, "session closed by host request")
			return s.transition(fsm.EventCloseReplied)
		}
		if err := s.transition(fsm.EventResponded); err != nil {
			return s.fault(ctx, logger, clienterr.Wrap(clienterr.PipeReadWriteError, "Failed to read or write from the pipe.", err))
		}
	}
}

func (s *Session) fault(ctx context.Context, logger *slog.Logger, err error) error {
	_ = s.transition(fsm.EventFault)
	logger.ErrorContext(ctx, "pipe session failed", "error", err.Error())
	return err
}

// classify maps a channel failure onto the client error taxonomy.
func classify(err error) error {
	for _, target := range []error{
		pipecrypt.ErrMACMismatch,
		pipecrypt.ErrBadPadding,
		pipecrypt.ErrCiphertextTooShort,
		pipecrypt.ErrInvalidFrameLength,
		pipecrypt.ErrKeyExchangeIncomplete,
		pipecrypt.ErrClosed,
	} {
		if errors.Is(err, target) {
			return clienterr.Wrap(clienterr.EncryptionError, "Failed to decrypt or encrypt the pipe frame.", err)
		}
	}
	return clienterr.Wrap(clienterr.PipeReadWriteError, "Failed to read or write from the pipe.", err)
}

// Close zeroes the keys of both channels.
func (s *Session) Close() error {
	var errs *multierror.Error
	if err := s.io.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("close request channel: %w", err))
	}
	if s.log != nil {
		if err := s.log.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close log channel: %w", err))
		}
	}
	return errs.ErrorOrNil()
}
