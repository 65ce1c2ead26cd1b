// Package tokenbroker hands a user's primary token to another process: the
// token is duplicated into the target's handle table and the handle value is
// sent back over a named pipe.
package tokenbroker

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"unsafe"

	"github.com/psadt/psadt-client/internal/clienterr"
	"github.com/psadt/psadt-client/internal/platform"
)

// Request names the token to broker and where to deliver it.
type Request struct {
	PipeName  string
	ProcessID uint32
	SessionID uint32
	// UseLinkedAdminToken asks for the elevated half of a split UAC token.
	UseLinkedAdminToken bool
	// AllowBaseTokenFallback uses the unelevated token when no linked token
	// can be obtained.
	AllowBaseTokenFallback bool
}

// ParseRequest reads a request from named arguments.
func ParseRequest(args map[string]string) (Request, error) {
	var req Request
	req.PipeName = strings.TrimSpace(args["PipeName"])
	if req.PipeName == "" {
		return req, clienterr.New(clienterr.InvalidArguments, "The 'PipeName' argument is required and cannot be null or whitespace.")
	}

	pid, err := strconv.ParseUint(strings.TrimSpace(args["ProcessId"]), 10, 32)
	if err != nil || pid == 0 {
		return req, clienterr.New(clienterr.InvalidArguments, "The 'ProcessId' argument is required and must be a valid process id.")
	}
	req.ProcessID = uint32(pid)

	session, err := strconv.ParseUint(strings.TrimSpace(args["SessionId"]), 10, 32)
	if err != nil {
		return req, clienterr.New(clienterr.InvalidSessionID, "The 'SessionId' argument is required and must be a valid session id.")
	}
	req.SessionID = uint32(session)

	if req.UseLinkedAdminToken, err = requiredBool(args, "UseLinkedAdminToken"); err != nil {
		return req, err
	}
	if raw, ok := args["AllowBaseTokenFallback"]; ok {
		if req.AllowBaseTokenFallback, err = strconv.ParseBool(strings.TrimSpace(raw)); err != nil {
			return req, clienterr.New(clienterr.InvalidArguments, "The 'AllowBaseTokenFallback' argument must be true or false.")
		}
	}
	return req, req.Validate()
}

func requiredBool(args map[string]string, key string) (bool, error) {
	v, err := strconv.ParseBool(strings.TrimSpace(args[key]))
	if err != nil {
		return false, clienterr.Newf(clienterr.InvalidArguments, "The '%s' argument is required and must be true or false.", key)
	}
	return v, nil
}

// Validate rejects requests that cannot name a user token.
func (r Request) Validate() error {
	if r.SessionID == 0 {
		return clienterr.New(clienterr.InvalidSessionID, "Session 0 has no interactive user token to broker.")
	}
	if r.PipeName == "" || r.ProcessID == 0 {
		return clienterr.New(clienterr.InvalidArguments, "The pipe name and process id are required.")
	}
	return nil
}

// Token is an open token handle.
type Token uintptr

// Tokens is the OS token API the broker drives.
type Tokens interface {
	QueryUserToken(ctx context.Context, session uint32) (Token, error)
	LinkedToken(ctx context.Context, t Token) (Token, error)
	PrimaryToken(ctx context.Context, t Token) (Token, error)
	// DuplicateInto copies t into pid's handle table and returns the handle
	// value as seen by pid.
	DuplicateInto(ctx context.Context, t Token, pid uint32) (uint64, error)
	Release(t Token) error
}

// Dialer connects to the caller's named pipe.
type Dialer func(ctx context.Context, pipeName string) (io.WriteCloser, error)

// Broker serves token requests. It only runs as Local System.
type Broker struct {
	identity platform.Identity
	tokens   Tokens
	dial     Dialer
	logger   *slog.Logger
}

// New returns a broker over the given identity, token API and pipe dialer.
func New(identity platform.Identity, tokens Tokens, dial Dialer, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Broker{identity: identity, tokens: tokens, dial: dial, logger: logger}
}

// Broker duplicates the session user's primary token into req.ProcessID and
// writes the resulting handle to req.PipeName.
func (b *Broker) Broker(ctx context.Context, req Request) error {
	if b.tokens == nil || b.dial == nil {
		return platform.ErrUnsupported
	}
	system, err := b.identity.IsLocalSystem(ctx)
	if err != nil {
		return err
	}
	if !system {
		return clienterr.New(clienterr.CallerNotLocalSystem, "Token brokering is only available when running as the Local System account.")
	}
	if err := req.Validate(); err != nil {
		return err
	}

	conn, err := b.dial(ctx, req.PipeName)
	if err != nil {
		return clienterr.Wrap(clienterr.TokenTransmitFailed, "Failed to connect to the token pipe.", err)
	}
	defer conn.Close()

	base, err := b.tokens.QueryUserToken(ctx, req.SessionID)
	if err != nil {
		return clienterr.Wrap(clienterr.TokenQueryFailed, "Failed to query the user token for the session.", err)
	}
	defer b.release(base)

	source := base
	if req.UseLinkedAdminToken {
		linked, err := b.tokens.LinkedToken(ctx, base)
		switch {
		case err == nil:
			defer b.release(linked)
			source = linked
		case req.AllowBaseTokenFallback:
			b.logger.WarnContext(ctx, "linked admin token unavailable, using the base token", "session", req.SessionID, "error", err.Error())
		default:
			return clienterr.Wrap(clienterr.TokenElevationFailed, "Failed to obtain the linked admin token.", err)
		}
	}

	primary, err := b.tokens.PrimaryToken(ctx, source)
	if err != nil {
		return clienterr.Wrap(clienterr.TokenDuplicationFailed, "Failed to create a primary token.", err)
	}
	defer b.release(primary)

	handle, err := b.tokens.DuplicateInto(ctx, primary, req.ProcessID)
	if err != nil {
		return clienterr.Wrap(clienterr.TokenDuplicationFailed, "Failed to duplicate the token into the target process.", err)
	}

	if _, err := conn.Write(EncodeHandle(handle, PointerSize)); err != nil {
		return clienterr.Wrap(clienterr.TokenTransmitFailed, "Failed to write the token handle to the pipe.", err)
	}
	b.logger.InfoContext(ctx, "brokered token", "session", req.SessionID, "pid", req.ProcessID, "linked", source != base)
	return nil
}

func (b *Broker) release(t Token) {
	if err := b.tokens.Release(t); err != nil {
		b.logger.Warn("failed to close token handle", "error", err.Error())
	}
}

// PointerSize is the handle width of this build.
const PointerSize = int(unsafe.Sizeof(uintptr(0)))

// EncodeHandle prefixes the little-endian handle bytes with their width.
func EncodeHandle(handle uint64, size int) []byte {
	out := make([]byte, 1+8)
	out[0] = byte(size)
	binary.LittleEndian.PutUint64(out[1:], handle)
	return out[:1+size]
}

// DecodeHandle reverses EncodeHandle.
func DecodeHandle(b []byte) (uint64, error) {
	if len(b) == 0 || (b[0] != 4 && b[0] != 8) || len(b) != 1+int(b[0]) {
		return 0, clienterr.New(clienterr.InvalidResult, "The token handle message is malformed.")
	}
	if b[0] == 4 {
		return uint64(binary.LittleEndian.Uint32(b[1:])), nil
	}
	return binary.LittleEndian.Uint64(b[1:]), nil
}
