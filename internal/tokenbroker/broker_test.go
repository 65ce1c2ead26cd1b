package tokenbroker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/psadt/psadt-client/internal/clienterr"
)

type fakeIdentity struct{ system bool }

func (f fakeIdentity) IsLocalSystem(context.Context) (bool, error) { return f.system, nil }

type fakeTokens struct {
	next       Token
	linkedErr  error
	queried    []uint32
	duplicated []Token
	released   []Token
}

func (f *fakeTokens) open() Token {
	f.next++
	return f.next
}

func (f *fakeTokens) QueryUserToken(_ context.Context, session uint32) (Token, error) {
	f.queried = append(f.queried, session)
	return f.open(), nil
}

func (f *fakeTokens) LinkedToken(context.Context, Token) (Token, error) {
	if f.linkedErr != nil {
		return 0, f.linkedErr
	}
	return f.open(), nil
}

func (f *fakeTokens) PrimaryToken(context.Context, Token) (Token, error) {
	return f.open(), nil
}

func (f *fakeTokens) DuplicateInto(_ context.Context, t Token, _ uint32) (uint64, error) {
	f.duplicated = append(f.duplicated, t)
	return 0x1234, nil
}

func (f *fakeTokens) Release(t Token) error {
	f.released = append(f.released, t)
	return nil
}

type pipeBuffer struct {
	bytes.Buffer
	closed bool
}

func (p *pipeBuffer) Close() error {
	p.closed = true
	return nil
}

func newBroker(system bool, tokens *fakeTokens) (*Broker, *pipeBuffer, *string) {
	pipe := &pipeBuffer{}
	var dialed string
	dial := func(_ context.Context, name string) (io.WriteCloser, error) {
		dialed = name
		return pipe, nil
	}
	return New(fakeIdentity{system: system}, tokens, dial, nil), pipe, &dialed
}

func validRequest() Request {
	return Request{PipeName: "psadt-token", ProcessID: 4321, SessionID: 2}
}

func TestBrokerWritesDuplicatedHandle(t *testing.T) {
	tokens := &fakeTokens{}
	b, pipe, dialed := newBroker(true, tokens)

	require.NoError(t, b.Broker(context.Background(), validRequest()))
	require.Equal(t, "psadt-token", *dialed)
	require.True(t, pipe.closed)
	require.Equal(t, []uint32{2}, tokens.queried)

	handle, err := DecodeHandle(pipe.Bytes())
	require.NoError(t, err)
	require.Equal(t, uint64(0x1234), handle)
	require.Equal(t, byte(PointerSize), pipe.Bytes()[0])

	// base then primary, released in reverse order
	require.Equal(t, []Token{2}, tokens.duplicated)
	require.Equal(t, []Token{2, 1}, tokens.released)
}

func TestBrokerRequiresLocalSystem(t *testing.T) {
	b, pipe, _ := newBroker(false, &fakeTokens{})
	err := b.Broker(context.Background(), validRequest())
	require.Equal(t, clienterr.CallerNotLocalSystem, clienterr.CodeOf(err))
	require.Zero(t, pipe.Len())
}

func TestBrokerRejectsSessionZero(t *testing.T) {
	tokens := &fakeTokens{}
	b, _, dialed := newBroker(true, tokens)
	req := validRequest()
	req.SessionID = 0

	err := b.Broker(context.Background(), req)
	require.Equal(t, clienterr.InvalidSessionID, clienterr.CodeOf(err))
	require.Empty(t, *dialed)
	require.Empty(t, tokens.queried)
}

func TestBrokerLinkedToken(t *testing.T) {
	tokens := &fakeTokens{}
	b, _, _ := newBroker(true, tokens)
	req := validRequest()
	req.UseLinkedAdminToken = true

	require.NoError(t, b.Broker(context.Background(), req))
	// base=1, linked=2, primary=3
	require.Equal(t, []Token{3}, tokens.duplicated)
	require.ElementsMatch(t, []Token{1, 2, 3}, tokens.released)
}

func TestBrokerLinkedTokenFailure(t *testing.T) {
	tokens := &fakeTokens{linkedErr: errors.New("no linked token")}
	b, pipe, _ := newBroker(true, tokens)
	req := validRequest()
	req.UseLinkedAdminToken = true

	err := b.Broker(context.Background(), req)
	require.Equal(t, clienterr.TokenElevationFailed, clienterr.CodeOf(err))
	require.Zero(t, pipe.Len())
	require.Equal(t, []Token{1}, tokens.released)

	req.AllowBaseTokenFallback = true
	tokens.released = nil
	require.NoError(t, b.Broker(context.Background(), req))
	require.Len(t, tokens.duplicated, 1)
}

func TestBrokerWithoutPlatformSupport(t *testing.T) {
	b := New(fakeIdentity{system: true}, nil, nil, nil)
	err := b.Broker(context.Background(), validRequest())
	require.Equal(t, clienterr.PlatformUnsupported, clienterr.CodeOf(err))
}

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest(map[string]string{
		"PipeName":               "p",
		"ProcessId":              "88",
		"SessionId":              "3",
		"UseLinkedAdminToken":    "True",
		"AllowBaseTokenFallback": "false",
	})
	require.NoError(t, err)
	require.Equal(t, Request{PipeName: "p", ProcessID: 88, SessionID: 3, UseLinkedAdminToken: true}, req)

	for name, tc := range map[string]struct {
		args map[string]string
		code clienterr.ExitCode
	}{
		"missing pipe":   {map[string]string{"ProcessId": "1", "SessionId": "1", "UseLinkedAdminToken": "false"}, clienterr.InvalidArguments},
		"bad pid":        {map[string]string{"PipeName": "p", "ProcessId": "x", "SessionId": "1", "UseLinkedAdminToken": "false"}, clienterr.InvalidArguments},
		"bad session":    {map[string]string{"PipeName": "p", "ProcessId": "1", "SessionId": "-1", "UseLinkedAdminToken": "false"}, clienterr.InvalidSessionID},
		"session zero":   {map[string]string{"PipeName": "p", "ProcessId": "1", "SessionId": "0", "UseLinkedAdminToken": "false"}, clienterr.InvalidSessionID},
		"missing linked": {map[string]string{"PipeName": "p", "ProcessId": "1", "SessionId": "1"}, clienterr.InvalidArguments},
	} {
		_, err := ParseRequest(tc.args)
		require.Equal(t, tc.code, clienterr.CodeOf(err), name)
	}
}

func TestHandleEncoding(t *testing.T) {
	require.Equal(t, []byte{4, 0x78, 0x56, 0x34, 0x12}, EncodeHandle(0x12345678, 4))
	require.Equal(t, []byte{8, 1, 0, 0, 0, 0, 0, 0, 0}, EncodeHandle(1, 8))

	h, err := DecodeHandle([]byte{4, 0x78, 0x56, 0x34, 0x12})
	require.NoError(t, err)
	require.Equal(t, uint64(0x12345678), h)

	_, err = DecodeHandle([]byte{3, 1, 2, 3})
	require.Error(t, err)
}
