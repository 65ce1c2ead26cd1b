package ipc

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/psadt/psadt-client/internal/pipecrypt"
)

func handshake(t *testing.T) (*Session, *Client) {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	logR, logW := io.Pipe()
	t.Cleanup(func() {
		for _, c := range []io.Closer{reqR, reqW, respR, respW, logR, logW} {
			_ = c.Close()
		}
	})

	type accepted struct {
		s   *Session
		err error
	}
	done := make(chan accepted, 1)
	go func() {
		s, err := Accept(Pipes{Output: respW, Input: reqR, Log: logW}, 0)
		done <- accepted{s, err}
	}()

	c, err := Connect(HostPipes{Requests: reqW, Responses: respR, Log: logR}, 0)
	require.NoError(t, err)
	a := <-done
	require.NoError(t, a.err)
	t.Cleanup(func() {
		_ = a.s.Close()
		_ = c.Dispose()
	})
	return a.s, c
}

func TestChannelsDeriveIndependentKeys(t *testing.T) {
	s, c := handshake(t)

	var buf bytes.Buffer
	require.NoError(t, s.io.WriteEncrypted(&buf, []byte("request channel")))
	got, err := c.io.ReadEncrypted(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, "request channel", string(got))

	_, err = c.log.ReadEncrypted(bytes.NewReader(buf.Bytes()))
	require.ErrorIs(t, err, pipecrypt.ErrMACMismatch)

	buf.Reset()
	require.NoError(t, s.log.ch.WriteEncrypted(&buf, []byte("log channel")))
	_, err = c.io.ReadEncrypted(bytes.NewReader(buf.Bytes()))
	require.ErrorIs(t, err, pipecrypt.ErrMACMismatch)
	got, err = c.log.ReadEncrypted(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, "log channel", string(got))
}

func TestClassifyMapsCryptoFailures(t *testing.T) {
	require.ErrorContains(t, classify(pipecrypt.ErrMACMismatch), "decrypt or encrypt")
	require.ErrorContains(t, classify(io.ErrUnexpectedEOF), "Failed to read or write from the pipe.")
}
