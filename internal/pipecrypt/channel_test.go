package pipecrypt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type pair struct {
	server *Channel
	client *Channel

	// server -> client
	outR *io.PipeReader
	outW *io.PipeWriter
	// client -> server
	inR *io.PipeReader
	inW *io.PipeWriter
}

func newPair(t *testing.T) *pair {
	t.Helper()
	server, err := New()
	require.NoError(t, err)
	client, err := New()
	require.NoError(t, err)

	p := &pair{server: server, client: client}
	p.outR, p.outW = io.Pipe()
	p.inR, p.inW = io.Pipe()
	t.Cleanup(func() {
		_ = p.outW.Close()
		_ = p.inW.Close()
		_ = server.Close()
		_ = client.Close()
	})
	return p
}

func (p *pair) handshake(t *testing.T) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- p.server.PerformServerKeyExchange(p.outW, p.inR) }()
	require.NoError(t, p.client.PerformClientKeyExchange(p.inW, p.outR))
	require.NoError(t, <-done)
}

func TestHandshakeDerivesMatchingKeys(t *testing.T) {
	p := newPair(t)
	p.handshake(t)

	require.True(t, p.server.KeyExchangeComplete())
	require.True(t, p.client.KeyExchangeComplete())

	sealed, err := p.server.Encrypt([]byte("hello"))
	require.NoError(t, err)
	plain, err := p.client.Decrypt(sealed)
	require.NoError(t, err)
	require.Equal(t, "hello", string(plain))
}

func TestWriteReadEncryptedRoundTrip(t *testing.T) {
	p := newPair(t)
	p.handshake(t)

	payloads := [][]byte{{0x00}, []byte("exactly sixteen!"), bytes.Repeat([]byte{0xAB}, 5000)}
	go func() {
		for _, payload := range payloads {
			if err := p.server.WriteEncrypted(p.outW, payload); err != nil {
				_ = p.outW.CloseWithError(err)
				return
			}
		}
		_ = p.outW.Close()
	}()

	for _, want := range payloads {
		got, err := p.client.ReadEncrypted(p.outR)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := p.client.ReadEncrypted(p.outR)
	require.ErrorIs(t, err, io.EOF)
}

func TestEncryptUsesFreshIV(t *testing.T) {
	p := newPair(t)
	p.handshake(t)

	a, err := p.server.Encrypt([]byte("same"))
	require.NoError(t, err)
	b, err := p.server.Encrypt([]byte("same"))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.Len(t, a, ivSize+16+macSize)
}

func TestDecryptRejectsTamperedFrame(t *testing.T) {
	p := newPair(t)
	p.handshake(t)

	sealed, err := p.server.Encrypt([]byte("payload"))
	require.NoError(t, err)
	sealed[ivSize] ^= 0x01

	_, err = p.client.Decrypt(sealed)
	require.ErrorIs(t, err, ErrMACMismatch)
}

func TestDecryptRejectsShortData(t *testing.T) {
	p := newPair(t)
	p.handshake(t)

	_, err := p.client.Decrypt(make([]byte, ivSize+macSize))
	require.ErrorIs(t, err, ErrCiphertextTooShort)
}

func TestEncryptBeforeHandshakeFails(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	_, err = c.Encrypt([]byte("x"))
	require.ErrorIs(t, err, ErrKeyExchangeIncomplete)
}

func TestDeriveSharedKeyOnlyOnce(t *testing.T) {
	a, err := New()
	require.NoError(t, err)
	b, err := New()
	require.NoError(t, err)

	pub, err := b.PublicKey()
	require.NoError(t, err)
	require.NoError(t, a.DeriveSharedKey(pub))
	require.ErrorIs(t, a.DeriveSharedKey(pub), ErrKeyExchangeComplete)
}

func TestDeriveSharedKeyRejectsGarbage(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	require.Error(t, c.DeriveSharedKey([]byte{0x04, 0x01, 0x02}))
}

func TestCloseZeroesKeys(t *testing.T) {
	p := newPair(t)
	p.handshake(t)

	key := p.server.encKey
	require.NoError(t, p.server.Close())
	require.Equal(t, make([]byte, aesKeySize), key)

	_, err := p.server.Encrypt([]byte("x"))
	require.ErrorIs(t, err, ErrClosed)
	_, err = p.server.PublicKey()
	require.ErrorIs(t, err, ErrClosed)
	require.NoError(t, p.server.Close())
}

func TestReadFrameRejectsBadLengths(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	c.MaxFrameSize = 64

	for _, length := range []int32{0, -1, 65} {
		var buf bytes.Buffer
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, length))
		_, err := c.readFrame(&buf)
		require.ErrorIs(t, err, ErrInvalidFrameLength, "length %d", length)
	}
}

func TestReadFrameTruncatedBodyIsNotCleanEOF(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, int32(10)))
	buf.Write([]byte{1, 2, 3})

	_, err = c.readFrame(&buf)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.False(t, errors.Is(err, io.EOF))
}

func TestHandshakeFailsAgainstWrongKeys(t *testing.T) {
	p := newPair(t)
	impostor, err := New()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		err := p.server.PerformServerKeyExchange(p.outW, p.inR)
		_ = p.outW.CloseWithError(err)
		done <- err
	}()

	// Answer the server with a key pair the client never derived from.
	_, err = p.client.readFrame(p.outR)
	require.NoError(t, err)
	pub, err := p.client.PublicKey()
	require.NoError(t, err)
	require.NoError(t, p.client.writeFrame(p.inW, pub))

	other, err := New()
	require.NoError(t, err)
	otherPub, err := other.PublicKey()
	require.NoError(t, err)
	require.NoError(t, impostor.DeriveSharedKey(otherPub))

	challenge, err := p.client.readFrame(p.outR)
	require.NoError(t, err)
	require.NoError(t, impostor.WriteEncrypted(p.inW, append(challenge, make([]byte, challengeSize)...)))

	require.ErrorIs(t, <-done, ErrMACMismatch)
}
