// Package pipecrypt authenticates a pair of half-duplex pipe streams with an
// ECDH exchange and frames encrypted messages over them.
//
// Every message on the wire is a 4-byte little-endian length prefix followed
// by IV(16) || AES-256-CBC ciphertext || HMAC-SHA256(IV || ciphertext).
package pipecrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/hkdf"
)

const (
	aesKeySize    = 32
	macKeySize    = 32
	ivSize        = aes.BlockSize
	macSize       = sha256.Size
	challengeSize = 32

	// DefaultMaxFrameSize bounds a single length-prefixed frame.
	DefaultMaxFrameSize = 16 << 20
)

var kdfInfo = []byte("PSADT-Pipe-Encryption-v1")

var (
	ErrClosed                = errors.New("pipe encryption channel closed")
	ErrKeyExchangeIncomplete = errors.New("key exchange has not been completed")
	ErrKeyExchangeComplete   = errors.New("key exchange has already been completed")
	ErrCiphertextTooShort    = errors.New("encrypted data is too short")
	ErrMACMismatch           = errors.New("MAC verification failed")
	ErrBadPadding            = errors.New("invalid ciphertext padding")
	ErrChallengeMismatch     = errors.New("key exchange verification failed")
	ErrInvalidFrameLength    = errors.New("invalid frame length prefix")
)

// Channel holds one side of an encrypted pipe conversation. A session uses
// one Channel per logical stream so each stream has its own keys.
type Channel struct {
	mu           sync.Mutex
	private      *ecdh.PrivateKey
	encKey       []byte
	macKey       []byte
	closed       bool
	MaxFrameSize int
}

// New generates a fresh P-256 key pair for one channel.
func New() (*Channel, error) {
	private, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ECDH key: %w", err)
	}
	return &Channel{private: private, MaxFrameSize: DefaultMaxFrameSize}, nil
}

// PublicKey returns the uncompressed public point to send to the peer.
func (c *Channel) PublicKey() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	return c.private.PublicKey().Bytes(), nil
}

// KeyExchangeComplete reports whether encryption keys have been derived.
func (c *Channel) KeyExchangeComplete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.encKey != nil && c.macKey != nil
}

// DeriveSharedKey completes ECDH against the peer's public key and expands
// the shared secret into independent encryption and MAC keys.
func (c *Channel) DeriveSharedKey(remotePublicKey []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.encKey != nil {
		return ErrKeyExchangeComplete
	}

	remote, err := ecdh.P256().NewPublicKey(remotePublicKey)
	if err != nil {
		return fmt.Errorf("import peer public key: %w", err)
	}
	secret, err := c.private.ECDH(remote)
	if err != nil {
		return fmt.Errorf("derive shared secret: %w", err)
	}
	defer zero(secret)

	material := make([]byte, aesKeySize+macKeySize)
	defer zero(material)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, make([]byte, sha256.Size), kdfInfo), material); err != nil {
		return fmt.Errorf("expand key material: %w", err)
	}

	c.encKey = append([]byte(nil), material[:aesKeySize]...)
	c.macKey = append([]byte(nil), material[aesKeySize:]...)
	return nil
}

// Encrypt seals plaintext with a random IV and appends the MAC.
func (c *Channel) Encrypt(plaintext []byte) ([]byte, error) {
	encKey, macKey, err := c.keys()
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	padded := pad(plaintext)
	out := make([]byte, ivSize+len(padded), ivSize+len(padded)+macSize)
	iv := out[:ivSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("generate IV: %w", err)
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[ivSize:], padded)

	mac := hmac.New(sha256.New, macKey)
	mac.Write(out)
	return mac.Sum(out), nil
}

// Decrypt verifies the MAC before decrypting, so tampered frames are
// rejected without touching the cipher.
func (c *Channel) Decrypt(data []byte) ([]byte, error) {
	encKey, macKey, err := c.keys()
	if err != nil {
		return nil, err
	}
	if len(data) < ivSize+aes.BlockSize+macSize {
		return nil, ErrCiphertextTooShort
	}

	body := data[:len(data)-macSize]
	received := data[len(data)-macSize:]
	mac := hmac.New(sha256.New, macKey)
	mac.Write(body)
	if !hmac.Equal(received, mac.Sum(nil)) {
		return nil, ErrMACMismatch
	}

	ciphertext := body[ivSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrBadPadding
	}
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, body[:ivSize]).CryptBlocks(plaintext, ciphertext)
	return unpad(plaintext)
}

// PerformServerKeyExchange runs the privileged side of the handshake: send
// our public key, receive the client's, then prove both sides hold the same
// keys with a pair of challenges.
func (c *Channel) PerformServerKeyExchange(w io.Writer, r io.Reader) error {
	public, err := c.PublicKey()
	if err != nil {
		return err
	}
	if err := c.writeFrame(w, public); err != nil {
		return fmt.Errorf("send public key: %w", err)
	}
	peer, err := c.readFrame(r)
	if err != nil {
		return fmt.Errorf("receive public key: %w", err)
	}
	if err := c.DeriveSharedKey(peer); err != nil {
		return err
	}

	serverChallenge := make([]byte, challengeSize)
	if _, err := io.ReadFull(rand.Reader, serverChallenge); err != nil {
		return fmt.Errorf("generate challenge: %w", err)
	}
	if err := c.writeFrame(w, serverChallenge); err != nil {
		return fmt.Errorf("send challenge: %w", err)
	}

	response, err := c.ReadEncrypted(r)
	if err != nil {
		return fmt.Errorf("receive challenge response: %w", err)
	}
	if len(response) != 2*challengeSize || subtle.ConstantTimeCompare(response[:challengeSize], serverChallenge) != 1 {
		return ErrChallengeMismatch
	}
	if err := c.WriteEncrypted(w, response[challengeSize:]); err != nil {
		return fmt.Errorf("send server proof: %w", err)
	}
	return nil
}

// PerformClientKeyExchange runs the unprivileged side of the handshake.
func (c *Channel) PerformClientKeyExchange(w io.Writer, r io.Reader) error {
	peer, err := c.readFrame(r)
	if err != nil {
		return fmt.Errorf("receive public key: %w", err)
	}
	public, err := c.PublicKey()
	if err != nil {
		return err
	}
	if err := c.writeFrame(w, public); err != nil {
		return fmt.Errorf("send public key: %w", err)
	}
	if err := c.DeriveSharedKey(peer); err != nil {
		return err
	}

	serverChallenge, err := c.readFrame(r)
	if err != nil {
		return fmt.Errorf("receive challenge: %w", err)
	}
	if len(serverChallenge) != challengeSize {
		return ErrChallengeMismatch
	}
	combined := make([]byte, 2*challengeSize)
	copy(combined, serverChallenge)
	clientChallenge := combined[challengeSize:]
	if _, err := io.ReadFull(rand.Reader, clientChallenge); err != nil {
		return fmt.Errorf("generate challenge: %w", err)
	}
	if err := c.WriteEncrypted(w, combined); err != nil {
		return fmt.Errorf("send challenge response: %w", err)
	}

	proof, err := c.ReadEncrypted(r)
	if err != nil {
		return fmt.Errorf("receive server proof: %w", err)
	}
	if subtle.ConstantTimeCompare(proof, clientChallenge) != 1 {
		return ErrChallengeMismatch
	}
	return nil
}

// WriteEncrypted encrypts plaintext as one unit and writes it as one frame.
func (c *Channel) WriteEncrypted(w io.Writer, plaintext []byte) error {
	sealed, err := c.Encrypt(plaintext)
	if err != nil {
		return err
	}
	return c.writeFrame(w, sealed)
}

// ReadEncrypted reads and decrypts one frame. It returns io.EOF when the peer
// closed the stream cleanly on a frame boundary; any other failure is fatal
// for the conversation.
func (c *Channel) ReadEncrypted(r io.Reader) ([]byte, error) {
	sealed, err := c.readFrame(r)
	if err != nil {
		return nil, err
	}
	return c.Decrypt(sealed)
}

// Close zeroes the derived keys. The channel is unusable afterwards.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	zero(c.encKey)
	zero(c.macKey)
	c.encKey, c.macKey, c.private = nil, nil, nil
	c.closed = true
	return nil
}

func (c *Channel) keys() ([]byte, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, nil, ErrClosed
	}
	if c.encKey == nil || c.macKey == nil {
		return nil, nil, ErrKeyExchangeIncomplete
	}
	return c.encKey, c.macKey, nil
}

func (c *Channel) maxFrame() int {
	if c.MaxFrameSize <= 0 {
		return DefaultMaxFrameSize
	}
	return c.MaxFrameSize
}

func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrBadPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, ErrBadPadding
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, ErrBadPadding
		}
	}
	return b[:len(b)-n], nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
