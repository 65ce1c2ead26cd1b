package pipecrypt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

func (c *Channel) writeFrame(w io.Writer, data []byte) error {
	if len(data) == 0 || len(data) > c.maxFrame() {
		return fmt.Errorf("%w: %d", ErrInvalidFrameLength, len(data))
	}
	buf := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[4:], data)
	if _, err := w.Write(buf); err != nil {
		return err
	}
	if f, ok := w.(interface{ Sync() error }); ok {
		_ = f.Sync()
	}
	return nil
}

func (c *Channel) readFrame(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("read length prefix: %w", err)
		}
		return nil, err
	}

	length := int32(binary.LittleEndian.Uint32(prefix[:]))
	if length <= 0 || int(length) > c.maxFrame() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFrameLength, length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	return data, nil
}
