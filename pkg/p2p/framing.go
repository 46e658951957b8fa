package p2p

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxFrameSize bounds a single frame's declared length, guarding against
// a corrupt or hostile length prefix driving an unbounded allocation.
const maxFrameSize = 64 * 1024 * 1024

// WriteFrame writes payload prefixed by its length as a big-endian
// 32-bit byte count.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("p2p: write frame length: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("p2p: write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame. io.EOF (or a zero-length
// frame) signals a clean close.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 {
		return nil, io.EOF
	}
	if n > maxFrameSize {
		return nil, fmt.Errorf("p2p: frame length %d exceeds maximum %d", n, maxFrameSize)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("p2p: read frame payload: %w", err)
	}
	return buf, nil
}
