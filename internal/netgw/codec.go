// Package netgw implements the wire-protocol gateway (spec.md §6 "Wire
// protocol (consumed, not defined here)"): a pluggable Codec plus the
// length-prefixed framing, Session and Server types that run the
// network I/O side of the pump. Grounded on the teacher's
// internal/net/codec.go, session.go, server.go — the goroutine-per-session
// channel pattern and the accept-loop/newConns/deadCh server pattern carry
// over; the L1J-specific XOR cipher and fixed binary packet layout do not
// (the core only ever sees op.Operation).
package netgw

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/worldforge/worldcore/internal/op"
)

// Codec is the pluggable wire format contract spec.md §6 names: the core
// never imports a concrete codec, only this interface.
type Codec interface {
	Encode(o op.Operation) ([]byte, error)
	Decode(b []byte) (op.Operation, error)
}

// FrameCodec is the default Codec: JSON payloads (op.Operation's own
// MarshalJSON/UnmarshalJSON), length-prefixed the way the teacher's
// ReadFrame/WriteFrame frame an L1J packet.
type FrameCodec struct{}

func (FrameCodec) Encode(o op.Operation) ([]byte, error) {
	return json.Marshal(o)
}

func (FrameCodec) Decode(b []byte) (op.Operation, error) {
	var o op.Operation
	if err := json.Unmarshal(b, &o); err != nil {
		return op.Operation{}, fmt.Errorf("decode operation: %w", err)
	}
	return o, nil
}

// maxFrameLen bounds a single frame so a corrupt length header cannot
// trigger an unbounded allocation (teacher's ReadFrame uses the same
// defensive bound against its 16-bit length header).
const maxFrameLen = 1 << 20

// ReadFrame reads one length-prefixed frame from r.
// Wire format: [4 bytes big-endian length][payload].
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	length := binary.BigEndian.Uint32(header[:])
	if length == 0 || length > maxFrameLen {
		return nil, fmt.Errorf("invalid frame length: %d", length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload (%d bytes): %w", length, err)
	}
	return payload, nil
}

// WriteFrame writes one length-prefixed frame to w.
func WriteFrame(w io.Writer, payload []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}
