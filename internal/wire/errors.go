package wire

import (
	"errors"
	"fmt"
)

// ErrBufferFull is reported by the Writer when a record would not fit in the
// remaining capacity of the shared mutation buffer. Nothing is written; the
// producer is expected to check Err or Offset before relying on the buffer.
var ErrBufferFull = errors.New("mutation buffer full")

// ProtocolError is a fatal decode failure: an unrecognized opcode byte or a
// field truncated by the declared buffer length. It pins the byte offset at
// which decoding failed so a bad producer stream can be diagnosed.
type ProtocolError struct {
	Offset int
	Msg    string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error at byte %d: %s", e.Offset, e.Msg)
}

func protocolErrorf(offset int, format string, args ...any) *ProtocolError {
	return &ProtocolError{Offset: offset, Msg: fmt.Sprintf(format, args...)}
}
