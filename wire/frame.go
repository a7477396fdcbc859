// Package wire carries fixgate sessions over a plain byte stream, without a
// FIX engine. Outbound frames are written exactly as the router encoded
// them; inbound frames are split by BodyLength and only their sequence
// numbers are tracked.
package wire

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/bjaus/fixgate"
)

// trailerLen is the length of "10=NNN\x01".
const trailerLen = 7

// MaxBodyLength bounds the BodyLength a peer may announce.
const MaxBodyLength = 1 << 20

// ReadFrame reads one "8=...\x019=N\x01...10=NNN\x01" frame from r. The frame
// is split using BodyLength; its content is not validated.
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	begin, err := readField(r, "8=")
	if err != nil {
		return nil, err
	}
	length, err := readField(r, "9=")
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(string(length[2 : len(length)-1]))
	if err != nil || n < 0 || n > MaxBodyLength {
		return nil, fmt.Errorf("%w: body length %q", fixgate.ErrMalformedMessage, length)
	}

	frame := make([]byte, 0, len(begin)+len(length)+n+trailerLen)
	frame = append(frame, begin...)
	frame = append(frame, length...)
	rest := make([]byte, n+trailerLen)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(rest[n:], []byte("10=")) || rest[len(rest)-1] != fixgate.SOH {
		return nil, fmt.Errorf("%w: no checksum after %d body bytes", fixgate.ErrMalformedMessage, n)
	}
	return append(frame, rest...), nil
}

// readField returns the next field including its SOH. The returned slice is
// a copy. A field longer than the reader's buffer is malformed.
func readField(r *bufio.Reader, prefix string) ([]byte, error) {
	b, err := r.ReadSlice(fixgate.SOH)
	if errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("%w: %s field exceeds %d bytes", fixgate.ErrMalformedMessage, prefix, r.Size())
	}
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(b, []byte(prefix)) {
		return nil, fmt.Errorf("%w: expected %s, got %q", fixgate.ErrMalformedMessage, prefix, b)
	}
	return bytes.Clone(b), nil
}
