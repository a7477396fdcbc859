package wire

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/fixgate"
)

func encode(t *testing.T, msgType string, seq int) []byte {
	t.Helper()
	m := fixgate.NewMessage(msgType)
	m.Header.BeginString = "FIX.4.4"
	m.Header.SenderCompID = "BANZAI"
	m.Header.TargetCompID = "EXEC"
	m.Header.MsgSeqNum = seq
	m.Header.SendingTime = time.Date(2024, 3, 5, 12, 4, 5, 0, time.UTC)
	if msgType == "8" {
		require.NoError(t, m.Set(fixgate.TagClOrdID, fixgate.String("X1")))
	}
	raw, err := fixgate.NewCodec(nil).EncodeMessage(m)
	require.NoError(t, err)
	return raw
}

func TestReadFrame(t *testing.T) {
	first := encode(t, "0", 1)
	second := encode(t, "8", 2)
	r := bufio.NewReader(bytes.NewReader(append(append([]byte{}, first...), second...)))

	got, err := ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	got, err = ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, second, got)

	_, err = ReadFrame(r)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrameMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no begin string", "9=5\x0135=0\x0110=000\x01"},
		{"no body length", "8=FIX.4.4\x0135=0\x0110=000\x01"},
		{"bad body length", "8=FIX.4.4\x019=x\x0135=0\x0110=000\x01"},
		{"body length too short", "8=FIX.4.4\x019=2\x0135=0\x0110=000\x01"},
		{"body length overflows", "8=FIX.4.4\x019=9223372036854775807\x0135=0\x0110=000\x01"},
		{"body length above limit", "8=FIX.4.4\x019=1048577\x0135=0\x0110=000\x01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFrame(bufio.NewReader(strings.NewReader(tt.input)))
			assert.ErrorIs(t, err, fixgate.ErrMalformedMessage)
		})
	}
}

func TestReadFrameUnterminatedField(t *testing.T) {
	input := "8=FIX.4.4" + strings.Repeat("4", 8192)
	_, err := ReadFrame(bufio.NewReaderSize(strings.NewReader(input), 4096))
	assert.ErrorIs(t, err, fixgate.ErrMalformedMessage)
}

func TestReadFrameTruncated(t *testing.T) {
	raw := encode(t, "8", 1)
	_, err := ReadFrame(bufio.NewReader(bytes.NewReader(raw[:len(raw)-3])))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF), "got %v", err)
}
