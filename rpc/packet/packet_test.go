package packet

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(t *testing.T, h Header, body []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, h, body))
	return buf.Bytes()
}

func TestHeaderLayout(t *testing.T) {
	data := frame(t, Header{Code: 7, Context: 0x01020304}, []byte{0xAA, 0xBB})
	assert.Equal(t, []byte{
		0, 0, 0, 7,
		1, 2, 3, 4,
		0, 0, 0, 2,
		0xAA, 0xBB,
	}, data)
}

func TestReadRequests(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(frame(t, Header{Code: 1}, nil))
	stream.Write(frame(t, Header{Code: 7, Context: 3}, []byte("command")))

	f := NewFramer(&stream, make([]byte, 64))

	h, body, err := f.ReadRequest()
	require.NoError(t, err)
	assert.Equal(t, Header{Code: 1}, h)
	assert.Empty(t, body)

	h, body, err = f.ReadRequest()
	require.NoError(t, err)
	assert.Equal(t, Header{Code: 7, Context: 3, BodyLen: 7}, h)
	assert.Equal(t, []byte("command"), body)

	_, _, err = f.ReadRequest()
	assert.Equal(t, io.EOF, err)
}

func TestShortReads(t *testing.T) {
	data := frame(t, Header{Code: 3, Context: 1}, []byte("body"))

	// Every truncation inside the packet is a short read, never a clean EOF
	for cut := 1; cut < len(data); cut++ {
		f := NewFramer(bytes.NewReader(data[:cut]), make([]byte, 64))
		_, _, err := f.ReadRequest()
		assert.ErrorIs(t, err, ErrShortRead, "cut at %d", cut)
	}
}

func TestBodyLargerThanBuffer(t *testing.T) {
	data := frame(t, Header{Code: 7}, make([]byte, 65))
	f := NewFramer(bytes.NewReader(data), make([]byte, 64))

	_, _, err := f.ReadRequest()
	assert.ErrorIs(t, err, ErrFraming)
}

func TestBodyAliasesBuffer(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(frame(t, Header{Code: 1}, []byte("first")))
	stream.Write(frame(t, Header{Code: 1}, []byte("other")))

	f := NewFramer(&stream, make([]byte, 16))
	_, first, err := f.ReadRequest()
	require.NoError(t, err)
	_, _, err = f.ReadRequest()
	require.NoError(t, err)

	assert.Equal(t, []byte("other"), first)
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestReadErrorsArePassedThrough(t *testing.T) {
	cause := errors.New("connection reset")
	f := NewFramer(failingReader{cause}, make([]byte, 16))

	_, _, err := f.ReadRequest()
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrShortRead)
}
