package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
)

// HeaderSize is the size of the fixed packet header
const HeaderSize = 12

var (
	// ErrFraming is returned for packets that cannot be framed, e.g. a body larger
	// than the receive buffer. The connection must be closed, the stream cannot be
	// resynchronised.
	ErrFraming = errors.New("packet: framing error")
	// ErrShortRead is returned if the peer closed the connection inside a packet
	ErrShortRead = errors.New("packet: short read")
)

// Header is the fixed size header of every packet, all fields in network byte order.
// In requests Code is the ordinal of the operation, in responses the result code.
type Header struct {
	Code    uint32
	Context uint32
	BodyLen uint32
}

// MarshalTo writes the header into b, which must be at least HeaderSize bytes long
func (h Header) MarshalTo(b []byte) {
	binary.BigEndian.PutUint32(b[0:4], h.Code)
	binary.BigEndian.PutUint32(b[4:8], h.Context)
	binary.BigEndian.PutUint32(b[8:12], h.BodyLen)
}

// ParseHeader reads a header from b, which must be at least HeaderSize bytes long
func ParseHeader(b []byte) Header {
	return Header{
		Code:    binary.BigEndian.Uint32(b[0:4]),
		Context: binary.BigEndian.Uint32(b[4:8]),
		BodyLen: binary.BigEndian.Uint32(b[8:12]),
	}
}

// --------------------------------------------------------------------------
// Framer
// --------------------------------------------------------------------------

// Framer reads complete packets from a stream into a buffer it owns.
// A Framer is used by a single goroutine.
type Framer struct {
	r      io.Reader
	header [HeaderSize]byte
	buf    []byte
}

// NewFramer creates a framer reading from r. buf is the receive buffer, its capacity
// is the largest body that is accepted.
func NewFramer(r io.Reader, buf []byte) *Framer {
	return &Framer{r: r, buf: buf[:cap(buf)]}
}

// ReadHeader blocks until a complete header was read.
// It returns io.EOF if the stream ended cleanly before the first header byte.
func (f *Framer) ReadHeader() (Header, error) {
	n, err := io.ReadFull(f.r, f.header[:])
	switch {
	case err == nil:
		return ParseHeader(f.header[:]), nil
	case errors.Is(err, io.EOF) && n == 0:
		return Header{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return Header{}, fmt.Errorf("%w: %d of %d header bytes", ErrShortRead, n, HeaderSize)
	default:
		return Header{}, err
	}
}

// ReadBody reads the body announced by h. The returned slice aliases the receive
// buffer and is only valid until the next read.
func (f *Framer) ReadBody(h Header) ([]byte, error) {
	if uint64(h.BodyLen) > uint64(len(f.buf)) {
		return nil, fmt.Errorf("%w: body of %d bytes exceeds the receive buffer of %d bytes", ErrFraming, h.BodyLen, len(f.buf))
	}
	body := f.buf[:h.BodyLen]
	n, err := io.ReadFull(f.r, body)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("%w: %d of %d body bytes", ErrShortRead, n, h.BodyLen)
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

// ReadRequest reads one complete packet, see ReadHeader and ReadBody
func (f *Framer) ReadRequest() (Header, []byte, error) {
	h, err := f.ReadHeader()
	if err != nil {
		return h, nil, err
	}
	body, err := f.ReadBody(h)
	return h, body, err
}

// --------------------------------------------------------------------------
// Writing
// --------------------------------------------------------------------------

// WriteFrame writes header and body with a single write where the writer supports it.
// BodyLen is taken from body.
func WriteFrame(w io.Writer, h Header, body []byte) error {
	if uint64(len(body)) > uint64(^uint32(0)) {
		return fmt.Errorf("%w: body of %d bytes", ErrFraming, len(body))
	}
	h.BodyLen = uint32(len(body))

	var header [HeaderSize]byte
	h.MarshalTo(header[:])

	buffers := net.Buffers{header[:]}
	if len(body) > 0 {
		buffers = append(buffers, body)
	}
	_, err := buffers.WriteTo(w)
	return err
}
