package ps

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
)

const (
	// payloads up to this size are allocated up front, larger ones grow with the data actually read
	directReadLimit = 64 * 1024
	readBufferSize  = 4096
)

// Decoder reads a persistent store from a byte stream.
// The header is parsed by NewDecoder, records are read lazily by Next.
type Decoder struct {
	r      *bufio.Reader
	header StoreHeader
	read   uint32
	err    error
}

// NewDecoder detects the dialect of the store and parses its header.
//
// The detection probe is peeked, not consumed: in the Legacy case only the four
// count bytes are discarded and the remaining probe bytes become the start of the
// first record.
func NewDecoder(src io.Reader) (*Decoder, error) {
	d := &Decoder{r: bufio.NewReaderSize(src, readBufferSize)}

	probe, err := d.r.Peek(probeSize)
	if err != nil {
		// Case source ended before the probe was complete -> only an empty store is valid
		if errors.Is(err, io.EOF) {
			if header, ok := detectShort(probe); ok {
				d.header = header
				_, _ = d.r.Discard(len(probe))
				return d, nil
			}
			return nil, fmt.Errorf("%w: store header: got %d of %d bytes", ErrShortRead, len(probe), probeSize)
		}
		return nil, fmt.Errorf("%w: store header: %w", ErrIO, err)
	}

	// Commit to a dialect and consume only its header
	switch Detect(probe) {
	case DialectVersioned:
		d.header = StoreHeader{
			Dialect:  DialectVersioned,
			Version:  probe[0],
			KeyCount: byteOrder.Uint32(probe[1:5]),
		}
		_, _ = d.r.Discard(versionedHeaderSize)
	default:
		d.header = StoreHeader{
			Dialect:  DialectLegacy,
			KeyCount: byteOrder.Uint32(probe[0:4]),
		}
		_, _ = d.r.Discard(legacyHeaderSize)
	}

	return d, nil
}

// Header returns the parsed store header
func (d *Decoder) Header() StoreHeader {
	return d.header
}

// Next returns the next record. It returns io.EOF after KeyCount records.
// Any error is sticky: once a record failed, every later call fails the same way.
func (d *Decoder) Next() (KeyRecord, error) {
	if d.err != nil {
		return KeyRecord{}, d.err
	}
	if d.read >= d.header.KeyCount {
		return KeyRecord{}, io.EOF
	}

	rec, err := d.readRecord()
	if err != nil {
		d.err = fmt.Errorf("record %d of %d: %w", d.read, d.header.KeyCount, err)
		return KeyRecord{}, d.err
	}
	d.read++
	return rec, nil
}

// Records iterates over the remaining records. Iteration stops after the first error.
func (d *Decoder) Records() iter.Seq2[KeyRecord, error] {
	return func(yield func(KeyRecord, error) bool) {
		for {
			rec, err := d.Next()
			if err == io.EOF {
				return
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// CheckTrailing reports ErrTrailingData if bytes follow the last declared record.
// It must be called after all records were read.
func (d *Decoder) CheckTrailing() error {
	if d.err != nil {
		return d.err
	}
	if d.read < d.header.KeyCount {
		return fmt.Errorf("%w: %d records not read yet", ErrFormat, d.header.KeyCount-d.read)
	}
	_, err := d.r.Peek(1)
	switch {
	case err == nil:
		return ErrTrailingData
	case errors.Is(err, io.EOF):
		return nil
	default:
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
}

// Decode reads a complete store. Trailing bytes after the last record are ignored.
func Decode(src io.Reader) (StoreHeader, []KeyRecord, error) {
	d, err := NewDecoder(src)
	if err != nil {
		return StoreHeader{}, nil, err
	}

	records := make([]KeyRecord, 0, min(d.header.KeyCount, 1024))
	for rec, err := range d.Records() {
		if err != nil {
			return d.header, nil, err
		}
		records = append(records, rec)
	}
	return d.header, records, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (d *Decoder) readRecord() (KeyRecord, error) {
	var rec KeyRecord
	var fixed [versionedRecordHeaderSize]byte

	size := legacyRecordHeaderSize
	if d.header.Dialect == DialectVersioned {
		size = versionedRecordHeaderSize
	}

	// Fixed size fields first
	if err := d.readFull(fixed[:size], "record header"); err != nil {
		return rec, err
	}
	copy(rec.UUID[:], fixed[0:uuidSize])
	copy(rec.ParentUUID[:], fixed[uuidSize:2*uuidSize])
	pos := 2 * uuidSize
	pubSize := uint32(byteOrder.Uint16(fixed[pos : pos+2]))
	blobSize := uint32(byteOrder.Uint16(fixed[pos+2 : pos+4]))
	pos += 4

	var vendorSize uint32
	if d.header.Dialect == DialectVersioned {
		vendorSize = byteOrder.Uint32(fixed[pos : pos+4])
		pos += 4
	}
	rec.CacheFlags = byteOrder.Uint16(fixed[pos : pos+2])

	// Then the variable size payloads
	var err error
	if rec.PubData, err = d.readPayload(pubSize, "pub_data"); err != nil {
		return rec, err
	}
	if rec.Blob, err = d.readPayload(blobSize, "blob"); err != nil {
		return rec, err
	}
	if rec.VendorData, err = d.readPayload(vendorSize, "vendor_data"); err != nil {
		return rec, err
	}
	return rec, nil
}

// readPayload reads exactly n bytes. Sizes come from untrusted input, so large
// payloads are only allocated as far as the source really delivers data.
func (d *Decoder) readPayload(n uint32, field string) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	if n <= directReadLimit {
		buf := make([]byte, n)
		if err := d.readFull(buf, field); err != nil {
			return nil, err
		}
		return buf, nil
	}

	var buf bytes.Buffer
	copied, err := io.CopyN(&buf, d.r, int64(n))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s: got %d of %d bytes", ErrShortRead, field, copied, n)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrIO, field, err)
	}
	return buf.Bytes(), nil
}

func (d *Decoder) readFull(buf []byte, field string) error {
	n, err := io.ReadFull(d.r, buf)
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s: got %d of %d bytes", ErrShortRead, field, n, len(buf))
	}
	return fmt.Errorf("%w: %s: %w", ErrIO, field, err)
}
