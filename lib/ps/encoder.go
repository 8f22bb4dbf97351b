package ps

import (
	"bytes"
	"fmt"
	"io"
)

// Encode writes header and records in the header's dialect.
// The whole store is serialized in memory first and then written with a single call,
// so a validation error never leaves partial output behind.
func Encode(w io.Writer, header StoreHeader, records []KeyRecord) error {
	data, err := Marshal(header, records)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("%w: write store: %w", ErrIO, err)
	}
	return nil
}

// Marshal returns the encoded store
func Marshal(header StoreHeader, records []KeyRecord) ([]byte, error) {
	if int64(header.KeyCount) != int64(len(records)) {
		return nil, fmt.Errorf("%w: header declares %d keys, got %d records", ErrFormat, header.KeyCount, len(records))
	}

	var buf bytes.Buffer
	buf.Grow(encodedSize(header.Dialect, records))

	// Write the store header
	switch header.Dialect {
	case DialectVersioned:
		if header.Version != CurrentVersion {
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, header.Version)
		}
		buf.WriteByte(header.Version)
		buf.Write(byteOrder.AppendUint32(nil, header.KeyCount))
	case DialectLegacy:
		buf.Write(byteOrder.AppendUint32(nil, header.KeyCount))
	default:
		return nil, fmt.Errorf("%w: unknown dialect %d", ErrFormat, header.Dialect)
	}

	// Write the records
	for i, rec := range records {
		if err := appendRecord(&buf, header.Dialect, rec); err != nil {
			return nil, fmt.Errorf("record %d (%s): %w", i, rec.UUID, err)
		}
	}

	// The output must be read back as the dialect it was written in
	out := buf.Bytes()
	if len(out) >= probeSize && Detect(out[:probeSize]) != header.Dialect {
		return nil, ErrAmbiguousDialect
	}
	return out, nil
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

func appendRecord(buf *bytes.Buffer, dialect Dialect, rec KeyRecord) error {
	if len(rec.PubData) > maxPubDataSize {
		return fmt.Errorf("%w: pub_data is %d bytes", ErrTooLarge, len(rec.PubData))
	}
	if len(rec.Blob) > maxBlobSize {
		return fmt.Errorf("%w: blob is %d bytes", ErrTooLarge, len(rec.Blob))
	}
	if int64(len(rec.VendorData)) > maxVendorDataSize {
		return fmt.Errorf("%w: vendor_data is %d bytes", ErrTooLarge, len(rec.VendorData))
	}
	if dialect == DialectLegacy && len(rec.VendorData) > 0 {
		return fmt.Errorf("%w: vendor_data is not supported by the legacy dialect", ErrFormat)
	}

	buf.Write(rec.UUID[:])
	buf.Write(rec.ParentUUID[:])
	buf.Write(byteOrder.AppendUint16(nil, uint16(len(rec.PubData))))
	buf.Write(byteOrder.AppendUint16(nil, uint16(len(rec.Blob))))
	if dialect == DialectVersioned {
		buf.Write(byteOrder.AppendUint32(nil, uint32(len(rec.VendorData))))
	}
	buf.Write(byteOrder.AppendUint16(nil, rec.CacheFlags))

	buf.Write(rec.PubData)
	buf.Write(rec.Blob)
	if dialect == DialectVersioned {
		buf.Write(rec.VendorData)
	}
	return nil
}

func encodedSize(dialect Dialect, records []KeyRecord) int {
	size, recHeader := legacyHeaderSize, legacyRecordHeaderSize
	if dialect == DialectVersioned {
		size, recHeader = versionedHeaderSize, versionedRecordHeaderSize
	}
	for _, rec := range records {
		size += recHeader + len(rec.PubData) + len(rec.Blob) + len(rec.VendorData)
	}
	return size
}
