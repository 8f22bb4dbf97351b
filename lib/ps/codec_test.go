package ps

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testUUID returns an identifier whose first byte is b and all other bytes are zero
func testUUID(b byte) uuid.UUID {
	return uuid.UUID{b}
}

// testHierarchy returns a small forest: SRK -> A -> B, SRK -> C
func testHierarchy(withVendorData bool) []KeyRecord {
	records := []KeyRecord{
		{UUID: SRKUUID, ParentUUID: SRKUUID, PubData: []byte{0x01, 0x02, 0x03}, CacheFlags: 0x0001},
		{UUID: testUUID(0x0A), ParentUUID: SRKUUID, PubData: []byte{0xAA, 0xBB}, Blob: []byte{0xCC}, CacheFlags: 0x0002},
		{UUID: testUUID(0x0B), ParentUUID: testUUID(0x0A), Blob: []byte{0xDD, 0xEE, 0xFF}},
		{UUID: testUUID(0x0C), ParentUUID: SRKUUID, PubData: bytes.Repeat([]byte{0x42}, 300), Blob: bytes.Repeat([]byte{0x24}, 559)},
	}
	if withVendorData {
		records[1].VendorData = []byte("vendor")
		records[3].VendorData = bytes.Repeat([]byte{0x99}, 70*1024)
	}
	return records
}

func requireEqualRecords(t *testing.T, expected, actual []KeyRecord) {
	t.Helper()
	require.Len(t, actual, len(expected))
	for i := range expected {
		assert.Truef(t, expected[i].Equal(actual[i]), "record %d differs: expected %+v, got %+v", i, expected[i], actual[i])
	}
}

// legacyExampleBytes builds the two record legacy store by hand, field by field
func legacyExampleBytes() []byte {
	var b []byte
	b = append(b, 2, 0, 0, 0) // key_count

	// record A
	a := testUUID(0x01)
	b = append(b, a[:]...)
	b = append(b, SRKUUID[:]...)
	b = append(b, 2, 0) // pub_data_size
	b = append(b, 1, 0) // blob_size
	b = append(b, 0, 0) // cache_flags
	b = append(b, 0xAA, 0xBB)
	b = append(b, 0xCC)

	// record B
	bID := testUUID(0x02)
	b = append(b, bID[:]...)
	b = append(b, a[:]...)
	b = append(b, 0, 0) // pub_data_size
	b = append(b, 3, 0) // blob_size
	b = append(b, 0, 0) // cache_flags
	b = append(b, 0xDD, 0xEE, 0xFF)
	return b
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestLegacyExampleScenario(t *testing.T) {
	raw := legacyExampleBytes()

	header, records, err := Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, DialectLegacy, header.Dialect)
	assert.Equal(t, uint32(2), header.KeyCount)

	expected := []KeyRecord{
		{UUID: testUUID(0x01), ParentUUID: SRKUUID, PubData: []byte{0xAA, 0xBB}, Blob: []byte{0xCC}},
		{UUID: testUUID(0x02), ParentUUID: testUUID(0x01), Blob: []byte{0xDD, 0xEE, 0xFF}},
	}
	requireEqualRecords(t, expected, records)
	assert.Nil(t, records[1].PubData)
	assert.Nil(t, records[0].VendorData)

	var out bytes.Buffer
	require.NoError(t, Encode(&out, header, records))
	assert.Equal(t, raw, out.Bytes())
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		dialect Dialect
		records []KeyRecord
	}{
		{"Legacy", DialectLegacy, testHierarchy(false)},
		{"Versioned", DialectVersioned, testHierarchy(true)},
		{"VersionedWithoutVendorData", DialectVersioned, testHierarchy(false)},
		{"LegacyEmpty", DialectLegacy, nil},
		{"VersionedEmpty", DialectVersioned, nil},
		{"VersionedOnlyRoot", DialectVersioned, testHierarchy(false)[:1]},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			header := NewStoreHeader(tc.dialect, len(tc.records))

			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, header, tc.records))

			decodedHeader, decoded, err := Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, header, decodedHeader)
			requireEqualRecords(t, tc.records, decoded)
		})
	}
}

func TestDetect(t *testing.T) {
	versioned := append([]byte{1, 3, 0, 0, 0}, SRKUUID[:]...)

	zeroCount := append([]byte{1, 0, 0, 0, 0}, SRKUUID[:]...)
	otherMarker := append([]byte{2, 3, 0, 0, 0}, SRKUUID[:]...)
	other := testUUID(0x0A)
	otherUUID := append([]byte{1, 3, 0, 0, 0}, other[:]...)

	assert.Equal(t, DialectVersioned, Detect(versioned))
	assert.Equal(t, DialectLegacy, Detect(zeroCount))
	assert.Equal(t, DialectLegacy, Detect(otherMarker))
	assert.Equal(t, DialectLegacy, Detect(otherUUID))
	assert.Equal(t, DialectLegacy, Detect(versioned[:probeSize-1]))
	assert.Equal(t, DialectLegacy, Detect(nil))
}

func TestVersionedMarkerWithZeroCountIsReadAsLegacy(t *testing.T) {
	// 21 bytes: marker, zero count, SRK. Read as Legacy, key_count is 0x00000001
	// and the first record is incomplete.
	raw := append([]byte{1, 0, 0, 0, 0}, SRKUUID[:]...)

	d, err := NewDecoder(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, DialectLegacy, d.Header().Dialect)
	assert.Equal(t, uint32(1), d.Header().KeyCount)

	_, err = d.Next()
	assert.ErrorIs(t, err, ErrShortRead)

	// sticky error
	_, err2 := d.Next()
	assert.Equal(t, err, err2)
}

func TestLegacyRealignment(t *testing.T) {
	// The first legacy record starts inside the detection probe. Its identifier
	// must come out intact, including the bytes that were only peeked.
	rec := KeyRecord{
		UUID:       uuid.UUID{0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18, 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E, 0x1F},
		ParentUUID: SRKUUID,
		PubData:    []byte{0x01},
		CacheFlags: 0xBEEF,
	}

	raw, err := Marshal(NewStoreHeader(DialectLegacy, 1), []KeyRecord{rec})
	require.NoError(t, err)

	_, records, err := Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	requireEqualRecords(t, []KeyRecord{rec}, records)
}

func TestShortReadAtEveryOffset(t *testing.T) {
	for _, dialect := range []Dialect{DialectLegacy, DialectVersioned} {
		t.Run(dialect.String(), func(t *testing.T) {
			records := testHierarchy(dialect == DialectVersioned)
			raw, err := Marshal(NewStoreHeader(dialect, len(records)), records)
			require.NoError(t, err)

			for i := 0; i < len(raw); i++ {
				_, decoded, err := Decode(bytes.NewReader(raw[:i]))
				if err == nil {
					t.Fatalf("truncation at %d of %d decoded %d records without error", i, len(raw), len(decoded))
				}
				if !errors.Is(err, ErrIO) && !errors.Is(err, ErrFormat) {
					t.Fatalf("truncation at %d: unexpected error type: %v", i, err)
				}
			}
		})
	}
}

func TestLyingPayloadSize(t *testing.T) {
	var raw []byte
	raw = append(raw, 1, 1, 0, 0, 0)
	raw = append(raw, SRKUUID[:]...)
	raw = append(raw, SRKUUID[:]...)
	raw = append(raw, 0, 0, 0, 0)             // pub_data_size, blob_size
	raw = append(raw, 0xF0, 0xFF, 0xFF, 0xFF) // vendor_data_size
	raw = append(raw, 0, 0)                   // cache_flags
	raw = append(raw, 1, 2, 3)                // far less vendor data than declared

	_, _, err := Decode(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestTrailingBytes(t *testing.T) {
	records := testHierarchy(false)
	raw, err := Marshal(NewStoreHeader(DialectVersioned, len(records)), records)
	require.NoError(t, err)

	// Decode ignores trailing data
	_, decoded, err := Decode(bytes.NewReader(append(raw, 0xDE, 0xAD)))
	require.NoError(t, err)
	requireEqualRecords(t, records, decoded)

	// CheckTrailing reports it
	d, err := NewDecoder(bytes.NewReader(append(raw, 0xDE, 0xAD)))
	require.NoError(t, err)
	assert.Error(t, d.CheckTrailing(), "records not read yet")
	for _, err := range d.Records() {
		require.NoError(t, err)
	}
	assert.ErrorIs(t, d.CheckTrailing(), ErrTrailingData)

	// and accepts a clean end
	d, err = NewDecoder(bytes.NewReader(raw))
	require.NoError(t, err)
	for _, err := range d.Records() {
		require.NoError(t, err)
	}
	assert.NoError(t, d.CheckTrailing())
	_, err = d.Next()
	assert.Equal(t, io.EOF, err)
}

func TestShortSources(t *testing.T) {
	cases := []struct {
		name    string
		raw     []byte
		dialect Dialect
		wantErr bool
	}{
		{"Empty", nil, 0, true},
		{"EmptyVersioned", []byte{1, 0, 0, 0, 0}, DialectVersioned, false},
		{"EmptyLegacy", []byte{0, 0, 0, 0}, DialectLegacy, false},
		{"TruncatedCount", []byte{0, 0}, 0, true},
		{"NonEmptyLegacyHeaderOnly", []byte{1, 0, 0, 0}, 0, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			header, records, err := Decode(bytes.NewReader(tc.raw))
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrShortRead)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.dialect, header.Dialect)
			assert.Empty(t, records)
		})
	}
}

func TestEncodeValidation(t *testing.T) {
	t.Run("VersionedWithoutLeadingRoot", func(t *testing.T) {
		records := testHierarchy(false)[1:2]
		_, err := Marshal(NewStoreHeader(DialectVersioned, 1), records)
		assert.ErrorIs(t, err, ErrAmbiguousDialect)
	})

	t.Run("LegacyReadAsVersioned", func(t *testing.T) {
		// count=1 and uuid [5,0,...] place the SRK identifier at offset 5
		rec := KeyRecord{UUID: testUUID(0x05), ParentUUID: testUUID(0x01)}
		_, err := Marshal(NewStoreHeader(DialectLegacy, 1), []KeyRecord{rec})
		assert.ErrorIs(t, err, ErrAmbiguousDialect)
	})

	t.Run("VendorDataInLegacy", func(t *testing.T) {
		records := testHierarchy(true)
		_, err := Marshal(NewStoreHeader(DialectLegacy, len(records)), records)
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("OversizedPubData", func(t *testing.T) {
		rec := KeyRecord{UUID: SRKUUID, ParentUUID: SRKUUID, PubData: make([]byte, maxPubDataSize+1)}
		_, err := Marshal(NewStoreHeader(DialectVersioned, 1), []KeyRecord{rec})
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("CountMismatch", func(t *testing.T) {
		_, err := Marshal(NewStoreHeader(DialectVersioned, 3), testHierarchy(false)[:1])
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("UnsupportedVersion", func(t *testing.T) {
		header := StoreHeader{Dialect: DialectVersioned, Version: 2}
		_, err := Marshal(header, nil)
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("device gone") }

func TestIOErrors(t *testing.T) {
	err := Encode(failingWriter{}, NewStoreHeader(DialectVersioned, 0), nil)
	assert.ErrorIs(t, err, ErrIO)

	_, _, err = Decode(failingReader{})
	assert.ErrorIs(t, err, ErrIO)
	assert.NotErrorIs(t, err, ErrShortRead)
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("legacy")
	require.NoError(t, err)
	assert.Equal(t, DialectLegacy, d)

	d, err = ParseDialect("versioned")
	require.NoError(t, err)
	assert.Equal(t, DialectVersioned, d)

	_, err = ParseDialect("v2")
	assert.Error(t, err)
}
