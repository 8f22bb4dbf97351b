package serializer

import (
	"reflect"
	"testing"

	"github.com/ValentinKolb/tcsd/lib/ps"
	"github.com/ValentinKolb/tcsd/rpc/common"
	"github.com/google/uuid"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"Binary": NewBinarySerializer,
}

var testKeyID = uuid.MustParse("6a3f2c1e-9b0d-4e7a-8c55-0f1e2d3c4b5a")

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Empty message (e.g. a successful CloseContext response)
		{},

		// OpenContext response
		{ContextID: 7},

		// RegisterKey request
		{
			UUID:       testKeyID,
			ParentUUID: ps.SRKUUID,
			PubData:    []byte("public part"),
			Blob:       []byte("wrapped key blob"),
			VendorData: []byte("vendor"),
			CacheFlags: 0x0102,
		},

		// EnumerateChildren response
		{UUIDs: []uuid.UUID{testKeyID, ps.SRKUUID}},

		// TransmitCommand request
		{Payload: []byte{0x80, 0x01, 0x00, 0x00, 0x00, 0x0C, 0x00, 0x00, 0x01, 0x7B, 0x00, 0x08}},

		// Error response
		{Err: "key 6a3f2c1e-9b0d-4e7a-8c55-0f1e2d3c4b5a is not registered"},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestDeserializeResetsMessage tests that fields of a reused message do not survive
func TestDeserializeResetsMessage(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			data, err := serializer.Serialize(common.Message{ContextID: 3})
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			result := common.Message{Err: "stale", Payload: []byte("stale")}
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}
			if !reflect.DeepEqual(common.Message{ContextID: 3}, result) {
				t.Errorf("Stale fields survived: %+v", result)
			}
		})
	}
}

// TestBinarySerializerSpecific tests specific edge cases for the binary serializer
func TestBinarySerializerSpecific(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name string
		msg  common.Message
	}{
		{
			name: "Empty payloads but not nil",
			msg: common.Message{
				UUID:       testKeyID,
				PubData:    []byte{},
				Blob:       []byte{},
				VendorData: []byte{},
				Payload:    []byte{},
			},
		},
		{
			name: "Empty uuid list but not nil",
			msg:  common.Message{UUIDs: []uuid.UUID{}},
		},
		{
			name: "Nil uuid is omitted",
			msg:  common.Message{UUID: uuid.Nil, ParentUUID: ps.SRKUUID},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := serializer.Serialize(tc.msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			// DeepEqual distinguishes nil and empty slices
			if !reflect.DeepEqual(tc.msg, result) {
				t.Errorf("Mismatch after round trip:\nOriginal: %+v\nResult: %+v", tc.msg, result)
			}
		})
	}
}

// TestBinaryResultDoesNotAlias tests that deserialized payloads are copies of the input
func TestBinaryResultDoesNotAlias(t *testing.T) {
	serializer := NewBinarySerializer()
	data, err := serializer.Serialize(common.Message{Payload: []byte{1, 2, 3}})
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}

	var result common.Message
	if err := serializer.Deserialize(data, &result); err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}
	for i := range data {
		data[i] = 0xFF
	}
	if !reflect.DeepEqual([]byte{1, 2, 3}, result.Payload) {
		t.Errorf("Payload changed with the input buffer: %v", result.Payload)
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{0},
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{0, 0},
			expectError: false,
		},
		{
			name:        "Truncated uuid",
			data:        []byte{0, 1, 0xAA, 0xBB, 0xCC},
			expectError: true,
		},
		{
			name:        "Invalid length for public data",
			data:        []byte{0, 4, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Uuid count larger than data",
			data:        []byte{0, 64, 0xFF, 0xFF, 0xFF, 0xFF},
			expectError: true,
		},
		{
			name:        "Invalid length for payload",
			data:        []byte{2, 0, 0, 0, 0, 10}, // Claims payload length 10 but no bytes provided
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}
