// Package ps implements the on-disk encoding of the system persistent store,
// the file in which the daemon keeps the registered key hierarchy across reboots.
//
// Two binary dialects exist and both are readable:
//
//	Legacy (no version marker):
//
//	  [u32  key_count      ]
//	  [16B  uuid           ]
//	  [16B  parent_uuid    ]
//	  [u16  pub_data_size  ]
//	  [u16  blob_size      ]
//	  [u16  cache_flags    ]
//	  [...  pub_data       ]
//	  [...  blob           ]
//	  [...]
//
//	Versioned (marker byte = 1):
//
//	  [u8   marker = 1     ]
//	  [u32  key_count      ]
//	  [16B  uuid           ]
//	  [16B  parent_uuid    ]
//	  [u16  pub_data_size  ]
//	  [u16  blob_size      ]
//	  [u32  vendor_data_size]
//	  [u16  cache_flags    ]
//	  [...  pub_data       ]
//	  [...  blob           ]
//	  [...  vendor_data    ]
//	  [...]
//
// All integers are little endian in both dialects.
//
// The dialect of an existing file is not stored anywhere, it is guessed: the first
// 21 bytes are peeked and the file is treated as Versioned only if it starts with
// the marker, a non-zero key count and the storage root key identifier (the SRK is
// always the first record of a Versioned store). Everything else is read as Legacy.
// Only the Versioned dialect is written by the daemon, Legacy encoding exists for
// tooling and tests.
//
// Key Components:
//
//   - Decoder: streaming reader returning the StoreHeader and then one KeyRecord at
//     a time. A short read is always an error, never the end of the store.
//
//   - Encode: the byte exact inverse of the decoder. It refuses to produce output
//     that the detection heuristic would read back as the other dialect.
//
//   - Detect: the dialect heuristic on its own, shared by decoder and encoder.
package ps
