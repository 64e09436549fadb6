package store

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/roach88/gatewire/internal/ir"
)

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2): the same
// notification always produces identical payload bytes.
var encMode cbor.EncMode

// decMode ignores unknown fields so older binaries can read payloads
// written by newer ones.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("store: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("store: CBOR decoder initialization failed: " + err.Error())
	}
}

// marshalNotification encodes a pending notification payload.
func marshalNotification(n ir.RawNotification) ([]byte, error) {
	data, err := encMode.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}
	return data, nil
}

// unmarshalNotification decodes a pending notification payload.
func unmarshalNotification(data []byte) (ir.RawNotification, error) {
	var n ir.RawNotification
	if err := decMode.Unmarshal(data, &n); err != nil {
		return ir.RawNotification{}, fmt.Errorf("unmarshal notification: %w", err)
	}
	return n, nil
}

// sqlID converts an identifier to SQLite's signed INTEGER. Gateway ids fit
// in 63 bits; the conversion is a bit-preserving round trip either way.
func sqlID(id ir.Snowflake) int64 {
	return int64(id)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
