// frame.go - wire framing: CBOR-encode the message, append a CRC16, then
// COBS-encode the whole thing as a zero-terminated frame (spec.md section
// 4.4). CRC16 catches the "malformed frame" case spec.md says must be
// dropped-with-log without tearing down the connection.
package split

import (
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/sigurn/crc16"
)

var crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// FrameError is returned by the Dial* functions and by Link reads and
// writes; in-loop
// decode failures are logged and dropped, never returned as an error
// value (spec.md section 7).
type FrameError struct {
	Operation string
	Details   string
	Err       error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("split %s failed: %s: %v", e.Operation, e.Details, e.Err)
	}
	return fmt.Sprintf("split %s failed: %s", e.Operation, e.Details)
}

// encodeFrame serializes v, appends a CRC16 over the serialized bytes,
// COBS-encodes the result, and appends the 0x00 delimiter.
func encodeFrame(v any) ([]byte, error) {
	payload, err := cbor.Marshal(v)
	if err != nil {
		return nil, err
	}
	sum := crc16.Checksum(payload, crcTable)
	var sumBuf [2]byte
	binary.BigEndian.PutUint16(sumBuf[:], sum)
	payload = append(payload, sumBuf[:]...)

	encoded := encodeCOBS(payload)
	return append(encoded, 0x00), nil
}

// decodeFrame reverses encodeFrame (frame must already have its trailing
// 0x00 delimiter stripped) and unmarshals into v. ok is false for any
// COBS, CRC, or CBOR failure — the caller logs and drops the frame.
func decodeFrame(frame []byte, v any) (ok bool) {
	decoded, cok := decodeCOBS(frame)
	if !cok || len(decoded) < 2 {
		return false
	}
	payload, sumBytes := decoded[:len(decoded)-2], decoded[len(decoded)-2:]
	want := binary.BigEndian.Uint16(sumBytes)
	got := crc16.Checksum(payload, crcTable)
	if want != got {
		return false
	}
	if err := cbor.Unmarshal(payload, v); err != nil {
		return false
	}
	return true
}
