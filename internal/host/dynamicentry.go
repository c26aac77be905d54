// dynamicentry.go - Vial "dynamic entry" queries (spec.md section 4.7;
// SPEC_FULL.md section 12, rumcake dynamic keymap layer-count query).
// Vial uses this sub-protocol to enumerate runtime-configurable entities
// the static keyboard definition doesn't cover — this module exposes the
// one dynamic entity it actually has: the active layer count.
package host

import "encoding/binary"

const (
	dynamicEntryTypeLayerCount byte = 0x01
)

func (d *Dispatcher) handleDynamicEntry(buf []byte) {
	// Request: [0xFE][0x0D][entry type][entry index]
	switch buf[2] {
	case dynamicEntryTypeLayerCount:
		binary.LittleEndian.PutUint32(buf[3:7], uint32(d.Keymap.LayerCount()))
	default:
		d.Logger.Printf("host: unknown dynamic entry type 0x%02x", buf[2])
	}
}
