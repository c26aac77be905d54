// protocol.go - C7, the host protocol dispatcher (spec.md section 4.7).
// Grounded on the teacher's TerminalMMIO request/response convention
// (terminal_host.go drives a byte-oriented device with a fixed small
// buffer); generalized from a terminal's line buffer to the 32-byte Via/
// Vial raw HID payload, with a flat command-id-first dispatch table
// instead of line parsing.
package host

import (
	"encoding/binary"
	"log"
	"time"

	"github.com/coreboard/kbcore/internal/action"
	"github.com/coreboard/kbcore/internal/light"
	"github.com/sigurn/crc16"
)

// PayloadSize is the effective Via/Vial raw HID payload (spec.md section
// 6: "one raw HID interface... 64-byte endpoint, 32-byte effective
// payload").
const PayloadSize = 32

// Command ids. Via ids occupy the low range; Vial and VialRGB reuse the
// upstream QMK/Vial numbering convention of a dedicated 0xFE "vial
// prefix" byte followed by a Vial sub-id, and a separate VialRGB prefix.
const (
	CmdGetProtocolVersion byte = 0x01
	CmdGetLayerCount      byte = 0x11
	CmdKeymapGetBuffer    byte = 0x12
	CmdKeymapSetKeycode   byte = 0x13 // Via: SET_KEYCODE (layer,row,col,code)
	CmdMacroGetCount      byte = 0x0C
	CmdMacroGetBufferSize byte = 0x0D
	CmdMacroGetBuffer     byte = 0x0E
	CmdMacroSetBuffer     byte = 0x0F

	CmdVial byte = 0xFE
)

// Vial sub-command ids, dispatched on buf[1] when buf[0] == CmdVial.
const (
	VialGetKeyboardID        byte = 0x00
	VialGetSize              byte = 0x01
	VialGetDefinition        byte = 0x02
	VialGetUnlockStatus      byte = 0x05
	VialUnlockStart          byte = 0x06
	VialUnlockPoll           byte = 0x07
	VialLock                 byte = 0x08
	VialQMKSettingsQuery     byte = 0x09
	VialQMKSettingsGet       byte = 0x0A
	VialQMKSettingsSet       byte = 0x0B
	VialDynamicEntryOp       byte = 0x0D
	VialRGBPrefix            byte = 0xB0
)

// VialRGB sub-command ids, dispatched on buf[2] when buf[0] == CmdVial
// and buf[1] == VialRGBPrefix.
const (
	RGBGetInfo         byte = 0x00
	RGBGetEffectList   byte = 0x01
	RGBGetEffectMax    byte = 0x02
	RGBGetSupportedIDs byte = 0x03
	RGBSetEffect       byte = 0x04
	RGBSetConfig       byte = 0x05
	RGBGetConfig       byte = 0x06
	RGBDirectSetCount  byte = 0x07
	RGBDirectSet       byte = 0x08
)

var crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// Dispatcher answers Via/Vial/VialRGB requests in place over a 32-byte
// buffer: Handle overwrites buf with the response before returning.
type Dispatcher struct {
	Logger *log.Logger

	Keymap        *action.Keymap
	ProtocolVer   uint16
	KeyboardUID   uint64
	Definition    []byte // opaque compressed layout blob, paged 32 bytes at a time
	Macros        *MacroStore

	LightCommands chan<- light.Command
	LightState    func() light.Config

	Unlocker *Unlocker
}

func NewDispatcher(km *action.Keymap, definition []byte, uid uint64) *Dispatcher {
	return &Dispatcher{
		Logger:      log.Default(),
		Keymap:      km,
		ProtocolVer: 6,
		KeyboardUID: uid,
		Definition:  definition,
		Macros:      NewMacroStore(),
	}
}

// Handle dispatches one request, rewriting buf in place with the
// response. Always returns promptly; no request blocks on I/O.
func (d *Dispatcher) Handle(buf []byte) {
	if len(buf) < PayloadSize {
		return
	}
	switch buf[0] {
	case CmdGetProtocolVersion:
		binary.LittleEndian.PutUint16(buf[1:3], d.ProtocolVer)

	case CmdGetLayerCount:
		buf[1] = byte(d.Keymap.LayerCount())

	case CmdKeymapGetBuffer:
		d.handleKeymapGetBuffer(buf)

	case CmdKeymapSetKeycode:
		d.handleKeymapSetKeycode(buf)

	case CmdMacroGetCount:
		buf[1] = byte(d.Macros.Count())

	case CmdMacroGetBufferSize:
		binary.LittleEndian.PutUint16(buf[1:3], uint16(d.Macros.BufferSize()))

	case CmdMacroGetBuffer:
		d.handleMacroGetBuffer(buf)

	case CmdMacroSetBuffer:
		d.handleMacroSetBuffer(buf)

	case CmdVial:
		d.handleVial(buf)

	default:
		d.Logger.Printf("host: unknown command id 0x%02x", buf[0])
	}
}

func (d *Dispatcher) handleKeymapGetBuffer(buf []byte) {
	// Request: [cmd][layer hi][layer lo][start hi][start lo][count]
	layer := int(binary.BigEndian.Uint16(buf[1:3]))
	start := int(binary.BigEndian.Uint16(buf[3:5]))
	count := int(buf[5])
	if count > 14 {
		count = 14 // 2 bytes/keycode fits the remaining 28 response bytes
	}
	for i := 0; i < count; i++ {
		cellIdx := start + i
		row := cellIdx / d.Keymap.Cols
		col := cellIdx % d.Keymap.Cols
		var code action.Keycode
		if a := d.Keymap.Get(layer, row, col); a.Kind == action.Key {
			code = a.Code
		}
		binary.BigEndian.PutUint16(buf[i*2:i*2+2], uint16(code))
	}
}

func (d *Dispatcher) handleKeymapSetKeycode(buf []byte) {
	// Request: [cmd][layer][row][col][code hi][code lo]
	if d.Unlocker != nil && !d.Unlocker.Writable() {
		buf[0] = 0 // signal rejection by zeroing the command byte
		return
	}
	layer := int(buf[1])
	row := int(buf[2])
	col := int(buf[3])
	code := action.Keycode(binary.BigEndian.Uint16(buf[4:6]))
	d.Keymap.Set(layer, row, col, action.NewKey(code))
}

func (d *Dispatcher) handleMacroGetBuffer(buf []byte) {
	offset := int(binary.BigEndian.Uint16(buf[1:3]))
	size := int(buf[3])
	if size > 28 {
		size = 28
	}
	page := d.Macros.ReadPage(offset, size)
	copy(buf[4:4+len(page)], page)
}

func (d *Dispatcher) handleMacroSetBuffer(buf []byte) {
	if d.Unlocker != nil && !d.Unlocker.Writable() {
		return
	}
	offset := int(binary.BigEndian.Uint16(buf[1:3]))
	size := int(buf[3])
	if size > 28 {
		size = 28
	}
	d.Macros.WritePage(offset, buf[4:4+size])
}

func (d *Dispatcher) handleVial(buf []byte) {
	switch buf[1] {
	case VialGetKeyboardID:
		binary.LittleEndian.PutUint16(buf[2:4], d.ProtocolVer)
		binary.LittleEndian.PutUint64(buf[4:12], d.KeyboardUID)

	case VialGetSize:
		binary.LittleEndian.PutUint32(buf[2:6], uint32(len(d.Definition)))

	case VialGetDefinition:
		offset := int(binary.LittleEndian.Uint32(buf[2:6]))
		page := pageOf(d.Definition, offset, PayloadSize)
		copy(buf, page)

	case VialGetUnlockStatus:
		if d.Unlocker != nil && d.Unlocker.State() == Unlocked {
			buf[2] = 1
		} else {
			buf[2] = 0
		}

	case VialUnlockStart:
		if d.Unlocker != nil {
			d.Unlocker.Start(now())
		}

	case VialUnlockPoll:
		if d.Unlocker != nil {
			d.Unlocker.Poll(now())
			buf[2] = byte(d.Unlocker.State())
		}

	case VialLock:
		if d.Unlocker != nil {
			d.Unlocker.Lock()
		}

	case VialQMKSettingsQuery, VialQMKSettingsGet, VialQMKSettingsSet:
		// QMK-settings stubs (spec.md section 4.7): this firmware exposes
		// no tunable QMK settings, so every query reports zero entries.
		buf[2] = 0

	case VialDynamicEntryOp:
		d.handleDynamicEntry(buf)

	case VialRGBPrefix:
		d.handleVialRGB(buf)

	default:
		d.Logger.Printf("host: unknown vial sub-command 0x%02x", buf[1])
	}
}

// pageOf extracts one fixed-size page starting at offset, zero-padding
// past the end of data (spec.md section 6, "length reported verbatim").
func pageOf(data []byte, offset, size int) []byte {
	page := make([]byte, size)
	if offset >= len(data) {
		return page
	}
	end := offset + size
	if end > len(data) {
		end = len(data)
	}
	copy(page, data[offset:end])
	return page
}

// now is a seam so tests can control unlock-countdown timing without
// depending on wall-clock time.
var now = time.Now

// checksumBlock computes the CRC16 a storage task would validate a
// stored keymap/config blob with (SPEC_FULL.md section 12, rumcake
// eeprom-style checksum, supplemented since storage itself is out of
// scope).
func checksumBlock(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}
