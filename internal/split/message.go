// message.go - split wire messages (spec.md section 4.4 "Split Message").
package split

import (
	"github.com/coreboard/kbcore/internal/action"
	"github.com/coreboard/kbcore/internal/light"
)

// ToCentralTag discriminates a peripheral-to-central message.
type ToCentralTag uint8

const (
	TagKeyPress ToCentralTag = iota
	TagKeyRelease
)

// ToCentral is a key edge event forwarded from a peripheral half.
type ToCentral struct {
	Tag ToCentralTag `cbor:"0,keyasint"`
	Row int          `cbor:"1,keyasint"`
	Col int          `cbor:"2,keyasint"`
}

// ToEvent converts a decoded peripheral message into the action engine's
// local event type (used by internal/kb to feed a central's engine).
func (m ToCentral) ToEvent() action.Event {
	return action.Event{Row: m.Row, Col: m.Col, Pressed: m.Tag == TagKeyPress}
}

func toCentralFromEvent(ev action.Event) ToCentral {
	tag := TagKeyRelease
	if ev.Pressed {
		tag = TagKeyPress
	}
	return ToCentral{Tag: tag, Row: ev.Row, Col: ev.Col}
}

// ToPeripheralTag discriminates a central-to-peripheral message.
type ToPeripheralTag uint8

const (
	TagLighting ToPeripheralTag = iota
	TagUnderglow
	TagSetTime
)

// ToPeripheral carries a lighting/underglow command or a phase-lock
// SetTime snapshot out to every peripheral (spec.md section 4.4,
// "Central→peripherals uses a publish/subscribe channel").
type ToPeripheral struct {
	Tag      ToPeripheralTag `cbor:"0,keyasint"`
	Lighting light.Command   `cbor:"1,keyasint"`
	Tick     uint32          `cbor:"2,keyasint"`
}
