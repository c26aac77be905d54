// rgb.go - VialRGB sub-protocol (spec.md section 4.7): effect
// enumeration, the internal<->VialRGB effect id bijection, per-LED info,
// and direct-set HSV packets. Grounded on the teacher's VideoOutput/
// DriverSink boundary discipline: this module only ever talks to light
// through its exported Command/Config types, never its internals.
package host

import (
	"encoding/binary"

	"github.com/coreboard/kbcore/internal/light"
)

// rgbEffectIDs is the VialRGB-facing numbering, independent of this
// module's internal light.Effect ordinals so the wire protocol stays
// stable even if internal effects are reordered.
var rgbEffectIDs = []light.Effect{
	light.Solid,
	light.Breathing,
	light.Reactive,
	light.CycleLeftRight,
	light.Gradient,
	light.Pinwheel,
	light.Raindrops,
	light.ReactiveSplash,
}

func effectToRGBID(e light.Effect) byte {
	for i, v := range rgbEffectIDs {
		if v == e {
			return byte(i)
		}
	}
	return 0
}

func rgbIDToEffect(id byte) (light.Effect, bool) {
	if int(id) < 0 || int(id) >= len(rgbEffectIDs) {
		return 0, false
	}
	return rgbEffectIDs[id], true
}

func (d *Dispatcher) handleVialRGB(buf []byte) {
	switch buf[2] {
	case RGBGetInfo:
		buf[3] = 1 // version

	case RGBGetEffectMax:
		binary.LittleEndian.PutUint16(buf[3:5], uint16(len(rgbEffectIDs)))

	case RGBGetSupportedIDs, RGBGetEffectList:
		for i := range rgbEffectIDs {
			if 3+i >= len(buf) {
				break
			}
			buf[3+i] = byte(i)
		}

	case RGBSetEffect:
		if eff, ok := rgbIDToEffect(buf[3]); ok && d.LightCommands != nil {
			d.LightCommands <- light.Command{Kind: light.CmdSetEffect, U8: uint8(eff)}
		}

	case RGBGetConfig:
		if d.LightState != nil {
			cfg := d.LightState()
			buf[3] = effectToRGBID(cfg.Effect)
			buf[4] = cfg.Speed
			buf[5] = cfg.Hue
			buf[6] = cfg.Sat
			buf[7] = cfg.Val
		}

	case RGBSetConfig:
		if d.LightCommands == nil {
			return
		}
		eff, _ := rgbIDToEffect(buf[3])
		d.LightCommands <- light.Command{Kind: light.CmdSetConfig, Cfg: light.Config{
			Enabled: true,
			Effect:  eff,
			Speed:   buf[4],
			Hue:     buf[5],
			Sat:     buf[6],
			Val:     buf[7],
		}}

	case RGBDirectSetCount:
		buf[3] = maxDirectSetLEDs

	case RGBDirectSet:
		d.handleDirectSet(buf)

	default:
		d.Logger.Printf("host: unknown vialrgb sub-command 0x%02x", buf[2])
	}
}

// maxDirectSetLEDs bounds a single direct-set packet's payload (spec.md
// section 4.7: "up to ~10 LEDs per frame") to what fits after the 4-byte
// header ([vial][vialrgb][sub-command][count]) at 4 bytes/LED (a 1-byte
// index, then H, S, V): 7 LEDs.
const maxDirectSetLEDs = (PayloadSize - 4) / 4

// handleDirectSet applies an explicit per-LED HSV override, one
// light.Command per LED, which the animator writes straight into its
// pixel buffer and pushes to the sink (light.CmdDirectSetLED).
func (d *Dispatcher) handleDirectSet(buf []byte) {
	if d.LightCommands == nil {
		return
	}
	count := int(buf[3])
	if count > maxDirectSetLEDs {
		count = maxDirectSetLEDs
	}
	for i := 0; i < count; i++ {
		off := 4 + i*4
		if off+4 > len(buf) {
			break
		}
		d.LightCommands <- light.Command{
			Kind: light.CmdDirectSetLED,
			LED:  [4]byte{buf[off], buf[off+1], buf[off+2], buf[off+3]},
		}
	}
}
