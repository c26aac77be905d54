// keymap.go - a demo keymap for the simulator's built-in 4x4 board: a
// plain letter on every cell except the two rightmost of the bottom row:
// the bottom-right carries a HoldTap (tap: a digit, hold: momentary layer
// 1) and its left neighbour a TapDance (single: a digit, double: another)
// to exercise C2 beyond simple key presses.
package main

import (
	"github.com/coreboard/kbcore/internal/action"
	"github.com/coreboard/kbcore/internal/light"
)

func demoKeymap() *action.Keymap {
	base := action.NewLayer(simRows, simCols)
	shift := action.NewLayer(simRows, simCols)

	code := action.Keycode(0x04) // HID usage A
	for r := 0; r < simRows; r++ {
		for c := 0; c < simCols; c++ {
			base[r][c] = action.NewKey(code)
			code++
		}
	}

	base[simRows-1][simCols-1] = action.NewHoldTap(action.HoldTapSpec{
		Timeout: 200,
		Tap:     action.NewKey(0x27), // "0"
		Hold:    action.NewLayerMomentary(1),
		Policy:  action.PolicyHoldOnOtherKeyPress,
	})
	base[simRows-1][simCols-2] = action.NewTapDance(action.TapDanceSpec{
		Actions: []*action.Action{
			action.NewKey(0x1E), // "1"
			action.NewKey(0x1F), // "2"
		},
		Timeout: 180,
	})

	// Layer 1, top-left: cycle the lighting effect, so the HoldTap at
	// the bottom-right key doubles as an effect-cycle button when held.
	shift[0][0] = action.NewCustom(action.CustomLighting, light.Command{Kind: light.CmdNextEffect})

	return action.NewKeymap(simRows, simCols, base, shift)
}
