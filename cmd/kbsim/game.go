// game.go - the simulator's ebiten.Game: draws the LED layout as a grid
// of colored squares and turns host keyboard presses into matrix
// events via GUIPins. Grounded on the teacher's EbitenOutput (the
// Update/Draw/Layout split, and handleKeyboardInput's physical-key ->
// logical-event translation in video_backend_ebiten.go), generalized
// from emulated-terminal keystrokes to matrix (row,col) presses.
package main

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/coreboard/kbcore/internal/hid"
	"github.com/coreboard/kbcore/internal/kb"
)

const (
	simRows = 4
	simCols = 4

	cellSize = 72
	cellGap  = 8
	margin   = 24
)

// physicalKeys maps a host keyboard scancode to a simulated matrix cell,
// laid out as three QWERTY letter rows over one number row so the whole demo
// board fits under the player's left hand.
var physicalKeys = [simRows][simCols]ebiten.Key{
	{ebiten.KeyQ, ebiten.KeyW, ebiten.KeyE, ebiten.KeyR},
	{ebiten.KeyA, ebiten.KeyS, ebiten.KeyD, ebiten.KeyF},
	{ebiten.KeyZ, ebiten.KeyX, ebiten.KeyC, ebiten.KeyV},
	{ebiten.Key1, ebiten.Key2, ebiten.Key3, ebiten.Key4},
}

type game struct {
	pins   *kb.GUIPins
	sink   *screenSink
	face   font.Face
	cancel func()

	lastReport hid.Report
	haveReport bool
}

func newGame(pins *kb.GUIPins, sink *screenSink, reports <-chan hid.Report, cancel func()) *game {
	g := &game{pins: pins, sink: sink, face: basicfont.Face7x13, cancel: cancel}
	go func() {
		for r := range reports {
			g.lastReport = r
			g.haveReport = true
		}
	}()
	return g
}

func (g *game) Update() error {
	if ebiten.IsWindowBeingClosed() || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		g.cancel()
		return ebiten.Termination
	}
	for r := 0; r < simRows; r++ {
		for c := 0; c < simCols; c++ {
			key := physicalKeys[r][c]
			if inpututil.IsKeyJustPressed(key) {
				g.pins.Set(r, c, true)
			} else if inpututil.IsKeyJustReleased(key) {
				g.pins.Set(r, c, false)
			}
		}
	}
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{R: 20, G: 20, B: 24, A: 255})

	frame := g.sink.Snapshot()
	for r := 0; r < simRows; r++ {
		for c := 0; c < simCols; c++ {
			x := float32(margin + c*(cellSize+cellGap))
			y := float32(margin + r*(cellSize+cellGap))

			idx := r*simCols + c
			fill := color.RGBA{R: 40, G: 40, B: 48, A: 255}
			if frame != nil && idx*3+2 < len(frame) {
				fill = color.RGBA{R: frame[idx*3], G: frame[idx*3+1], B: frame[idx*3+2], A: 255}
			}
			vector.DrawFilledRect(screen, x, y, cellSize, cellSize, fill, false)

			label := fmt.Sprintf("%d,%d", r, c)
			text.Draw(screen, label, g.face, int(x)+6, int(y)+cellSize-8, color.White)
		}
	}

	status := "no report yet"
	if g.haveReport {
		status = fmt.Sprintf("mods=%#02x keys=%v overflow=%v", g.lastReport.Modifiers, g.lastReport.Keys, g.lastReport.Overflow)
	}
	text.Draw(screen, status, g.face, margin, margin+simRows*(cellSize+cellGap)+16, color.White)
	text.Draw(screen, "QWER/ASDF/ZXCV/1234 keys drive the simulated matrix, Esc quits", g.face, margin, margin+simRows*(cellSize+cellGap)+34, color.RGBA{R: 160, G: 160, B: 160, A: 255})
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return margin*2 + simCols*(cellSize+cellGap), margin*2 + simRows*(cellSize+cellGap) + 48
}
