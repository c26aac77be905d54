// Command kbsim is a desktop simulator for the keyboard firmware core:
// an ebiten window stands in for the physical matrix and LEDs so the
// full C1-C7 pipeline can be driven and watched without real hardware.
// Grounded on the teacher's main.go wiring (construct the backend,
// start it, block until the window closes) adapted from a chip emulator
// frontend to internal/kb's cooperative task set.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/coreboard/kbcore/internal/hid"
	"github.com/coreboard/kbcore/internal/kb"
	"github.com/coreboard/kbcore/internal/light"
)

func main() {
	fmt.Println("kbsim - keyboard core simulator")

	pins := kb.NewGUIPins(simRows, simCols)
	sink := newScreenSink()

	layout := make([]light.LEDEntry, 0, simRows*simCols)
	for r := 0; r < simRows; r++ {
		for c := 0; c < simCols; c++ {
			layout = append(layout, light.LEDEntry{
				Row: r, Col: c, Has: true,
				Pos: light.Point{X: uint8(c * (255 / simCols)), Y: uint8(r * (255 / simRows))},
			})
		}
	}

	def := &kb.Definition{
		Role:   kb.RoleCentral,
		Rows:   simRows,
		Cols:   simCols,
		Pins:   pins,
		Keymap: demoKeymap(),
		Layout: light.NewLayout(layout),
		Sink:   sink,
		FPS:    30,

		KeyboardUID:    0x4b425349,
		DefinitionBlob: nil,
	}
	keyboard := kb.New(def)

	reports := make(chan hid.Report, 16)
	go func() {
		for r := range keyboard.Assembler.C() {
			select {
			case reports <- r:
			default:
			}
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		if err := keyboard.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("kbsim: keyboard run: %v", err)
		}
	}()

	g := newGame(pins, sink, reports, stop)
	ebiten.SetWindowTitle("kbsim")
	ebiten.SetWindowResizable(true)
	if err := ebiten.RunGame(g); err != nil {
		log.Printf("kbsim: ebiten: %v", err)
	}
}
