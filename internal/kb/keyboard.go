// keyboard.go - wiring: assembles C1-C7 into one cooperative task set
// (spec.md section 5). Grounded on the teacher's top-level component
// wiring in main.go (construct every subsystem, start each as its own
// goroutine, shut down together on one signal) generalized from
// golang.org/x/sync/errgroup's single-process-group convention, which
// the teacher does not use directly but the rest of the corpus
// (periph.io-based hosts) favors for exactly this "one error stops the
// group" shutdown discipline.
package kb

import (
	"context"
	"log"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/coreboard/kbcore/internal/action"
	"github.com/coreboard/kbcore/internal/bus"
	"github.com/coreboard/kbcore/internal/hid"
	"github.com/coreboard/kbcore/internal/host"
	"github.com/coreboard/kbcore/internal/light"
	"github.com/coreboard/kbcore/internal/matrix"
	"github.com/coreboard/kbcore/internal/split"
)

// Role distinguishes a central half (owns C2/C3/C7, talks USB/BLE HID to
// the host) from a peripheral half (owns C1/C4 locally, plus C5 when it
// has an LED layout and sink).
type Role int

const (
	RoleCentral Role = iota
	RolePeripheral
)

// Definition is the static, board-specific wiring a concrete keyboard
// provides: dimensions, pins, keymap, LED layout, and split role.
type Definition struct {
	Role Role
	Rows, Cols int
	Pins   matrix.Pins
	Keymap *action.Keymap

	Layout *light.Layout
	Sink   light.DriverSink
	FPS    int

	SplitDial split.Dialer

	KeyboardUID      uint64
	DefinitionBlob   []byte
}

// Keyboard owns every task the definition wires together and runs them
// as one cooperative group until ctx is cancelled or one task errors.
type Keyboard struct {
	def *Definition

	Matrix    *matrix.Sampler
	Engine    *action.Engine
	Assembler *hid.Assembler
	Animator  *light.Animator
	Transport *split.Transport
	Dispatcher *host.Dispatcher

	matrixEvents    chan matrix.Event
	fromPeripherals chan split.ToCentral
	toPeripherals   *bus.PubSub[split.ToPeripheral]
	lightCommands   chan light.Command
	animatorMatrixEvents chan light.Press

	// currentTick mirrors runEngine's tick counter for Transport's
	// periodic resync snapshot, read from a different goroutine.
	currentTick atomic.Uint64
}

func New(def *Definition) *Keyboard {
	kb := &Keyboard{
		def:             def,
		matrixEvents:    make(chan matrix.Event, 8),
		fromPeripherals: make(chan split.ToCentral, 8),
		toPeripherals:   bus.NewPubSub[split.ToPeripheral](4, 4),
		lightCommands:   make(chan light.Command, 8),
		animatorMatrixEvents: make(chan light.Press, 8),
	}

	kb.Matrix = matrix.NewSampler(def.Rows, def.Cols, def.Pins, nil)

	if def.Role == RoleCentral {
		kb.Engine = action.NewEngine(def.Keymap)
		kb.Assembler = hid.NewAssembler()
		kb.Engine.OnReport = kb.Assembler.Submit
		kb.Engine.OnCustom = kb.handleCustom

		kb.Dispatcher = host.NewDispatcher(def.Keymap, def.DefinitionBlob, def.KeyboardUID)
		kb.Dispatcher.LightCommands = kb.lightCommands
		combo := []([2]int){{0, 0}, {0, 1}}
		kb.Dispatcher.Unlocker = host.NewUnlocker(func() bool { return kb.Matrix.AllPressed(combo) })

		if def.SplitDial != nil {
			kb.Transport = split.NewCentralTransport(def.SplitDial, kb.fromPeripherals, kb.toPeripherals)
			kb.Transport.SnapshotFn = func() split.ToPeripheral {
				msg := split.ToPeripheral{Tag: split.TagSetTime, Tick: uint32(kb.currentTick.Load())}
				if kb.Animator != nil {
					msg.Lighting = light.Command{Kind: light.CmdSetConfig, Cfg: kb.Animator.State()}
				}
				return msg
			}
		}
	} else {
		toCentralOut := make(chan split.ToCentral, 8)
		kb.Transport = split.NewPeripheralTransport(def.SplitDial, toCentralOut, kb.onToPeripheral)
		go func() {
			for ev := range kb.matrixEvents {
				split.PushEvent(toCentralOut, action.Event{Row: ev.Row, Col: ev.Col, Pressed: ev.Pressed})
			}
		}()
	}

	if def.Layout != nil && def.Sink != nil {
		kb.Animator = light.NewAnimator(def.Layout, def.Sink, def.FPS, kb.lightCommands, kb.animatorMatrixEvents)
	}

	return kb
}

func (kb *Keyboard) handleCustom(kind action.CustomKind, payload any) {
	switch kind {
	case action.CustomLighting:
		if cmd, ok := payload.(light.Command); ok {
			kb.lightCommands <- cmd
			if kb.toPeripherals != nil {
				kb.toPeripherals.Publish(split.ToPeripheral{Tag: split.TagLighting, Lighting: cmd})
			}
		}
	case action.CustomUnderglow:
		if cmd, ok := payload.(light.Command); ok {
			kb.lightCommands <- cmd
		}
	case action.CustomBluetooth, action.CustomHidOutputToggle:
		// Out of scope (spec.md section 1: USB/BLE HID transport below
		// the report-queue boundary); logged for operator visibility only.
		log.Printf("kb: custom event %v with no local handler", kind)
	}
}

// onToPeripheral is the peripheral-side hook invoked by split.Transport
// whenever a ToPeripheral message arrives from the central half: it
// forwards the lighting command to this half's own animator. A
// TagSetTime snapshot carries no Lighting command of its own kind
// unless the central attached one (its Lighting field would otherwise
// be the zero-value CmdToggle, which must not be forwarded), so it is
// handled separately: the tick re-phases this half's animator, and any
// attached CmdSetConfig re-converges its full lighting state.
func (kb *Keyboard) onToPeripheral(msg split.ToPeripheral) {
	if msg.Tag == split.TagSetTime {
		select {
		case kb.lightCommands <- light.Command{Kind: light.CmdSetTime, Tick: msg.Tick}:
		default:
		}
		if msg.Lighting.Kind == light.CmdSetConfig {
			select {
			case kb.lightCommands <- msg.Lighting:
			default:
			}
		}
		return
	}
	select {
	case kb.lightCommands <- msg.Lighting:
	default:
	}
}

// Run starts every wired task and blocks until ctx is cancelled or one
// task's error tears the group down (spec.md section 7: no task's error
// should propagate as a panic; errgroup gives each task the same
// catch-and-resume discipline at the top level instead).
func (kb *Keyboard) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return kb.Matrix.Run(ctx, kb.matrixEvents)
	})

	if kb.Engine != nil {
		g.Go(func() error {
			kb.runEngine(ctx)
			return nil
		})
	}

	if kb.Animator != nil {
		g.Go(func() error {
			kb.Animator.Run(ctx)
			return nil
		})
	}

	if kb.Transport != nil {
		g.Go(func() error {
			kb.Transport.Run(ctx)
			return nil
		})
	}

	return g.Wait()
}

// runEngine feeds local matrix events and (on a central) forwarded
// peripheral events into the action engine, plus a 1ms Advance tick for
// timeout-based resolutions (spec.md section 5, "Action engine... short
// sleeps (~1ms)").
func (kb *Keyboard) runEngine(ctx context.Context) {
	var tick uint64
	ticker := newMillisecondTicker()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-kb.matrixEvents:
			tick++
			kb.currentTick.Store(tick)
			kb.Engine.HandleEvent(tick, action.Event{Row: ev.Row, Col: ev.Col, Pressed: ev.Pressed})
			kb.animatorMatrixEvents <- light.Press{Row: ev.Row, Col: ev.Col, Tick: uint32(tick)}
		case msg := <-kb.fromPeripherals:
			tick++
			kb.currentTick.Store(tick)
			ev := msg.ToEvent()
			kb.Engine.HandleEvent(tick, ev)
			kb.animatorMatrixEvents <- light.Press{Row: ev.Row, Col: ev.Col, Tick: uint32(tick)}
		case <-ticker.C():
			tick++
			kb.currentTick.Store(tick)
			kb.Engine.Advance(tick)
			if kb.Dispatcher != nil && kb.Dispatcher.Unlocker != nil {
				kb.Dispatcher.Unlocker.Poll(wallNow())
			}
		}
	}
}
