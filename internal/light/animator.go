// animator.go - the lighting animator task (C5, spec.md section 4.5).
// Grounded on the teacher's single cooperative render-goroutine
// convention (video_backend_ebiten.go's frame-ticker loop) generalized
// from a video chip's frame buffer to an LED pixel buffer.
package light

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"
)

func (e Effect) animated() bool { return e != Solid }

// Animator owns one effect family's frame loop: default 20 FPS for
// backlight matrix animators, 30 for underglow (spec.md section 4.5).
type Animator struct {
	Logger *log.Logger
	Layout *Layout
	Sink   DriverSink
	FPS    int

	Commands     <-chan Command
	MatrixEvents <-chan Press

	cfg       Config
	tick      uint32
	recent    [8]Press
	recentLen int
	rng       *rand.Rand
	buf       []byte

	mu    sync.Mutex
	state Config
}

func NewAnimator(layout *Layout, sink DriverSink, fps int, commands <-chan Command, matrixEvents <-chan Press) *Animator {
	return &Animator{
		Logger:       log.Default(),
		Layout:       layout,
		Sink:         sink,
		FPS:          fps,
		Commands:     commands,
		MatrixEvents: matrixEvents,
		cfg:          Config{Enabled: true, Effect: Solid, Sat: 255, Val: 255},
		rng:          rand.New(rand.NewSource(1)),
		buf:          make([]byte, layout.BufSize()),
	}
}

// State returns the last-published configuration snapshot (spec.md
// section 5: "Animator state... observable via a state cell (last-writer-
// wins; readers get the latest value)").
func (a *Animator) State() Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Animator) publishState() {
	a.mu.Lock()
	a.state = a.cfg
	a.mu.Unlock()
}

// Run drives the animator until ctx is cancelled.
func (a *Animator) Run(ctx context.Context) {
	period := time.Second / 20
	if a.FPS > 0 {
		period = time.Second / time.Duration(a.FPS)
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	wasOn := a.cfg.Enabled

	for {
		if !a.cfg.Effect.animated() && !a.hasPendingWork() {
			// Static idle: suspend indefinitely on the command/event
			// channels rather than burn the ticker (spec.md section 4.5,
			// step 1).
			select {
			case <-ctx.Done():
				return
			case cmd, ok := <-a.Commands:
				if !ok {
					return
				}
				a.applyCommand(cmd)
				a.publishState()
			case p, ok := <-a.MatrixEvents:
				if !ok {
					return
				}
				a.registerPress(p)
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.drainPending()
			a.tick++
			fn := effectTable[a.cfg.Effect]
			if fn != nil {
				fn(a.tick, a.cfg, a.Layout, a.recentSnapshot(), a.rng, a.buf)
			}
			if a.cfg.Enabled {
				if !wasOn {
					if err := a.Sink.TurnOn(); err != nil {
						a.Logger.Printf("light: turn on: %v", err)
					}
					wasOn = true
				}
				if err := a.Sink.Write(a.buf); err != nil {
					a.Logger.Printf("light: write: %v", err)
				}
			} else if wasOn {
				if err := a.Sink.TurnOff(); err != nil {
					a.Logger.Printf("light: turn off: %v", err)
				}
				wasOn = false
			}
		}
	}
}

func (a *Animator) hasPendingWork() bool {
	select {
	case cmd, ok := <-a.Commands:
		if ok {
			a.applyCommand(cmd)
			a.publishState()
		}
		return true
	default:
	}
	select {
	case p, ok := <-a.MatrixEvents:
		if ok {
			a.registerPress(p)
		}
		return true
	default:
	}
	return false
}

func (a *Animator) drainPending() {
	for {
		select {
		case cmd, ok := <-a.Commands:
			if !ok {
				return
			}
			a.applyCommand(cmd)
		default:
			goto events
		}
	}
events:
	for {
		select {
		case p, ok := <-a.MatrixEvents:
			if !ok {
				return
			}
			a.registerPress(p)
		default:
			return
		}
	}
}

// registerPress updates the recent-presses ring (spec.md section 4.5,
// "Reactive-event registration"): an existing entry's timestamp is
// refreshed; otherwise it is pushed, evicting the oldest.
func (a *Animator) registerPress(p Press) {
	for i := 0; i < a.recentLen; i++ {
		if a.recent[i].Row == p.Row && a.recent[i].Col == p.Col {
			a.recent[i].Tick = p.Tick
			return
		}
	}
	if a.recentLen < len(a.recent) {
		a.recent[a.recentLen] = p
		a.recentLen++
		return
	}
	copy(a.recent[:], a.recent[1:])
	a.recent[len(a.recent)-1] = p
}

func (a *Animator) recentSnapshot() []Press {
	return append([]Press(nil), a.recent[:a.recentLen]...)
}

// setEffect assigns the animator's active effect, reseeding the PRNG on
// entry into Raindrops (SPEC_FULL.md section 12, from
// rumcake/src/backlight/rgb_matrix_animations.rs) so restarting the
// effect doesn't replay the same drop pattern.
func (a *Animator) setEffect(e Effect) {
	if e == Raindrops && a.cfg.Effect != Raindrops {
		a.rng = rand.New(rand.NewSource(int64(a.tick) + 1))
	}
	a.cfg.Effect = e
}

func (a *Animator) applyCommand(cmd Command) {
	switch cmd.Kind {
	case CmdToggle:
		a.cfg.Enabled = !a.cfg.Enabled
	case CmdNextEffect:
		a.setEffect(Effect((int(a.cfg.Effect) + 1) % int(effectCount)))
	case CmdPrevEffect:
		a.setEffect(Effect((int(a.cfg.Effect) - 1 + int(effectCount)) % int(effectCount)))
	case CmdSetEffect:
		if Effect(cmd.U8) < effectCount {
			a.setEffect(Effect(cmd.U8))
		}
	case CmdSetHue:
		a.cfg.Hue = cmd.U8
	case CmdSetSat:
		a.cfg.Sat = cmd.U8
	case CmdSetVal:
		a.cfg.Val = cmd.U8
	case CmdSetSpeed:
		a.cfg.Speed = cmd.U8
	case CmdAdjustHue:
		a.cfg.Hue = saturatingAdd8(a.cfg.Hue, cmd.I16)
	case CmdAdjustSat:
		a.cfg.Sat = saturatingAdd8(a.cfg.Sat, cmd.I16)
	case CmdAdjustVal:
		a.cfg.Val = saturatingAdd8(a.cfg.Val, cmd.I16)
	case CmdAdjustSpeed:
		a.cfg.Speed = saturatingAdd8(a.cfg.Speed, cmd.I16)
	case CmdSetConfig:
		effect := cmd.Cfg.Effect
		cmd.Cfg.Effect = a.cfg.Effect
		a.cfg = cmd.Cfg
		a.setEffect(effect)
	case CmdSetTime:
		a.tick = cmd.Tick
	case CmdSaveConfig:
		// Signals the storage task; this module has no storage backend
		// (out of scope, spec.md non-goals), so this is a no-op hook a
		// caller can observe via State() after a SetConfig reply.
	case CmdDirectSetLED:
		idx := int(cmd.LED[0])
		if idx < 0 || idx*3+2 >= len(a.buf) {
			return
		}
		r, g, b := hsvToRGB(cmd.LED[1], cmd.LED[2], cmd.LED[3])
		a.buf[idx*3], a.buf[idx*3+1], a.buf[idx*3+2] = r, g, b
		if a.cfg.Enabled {
			if err := a.Sink.Write(a.buf); err != nil {
				a.Logger.Printf("light: write: %v", err)
			}
		}
	}
}
