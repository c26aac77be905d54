// engine.go - the layered action engine (C2, spec.md section 4.2).
//
// Grounded on the teacher's shadow-register tick model (coprocessor_manager.go:
// external events are drained into shadow state, a single state-machine walk
// resolves what's ready, nothing blocks the caller) and its Reset()-to-defaults
// convention (component_reset.go).
package action

import "log"

// Event is a press/release edge, already in logical layout coordinates,
// as produced by internal/matrix or forwarded by internal/split.
type Event struct {
	Row, Col int
	Pressed  bool
}

// Report is the engine's current pressed-keycode multiset, handed to C3
// for NKRO assembly. Equality is by set contents (spec.md section 3).
type Report struct {
	Codes []Keycode
}

func (r Report) equal(o Report) bool {
	if len(r.Codes) != len(o.Codes) {
		return false
	}
	counts := make(map[Keycode]int, len(r.Codes))
	for _, c := range r.Codes {
		counts[c]++
	}
	for _, c := range o.Codes {
		counts[c]--
	}
	for _, n := range counts {
		if n != 0 {
			return false
		}
	}
	return true
}

type cellKey struct{ row, col int }

// Engine owns the layer stack, the single pending HoldTap/TapDance
// waiter, OneShot bookkeeping, the macro queue, and the active keycode
// multiset. It is driven exclusively by one task (spec.md section 5);
// none of its fields need locking.
type Engine struct {
	Keymap *Keymap
	Logger *log.Logger

	// OnReport is invoked whenever the active keycode multiset changes
	// (report coalescing: unchanged multisets never re-invoke it).
	OnReport func(Report)
	// OnCustom is invoked when a Custom action is activated on Press.
	OnCustom func(kind CustomKind, payload any)

	defaultLayer int
	momentary    []int  // momentary layer stack, press order (oldest first)
	toggled      uint32 // bitmask of toggled layers

	active map[Keycode]int // refcounted multiset of currently-pressed codes
	lastReport Report

	// held remembers, for every physically-held cell, which
	// resolved action is in effect, so Release always undoes exactly
	// what Press applied even if the layer stack changes mid-hold.
	held map[cellKey]*Action

	pending *waiter // at most one outstanding HoldTap/TapDance decision
	oneshot *oneShotState
	macro   []macroStep

	// pendingTapRelease holds HoldTap/TapDance tap resolutions whose
	// virtual release is deferred to the start of the next HandleEvent or
	// Advance call, so the tap is visible in at least one emitted report
	// (spec.md section 4.2, single-emission-per-tick).
	pendingTapRelease []tapRelease

	lastTapByCell map[cellKey]uint64 // for HoldTap TapHoldInterval

	now uint64
}

type macroStep struct {
	due   uint64
	press bool
	code  Keycode
}

func NewEngine(km *Keymap) *Engine {
	return &Engine{
		Keymap:        km,
		Logger:        log.Default(),
		active:        make(map[Keycode]int),
		held:          make(map[cellKey]*Action),
		lastTapByCell: make(map[cellKey]uint64),
	}
}

// activeLayers returns the ordered list of layer indices to resolve
// against, topmost first: the momentary stack (most recent first), then
// toggled layers (descending), then the default layer.
func (e *Engine) activeLayers() []int {
	layers := make([]int, 0, len(e.momentary)+2)
	for i := len(e.momentary) - 1; i >= 0; i-- {
		layers = append(layers, e.momentary[i])
	}
	for n := 31; n >= 0; n-- {
		if e.toggled&(1<<uint(n)) != 0 {
			layers = append(layers, n)
		}
	}
	layers = append(layers, e.defaultLayer)
	return layers
}

func (e *Engine) resolve(row, col int) *Action {
	if e.Keymap == nil {
		return NoOpAction()
	}
	return e.Keymap.Resolve(e.activeLayers(), row, col)
}

// HandleEvent processes one externally-sourced edge event (from the local
// matrix sampler, or forwarded from a peripheral over split transport).
func (e *Engine) HandleEvent(now uint64, ev Event) {
	e.now = now
	e.runDueMacroSteps(now)

	if e.pending != nil {
		e.feedPending(ev, now)
	} else {
		e.dispatch(ev, now)
	}
	e.checkPendingResolution(now)
	e.emit()
}

// Advance is called periodically (spec.md: every ~1ms) even without a new
// event, so timeout-based resolutions (HoldTap timeout, TapDance timeout,
// OneShot timeout, macro delays) fire on schedule.
func (e *Engine) Advance(now uint64) {
	e.now = now
	e.runDueMacroSteps(now)
	e.checkPendingResolution(now)
	e.checkOneShotTimeout(now)
	e.emit()
}

func (e *Engine) emit() {
	report := Report{Codes: e.snapshotCodes()}
	if report.equal(e.lastReport) {
		return
	}
	e.lastReport = report
	if e.OnReport != nil {
		e.OnReport(report)
	}
}

func (e *Engine) snapshotCodes() []Keycode {
	codes := make([]Keycode, 0, len(e.active))
	for k, n := range e.active {
		if n > 0 {
			codes = append(codes, k)
		}
	}
	return codes
}

func (e *Engine) addCode(k Keycode)    { e.active[k]++ }
func (e *Engine) removeCode(k Keycode) {
	if e.active[k] > 0 {
		e.active[k]--
		if e.active[k] == 0 {
			delete(e.active, k)
		}
	}
}

// dispatch applies a single event with no pending waiter in the way.
func (e *Engine) dispatch(ev Event, now uint64) {
	key := cellKey{ev.Row, ev.Col}

	var a *Action
	if ev.Pressed {
		a = e.resolve(ev.Row, ev.Col)
	} else {
		// Releases must undo exactly what the matching Press applied,
		// even if the layer stack shifted in between.
		if held, ok := e.held[key]; ok {
			a = held
		} else {
			a = e.resolve(ev.Row, ev.Col)
		}
	}

	e.applyResolved(key, a, ev.Pressed, now)
}

// applyResolved applies the concrete effect of a resolved action. It is
// also the replay path used once a pending HoldTap/TapDance resolves.
func (e *Engine) applyResolved(key cellKey, a *Action, pressed bool, now uint64) {
	if a == nil {
		a = NoOpAction()
	}

	if a.Kind == OneShot {
		if pressed {
			e.handleOneShotPress(key, a.OS, now)
		}
		return // OneShot keycodes are tracked by e.oneshot, never by e.held
	}

	if pressed {
		e.oneshotQualify(key, now)
	}

	switch a.Kind {
	case NoOp, Transparent:
		// no-op

	case Key:
		if pressed {
			e.held[key] = a
			e.addCode(a.Code)
		} else {
			e.removeCode(a.Code)
			delete(e.held, key)
		}

	case MultiKey:
		if pressed {
			e.held[key] = a
			for _, c := range a.Codes {
				e.addCode(c)
			}
		} else {
			for _, c := range a.Codes {
				e.removeCode(c)
			}
			delete(e.held, key)
		}

	case MultiAction:
		if pressed {
			e.held[key] = a
		} else {
			delete(e.held, key)
		}
		for _, inner := range a.Acts {
			e.applyResolved(key, inner, pressed, now)
		}

	case LayerMomentary:
		if pressed {
			e.momentary = append(e.momentary, a.LayerNum)
		} else {
			for i := len(e.momentary) - 1; i >= 0; i-- {
				if e.momentary[i] == a.LayerNum {
					e.momentary = append(e.momentary[:i], e.momentary[i+1:]...)
					break
				}
			}
		}

	case ToggleLayer:
		if pressed {
			e.toggled ^= 1 << uint(a.LayerNum)
		}

	case DefaultLayer:
		if pressed {
			e.defaultLayer = a.LayerNum
		}

	case HoldTap:
		if pressed {
			e.startHoldTap(key, a.HT, now)
		}
		// A HoldTap's own release, when it arrives with no pending
		// waiter (e.g. replayed after an outer resolution), has already
		// been fully resolved; nothing further to do here.

	case TapDance:
		if pressed {
			e.registerTap(key, a.TD, now)
		}

	case Sequence:
		if pressed {
			e.enqueueSequence(a.Seq, now)
		}

	case Custom:
		if pressed && e.OnCustom != nil {
			e.OnCustom(a.CustomTag, a.CustomPayload)
		}
	}

	if !pressed {
		e.oneshotCheckEnd(key, now)
	}
}
