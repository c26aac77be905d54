// holdtap.go - HoldTap pending-decision state machine (spec.md sections
// 3-4.2). Only one HoldTap/TapDance decision is pending at a time: per
// the section 4.2 error policy, a HoldTap whose inner action is itself a
// HoldTap is not recursively resolved, so a single waiter slot is
// sufficient and matches the "Pending Waiter" FIFO spec.md describes.
package action

type waiterKind int

const (
	waiterHoldTap waiterKind = iota
	waiterTapDance
)

// waiter is the engine's single outstanding HoldTap or TapDance decision.
type waiter struct {
	kind waiterKind
	key  cellKey

	startTick uint64
	stacked   []StackedEvent

	ht          *HoldTapSpec
	htOwnReleased bool

	td        *TapDanceSpec
	taps      int
	lastTapAt uint64
}

func (e *Engine) startHoldTap(key cellKey, spec *HoldTapSpec, now uint64) {
	if e.pending != nil {
		// A HoldTap pressed while another is already pending: per the
		// documented error policy this nested case is not resolved
		// recursively. The press is simply recorded as a stacked event
		// of the outer waiter and replayed like any other key once the
		// outer one resolves.
		e.pending.stacked = append(e.pending.stacked, StackedEvent{Row: key.row, Col: key.col, Pressed: true, Tick: now})
		return
	}
	if spec.Timeout == 0 {
		// Degenerate HoldTap (timeout == 0): treat as an immediate tap,
		// never panics, per spec.md section 7's logic-invariant policy.
		e.resolveHoldTapAs(key, spec, DecisionTap, now)
		return
	}
	e.pending = &waiter{kind: waiterHoldTap, key: key, startTick: now, ht: spec}
}

// feedPending handles an event that arrived while a waiter is pending.
func (e *Engine) feedPending(ev Event, now uint64) {
	p := e.pending
	key := cellKey{ev.Row, ev.Col}

	if key == p.key {
		switch p.kind {
		case waiterHoldTap:
			if !ev.Pressed {
				p.htOwnReleased = true
			}
		case waiterTapDance:
			if ev.Pressed {
				p.taps++
				if p.td.Eager {
					idx := p.taps
					if idx > len(p.td.Actions) {
						idx = len(p.td.Actions)
					}
					e.tapAction(key, p.td.Actions[idx-1], now)
				}
			} else {
				// Timeout is release-anchored (spec.md section 8, property
				// S5): the window restarts from each tap's own release, not
				// its press, so a slow-release tap still gets the full
				// Timeout to be followed by another.
				p.lastTapAt = now
			}
		}
		return
	}

	// A different key: stack it for policy evaluation, and for TapDance
	// any other key press is itself an interruption that resolves now.
	p.stacked = append(p.stacked, StackedEvent{Row: ev.Row, Col: ev.Col, Pressed: ev.Pressed, Tick: now})

	if p.kind == waiterTapDance {
		if ev.Pressed {
			// resolveTapDance replays the full stacked history, which
			// already includes this event; do not dispatch it twice.
			e.resolveTapDance(now)
		}
		return
	}

	// HoldTap: evaluate the configured decision policy against the
	// stacked history.
	switch p.ht.Policy {
	case PolicyHoldOnOtherKeyPress:
		if ev.Pressed {
			e.resolveHoldTapAs(p.key, p.ht, DecisionHold, now)
		}
	case PolicyPermissiveHold:
		if !ev.Pressed && hasPressRelease(p.stacked, key) {
			e.resolveHoldTapAs(p.key, p.ht, DecisionHold, now)
		}
	case PolicyCustom:
		if p.ht.CustomPolicy != nil {
			if d, ok := p.ht.CustomPolicy(p.stacked); ok && d != DecisionNone {
				e.resolveHoldTapAs(p.key, p.ht, d, now)
			}
		}
	}
}

func hasPressRelease(stacked []StackedEvent, key cellKey) bool {
	pressed, released := false, false
	for _, s := range stacked {
		if s.Row == key.row && s.Col == key.col {
			if s.Pressed {
				pressed = true
			} else if pressed {
				released = true
			}
		}
	}
	return pressed && released
}

// checkPendingResolution is called after every event and on every
// Advance() tick to resolve a pending waiter whose timeout has elapsed or
// whose own key has released.
func (e *Engine) checkPendingResolution(now uint64) {
	p := e.pending
	if p == nil {
		return
	}

	switch p.kind {
	case waiterHoldTap:
		elapsed := now - p.startTick
		switch {
		case elapsed >= p.ht.Timeout:
			e.resolveHoldTapAs(p.key, p.ht, DecisionHold, now)
		case p.htOwnReleased:
			decision := DecisionTap
			if last, ok := e.lastTapByCell[p.key]; ok && p.ht.TapHoldInterval > 0 {
				if int64(now-last) >= p.ht.TapHoldInterval {
					decision = DecisionHold
				}
			}
			e.resolveHoldTapAs(p.key, p.ht, decision, now)
		}
	case waiterTapDance:
		if now-p.lastTapAt >= p.td.Timeout {
			e.resolveTapDance(now)
		}
	}
}

// resolveHoldTapAs commits a HoldTap decision: applies the hold action
// (held until release) or taps the tap action (pressed then released on
// the next tick, since the physical key has typically already released
// by the time a Tap resolves).
func (e *Engine) resolveHoldTapAs(key cellKey, spec *HoldTapSpec, decision Decision, now uint64) {
	var stacked []StackedEvent
	if e.pending != nil && e.pending.key == key {
		stacked = e.pending.stacked
		e.pending = nil
	}

	switch decision {
	case DecisionHold:
		e.applyResolved(key, spec.Hold, true, now)
		if spec.Hold != nil {
			e.holdTapReleaseOnKeyRelease(key, spec)
		}
	case DecisionTap:
		e.lastTapByCell[key] = now
		e.tapAction(key, spec.Tap, now)
	}

	for _, s := range stacked {
		e.dispatch(Event{Row: s.Row, Col: s.Col, Pressed: s.Pressed}, now)
	}
}

// holdTapReleaseOnKeyRelease remembers that (key)'s matching release
// should release the Hold action, via the normal e.held bookkeeping: we
// record the Hold action itself as "held" for this cell so dispatch's
// release path (which looks up e.held) undoes exactly the Hold action.
func (e *Engine) holdTapReleaseOnKeyRelease(key cellKey, spec *HoldTapSpec) {
	e.held[key] = spec.Hold
}

// tapAction applies a quick virtual press, then schedules the matching
// release to run at the start of the next Advance/HandleEvent call, so
// the press is visible in at least one emitted report before it clears.
func (e *Engine) tapAction(key cellKey, tap *Action, now uint64) {
	e.applyResolved(key, tap, true, now)
	e.pendingTapRelease = append(e.pendingTapRelease, tapRelease{key: key, action: tap})
}

type tapRelease struct {
	key    cellKey
	action *Action
}
