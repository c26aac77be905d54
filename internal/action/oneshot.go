// oneshot.go - OneShot sticky-modifier state machine (spec.md section 4.2,
// "OneShot actions"). Unlike HoldTap/TapDance, an armed OneShot never
// blocks other keys from dispatching normally; it only observes presses
// and releases that pass through applyResolved to decide when to clear.
package action

// oneShotState is the engine's single outstanding armed OneShot. Only one
// OneShot can be armed at a time (arming a second replaces the first,
// same simplification as the single pending waiter).
type oneShotState struct {
	key       cellKey
	spec      *OneShotSpec
	armedAt   uint64
	qualified bool // a consuming key has already been pressed while armed
}

func oneShotCodes(a *Action) []Keycode {
	if a == nil {
		return nil
	}
	switch a.Kind {
	case Key:
		return []Keycode{a.Code}
	case MultiKey:
		return a.Codes
	default:
		return nil
	}
}

func (e *Engine) addOneShotCodes(a *Action) {
	for _, c := range oneShotCodes(a) {
		e.addCode(c)
	}
}

func (e *Engine) removeOneShotCodes(a *Action) {
	for _, c := range oneShotCodes(a) {
		e.removeCode(c)
	}
}

// handleOneShotPress arms a OneShot action, or handles a repress of the
// same OneShot key while one is already armed.
func (e *Engine) handleOneShotPress(key cellKey, spec *OneShotSpec, now uint64) {
	if e.oneshot != nil && e.oneshot.key == key {
		switch e.oneshot.spec.EndPolicy {
		case EndOnFirstPressOrRepress, EndOnFirstReleaseOrRepress:
			e.disarmOneShot(now)
		}
		return
	}
	if e.oneshot != nil {
		e.disarmOneShot(now)
	}
	e.oneshot = &oneShotState{key: key, spec: spec, armedAt: now}
	e.addOneShotCodes(spec.Action)
}

// oneshotQualify is called before any other pressed action dispatches: the
// first such press after arming "qualifies" the OneShot, i.e. consumes it.
func (e *Engine) oneshotQualify(key cellKey, now uint64) {
	if e.oneshot == nil || e.oneshot.qualified {
		return
	}
	e.oneshot.qualified = true
	if e.oneshot.spec.EndPolicy == EndOnFirstPress {
		e.disarmOneShot(now)
	}
}

// oneshotCheckEnd is called after any other action releases: release-keyed
// end policies clear here, once the OneShot has already been qualified by
// a press.
func (e *Engine) oneshotCheckEnd(key cellKey, now uint64) {
	if e.oneshot == nil || !e.oneshot.qualified {
		return
	}
	switch e.oneshot.spec.EndPolicy {
	case EndOnFirstRelease, EndOnFirstReleaseOrRepress:
		e.disarmOneShot(now)
	}
}

// checkOneShotTimeout clears the armed OneShot once its timeout elapses,
// whether or not a key has qualified it yet; called from Advance so it
// fires even without further key activity.
func (e *Engine) checkOneShotTimeout(now uint64) {
	if e.oneshot == nil || e.oneshot.spec.Timeout == 0 {
		return
	}
	if now-e.oneshot.armedAt >= e.oneshot.spec.Timeout {
		e.disarmOneShot(now)
	}
}

func (e *Engine) disarmOneShot(now uint64) {
	if e.oneshot == nil {
		return
	}
	e.removeOneShotCodes(e.oneshot.spec.Action)
	e.oneshot = nil
}
