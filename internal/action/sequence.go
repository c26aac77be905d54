// sequence.go - the Sequence (macro) queue and the deferred-release
// mechanism shared by HoldTap/TapDance tap resolution (spec.md section
// 4.2, "Sequence actions" and the single-emission-per-tick constraint).
package action

// enqueueSequence schedules a scripted Sequence, starting immediately:
// each SeqDelay step advances the due tick of everything after it.
func (e *Engine) enqueueSequence(events []SeqEvent, now uint64) {
	due := now
	for _, ev := range events {
		switch ev.Kind {
		case SeqPress:
			e.macro = append(e.macro, macroStep{due: due, press: true, code: ev.Code})
		case SeqRelease:
			e.macro = append(e.macro, macroStep{due: due, press: false, code: ev.Code})
		case SeqDelay:
			due += ev.Ticks
		case SeqComplete:
			// no engine effect; present for authoring symmetry with
			// original_source/ macro scripts (SPEC_FULL.md section 12).
		}
	}
}

// runDueMacroSteps applies every queued macro step and deferred tap
// release whose due tick has arrived, in the order they were queued.
// Called at the top of every HandleEvent/Advance, before the new event
// or timeout check is processed, so a tap applied in one call is always
// fully reversed before the next call's logic runs.
func (e *Engine) runDueMacroSteps(now uint64) {
	if len(e.pendingTapRelease) > 0 {
		for _, tr := range e.pendingTapRelease {
			e.applyResolved(tr.key, tr.action, false, now)
		}
		e.pendingTapRelease = e.pendingTapRelease[:0]
	}

	if len(e.macro) == 0 {
		return
	}
	kept := e.macro[:0]
	for _, step := range e.macro {
		if step.due > now {
			kept = append(kept, step)
			continue
		}
		if step.press {
			e.addCode(step.code)
		} else {
			e.removeCode(step.code)
		}
	}
	e.macro = kept
}
