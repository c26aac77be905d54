package action

import "testing"

const (
	kLShift Keycode = 0xE1
	kA      Keycode = 0x04
	kB      Keycode = 0x05
)

func oneLayerKeymap(acts [][]*Action) *Keymap {
	rows, cols := len(acts), len(acts[0])
	layer := NewLayer(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if acts[r][c] != nil {
				layer[r][c] = acts[r][c]
			}
		}
	}
	return NewKeymap(rows, cols, layer)
}

func codesEqual(t *testing.T, got []Keycode, want ...Keycode) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	seen := map[Keycode]int{}
	for _, c := range got {
		seen[c]++
	}
	for _, c := range want {
		seen[c]--
	}
	for _, n := range seen {
		if n != 0 {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

// TestBasicKeyPressRelease: pressing and releasing a plain Key emits
// exactly two reports.
func TestBasicKeyPressRelease(t *testing.T) {
	km := oneLayerKeymap([][]*Action{{NewKey(kA)}})
	e := NewEngine(km)
	var reports []Report
	e.OnReport = func(r Report) { reports = append(reports, r) }

	e.HandleEvent(0, Event{Row: 0, Col: 0, Pressed: true})
	e.HandleEvent(1, Event{Row: 0, Col: 0, Pressed: false})

	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d: %+v", len(reports), reports)
	}
	codesEqual(t, reports[0].Codes, kA)
	codesEqual(t, reports[1].Codes)
}

// TestLayerTransparency: a Transparent cell on an active momentary layer
// falls through to the default layer.
func TestLayerTransparency(t *testing.T) {
	base := NewLayer(1, 2)
	base[0][0] = NewKey(kA)
	base[0][1] = NewLayerMomentary(1)

	upper := NewLayer(1, 2)
	upper[0][0] = TransparentAction()
	upper[0][1] = NewKey(kB)

	km := NewKeymap(1, 2, base, upper)
	e := NewEngine(km)
	var last Report
	e.OnReport = func(r Report) { last = r }

	e.HandleEvent(0, Event{Row: 0, Col: 1, Pressed: true}) // hold momentary layer 1
	e.HandleEvent(1, Event{Row: 0, Col: 0, Pressed: true})  // falls through to base's kA
	codesEqual(t, last.Codes, kA)
}

// TestHoldTapResolvesTapOnQuickRelease: releasing before the timeout with
// no interrupting key resolves to Tap.
func TestHoldTapResolvesTapOnQuickRelease(t *testing.T) {
	km := oneLayerKeymap([][]*Action{{NewHoldTap(HoldTapSpec{
		Timeout: 200,
		Hold:    NewKey(kLShift),
		Tap:     NewKey(kA),
		Policy:  PolicyTimeout,
	})}})
	e := NewEngine(km)
	var reports []Report
	e.OnReport = func(r Report) { reports = append(reports, r) }

	e.HandleEvent(0, Event{Row: 0, Col: 0, Pressed: true})
	e.HandleEvent(50, Event{Row: 0, Col: 0, Pressed: false})
	e.Advance(51)

	if len(reports) < 2 {
		t.Fatalf("expected at least a tap-press and tap-release report, got %+v", reports)
	}
	codesEqual(t, reports[0].Codes, kA)
	codesEqual(t, reports[len(reports)-1].Codes)
}

// TestHoldTapResolvesHoldOnTimeout: Advance past the timeout with the key
// still held resolves to Hold.
func TestHoldTapResolvesHoldOnTimeout(t *testing.T) {
	km := oneLayerKeymap([][]*Action{{NewHoldTap(HoldTapSpec{
		Timeout: 200,
		Hold:    NewKey(kLShift),
		Tap:     NewKey(kA),
		Policy:  PolicyTimeout,
	})}})
	e := NewEngine(km)
	var last Report
	e.OnReport = func(r Report) { last = r }

	e.HandleEvent(0, Event{Row: 0, Col: 0, Pressed: true})
	e.Advance(200)
	codesEqual(t, last.Codes, kLShift)

	e.HandleEvent(300, Event{Row: 0, Col: 0, Pressed: false})
	codesEqual(t, last.Codes)
}

// TestHoldTapHoldOnOtherKeyPress: pressing a different key while the
// decision is pending resolves Hold immediately under that policy.
func TestHoldTapHoldOnOtherKeyPress(t *testing.T) {
	km := oneLayerKeymap([][]*Action{
		{
			NewHoldTap(HoldTapSpec{
				Timeout: 200,
				Hold:    NewKey(kLShift),
				Tap:     NewKey(kA),
				Policy:  PolicyHoldOnOtherKeyPress,
			}),
			NewKey(kB),
		},
	})
	e := NewEngine(km)
	var last Report
	e.OnReport = func(r Report) { last = r }

	e.HandleEvent(0, Event{Row: 0, Col: 0, Pressed: true})
	e.HandleEvent(10, Event{Row: 0, Col: 1, Pressed: true})

	codesEqual(t, last.Codes, kLShift, kB)
}

// TestOneShotQualifiesAndEndsOnRelease: a OneShot with EndOnFirstRelease
// stays armed through the consuming key's whole press-release span.
func TestOneShotQualifiesAndEndsOnRelease(t *testing.T) {
	km := oneLayerKeymap([][]*Action{
		{
			NewOneShot(OneShotSpec{Action: NewKey(kLShift), Timeout: 1000, EndPolicy: EndOnFirstRelease}),
			NewKey(kA),
		},
	})
	e := NewEngine(km)
	var reports []Report
	e.OnReport = func(r Report) { reports = append(reports, r) }

	e.HandleEvent(0, Event{Row: 0, Col: 0, Pressed: true})  // arm
	e.HandleEvent(1, Event{Row: 0, Col: 0, Pressed: false}) // release OneShot key, stays armed
	e.HandleEvent(50, Event{Row: 0, Col: 1, Pressed: true})
	e.HandleEvent(60, Event{Row: 0, Col: 1, Pressed: false})

	codesEqual(t, reports[len(reports)-2].Codes, kLShift, kA)
	codesEqual(t, reports[len(reports)-1].Codes)
}

// TestOneShotTimeout: an armed-but-unqualified OneShot clears once its
// timeout elapses, even with no further events.
func TestOneShotTimeout(t *testing.T) {
	km := oneLayerKeymap([][]*Action{{NewOneShot(OneShotSpec{Action: NewKey(kLShift), Timeout: 100, EndPolicy: EndOnFirstRelease})}})
	e := NewEngine(km)
	var last Report
	e.OnReport = func(r Report) { last = r }

	e.HandleEvent(0, Event{Row: 0, Col: 0, Pressed: true})
	e.Advance(50)
	codesEqual(t, last.Codes, kLShift)

	e.Advance(150)
	codesEqual(t, last.Codes)
}

// TestTapDanceWaitsForTimeoutEvenAtMaxTaps: tap count reaching
// len(Actions) does not resolve early; resolution waits for the
// configured timeout (documented Open Question deviation, see DESIGN.md).
func TestTapDanceWaitsForTimeoutEvenAtMaxTaps(t *testing.T) {
	km := oneLayerKeymap([][]*Action{{NewTapDance(TapDanceSpec{
		Actions: []*Action{NewKey(kA), NewKey(kB)},
		Timeout: 100,
	})}})
	e := NewEngine(km)
	var reports []Report
	e.OnReport = func(r Report) { reports = append(reports, r) }

	e.HandleEvent(0, Event{Row: 0, Col: 0, Pressed: true})
	e.HandleEvent(10, Event{Row: 0, Col: 0, Pressed: false})
	e.HandleEvent(20, Event{Row: 0, Col: 0, Pressed: true})
	e.HandleEvent(30, Event{Row: 0, Col: 0, Pressed: false})

	if len(reports) != 0 {
		t.Fatalf("expected no report before timeout even at max tap count, got %+v", reports)
	}

	e.Advance(130)
	if len(reports) < 1 {
		t.Fatalf("expected TapDance to resolve after timeout, got no reports")
	}
	codesEqual(t, reports[0].Codes, kB)
}

// TestTapDanceTimeoutIsReleaseAnchored: the timeout window restarts from
// each tap's release, not its press (spec.md section 8, property S5:
// taps at 0..10 and 50..60 with Timeout=200 resolve at 260, not 250).
func TestTapDanceTimeoutIsReleaseAnchored(t *testing.T) {
	km := oneLayerKeymap([][]*Action{{NewTapDance(TapDanceSpec{
		Actions: []*Action{NewKey(kA), NewKey(kB)},
		Timeout: 200,
	})}})
	e := NewEngine(km)
	var reports []Report
	e.OnReport = func(r Report) { reports = append(reports, r) }

	e.HandleEvent(0, Event{Row: 0, Col: 0, Pressed: true})
	e.HandleEvent(10, Event{Row: 0, Col: 0, Pressed: false})
	e.HandleEvent(50, Event{Row: 0, Col: 0, Pressed: true})
	e.HandleEvent(60, Event{Row: 0, Col: 0, Pressed: false})

	e.Advance(250)
	if len(reports) != 0 {
		t.Fatalf("expected TapDance still pending at tick 250, got %+v", reports)
	}

	e.Advance(260)
	if len(reports) == 0 {
		t.Fatalf("expected TapDance to resolve by tick 260, got no reports")
	}
	codesEqual(t, reports[0].Codes, kB)
}

// TestTapDanceInterruptedByOtherKey resolves immediately with the tap
// count accumulated so far.
func TestTapDanceInterruptedByOtherKey(t *testing.T) {
	km := oneLayerKeymap([][]*Action{
		{
			NewTapDance(TapDanceSpec{Actions: []*Action{NewKey(kA), NewKey(kB)}, Timeout: 1000}),
			NewKey(kLShift),
		},
	})
	e := NewEngine(km)
	var reports []Report
	e.OnReport = func(r Report) { reports = append(reports, r) }

	e.HandleEvent(0, Event{Row: 0, Col: 0, Pressed: true})
	e.HandleEvent(10, Event{Row: 0, Col: 0, Pressed: false})
	e.HandleEvent(20, Event{Row: 0, Col: 1, Pressed: true})

	found := false
	for _, r := range reports {
		if len(r.Codes) == 2 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a report containing both the resolved tap and the interrupting key, got %+v", reports)
	}
}

// TestReportCoalescing: re-emitting an identical multiset (e.g. pressing
// two keys bound to the same code) never invokes OnReport twice for the
// same content.
func TestReportCoalescing(t *testing.T) {
	km := oneLayerKeymap([][]*Action{{NewKey(kA), NewKey(kA)}})
	e := NewEngine(km)
	var n int
	e.OnReport = func(r Report) { n++ }

	e.HandleEvent(0, Event{Row: 0, Col: 0, Pressed: true})
	e.HandleEvent(1, Event{Row: 0, Col: 1, Pressed: true}) // same code, same multiset -> no new report
	e.HandleEvent(2, Event{Row: 0, Col: 0, Pressed: false})
	e.HandleEvent(3, Event{Row: 0, Col: 1, Pressed: false})

	if n != 2 {
		t.Fatalf("expected coalescing to suppress the identical-multiset report, got %d reports", n)
	}
}

// TestSequenceAppliesScriptedSteps replays a macro's press/release/delay
// steps in order.
func TestSequenceAppliesScriptedSteps(t *testing.T) {
	km := oneLayerKeymap([][]*Action{{NewSequence(
		SeqEvent{Kind: SeqPress, Code: kA},
		SeqEvent{Kind: SeqDelay, Ticks: 2},
		SeqEvent{Kind: SeqRelease, Code: kA},
		SeqEvent{Kind: SeqDelay, Ticks: 2},
		SeqEvent{Kind: SeqPress, Code: kB},
		SeqEvent{Kind: SeqDelay, Ticks: 2},
		SeqEvent{Kind: SeqRelease, Code: kB},
	)}})
	e := NewEngine(km)
	var reports []Report
	e.OnReport = func(r Report) { reports = append(reports, r) }

	e.HandleEvent(0, Event{Row: 0, Col: 0, Pressed: true})
	e.Advance(1)
	e.Advance(3)
	e.Advance(5)
	e.Advance(7)

	var sawA, sawB bool
	for _, r := range reports {
		for _, c := range r.Codes {
			if c == kA {
				sawA = true
			}
			if c == kB {
				sawB = true
			}
		}
	}
	if !sawA || !sawB {
		t.Fatalf("expected both macro keycodes to appear across reports, got %+v", reports)
	}
}
