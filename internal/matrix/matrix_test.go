package matrix

import (
	"context"
	"testing"
	"time"
)

// fakePins drives a 1x1 matrix whose single column follows a scripted
// sequence of raw samples, one per ReadCol call.
type fakePins struct {
	samples []bool
	i       int
}

func (f *fakePins) DriveRow(r int, active bool) error { return nil }
func (f *fakePins) Settle()                            {}
func (f *fakePins) ReadCol(c int) (bool, error) {
	if f.i >= len(f.samples) {
		return f.samples[len(f.samples)-1], nil
	}
	v := f.samples[f.i]
	f.i++
	return v, nil
}

func TestDebounceIdempotence(t *testing.T) {
	const debounceN = 4
	pins := &fakePins{samples: []bool{
		false, false, false, false, // settled released
		true, true, true, true, // 4 consecutive -> one press event
		true, true, // still pressed, no new events
		false, false, false, false, // 4 consecutive -> one release event
	}}
	s := NewSampler(1, 1, pins, nil)
	s.DebounceN = debounceN
	s.ScanPeriod = time.Millisecond

	out := make(chan Event, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < len(pins.samples); i++ {
		s.scanOnce(ctx, out)
	}
	close(out)

	var events []Event
	for ev := range out {
		events = append(events, ev)
	}

	if len(events) != 2 {
		t.Fatalf("expected exactly 2 edge events, got %d: %+v", len(events), events)
	}
	if !events[0].Pressed {
		t.Fatalf("expected first event to be a press, got %+v", events[0])
	}
	if events[1].Pressed {
		t.Fatalf("expected second event to be a release, got %+v", events[1])
	}
}

func TestDebounceNFromMS(t *testing.T) {
	n := DebounceNFromMS(5, 500*time.Microsecond)
	if n != 10 {
		t.Fatalf("expected 10 ticks for 5ms at 500us scan period, got %d", n)
	}
}

func TestPublishedStateReflectsDebouncedPresses(t *testing.T) {
	pins := &fakePins{samples: []bool{true, true, true, true}}
	s := NewSampler(1, 1, pins, nil)
	s.DebounceN = 4

	out := make(chan Event, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if s.Pressed(0, 0) {
		t.Fatalf("expected cell unpressed before any scan")
	}
	for i := 0; i < len(pins.samples); i++ {
		s.scanOnce(ctx, out)
	}
	if !s.Pressed(0, 0) {
		t.Fatalf("expected cell pressed after debounce threshold reached")
	}
	if !s.AllPressed([][2]int{{0, 0}}) {
		t.Fatalf("expected AllPressed true for the one pressed cell")
	}
	if s.AllPressed([][2]int{{0, 0}, {5, 5}}) {
		t.Fatalf("expected AllPressed false when one cell is out of range/unpressed")
	}
}
