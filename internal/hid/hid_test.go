package hid

import (
	"testing"

	"github.com/coreboard/kbcore/internal/action"
)

func TestBuildSeparatesModifiersFromKeys(t *testing.T) {
	r := Build([]action.Keycode{0xE1, 0x04, 0x05})
	if r.Modifiers != ModLeftShift {
		t.Fatalf("expected ModLeftShift, got %v", r.Modifiers)
	}
	if r.Keys[0] != 0x04 || r.Keys[1] != 0x05 {
		t.Fatalf("unexpected keys: %+v", r.Keys[:2])
	}
}

func TestBuildOrderIndependentEquality(t *testing.T) {
	a := Build([]action.Keycode{0x04, 0x05, 0x06})
	b := Build([]action.Keycode{0x06, 0x05, 0x04})
	if !a.equal(b) {
		t.Fatalf("expected order-independent equality, got %+v vs %+v", a, b)
	}
}

func TestBuildTruncatesAtMaxKeysAndSetsOverflow(t *testing.T) {
	codes := make([]action.Keycode, MaxKeys+3)
	for i := range codes {
		codes[i] = action.Keycode(0x10 + i)
	}
	r := Build(codes)
	if !r.Overflow {
		t.Fatalf("expected Overflow to be set")
	}
	for _, k := range r.Keys {
		if k == 0 {
			t.Fatalf("expected all %d key slots filled, got zero slot", MaxKeys)
		}
	}
}

func TestAssemblerSuppressesIdenticalReport(t *testing.T) {
	asm := NewAssembler()
	asm.Submit(action.Report{Codes: []action.Keycode{0x04}})
	asm.Submit(action.Report{Codes: []action.Keycode{0x04}})

	select {
	case <-asm.C():
	default:
		t.Fatalf("expected first submit to produce a queued report")
	}
	select {
	case r := <-asm.C():
		t.Fatalf("expected no second report for an identical multiset, got %+v", r)
	default:
	}
}

func TestAssemblerCoalescesOnFullQueue(t *testing.T) {
	asm := NewAssembler()
	asm.Submit(action.Report{Codes: []action.Keycode{0x04}})
	asm.Submit(action.Report{Codes: []action.Keycode{0x05}})

	got := <-asm.C()
	if got.Keys[0] != 0x05 {
		t.Fatalf("expected the queue to hold only the newest report, got %+v", got)
	}
	select {
	case r := <-asm.C():
		t.Fatalf("expected queue to be empty after draining, got %+v", r)
	default:
	}
}
