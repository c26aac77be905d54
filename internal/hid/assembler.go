// assembler.go - C3, the HID report assembler and send queue (spec.md
// section 4.3). Grounded on the teacher's coalescing-channel convention
// (audio_chip.go's bounded command channel) and bus.Coalescing, which
// backs the depth-1 hid_report_send channel named in spec.md section 4.6.
package hid

import (
	"log"

	"github.com/coreboard/kbcore/internal/action"
	"github.com/coreboard/kbcore/internal/bus"
)

// Assembler converts the engine's keycode multiset into fixed-size
// Reports and pushes them onto a depth-1 coalescing send queue, so a slow
// USB/BLE consumer never sees buffered stale input.
type Assembler struct {
	Logger *log.Logger
	Queue  *bus.Coalescing[Report]

	last    Report
	hasLast bool
}

func NewAssembler() *Assembler {
	return &Assembler{
		Logger: log.Default(),
		Queue:  bus.NewCoalescing[Report](),
	}
}

// Submit is wired as the engine's OnReport callback. It suppresses
// resubmission of an identical report (defense in depth: the engine
// already coalesces at the keycode-multiset level, but C3 must not depend
// on that to uphold its own "at most one report per identical multiset"
// contract).
func (a *Assembler) Submit(r action.Report) {
	built := Build(r.Codes)
	if a.hasLast && built.equal(a.last) {
		return
	}
	a.last = built
	a.hasLast = true
	a.Queue.Send(built)
}

// C returns the receive side of the send queue, consumed by the USB/BLE
// HID transport (outside this module's scope per spec.md section 2).
func (a *Assembler) C() <-chan Report { return a.Queue.C() }
