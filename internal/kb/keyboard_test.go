package kb

import (
	"context"
	"testing"
	"time"

	"github.com/coreboard/kbcore/internal/action"
	"github.com/coreboard/kbcore/internal/hid"
	"github.com/coreboard/kbcore/internal/light"
	"github.com/coreboard/kbcore/internal/matrix"
)

type fakePins struct{}

func (fakePins) DriveRow(r int, active bool) error { return nil }
func (fakePins) ReadCol(c int) (bool, error)        { return false, nil }
func (fakePins) Settle()                            {}

func testKeymap() *action.Keymap {
	layer := action.NewLayer(1, 2)
	layer[0][0] = action.NewKey(0x04)
	return action.NewKeymap(1, 2, layer)
}

func TestNewCentralWiresAllTasks(t *testing.T) {
	def := &Definition{
		Role:   RoleCentral,
		Rows:   1,
		Cols:   2,
		Pins:   fakePins{},
		Keymap: testKeymap(),
		Layout: light.NewLayout([]light.LEDEntry{{Row: 0, Col: 0, Has: true}}),
		Sink:   light.NewNoopSink(),
		FPS:    20,
	}
	k := New(def)

	if k.Matrix == nil || k.Engine == nil || k.Assembler == nil || k.Animator == nil || k.Dispatcher == nil {
		t.Fatalf("expected all central tasks to be wired, got %+v", k)
	}
	if k.Transport != nil {
		t.Fatalf("expected no transport without a SplitDial")
	}
}

func TestCentralEnginePressProducesReport(t *testing.T) {
	def := &Definition{
		Role:   RoleCentral,
		Rows:   1,
		Cols:   2,
		Pins:   fakePins{},
		Keymap: testKeymap(),
	}
	k := New(def)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reports := make(chan hid.Report, 4)
	go func() {
		for r := range k.Assembler.C() {
			select {
			case reports <- r:
			default:
			}
		}
	}()

	go k.runEngine(ctx)

	k.matrixEvents <- matrix.Event{Row: 0, Col: 0, Pressed: true}

	select {
	case <-reports:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for an HID report after a press")
	}
}
