// matrix.go - row/column switch matrix scanning and debounce.
//
// Grounded on the teacher's register-polling tick loop (coprocessor_manager.go's
// readReg/writeReg shadow-state pattern: sample hardware into shadow state,
// never block on the hardware layer) and its Reset()-style restore-to-defaults
// convention (component_reset.go).
package matrix

import (
	"context"
	"log"
	"sync"
	"time"
)

// Event is a press/release edge in the remapped logical layout coordinate
// space (spec.md section 3, "Edge Event").
type Event struct {
	Row, Col int
	Pressed  bool
}

// Pins is the GPIO abstraction a board's HAL glue provides: drive a row
// line, sample a column line, and optionally wait out a settle delay.
// Concrete GPIO wiring is out of scope for this module (spec.md section 1);
// this interface is the boundary the HAL glue must satisfy.
type Pins interface {
	// DriveRow sets row r active (low) or inactive (high).
	DriveRow(r int, active bool) error
	// ReadCol reports whether column c currently reads low (switch closed).
	ReadCol(c int) (bool, error)
	// Settle is invoked after driving a row and before sampling its
	// columns, to let the line stabilize. May be a no-op.
	Settle()
}

// RemapFunc maps a physical (row, col) cell to its logical layout position.
type RemapFunc func(row, col int) (int, int)

type cell struct {
	pressed         bool
	riseAcc, fallAcc int
}

// Sampler drives a row/column matrix, debounces it, and emits edge events
// in the remapped coordinate space. Debounce state belongs exclusively to
// the sampler's own scan goroutine and is never shared (spec.md section 5).
type Sampler struct {
	Rows, Cols int
	Pins       Pins
	Remap      RemapFunc
	DebounceN  int           // consecutive identical samples required to flip state
	ScanPeriod time.Duration // spec default: ~500us
	Logger     *log.Logger

	cells [][]cell

	// pubMu guards published, the debounced-state snapshot the host
	// protocol dispatcher polls for unlock-combo detection (spec.md
	// section 4.7: "C7 reads raw pressed bits through a mutex"). The scan
	// goroutine is the sole writer; readers never block it for longer
	// than a slice copy.
	pubMu     sync.Mutex
	published [][]bool
}

const (
	DefaultScanPeriod = 500 * time.Microsecond
	DefaultDebounceMS = 5
)

// DebounceNFromMS converts a debounce window in milliseconds to a number of
// consecutive scan ticks at the given scan period, per spec.md section 4.1.
func DebounceNFromMS(ms int, scanPeriod time.Duration) int {
	if scanPeriod <= 0 {
		scanPeriod = DefaultScanPeriod
	}
	n := int(time.Duration(ms) * time.Millisecond / scanPeriod)
	if n < 1 {
		n = 1
	}
	return n
}

// NewSampler builds a sampler over a Rows x Cols matrix. Remap may be nil,
// in which case logical coordinates equal physical ones.
func NewSampler(rows, cols int, pins Pins, remap RemapFunc) *Sampler {
	if remap == nil {
		remap = func(r, c int) (int, int) { return r, c }
	}
	grid := make([][]cell, rows)
	published := make([][]bool, rows)
	for r := range grid {
		grid[r] = make([]cell, cols)
		published[r] = make([]bool, cols)
	}
	return &Sampler{
		Rows:       rows,
		Cols:       cols,
		Pins:       pins,
		Remap:      remap,
		DebounceN:  DebounceNFromMS(DefaultDebounceMS, DefaultScanPeriod),
		ScanPeriod: DefaultScanPeriod,
		Logger:     log.Default(),
		cells:      grid,
		published:  published,
	}
}

// Pressed reports the last-published debounced state of the logical
// (row, col) cell. Safe to call concurrently with Run.
func (s *Sampler) Pressed(row, col int) bool {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if row < 0 || row >= len(s.published) || col < 0 || col >= len(s.published[row]) {
		return false
	}
	return s.published[row][col]
}

// AllPressed reports whether every given logical (row, col) cell is
// currently pressed (spec.md section 4.7, Vial unlock combo polling).
func (s *Sampler) AllPressed(cells [][2]int) bool {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	for _, rc := range cells {
		r, c := rc[0], rc[1]
		if r < 0 || r >= len(s.published) || c < 0 || c >= len(s.published[r]) || !s.published[r][c] {
			return false
		}
	}
	return true
}

// Run drives the scan loop until ctx is cancelled. out receives edge
// events with a blocking send: spec.md requires this ordering to never
// silently drop (back-pressure instead), since C2 relies on matrix-scan
// ordering to apply actions correctly.
func (s *Sampler) Run(ctx context.Context, out chan<- Event) error {
	period := s.ScanPeriod
	if period <= 0 {
		period = DefaultScanPeriod
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.scanOnce(ctx, out)
		}
	}
}

func (s *Sampler) scanOnce(ctx context.Context, out chan<- Event) {
	for r := 0; r < s.Rows; r++ {
		if err := s.Pins.DriveRow(r, true); err != nil {
			s.Logger.Printf("matrix: drive row %d: %v", r, err)
			continue
		}
		s.Pins.Settle()
		for c := 0; c < s.Cols; c++ {
			raw, err := s.Pins.ReadCol(c)
			if err != nil {
				// Transient I/O error: log and retry next tick; debounce
				// state for this cell is left untouched (spec.md section 4.1).
				s.Logger.Printf("matrix: read col %d (row %d): %v", c, r, err)
				continue
			}
			s.debounce(ctx, out, r, c, raw)
		}
		if err := s.Pins.DriveRow(r, false); err != nil {
			s.Logger.Printf("matrix: restore row %d: %v", r, err)
		}
	}
}

func (s *Sampler) debounce(ctx context.Context, out chan<- Event, r, c int, raw bool) {
	cl := &s.cells[r][c]
	if raw {
		cl.riseAcc++
		cl.fallAcc = 0
	} else {
		cl.fallAcc++
		cl.riseAcc = 0
	}

	switch {
	case !cl.pressed && cl.riseAcc >= s.DebounceN:
		cl.pressed = true
		cl.riseAcc, cl.fallAcc = 0, 0
		s.publish(ctx, out, r, c, true)
	case cl.pressed && cl.fallAcc >= s.DebounceN:
		cl.pressed = false
		cl.riseAcc, cl.fallAcc = 0, 0
		s.publish(ctx, out, r, c, false)
	}
}

func (s *Sampler) publish(ctx context.Context, out chan<- Event, r, c int, pressed bool) {
	lr, lc := s.Remap(r, c)

	s.pubMu.Lock()
	s.published[lr][lc] = pressed
	s.pubMu.Unlock()

	ev := Event{Row: lr, Col: lc, Pressed: pressed}
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}
