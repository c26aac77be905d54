// analog.go - analog/Hall-effect matrix variant (spec.md section 4.1,
// "Analog variant").
package matrix

import (
	"context"
	"log"
	"time"
)

// AnalogReader samples a raw ADC value for a given matrix cell.
type AnalogReader interface {
	Sample(row, col int) (uint16, error)
}

// CellRange is the [lo, hi] raw ADC range mapped to a 0-255 pressure value
// for one cell, via saturating subtract and /255 scaling.
type CellRange struct {
	Lo, Hi uint16
}

func (cr CellRange) pressure(raw uint16) uint8 {
	span := int(cr.Hi) - int(cr.Lo)
	if span <= 0 {
		return 0
	}
	d := int(raw) - int(cr.Lo)
	if d < 0 {
		d = 0
	}
	p := d * 255 / span
	if p > 255 {
		p = 255
	}
	return uint8(p)
}

// AnalogSampler debounces pressure readings via hysteresis rather than
// consecutive-sample counting: a cell presses once pressure crosses
// UpperHysteresis and releases once it falls below LowerHysteresis.
type AnalogSampler struct {
	Rows, Cols       int
	Reader           AnalogReader
	Ranges           [][]CellRange
	Remap            RemapFunc
	UpperHysteresis  uint8
	LowerHysteresis  uint8
	ScanPeriod       time.Duration
	Logger           *log.Logger

	pressed [][]bool
}

const (
	DefaultUpperHysteresis = 170
	DefaultLowerHysteresis = 85
)

func NewAnalogSampler(rows, cols int, reader AnalogReader, ranges [][]CellRange, remap RemapFunc) *AnalogSampler {
	if remap == nil {
		remap = func(r, c int) (int, int) { return r, c }
	}
	pressed := make([][]bool, rows)
	for r := range pressed {
		pressed[r] = make([]bool, cols)
	}
	return &AnalogSampler{
		Rows:            rows,
		Cols:            cols,
		Reader:          reader,
		Ranges:          ranges,
		Remap:           remap,
		UpperHysteresis: DefaultUpperHysteresis,
		LowerHysteresis: DefaultLowerHysteresis,
		ScanPeriod:      DefaultScanPeriod,
		Logger:          log.Default(),
		pressed:         pressed,
	}
}

func (s *AnalogSampler) Run(ctx context.Context, out chan<- Event) error {
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

func (s *AnalogSampler) scanOnce(ctx context.Context, out chan<- Event) {
	for r := 0; r < s.Rows; r++ {
		for c := 0; c < s.Cols; c++ {
			raw, err := s.Reader.Sample(r, c)
			if err != nil {
				s.Logger.Printf("matrix(analog): sample (%d,%d): %v", r, c, err)
				continue
			}
			pressure := s.Ranges[r][c].pressure(raw)
			wasPressed := s.pressed[r][c]
			switch {
			case !wasPressed && pressure >= s.UpperHysteresis:
				s.pressed[r][c] = true
				lr, lc := s.Remap(r, c)
				select {
				case out <- Event{Row: lr, Col: lc, Pressed: true}:
				case <-ctx.Done():
					return
				}
			case wasPressed && pressure <= s.LowerHysteresis:
				s.pressed[r][c] = false
				lr, lc := s.Remap(r, c)
				select {
				case out <- Event{Row: lr, Col: lc, Pressed: false}:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}
