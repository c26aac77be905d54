// layout.go - LED layout table (spec.md section 4.5, "LED layout").
package light

// Flag bitset describes an LED's role. The effects in effects.go do not
// read it; every lit entry is rendered alike.
type Flag uint8

const (
	FlagNone Flag = 0
	FlagAlpha Flag = 1 << iota
	FlagKeylight
	FlagIndicator
)

// Point is a physical LED position on the 0-255 layout grid.
type Point struct {
	X, Y uint8
}

// LEDEntry is one compile-time layout row: either unmapped (no physical
// LED at this matrix cell) or a concrete position and role flags.
type LEDEntry struct {
	Row, Col int
	Has      bool
	Pos      Point
	Flags    Flag
}

// Layout is the full compile-time (row,col) -> LED table plus its
// precomputed bounds.
type Layout struct {
	Entries []LEDEntry

	MinX, MidX, MaxX uint8
	MinY, MidY, MaxY uint8
}

// NewLayout computes bounds once from the given entries.
func NewLayout(entries []LEDEntry) *Layout {
	l := &Layout{Entries: entries}
	first := true
	for _, e := range entries {
		if !e.Has {
			continue
		}
		if first {
			l.MinX, l.MaxX = e.Pos.X, e.Pos.X
			l.MinY, l.MaxY = e.Pos.Y, e.Pos.Y
			first = false
			continue
		}
		if e.Pos.X < l.MinX {
			l.MinX = e.Pos.X
		}
		if e.Pos.X > l.MaxX {
			l.MaxX = e.Pos.X
		}
		if e.Pos.Y < l.MinY {
			l.MinY = e.Pos.Y
		}
		if e.Pos.Y > l.MaxY {
			l.MaxY = e.Pos.Y
		}
	}
	l.MidX = l.MinX + (l.MaxX-l.MinX)/2
	l.MidY = l.MinY + (l.MaxY-l.MinY)/2
	return l
}

// Len is the number of physical LEDs (Has == true entries).
func (l *Layout) Len() int {
	n := 0
	for _, e := range l.Entries {
		if e.Has {
			n++
		}
	}
	return n
}

// BufSize is the pixel buffer size in bytes: 3 (RGB) per layout entry,
// indexed by entry position (not compacted), so effect functions can
// address a pixel by its Entries index directly.
func (l *Layout) BufSize() int { return len(l.Entries) * 3 }

func (l *Layout) findRowCol(row, col int) (Point, Flag, bool) {
	for _, e := range l.Entries {
		if e.Has && e.Row == row && e.Col == col {
			return e.Pos, e.Flags, true
		}
	}
	return Point{}, 0, false
}
