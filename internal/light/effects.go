// effects.go - the effect table (spec.md section 4.5, "Effects"). Each
// effect is a pure function (tick, config, layout, recent presses, rng)
// -> pixel buffer, matching the spec's description exactly.
package light

import (
	"math"
	"math/rand"
)

// Press is one entry of the recent-presses ring buffer.
type Press struct {
	Row, Col int
	Tick     uint32
}

func hsvToRGB(h, s, v uint8) (r, g, b uint8) {
	hf := float64(h) / 255 * 360
	sf := float64(s) / 255
	vf := float64(v) / 255

	c := vf * sf
	x := c * (1 - math.Abs(math.Mod(hf/60, 2)-1))
	m := vf - c

	var rp, gp, bp float64
	switch {
	case hf < 60:
		rp, gp, bp = c, x, 0
	case hf < 120:
		rp, gp, bp = x, c, 0
	case hf < 180:
		rp, gp, bp = 0, c, x
	case hf < 240:
		rp, gp, bp = 0, x, c
	case hf < 300:
		rp, gp, bp = x, 0, c
	default:
		rp, gp, bp = c, 0, x
	}
	return uint8((rp + m) * 255), uint8((gp + m) * 255), uint8((bp + m) * 255)
}

// effectFunc renders one frame into buf (3 bytes per LED, RGB, in Layout
// entry order).
type effectFunc func(tick uint32, cfg Config, layout *Layout, recent []Press, rng *rand.Rand, buf []byte)

func renderSolid(tick uint32, cfg Config, layout *Layout, recent []Press, rng *rand.Rand, buf []byte) {
	r, g, b := hsvToRGB(cfg.Hue, cfg.Sat, cfg.Val)
	fillAll(buf, r, g, b)
}

func renderBreathing(tick uint32, cfg Config, layout *Layout, recent []Press, rng *rand.Rand, buf []byte) {
	speed := float64(cfg.Speed) + 1
	phase := float64(tick) * speed / 2000
	scale := (math.Sin(phase) + 1) / 2
	v := uint8(float64(cfg.Val) * scale)
	r, g, b := hsvToRGB(cfg.Hue, cfg.Sat, v)
	fillAll(buf, r, g, b)
}

func renderReactive(tick uint32, cfg Config, layout *Layout, recent []Press, rng *rand.Rand, buf []byte) {
	var latest uint32
	for _, p := range recent {
		if p.Tick > latest {
			latest = p.Tick
		}
	}
	elapsed := tick - latest
	fade := 1.0 - math.Min(1, float64(elapsed)/1000)
	v := uint8(float64(cfg.Val) * fade)
	r, g, b := hsvToRGB(cfg.Hue, cfg.Sat, v)
	fillAll(buf, r, g, b)
}

func renderCycleLeftRight(tick uint32, cfg Config, layout *Layout, recent []Press, rng *rand.Rand, buf []byte) {
	speed := float64(cfg.Speed) + 1
	width := int(layout.MaxX) - int(layout.MinX) + 1
	if width < 1 {
		width = 1
	}
	offset := uint8((float64(tick) * speed / 40))
	for i, e := range layout.Entries {
		if !e.Has {
			continue
		}
		frac := float64(e.Pos.X-layout.MinX) / float64(width)
		h := uint8(int(cfg.Hue)+int(offset)+int(frac*255)) % 255
		r, g, b := hsvToRGB(h, cfg.Sat, cfg.Val)
		setPixel(buf, i, r, g, b)
	}
}

func renderGradient(tick uint32, cfg Config, layout *Layout, recent []Press, rng *rand.Rand, buf []byte) {
	height := int(layout.MaxY) - int(layout.MinY) + 1
	if height < 1 {
		height = 1
	}
	for i, e := range layout.Entries {
		if !e.Has {
			continue
		}
		frac := float64(e.Pos.Y-layout.MinY) / float64(height)
		h := uint8(int(cfg.Hue) + int(frac*255))
		r, g, b := hsvToRGB(h, cfg.Sat, cfg.Val)
		setPixel(buf, i, r, g, b)
	}
}

func renderPinwheel(tick uint32, cfg Config, layout *Layout, recent []Press, rng *rand.Rand, buf []byte) {
	speed := float64(cfg.Speed) + 1
	cx, cy := float64(layout.MidX), float64(layout.MidY)
	rot := float64(tick) * speed / 80
	for i, e := range layout.Entries {
		if !e.Has {
			continue
		}
		dx, dy := float64(e.Pos.X)-cx, float64(e.Pos.Y)-cy
		angle := math.Atan2(dy, dx) + rot
		h := uint8(int(cfg.Hue) + int((angle/(2*math.Pi))*255))
		r, g, b := hsvToRGB(h, cfg.Sat, cfg.Val)
		setPixel(buf, i, r, g, b)
	}
}

func renderRaindrops(tick uint32, cfg Config, layout *Layout, recent []Press, rng *rand.Rand, buf []byte) {
	fillAll(buf, 0, 0, 0)
	n := layout.Len()
	if n == 0 || rng == nil {
		return
	}
	drops := 1 + int(cfg.Speed)/32
	for d := 0; d < drops; d++ {
		idx := rng.Intn(n)
		r, g, b := hsvToRGB(cfg.Hue+uint8(rng.Intn(64)), cfg.Sat, cfg.Val)
		setPixelByLEDIndex(buf, layout, idx, r, g, b)
	}
}

func renderReactiveSplash(tick uint32, cfg Config, layout *Layout, recent []Press, rng *rand.Rand, buf []byte) {
	fillAll(buf, 0, 0, 0)
	for _, p := range recent {
		pos, _, ok := layout.findRowCol(p.Row, p.Col)
		_ = pos
		if !ok {
			continue
		}
		age := tick - p.Tick
		if age > 500 {
			continue
		}
		fade := 1.0 - float64(age)/500
		radius := float64(age) / 500 * 4
		for i, e := range layout.Entries {
			if !e.Has {
				continue
			}
			dx := float64(e.Pos.X) - float64(pos.X)
			dy := float64(e.Pos.Y) - float64(pos.Y)
			dist := math.Sqrt(dx*dx + dy*dy)
			if dist > radius+1 {
				continue
			}
			v := uint8(float64(cfg.Val) * fade)
			r, g, b := hsvToRGB(cfg.Hue, cfg.Sat, v)
			setPixel(buf, i, r, g, b)
		}
	}
}

var effectTable = map[Effect]effectFunc{
	Solid:          renderSolid,
	Breathing:      renderBreathing,
	Reactive:       renderReactive,
	CycleLeftRight: renderCycleLeftRight,
	Gradient:       renderGradient,
	Pinwheel:       renderPinwheel,
	Raindrops:      renderRaindrops,
	ReactiveSplash: renderReactiveSplash,
}

func fillAll(buf []byte, r, g, b byte) {
	for i := 0; i+2 < len(buf); i += 3 {
		buf[i], buf[i+1], buf[i+2] = r, g, b
	}
}

func setPixel(buf []byte, ledIndex int, r, g, b byte) {
	off := ledIndex * 3
	if off+2 >= len(buf) {
		return
	}
	buf[off], buf[off+1], buf[off+2] = r, g, b
}

func setPixelByLEDIndex(buf []byte, layout *Layout, nthLit int, r, g, b byte) {
	i := 0
	for idx, e := range layout.Entries {
		if !e.Has {
			continue
		}
		if i == nthLit {
			setPixel(buf, idx, r, g, b)
			return
		}
		i++
	}
}
