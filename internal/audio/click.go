// click.go - audio click-feedback subsystem (SPEC_FULL.md section 11,
// "Domain Stack": a QMK/ZMK feature recovered from original_source/ that
// spec.md's distillation dropped). Grounded on the teacher's
// audio_backend_oto.go: an atomic.Pointer-guarded sample source feeding
// an oto.Player's Read callback, generalized from chip-synthesis to
// short tone-burst envelopes keyed to key press/release/tap-dance-resolve
// events instead of a running chiptune voice.
package audio

import (
	"math"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/oto/v3"
)

// Tone describes one click's synthesis parameters: a short sine burst
// that decays to silence over DurationSamples.
type Tone struct {
	FreqHz         float64
	DurationSamples int
}

var (
	PressTone    = Tone{FreqHz: 1800, DurationSamples: 220}
	ReleaseTone  = Tone{FreqHz: 1200, DurationSamples: 180}
	ResolveTone  = Tone{FreqHz: 2400, DurationSamples: 260}
)

// voice is the single in-flight click envelope; nil when silent.
type voice struct {
	tone   Tone
	pos    int
	sample int // sampleRate, captured at voice creation
}

func (v *voice) next() float32 {
	if v == nil || v.pos >= v.tone.DurationSamples {
		return 0
	}
	t := float64(v.pos) / float64(v.sample)
	decay := 1.0 - float64(v.pos)/float64(v.tone.DurationSamples)
	s := math.Sin(2*math.Pi*v.tone.FreqHz*t) * decay
	v.pos++
	return float32(s)
}

// ClickPlayer drives one oto.Player with whatever voice is currently
// active, same single-active-voice discipline the teacher's OtoPlayer
// applies to a single SoundChip.
type ClickPlayer struct {
	ctx        *oto.Context
	player     *oto.Player
	sampleRate int

	active    atomic.Pointer[voice]
	sampleBuf []float32

	mu      sync.Mutex
	started bool
}

func NewClickPlayer(sampleRate int) (*ClickPlayer, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   4,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	cp := &ClickPlayer{ctx: ctx, sampleRate: sampleRate, sampleBuf: make([]float32, 4096)}
	cp.player = ctx.NewPlayer(cp)
	return cp, nil
}

// Play starts (or restarts) a click with the given tone; the previous
// voice, if still sounding, is replaced rather than mixed (spec.md
// section 5's single-pending-waiter discipline generalizes here: one
// click voice at a time keeps the feedback crisp instead of smeared).
func (c *ClickPlayer) Play(tone Tone) {
	c.active.Store(&voice{tone: tone, sample: c.sampleRate})
}

func (c *ClickPlayer) Read(p []byte) (n int, err error) {
	numSamples := len(p) / 4
	if numSamples == 0 {
		return len(p), nil
	}
	v := c.active.Load()
	if len(c.sampleBuf) < numSamples {
		c.sampleBuf = make([]float32, numSamples)
	}
	samples := c.sampleBuf[:numSamples]

	if v == nil {
		for i := range samples {
			samples[i] = 0
		}
	} else {
		for i := range samples {
			samples[i] = v.next()
		}
		if v.pos >= v.tone.DurationSamples {
			c.active.CompareAndSwap(v, nil)
		}
	}

	copy(p, (*[1 << 30]byte)(unsafe.Pointer(&samples[0]))[:len(p)])
	return len(p), nil
}

func (c *ClickPlayer) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		c.player.Play()
		c.started = true
	}
}

func (c *ClickPlayer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		c.player.Close()
		c.started = false
	}
}
