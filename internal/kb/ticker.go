package kb

import "time"

// millisecondTicker wraps time.Ticker so runEngine's select doesn't need
// to special-case Stop() being called twice.
type millisecondTicker struct {
	t *time.Ticker
}

func newMillisecondTicker() *millisecondTicker {
	return &millisecondTicker{t: time.NewTicker(time.Millisecond)}
}

func (m *millisecondTicker) C() <-chan time.Time { return m.t.C }
func (m *millisecondTicker) Stop()                { m.t.Stop() }

// wallNow is a seam so tests can control the unlock poll's clock.
var wallNow = time.Now
