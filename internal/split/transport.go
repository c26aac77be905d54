// transport.go - C4, split transport (spec.md section 4.4). Grounded on
// the teacher's coprocessor worker loops (coproc_worker_*.go): one
// long-lived task per link, reading/writing in a select loop, retrying
// transient errors rather than tearing the whole thing down.
package split

import (
	"bufio"
	"bytes"
	"context"
	"log"
	"time"

	"github.com/coreboard/kbcore/internal/action"
	"github.com/coreboard/kbcore/internal/bus"
)

// Link is the byte-stream abstraction a Transport drives: something that
// can read and write whole zero-delimited COBS frames. Serial and BLE
// variants each implement it (serial.go, ble.go).
type Link interface {
	ReadFrame(ctx context.Context) ([]byte, error)
	WriteFrame(ctx context.Context, frame []byte) error
	Close() error
}

// Dialer opens a fresh Link, used by Transport to reconnect after a
// transient failure (spec.md section 4.4, reconnect-after-backoff).
type Dialer func(ctx context.Context) (Link, error)

const reconnectBackoff = 5 * time.Second

// Transport runs one split link's reader and writer loops. On a central
// device it feeds decoded ToCentral messages into FromPeripherals and
// serializes ToPeripheral broadcasts from ToPeripherals out the link; on
// a peripheral it does the reverse.
type Transport struct {
	Logger *log.Logger
	Dial   Dialer

	// Central role channels.
	FromPeripherals chan<- ToCentral
	ToPeripherals   *bus.PubSub[ToPeripheral]

	// SnapshotFn, when set, builds the periodic resync message the
	// central's writeLoop pushes down this link every resyncPeriod
	// (SPEC_FULL.md section 12, supplemented from rumcake's split
	// resync), independent of and in addition to whatever
	// ToPeripherals broadcasts on change — so a peripheral that missed
	// a command during a silent stall still re-converges.
	SnapshotFn func() ToPeripheral

	// Peripheral role channels.
	ToCentralOut    <-chan ToCentral
	OnToPeripheral  func(ToPeripheral)

	resyncPeriod time.Duration
}

func NewCentralTransport(dial Dialer, fromPeripherals chan<- ToCentral, toPeripherals *bus.PubSub[ToPeripheral]) *Transport {
	return &Transport{
		Logger:          log.Default(),
		Dial:            dial,
		FromPeripherals: fromPeripherals,
		ToPeripherals:   toPeripherals,
		resyncPeriod:    5 * time.Second,
	}
}

func NewPeripheralTransport(dial Dialer, toCentralOut <-chan ToCentral, onToPeripheral func(ToPeripheral)) *Transport {
	return &Transport{
		Logger:         log.Default(),
		Dial:           dial,
		ToCentralOut:   toCentralOut,
		OnToPeripheral: onToPeripheral,
	}
}

// Run dials, then serves until ctx is cancelled, reconnecting after any
// link error with a bounded backoff (spec.md section 4.4).
func (t *Transport) Run(ctx context.Context) {
	for ctx.Err() == nil {
		link, err := t.Dial(ctx)
		if err != nil {
			t.Logger.Printf("split: dial failed: %v", err)
			t.sleep(ctx, reconnectBackoff)
			continue
		}
		t.serve(ctx, link)
		link.Close()
		t.sleep(ctx, reconnectBackoff)
	}
}

func (t *Transport) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (t *Transport) serve(ctx context.Context, link Link) {
	linkCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 2)
	go t.readLoop(linkCtx, link, errs)
	go t.writeLoop(linkCtx, link, errs)

	select {
	case <-ctx.Done():
	case err := <-errs:
		t.Logger.Printf("split: link dropped: %v", err)
	}
}

func (t *Transport) readLoop(ctx context.Context, link Link, errs chan<- error) {
	for {
		frame, err := link.ReadFrame(ctx)
		if err != nil {
			select {
			case errs <- err:
			default:
			}
			return
		}
		if t.FromPeripherals != nil {
			var msg ToCentral
			if !decodeFrame(frame, &msg) {
				t.Logger.Printf("split: dropped malformed frame")
				continue
			}
			select {
			case t.FromPeripherals <- msg:
			case <-ctx.Done():
				return
			}
		}
		if t.OnToPeripheral != nil {
			var msg ToPeripheral
			if !decodeFrame(frame, &msg) {
				t.Logger.Printf("split: dropped malformed frame")
				continue
			}
			t.OnToPeripheral(msg)
		}
	}
}

func (t *Transport) writeLoop(ctx context.Context, link Link, errs chan<- error) {
	var sub <-chan ToPeripheral
	var unsub func()
	if t.ToPeripherals != nil {
		var ok bool
		sub, unsub, ok = t.ToPeripherals.Subscribe()
		if !ok {
			t.Logger.Printf("split: too many peripheral subscribers, dropping link")
			return
		}
		defer unsub()
	}

	var resync <-chan time.Time
	if t.resyncPeriod > 0 {
		ticker := time.NewTicker(t.resyncPeriod)
		defer ticker.Stop()
		resync = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-t.ToCentralOut:
			if !ok {
				return
			}
			if err := t.writeMsg(ctx, link, msg); err != nil {
				select {
				case errs <- err:
				default:
				}
				return
			}

		case msg, ok := <-sub:
			if !ok {
				return
			}
			if err := t.writeMsg(ctx, link, msg); err != nil {
				select {
				case errs <- err:
				default:
				}
				return
			}

		case <-resync:
			if t.SnapshotFn == nil {
				continue
			}
			if err := t.writeMsg(ctx, link, t.SnapshotFn()); err != nil {
				select {
				case errs <- err:
				default:
				}
				return
			}
		}
	}
}

func (t *Transport) writeMsg(ctx context.Context, link Link, v any) error {
	frame, err := encodeFrame(v)
	if err != nil {
		return err
	}
	return link.WriteFrame(ctx, frame)
}

// PushEvent is the peripheral-side helper that converts a local matrix
// edge event into a ToCentral message and enqueues it for the writer
// loop (used by callers who hold the send-side of ToCentralOut).
func PushEvent(out chan<- ToCentral, ev action.Event) {
	out <- toCentralFromEvent(ev)
}

// frameScanner splits a byte stream on 0x00 delimiters, handing whole
// (delimiter-stripped) frames to ReadFrame implementations.
func newFrameScanner(r *bufio.Reader) func() ([]byte, error) {
	return func() ([]byte, error) {
		frame, err := r.ReadBytes(0x00)
		if err != nil {
			return nil, err
		}
		return bytes.TrimSuffix(frame, []byte{0x00}), nil
	}
}
