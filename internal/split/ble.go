// ble.go - BLE-GATT variant of the split transport (spec.md sections 4.4
// and 6). Grounded on other_examples/manifests/vincent99-velocipi, the
// pack's only example pairing tinygo.org/x/bluetooth with a split-style
// link alongside sigurn/crc16 (this module's own framing CRC, see
// frame.go).
package split

import (
	"bytes"
	"context"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

// Split service/characteristic UUIDs (spec.md section 6).
var (
	ServiceUUID      = bluetooth.NewUUID([16]byte{0x51, 0xa9, 0x7f, 0x95, 0x34, 0x92, 0x42, 0x69, 0xb5, 0xfd, 0x32, 0xac, 0x8d, 0xc7, 0x25, 0x90})
	ToCentralCharUUID = bluetooth.NewUUID([16]byte{0xe3, 0x5e, 0x4d, 0x4e, 0x33, 0xf3, 0x41, 0xe9, 0xa5, 0x26, 0xed, 0xd3, 0x60, 0x84, 0xdc, 0x0d})
	ToPeriphCharUUID  = bluetooth.NewUUID([16]byte{0x38, 0x66, 0x80, 0x33, 0x1c, 0x59, 0x48, 0x77, 0x88, 0x41, 0x8e, 0xec, 0xf6, 0xd5, 0x21, 0xf7})
)

// connMu serializes BLE connection attempts so concurrent peripheral
// dials don't race the adapter's connection state machine (spec.md
// section 5, "BLE connection attempts: guarded by a dedicated mutex").
var connMu sync.Mutex

// BLELink implements Link over a central<->peripheral GATT connection.
// Each notification is taken as one whole frame: the callback strips its
// trailing 0x00 COBS delimiter and hands it on. A frame split across
// several notifications is not reassembled, and WriteFrame sends each
// frame in a single write.
type BLELink struct {
	device     bluetooth.Device
	toCentral  bluetooth.DeviceCharacteristic
	toPeriph   bluetooth.DeviceCharacteristic

	incoming chan []byte
	closed   chan struct{}
	closeOnce sync.Once
}

// DialBLECentral scans the given whitelist (up to 4 addresses, spec.md
// section 4.4) and connects to the first peripheral found, at the fixed
// 7.5ms connection interval the spec names.
func DialBLECentral(ctx context.Context, whitelist []bluetooth.Address) (Link, error) {
	connMu.Lock()
	defer connMu.Unlock()

	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, &FrameError{Operation: "ble enable", Details: "adapter", Err: err}
	}

	found := make(chan bluetooth.ScanResult, 1)
	go func() {
		adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
			for _, want := range whitelist {
				if result.Address.String() == want.String() {
					a.StopScan()
					select {
					case found <- result:
					default:
					}
					return
				}
			}
		})
	}()

	var result bluetooth.ScanResult
	select {
	case result = <-found:
	case <-ctx.Done():
		adapter.StopScan()
		return nil, ctx.Err()
	}

	params := bluetooth.ConnectionParams{
		ConnectionTimeout: bluetooth.NewDuration(0),
		MinInterval:       bluetooth.NewDuration(6 * 1250 * time.Microsecond), // 6 * 1.25ms units = 7.5ms
		MaxInterval:       bluetooth.NewDuration(6 * 1250 * time.Microsecond),
	}
	device, err := adapter.Connect(result.Address, params)
	if err != nil {
		return nil, &FrameError{Operation: "ble connect", Details: result.Address.String(), Err: err}
	}

	return newBLELink(device)
}

func newBLELink(device bluetooth.Device) (*BLELink, error) {
	services, err := device.DiscoverServices([]bluetooth.UUID{ServiceUUID})
	if err != nil || len(services) == 0 {
		device.Disconnect()
		return nil, &FrameError{Operation: "ble discover services", Details: "split service", Err: err}
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{ToCentralCharUUID, ToPeriphCharUUID})
	if err != nil || len(chars) < 2 {
		device.Disconnect()
		return nil, &FrameError{Operation: "ble discover characteristics", Details: "split characteristics", Err: err}
	}

	link := &BLELink{
		device:   device,
		incoming: make(chan []byte, 8),
		closed:   make(chan struct{}),
	}
	for _, c := range chars {
		switch c.UUID() {
		case ToCentralCharUUID:
			link.toCentral = c
		case ToPeriphCharUUID:
			link.toPeriph = c
		}
	}

	if err := link.toCentral.EnableNotifications(func(buf []byte) {
		// Notifications arrive with the same trailing 0x00 COBS delimiter
		// the serial variant's newFrameScanner strips via bytes.TrimSuffix
		// (transport.go); decodeFrame expects it already gone.
		buf = bytes.TrimSuffix(buf, []byte{0x00})
		frame := make([]byte, len(buf))
		copy(frame, buf)
		select {
		case link.incoming <- frame:
		case <-link.closed:
		}
	}); err != nil {
		device.Disconnect()
		return nil, &FrameError{Operation: "ble enable notifications", Details: "to-central characteristic", Err: err}
	}

	return link, nil
}

func (b *BLELink) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case frame, ok := <-b.incoming:
		if !ok {
			return nil, &FrameError{Operation: "ble read", Details: "link closed"}
		}
		return frame, nil
	case <-b.closed:
		return nil, &FrameError{Operation: "ble read", Details: "link closed"}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *BLELink) WriteFrame(ctx context.Context, frame []byte) error {
	_, err := b.toPeriph.WriteWithoutResponse(frame)
	if err != nil {
		return &FrameError{Operation: "ble write", Details: "to-peripheral characteristic", Err: err}
	}
	return nil
}

func (b *BLELink) Close() error {
	b.closeOnce.Do(func() { close(b.closed) })
	return b.device.Disconnect()
}
