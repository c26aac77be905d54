// serial.go - UART variant of the split transport (spec.md section 4.4,
// "Serial/UART variant"). Grounded on other_examples/manifests/Daedaluz-
// goserial, the only serial-port library present in the example corpus.
package split

import (
	"bufio"
	"context"
	"io"

	goserial "github.com/daedaluz/goserial"
)

// SerialLink implements Link over a full-duplex UART connection.
type SerialLink struct {
	port   io.ReadWriteCloser
	reader *bufio.Reader
	next   func() ([]byte, error)
}

// DialSerial opens device at baud and returns a ready-to-use Link,
// suitable as a split.Dialer (`func(ctx) { return DialSerial(device, baud) }`).
func DialSerial(device string, baud int) (Link, error) {
	port, err := goserial.Open(device, baud)
	if err != nil {
		return nil, &FrameError{Operation: "serial open", Details: device, Err: err}
	}
	r := bufio.NewReader(port)
	return &SerialLink{port: port, reader: r, next: newFrameScanner(r)}, nil
}

func (s *SerialLink) ReadFrame(ctx context.Context) ([]byte, error) {
	// reads up to the next 0x00 delimiter; the UART variant has no
	// natural cancellation point mid-read, so this blocks until a frame
	// or a read error (including a Close() from another goroutine).
	return s.next()
}

func (s *SerialLink) WriteFrame(ctx context.Context, frame []byte) error {
	_, err := s.port.Write(frame)
	if err != nil {
		return &FrameError{Operation: "serial write", Details: "write_all", Err: err}
	}
	return nil
}

func (s *SerialLink) Close() error { return s.port.Close() }
