package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"
	"time"

	"github.com/tarm/serial"
)

// DefaultBaud is the rate the scanner firmware ships with.
const DefaultBaud = 9600

// Serial implements LineReader for serial card scanners that emit one
// newline-terminated ASCII token per swipe.
type Serial struct {
	port   *serial.Port
	device string
	buf    []byte
}

// NewSerial opens a serial scanner on the named device.
func NewSerial(device string, baud int) (*Serial, error) {
	if baud == 0 {
		baud = DefaultBaud
	}
	c := &serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: time.Second,
	}
	port, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}

	return &Serial{port: port, device: device}, nil
}

// Read implements LineReader.Read for serial scanners. It returns the next
// cleaned token, or ("", nil) when the read timeout elapsed without a
// complete line.
func (s *Serial) Read(ctx context.Context) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		if tok, ok := s.takeLine(); ok {
			if tok != "" {
				return tok, nil
			}
			continue // noise-only line
		}

		chunk := make([]byte, 64)
		n, err := s.port.Read(chunk)
		if n > 0 {
			s.buf = append(s.buf, chunk[:n]...)
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Read timeout, hand control back to the caller.
				return "", nil
			}
			if deviceGone(err) {
				return "", fmt.Errorf("read %s: %w", s.device, ErrDeviceGone)
			}
			return "", fmt.Errorf("read %s: %w", s.device, err)
		}
		return "", nil
	}
}

// takeLine consumes one newline-terminated line from the buffer, if any,
// and returns it cleaned.
func (s *Serial) takeLine() (string, bool) {
	for i, b := range s.buf {
		if b == '\n' {
			line := string(s.buf[:i+1])
			s.buf = s.buf[i+1:]
			return CleanLine(line), true
		}
	}
	return "", false
}

// deviceGone reports whether err indicates the device was physically
// removed or our handle revoked, rather than a transient failure.
func deviceGone(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EIO, syscall.ENODEV, syscall.ENXIO, syscall.EBADF, syscall.EACCES:
			return true
		}
	}
	return errors.Is(err, syscall.ENOENT)
}

// Close implements LineReader.Close.
func (s *Serial) Close() error {
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}
