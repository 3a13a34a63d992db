package reader

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrDeviceGone indicates the device was unplugged or access was revoked.
// Callers should stop the reader rather than retry.
var ErrDeviceGone = errors.New("reader device gone")

// LineReader is the interface for all card reader implementations.
// Implementations deliver one token per Read.
type LineReader interface {
	// Read blocks until a token is read, the read timeout elapses, or the
	// context is cancelled. A return of ("", nil) indicates no complete
	// token was available (e.g., timeout).
	Read(ctx context.Context) (string, error)

	// Close releases any resources held by the reader.
	Close() error
}

// Config holds common configuration for reader implementations.
type Config struct {
	Type   string `yaml:"type"`   // "serial", "keyboard"
	Device string `yaml:"device"` // e.g., "/dev/ttyUSB0", "/dev/input/event0"
	Baud   int    `yaml:"baud"`   // baud rate for serial devices (default 9600)
}

// New creates a LineReader based on the provided configuration.
func New(cfg Config) (LineReader, error) {
	switch cfg.Type {
	case "keyboard":
		return NewKeyboard(cfg.Device)
	case "serial", "":
		return NewSerial(cfg.Device, cfg.Baud)
	default:
		return nil, fmt.Errorf("unknown reader type %q", cfg.Type)
	}
}

// CleanLine strips NUL, CR and LF bytes plus surrounding whitespace from a
// raw device line. Scanner firmware pads or terminates tokens with these;
// an all-noise line cleans to "".
func CleanLine(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case 0, '\r', '\n':
			return -1
		}
		return r
	}, raw)
	return strings.TrimSpace(cleaned)
}
