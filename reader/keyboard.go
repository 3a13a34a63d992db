package reader

import (
	"context"
	"fmt"
	"log"

	"github.com/kenshaw/evdev"
)

// Keyboard implements LineReader for USB keyboard-wedge card scanners that
// type the card identifier followed by Enter.
type Keyboard struct {
	device *evdev.Evdev
}

// NewKeyboard creates a keyboard-wedge reader on the specified input device.
func NewKeyboard(device string) (*Keyboard, error) {
	dev, err := evdev.OpenFile(device)
	if err != nil {
		return nil, fmt.Errorf("open evdev %s: %w", device, err)
	}

	log.Printf("Opened keyboard device: %s", dev.Name())
	log.Printf("Vendor: 0x%04x, Product: 0x%04x", dev.ID().Vendor, dev.ID().Product)

	return &Keyboard{device: dev}, nil
}

// Read implements LineReader.Read for keyboard-wedge scanners. Key presses
// accumulate until Enter, then the assembled token is returned cleaned.
func (k *Keyboard) Read(ctx context.Context) (string, error) {
	ch := k.device.Poll(ctx)
	var strbuf string

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case event := <-ch:
			if event == nil {
				return "", fmt.Errorf("keyboard device closed: %w", ErrDeviceGone)
			}

			switch event.Type.(type) {
			case evdev.KeyType:
				if event.Value != 1 {
					continue
				}

				if event.Type == evdev.KeyEnter {
					tok := CleanLine(strbuf)
					strbuf = ""
					if tok == "" {
						continue
					}
					return tok, nil
				}

				strbuf += evdev.KeyType(event.Code).String()
			}
		}
	}
}

// Close implements LineReader.Close.
func (k *Keyboard) Close() error {
	if k.device == nil {
		return nil
	}
	return k.device.Close()
}
