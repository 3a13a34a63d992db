// Package indicator gives the operator local feedback on scan outcomes
// (status LEDs on a kiosk, or just console output).
package indicator

import (
	"fmt"
	"log"
)

// Indicator is the interface for scan feedback implementations.
type Indicator interface {
	// Idle sets the indicator to the ready state.
	Idle()

	// Accepted signals a recorded scan for the named person.
	Accepted(name, direction string)

	// Rejected signals an unknown card or a discarded token.
	Rejected(reason string)

	// ConnectionLost signals that the reader or broker link is down.
	ConnectionLost()

	// Shutdown sets the indicator to the shutdown state.
	Shutdown()

	// Release releases any hardware resources.
	Release() error
}

// Config holds configuration for indicator implementations.
type Config struct {
	// GPIO line offsets on chip (nil = not configured)
	Chip      string `yaml:"chip"` // e.g., "gpiochip0"
	GreenLine *int   `yaml:"green_line"`
	RedLine   *int   `yaml:"red_line"`
}

// New creates an Indicator from config. With no GPIO lines configured it
// falls back to console output.
func New(cfg Config) (Indicator, error) {
	if cfg.GreenLine == nil && cfg.RedLine == nil {
		return &Console{}, nil
	}
	return NewGPIO(cfg)
}

// Console implements Indicator by printing to the terminal log.
type Console struct{}

func (c *Console) Idle() {}

func (c *Console) Accepted(name, direction string) {
	fmt.Printf("[%s] %s\n", direction, name)
}

func (c *Console) Rejected(reason string) {
	fmt.Printf("[REJECTED] %s\n", reason)
}

func (c *Console) ConnectionLost() {
	log.Println("indicator: connection lost")
}

func (c *Console) Shutdown() {}

func (c *Console) Release() error { return nil }
