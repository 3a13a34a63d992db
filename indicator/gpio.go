package indicator

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

const flashDuration = 300 * time.Millisecond

// line is the subset of *gpiocdev.Line the indicator drives.
type line interface {
	SetValue(v int) error
	Close() error
}

// GPIO implements Indicator using discrete LED lines via the character
// device API.
type GPIO struct {
	green line
	red   line
}

// NewGPIO requests the configured LED lines as outputs, starting off.
func NewGPIO(cfg Config) (*GPIO, error) {
	chip := cfg.Chip
	if chip == "" {
		chip = "gpiochip0"
	}

	g := &GPIO{}

	if cfg.GreenLine != nil {
		l, err := gpiocdev.RequestLine(chip, *cfg.GreenLine, gpiocdev.AsOutput(0))
		if err != nil {
			return nil, fmt.Errorf("request green line %d: %w", *cfg.GreenLine, err)
		}
		g.green = l
	}
	if cfg.RedLine != nil {
		l, err := gpiocdev.RequestLine(chip, *cfg.RedLine, gpiocdev.AsOutput(0))
		if err != nil {
			g.Release()
			return nil, fmt.Errorf("request red line %d: %w", *cfg.RedLine, err)
		}
		g.red = l
	}

	return g, nil
}

// Idle implements Indicator.Idle.
func (g *GPIO) Idle() {
	g.set(g.green, 0)
	g.set(g.red, 0)
}

// Accepted implements Indicator.Accepted with a short green flash.
func (g *GPIO) Accepted(name, direction string) {
	g.flash(g.green)
}

// Rejected implements Indicator.Rejected with a short red flash.
func (g *GPIO) Rejected(reason string) {
	g.flash(g.red)
}

// ConnectionLost implements Indicator.ConnectionLost: solid red.
func (g *GPIO) ConnectionLost() {
	g.set(g.green, 0)
	g.set(g.red, 1)
}

// Shutdown implements Indicator.Shutdown.
func (g *GPIO) Shutdown() {
	g.set(g.green, 0)
	g.set(g.red, 0)
}

// Release implements Indicator.Release.
func (g *GPIO) Release() error {
	if g.green != nil {
		g.green.Close()
	}
	if g.red != nil {
		g.red.Close()
	}
	return nil
}

func (g *GPIO) set(l line, v int) {
	if l == nil {
		return
	}
	l.SetValue(v)
}

// flash pulses the line without blocking the caller. The run loop calls
// this between scans, so the off edge is scheduled, not slept for.
func (g *GPIO) flash(l line) {
	if l == nil {
		return
	}
	l.SetValue(1)
	time.AfterFunc(flashDuration, func() {
		l.SetValue(0)
	})
}
