// Package dispatch classifies incoming scan tokens and records attendance.
package dispatch

import (
	"fmt"
	"strings"
	"time"

	"attendd/store"
)

// Direction of a recorded attendance scan.
type Direction string

const (
	In  Direction = "IN"
	Out Direction = "OUT"
)

// Result describes one recorded scan for display and logging.
type Result struct {
	Name      string
	CardID    string
	Direction Direction
	At        time.Time
}

// Sink receives dispatcher outcomes. All methods are invoked on the
// caller's goroutine; implementations decide how to surface them.
type Sink interface {
	// ScanResult reports a recorded time-in or time-out.
	ScanResult(Result)

	// RegistrationCapture delivers a token scanned while registration
	// capture was armed.
	RegistrationCapture(token string)

	// UnknownCard reports a token with no registered person.
	UnknownCard(token string)

	// Error reports a storage failure; the token was discarded.
	Error(err error)
}

// NopSink discards all dispatcher outcomes.
type NopSink struct{}

func (NopSink) ScanResult(Result)          {}
func (NopSink) RegistrationCapture(string) {}
func (NopSink) UnknownCard(string)         {}
func (NopSink) Error(error)                {}

// Config holds dispatcher tuning.
type Config struct {
	// DebounceSecs rejects a repeat scan of the same token arriving within
	// this many seconds. 0 disables debouncing.
	DebounceSecs int `yaml:"debounce_secs"`
}

// Dispatcher turns raw scan tokens into attendance records. It is not
// safe for concurrent use; the application submits from one goroutine.
type Dispatcher struct {
	store *store.Store
	sink  Sink
	cfg   Config

	awaitingCapture bool
	lastToken       string
	lastTokenAt     time.Time

	now func() time.Time
}

// New creates a Dispatcher writing to st and reporting to sink. A nil
// sink gets the no-op default.
func New(st *store.Store, sink Sink, cfg Config) *Dispatcher {
	if sink == nil {
		sink = NopSink{}
	}
	return &Dispatcher{store: st, sink: sink, cfg: cfg, now: time.Now}
}

// ArmCapture puts the dispatcher in registration-capture mode: the next
// token is delivered to the registration form instead of the ledger.
func (d *Dispatcher) ArmCapture() { d.awaitingCapture = true }

// DisarmCapture clears registration-capture mode. Called when the operator
// cancels or the device disconnects.
func (d *Dispatcher) DisarmCapture() { d.awaitingCapture = false }

// Capturing reports whether registration-capture mode is armed.
func (d *Dispatcher) Capturing() bool { return d.awaitingCapture }

// Submit classifies one token and executes the corresponding effect.
// The token's origin (device or manual entry) is irrelevant.
func (d *Dispatcher) Submit(token string) {
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" {
		return
	}

	if d.awaitingCapture {
		d.awaitingCapture = false
		d.sink.RegistrationCapture(token)
		return
	}

	now := d.now()
	if d.debounced(token, now) {
		return
	}

	person, err := d.store.LookupByCard(token)
	if err != nil {
		d.sink.Error(fmt.Errorf("lookup %s: %w", token, err))
		return
	}
	if person == nil {
		d.sink.UnknownCard(token)
		return
	}

	today := now.Format(store.DateLayout)
	clock := now.Format(store.TimeLayout)

	last, err := d.store.LatestEvent(token, today)
	if err != nil {
		d.sink.Error(fmt.Errorf("resolve %s: %w", token, err))
		return
	}

	if last != nil && last.Open() {
		if err := d.store.CloseEvent(last.ID, clock); err != nil {
			d.sink.Error(err)
			return
		}
		d.remember(token, now)
		d.sink.ScanResult(Result{Name: person.Name, CardID: token, Direction: Out, At: now})
		return
	}

	if _, err := d.store.OpenEvent(token, person.Name, clock, today); err != nil {
		d.sink.Error(err)
		return
	}
	d.remember(token, now)
	d.sink.ScanResult(Result{Name: person.Name, CardID: token, Direction: In, At: now})
}

func (d *Dispatcher) debounced(token string, now time.Time) bool {
	if d.cfg.DebounceSecs <= 0 {
		return false
	}
	window := time.Duration(d.cfg.DebounceSecs) * time.Second
	return token == d.lastToken && now.Sub(d.lastTokenAt) < window
}

func (d *Dispatcher) remember(token string, at time.Time) {
	d.lastToken = token
	d.lastTokenAt = at
}
