package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v2"

	"attendd/dispatch"
	"attendd/eventpipe"
	"attendd/export"
	"attendd/indicator"
	"attendd/mqtt"
	"attendd/reader"
	"attendd/store"
)

var myBuild string

// App holds the application state and dependencies. All store and
// dispatcher access happens on the run loop goroutine; the reader
// goroutine only sends token strings.
type App struct {
	cfg        *Config
	store      *store.Store
	dispatcher *dispatch.Dispatcher
	mqtt       *mqtt.Client
	pipe       *eventpipe.Pipe
	indicator  indicator.Indicator

	reader     reader.LineReader
	readerStop context.CancelFunc

	tokens chan string            // single-slot hand-off from the reader goroutine
	cmds   chan eventpipe.Command // operator commands from the pipe
	gone   chan struct{}          // reader detected device removal

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{} // closed when the run loop exits
}

func main() {
	fmt.Printf("attendd build %s\n", myBuild)

	cfgfile := flag.String("cfg", "attendd.cfg", "Config file")
	flag.Parse()

	f, err := os.Open(*cfgfile)
	if err != nil {
		log.Fatalf("Open config: %v", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		log.Fatalf("Decode config: %v", err)
	}

	if cfg.ClientID == "" {
		log.Fatal("client_id missing in config file")
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "attendance.db"
	}

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		cfg:    &cfg,
		tokens: make(chan string, 1),
		cmds:   make(chan eventpipe.Command, 4),
		gone:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	// The store is the one startup dependency we cannot run without.
	app.store, err = store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Open attendance database %s: %v", cfg.DBPath, err)
	}

	app.indicator, err = indicator.New(cfg.Indicator)
	if err != nil {
		log.Fatalf("Init indicator: %v", err)
	}
	app.indicator.ConnectionLost() // Start with connection lost state

	app.dispatcher = dispatch.New(app.store, app, cfg.Dispatch)

	app.mqtt, err = mqtt.New(cfg.MQTT, cfg.ClientID, mqtt.Handlers{
		OnConnect:    app.onMQTTConnect,
		OnDisconnect: app.onMQTTDisconnect,
	})
	if err != nil {
		log.Fatalf("Init MQTT: %v", err)
	}

	app.pipe, err = eventpipe.New(cfg.Pipe, app.enqueueCommand)
	if err != nil {
		log.Fatalf("Init command pipe: %v", err)
	}
	if app.pipe != nil {
		go app.pipe.Start()
	}

	// Connect the reader if one is configured. Failure is reported, not
	// fatal, since the operator can retry via the pipe.
	if cfg.Reader.Device != "" {
		if err := app.connectReader(cfg.Reader); err != nil {
			log.Printf("Reader unavailable: %v", err)
		}
	}

	go func() {
		if err := app.mqtt.Connect(); err != nil {
			log.Printf("MQTT connect: %v", err)
		}
	}()
	go app.pingSender()

	go app.run()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("Shutting down...")
	cancel()
	<-app.done // the run loop owns the store; wait for it before teardown

	app.disconnectReader()
	app.mqtt.Disconnect()
	if app.pipe != nil {
		app.pipe.Close()
	}
	app.indicator.Shutdown()
	app.indicator.Release()
	app.store.Close()

	fmt.Println("Shutdown complete")
}

// run is the single goroutine that owns the store and dispatcher.
func (app *App) run() {
	defer close(app.done)

	var retention <-chan time.Time
	if app.cfg.RetentionDays > 0 {
		app.runCleanup(app.cfg.RetentionDays)
		t := time.NewTicker(24 * time.Hour)
		defer t.Stop()
		retention = t.C
	}

	for {
		select {
		case <-app.ctx.Done():
			return

		case token := <-app.tokens:
			app.dispatcher.Submit(token)

		case cmd := <-app.cmds:
			app.handleCommand(cmd)

		case <-app.gone:
			log.Printf("Reader device removed, disconnecting")
			app.disconnectReader()
			app.indicator.ConnectionLost()

		case <-retention:
			app.runCleanup(app.cfg.RetentionDays)
		}
	}
}

func (app *App) enqueueCommand(cmd eventpipe.Command) {
	select {
	case app.cmds <- cmd:
	case <-app.ctx.Done():
	}
}

func (app *App) handleCommand(cmd eventpipe.Command) {
	switch cmd.Op {
	case eventpipe.OpScan:
		// Manual submissions take the identical path as device tokens.
		app.dispatcher.Submit(cmd.Arg)

	case eventpipe.OpRegister:
		app.dispatcher.ArmCapture()
		fmt.Println("Registration capture armed: present a card")

	case eventpipe.OpConnect:
		cfg := app.cfg.Reader
		if cmd.Arg != "" {
			cfg.Device = cmd.Arg
		}
		if err := app.connectReader(cfg); err != nil {
			log.Printf("Reader unavailable: %v", err)
		}

	case eventpipe.OpDisconnect:
		app.disconnectReader()

	case eventpipe.OpExport:
		events, err := app.store.ListEvents(0)
		if err != nil {
			log.Printf("Export: %v", err)
			return
		}
		if err := export.Events(events, cmd.Arg); err != nil {
			log.Printf("Export: %v", err)
			return
		}
		fmt.Printf("Exported %d events to %s\n", len(events), cmd.Arg)

	case eventpipe.OpBackup:
		if err := app.store.Backup(cmd.Arg); err != nil {
			log.Printf("Backup: %v", err)
			return
		}
		fmt.Printf("Database backed up to %s\n", cmd.Arg)

	case eventpipe.OpCleanup:
		app.runCleanup(cmd.Days)

	case eventpipe.OpStats:
		app.printStats()

	case eventpipe.OpAddUser:
		p := store.Person{
			CardID:       strings.ToUpper(cmd.Person.CardID),
			Name:         cmd.Person.Name,
			Department:   cmd.Person.Department,
			Position:     cmd.Person.Position,
			RegisteredOn: time.Now().Format(store.DateLayout),
		}
		if err := app.store.RegisterPerson(&p); err != nil {
			log.Printf("Add user: %v", err)
			if errors.Is(err, store.ErrDuplicateCardID) {
				app.indicator.Rejected("card already registered")
			}
			return
		}
		fmt.Printf("Registered %s (id %d)\n", p.Name, p.ID)

	case eventpipe.OpEditUser:
		p := store.Person{
			ID:         cmd.ID,
			CardID:     strings.ToUpper(cmd.Person.CardID),
			Name:       cmd.Person.Name,
			Department: cmd.Person.Department,
			Position:   cmd.Person.Position,
		}
		if err := app.store.UpdatePerson(&p); err != nil {
			log.Printf("Edit user: %v", err)
			if errors.Is(err, store.ErrDuplicateCardID) {
				app.indicator.Rejected("card already registered")
			}
			return
		}
		fmt.Printf("Updated %s (id %d)\n", p.Name, p.ID)

	case eventpipe.OpDelUser:
		if err := app.store.DeletePerson(cmd.ID); err != nil {
			log.Printf("Delete user: %v", err)
			return
		}
		fmt.Printf("Deleted person %d and their attendance history\n", cmd.ID)

	case eventpipe.OpUsers:
		persons, err := app.store.ListPersons()
		if err != nil {
			log.Printf("List users: %v", err)
			return
		}
		for _, p := range persons {
			card := p.CardID
			if card == "" {
				card = "-"
			}
			fmt.Printf("  %4d %-10s %-20s %-15s %s\n", p.ID, card, p.Name, p.Department, p.Position)
		}
	}
}

func (app *App) printStats() {
	today := time.Now().Format(store.DateLayout)
	st, err := app.store.StatsFor(today)
	if err != nil {
		log.Printf("Stats: %v", err)
		return
	}
	fmt.Printf("%s: %d registered, %d scans, %d present now, %d people seen\n",
		today, st.Registered, st.ScansToday, st.PresentNow, st.PeopleToday)

	recent, err := app.store.RecentActivity(15)
	if err != nil {
		log.Printf("Stats: %v", err)
		return
	}
	for _, e := range recent {
		stamp := e.TimeIn
		dir := "IN"
		if !e.Open() {
			stamp = e.TimeOut
			dir = "OUT"
		}
		fmt.Printf("  %s %s %-3s %s\n", e.Date, stamp, dir, e.Name)
	}
}

func (app *App) runCleanup(days int) {
	cutoff := time.Now().AddDate(0, 0, -days).Format(store.DateLayout)
	n, err := app.store.DeleteOlderThan(cutoff)
	if err != nil {
		log.Printf("Cleanup: %v", err)
		return
	}
	if n > 0 {
		log.Printf("Cleanup removed %d events older than %s", n, cutoff)
	}
}

// connectReader opens the reader and starts its listener goroutine.
// An existing connection is torn down first.
func (app *App) connectReader(cfg reader.Config) error {
	app.disconnectReader()

	r, err := reader.New(cfg)
	if err != nil {
		return err
	}
	app.reader = r

	ctx, cancel := context.WithCancel(app.ctx)
	app.readerStop = cancel
	go app.scanListener(ctx, r)

	log.Printf("Reader connected on %s", cfg.Device)
	app.indicator.Idle()
	return nil
}

// disconnectReader stops the listener and releases the device. Safe to
// call when not connected. A pending registration capture is cleared.
func (app *App) disconnectReader() {
	if app.readerStop != nil {
		app.readerStop()
		app.readerStop = nil
	}
	if app.reader != nil {
		app.reader.Close()
		app.reader = nil
		log.Printf("Reader disconnected")
	}
	app.dispatcher.DisarmCapture()
}

// scanListener reads tokens off the device and hands them to the run
// loop. It never touches the store.
func (app *App) scanListener(ctx context.Context, r reader.LineReader) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		token, err := r.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			if errors.Is(err, reader.ErrDeviceGone) {
				log.Printf("Read token: %v", err)
				select {
				case app.gone <- struct{}{}:
				default:
				}
				return
			}
			log.Printf("Read token: %v", err)
			time.Sleep(time.Second)
			continue
		}

		if token == "" {
			continue
		}

		select {
		case app.tokens <- token:
		case <-ctx.Done():
			return
		}
	}
}

// Sink implementation: dispatcher outcomes surface here, on the run loop.

// ScanResult implements dispatch.Sink.
func (app *App) ScanResult(res dispatch.Result) {
	stamp := res.At.Format(store.TimeLayout)
	fmt.Printf("%s %s %s\n", stamp, res.Direction, res.Name)
	app.indicator.Accepted(res.Name, string(res.Direction))
	app.mqtt.PublishScan(res.Name, res.CardID, string(res.Direction), stamp)
}

// RegistrationCapture implements dispatch.Sink. The captured token
// pre-fills the registration form of whatever front end is attached; at
// the terminal it is printed for the operator.
func (app *App) RegistrationCapture(token string) {
	fmt.Printf("Captured card for registration: %s\n", token)
}

// UnknownCard implements dispatch.Sink.
func (app *App) UnknownCard(token string) {
	log.Printf("Unknown card: %s", token)
	app.indicator.Rejected("unknown card " + token)
	app.mqtt.PublishUnknown(token)
}

// Error implements dispatch.Sink.
func (app *App) Error(err error) {
	log.Printf("Scan discarded: %v", err)
	app.indicator.Rejected(err.Error())
}

func (app *App) onMQTTConnect() {
	app.indicator.Idle()
}

func (app *App) onMQTTDisconnect() {
	app.indicator.ConnectionLost()
}

func (app *App) pingSender() {
	ticker := time.NewTicker(120 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			app.mqtt.PublishPing()
		}
	}
}
