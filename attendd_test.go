package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"attendd/dispatch"
	"attendd/eventpipe"
	"attendd/indicator"
	"attendd/mqtt"
	"attendd/store"
)

func newTestApp(t *testing.T) *App {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "attendance.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	app := &App{
		cfg:       &Config{ClientID: "test"},
		store:     st,
		indicator: &indicator.Console{},
		tokens:    make(chan string, 1),
		cmds:      make(chan eventpipe.Command, 4),
		gone:      make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	app.dispatcher = dispatch.New(st, app, dispatch.Config{})
	app.mqtt, err = mqtt.New(mqtt.Config{}, "test", mqtt.Handlers{})
	if err != nil {
		t.Fatalf("init mqtt: %v", err)
	}
	return app
}

func mustParse(t *testing.T, line string) eventpipe.Command {
	t.Helper()
	cmd, err := eventpipe.ParseLine(line)
	if err != nil {
		t.Fatalf("parse %q: %v", line, err)
	}
	return cmd
}

func TestPersonAdminCommands(t *testing.T) {
	app := newTestApp(t)

	app.handleCommand(mustParse(t, "adduser ab12cd34|Alice Smith|Engineering|Technician"))

	p, err := app.store.LookupByCard("AB12CD34")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if p == nil {
		t.Fatal("adduser did not register the person")
	}
	if p.Name != "Alice Smith" || p.Department != "Engineering" {
		t.Fatalf("unexpected person %+v", p)
	}
	if p.RegisteredOn == "" {
		t.Fatal("registration date not stamped")
	}

	// A second person claiming the same card must be refused outright.
	app.handleCommand(mustParse(t, "adduser AB12CD34|Mallory||"))
	persons, err := app.store.ListPersons()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(persons) != 1 {
		t.Fatalf("duplicate card accepted, %d persons registered", len(persons))
	}

	// Edits rewrite fields in place under the same row id.
	app.handleCommand(mustParse(t, "edituser 1 ef56aa77|Alice Jones|Operations|Lead"))
	got, err := app.store.GetPerson(p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Name != "Alice Jones" || got.CardID != "EF56AA77" {
		t.Fatalf("edituser did not rewrite in place: %+v", got)
	}

	// A scan now so the delete has history to cascade over.
	app.dispatcher.Submit("EF56AA77")
	app.handleCommand(mustParse(t, "deluser 1"))
	if got, err := app.store.GetPerson(p.ID); err != nil || got != nil {
		t.Fatalf("person survived deluser: %+v %v", got, err)
	}
	events, err := app.store.ListEvents(0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("attendance history survived deluser: %d rows", len(events))
	}
}

func TestScanReachesLedgerThroughCommand(t *testing.T) {
	app := newTestApp(t)

	app.handleCommand(mustParse(t, "adduser ab12|Alice||"))
	app.handleCommand(mustParse(t, "scan ab12"))

	ev, err := app.store.LatestEvent("AB12", time.Now().Format(store.DateLayout))
	if err != nil {
		t.Fatalf("latest event: %v", err)
	}
	if ev == nil || !ev.Open() {
		t.Fatalf("scan command did not open an event: %+v", ev)
	}
}

func TestRunLoopSignalsDone(t *testing.T) {
	app := newTestApp(t)

	go app.run()

	app.cmds <- mustParse(t, "users")
	app.cancel()

	select {
	case <-app.done:
	case <-time.After(2 * time.Second):
		t.Fatal("run loop did not signal completion after cancel")
	}

	// The store is still usable here, so teardown after done is safe.
	if _, err := app.store.ListPersons(); err != nil {
		t.Fatalf("store unusable before teardown: %v", err)
	}
}

func TestDuplicateCardSurfacesSentinel(t *testing.T) {
	app := newTestApp(t)

	app.handleCommand(mustParse(t, "adduser ab12|Alice||"))

	p := store.Person{CardID: "AB12", Name: "Mallory", RegisteredOn: "2026-08-29"}
	err := app.store.RegisterPerson(&p)
	if !errors.Is(err, store.ErrDuplicateCardID) {
		t.Fatalf("want ErrDuplicateCardID, got %v", err)
	}
}
