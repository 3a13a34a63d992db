package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "attendance.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRegisterDuplicateCard(t *testing.T) {
	s := testStore(t)

	p := &Person{CardID: "AB12CD34", Name: "Jane Doe", RegisteredOn: "2026-08-29"}
	if err := s.RegisterPerson(p); err != nil {
		t.Fatalf("register: %v", err)
	}
	if p.ID == 0 {
		t.Fatal("expected row id to be set")
	}

	dup := &Person{CardID: "AB12CD34", Name: "John Roe", RegisteredOn: "2026-08-29"}
	err := s.RegisterPerson(dup)
	if !errors.Is(err, ErrDuplicateCardID) {
		t.Fatalf("duplicate register err = %v, want ErrDuplicateCardID", err)
	}
}

func TestCardlessPersonsAllowed(t *testing.T) {
	s := testStore(t)

	// Multiple persons without cards must not trip the UNIQUE constraint.
	for _, name := range []string{"A", "B", "C"} {
		if err := s.RegisterPerson(&Person{Name: name}); err != nil {
			t.Fatalf("register card-less %s: %v", name, err)
		}
	}

	persons, err := s.ListPersons()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(persons) != 3 {
		t.Fatalf("got %d persons, want 3", len(persons))
	}
}

func TestUpdatePersonInPlace(t *testing.T) {
	s := testStore(t)

	p := &Person{CardID: "CARD1", Name: "Jane Doe", Department: "Ops"}
	if err := s.RegisterPerson(p); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Open an event under the original card, then edit the person.
	if _, err := s.OpenEvent("CARD1", "Jane Doe", "08:00:00", "2026-08-29"); err != nil {
		t.Fatalf("open event: %v", err)
	}

	p.Department = "Finance"
	p.Position = "Lead"
	if err := s.UpdatePerson(p); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.GetPerson(p.ID)
	if err != nil || got == nil {
		t.Fatalf("get after update: %v, %v", got, err)
	}
	if got.Department != "Finance" || got.Position != "Lead" {
		t.Fatalf("update not applied: %+v", got)
	}

	// History survives the edit.
	evts, err := s.FilterEvents("", "", "Jane")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(evts) != 1 {
		t.Fatalf("got %d events after edit, want 1", len(evts))
	}
}

func TestDeletePersonCascades(t *testing.T) {
	s := testStore(t)

	p := &Person{CardID: "AB12CD34", Name: "Jane Doe"}
	if err := s.RegisterPerson(p); err != nil {
		t.Fatalf("register: %v", err)
	}
	for _, d := range []string{"2026-08-27", "2026-08-28"} {
		if _, err := s.OpenEvent(p.CardID, p.Name, "08:00:00", d); err != nil {
			t.Fatalf("open event: %v", err)
		}
	}

	if err := s.DeletePerson(p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if got, err := s.LookupByCard("AB12CD34"); err != nil || got != nil {
		t.Fatalf("person still present after delete: %v, %v", got, err)
	}
	evts, err := s.ListEvents(0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(evts) != 0 {
		t.Fatalf("got %d events after cascade delete, want 0", len(evts))
	}
}

func TestRetentionCleanup(t *testing.T) {
	s := testStore(t)

	dates := []string{"2026-07-01", "2026-07-29", "2026-07-30", "2026-08-29"}
	for _, d := range dates {
		if _, err := s.OpenEvent("C1", "Jane Doe", "08:00:00", d); err != nil {
			t.Fatalf("open event %s: %v", d, err)
		}
	}

	// Strictly-older-than semantics: the cutoff day itself survives.
	n, err := s.DeleteOlderThan("2026-07-30")
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 2 {
		t.Fatalf("removed %d events, want 2", n)
	}

	evts, err := s.ListEvents(0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, e := range evts {
		if e.Date < "2026-07-30" {
			t.Fatalf("event %s survived cleanup", e.Date)
		}
	}
}

func TestStats(t *testing.T) {
	s := testStore(t)

	today := "2026-08-29"
	if err := s.RegisterPerson(&Person{CardID: "C1", Name: "Jane"}); err != nil {
		t.Fatal(err)
	}
	if err := s.RegisterPerson(&Person{CardID: "C2", Name: "John"}); err != nil {
		t.Fatal(err)
	}

	id, err := s.OpenEvent("C1", "Jane", "08:00:00", today)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CloseEvent(id, "12:00:00"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.OpenEvent("C1", "Jane", "13:00:00", today); err != nil {
		t.Fatal(err)
	}
	if _, err := s.OpenEvent("C2", "John", "09:00:00", today); err != nil {
		t.Fatal(err)
	}
	if _, err := s.OpenEvent("C2", "John", "09:00:00", "2026-08-28"); err != nil {
		t.Fatal(err)
	}

	st, err := s.StatsFor(today)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := Stats{Registered: 2, ScansToday: 3, PresentNow: 2, PeopleToday: 2}
	if st != want {
		t.Fatalf("stats = %+v, want %+v", st, want)
	}
}

func TestBackup(t *testing.T) {
	s := testStore(t)
	if err := s.RegisterPerson(&Person{CardID: "C1", Name: "Jane"}); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(t.TempDir(), "backup.db")
	if err := s.Backup(dst); err != nil {
		t.Fatalf("backup: %v", err)
	}

	bak, err := Open(dst)
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	defer bak.Close()

	p, err := bak.LookupByCard("C1")
	if err != nil || p == nil {
		t.Fatalf("backup missing person: %v, %v", p, err)
	}
}
