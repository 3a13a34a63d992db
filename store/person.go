package store

import (
	"database/sql"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// ErrDuplicateCardID indicates a registration or edit reused a card id
// already assigned to another person.
var ErrDuplicateCardID = errors.New("card id already registered")

// Person is a registrable individual. CardID is empty for persons
// registered before a card was issued.
type Person struct {
	ID           int64
	CardID       string
	Name         string
	Department   string
	Position     string
	RegisteredOn string
}

// RegisterPerson inserts a new person and fills in their row id.
func (s *Store) RegisterPerson(p *Person) error {
	res, err := s.db.Exec(
		`INSERT INTO persons (card_id, name, department, position, registered_on)
		 VALUES (?, ?, ?, ?, ?)`,
		nullable(p.CardID), p.Name, p.Department, p.Position, p.RegisteredOn,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("register %s: %w", p.Name, ErrDuplicateCardID)
		}
		return fmt.Errorf("register %s: %w", p.Name, err)
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

// UpdatePerson rewrites a person's fields in place, keyed by the immutable
// row id. Attendance rows are left untouched.
func (s *Store) UpdatePerson(p *Person) error {
	res, err := s.db.Exec(
		`UPDATE persons SET card_id = ?, name = ?, department = ?, position = ? WHERE id = ?`,
		nullable(p.CardID), p.Name, p.Department, p.Position, p.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update person %d: %w", p.ID, ErrDuplicateCardID)
		}
		return fmt.Errorf("update person %d: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update person %d: no such person", p.ID)
	}
	return nil
}

// DeletePerson removes a person and all of their attendance events.
func (s *Store) DeletePerson(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("delete person %d: %w", id, err)
	}
	defer tx.Rollback()

	var cardID sql.NullString
	err = tx.QueryRow(`SELECT card_id FROM persons WHERE id = ?`, id).Scan(&cardID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("delete person %d: no such person", id)
	}
	if err != nil {
		return fmt.Errorf("delete person %d: %w", id, err)
	}

	if _, err := tx.Exec(`DELETE FROM persons WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete person %d: %w", id, err)
	}
	if cardID.Valid && cardID.String != "" {
		if _, err := tx.Exec(`DELETE FROM attendance WHERE card_id = ?`, cardID.String); err != nil {
			return fmt.Errorf("delete person %d events: %w", id, err)
		}
	}
	return tx.Commit()
}

// LookupByCard returns the person holding cardID, or (nil, nil) when no
// one does.
func (s *Store) LookupByCard(cardID string) (*Person, error) {
	var p Person
	var card sql.NullString
	err := s.db.QueryRow(
		`SELECT id, card_id, name, department, position, registered_on FROM persons WHERE card_id = ?`,
		cardID,
	).Scan(&p.ID, &card, &p.Name, &p.Department, &p.Position, &p.RegisteredOn)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup card %s: %w", cardID, err)
	}
	p.CardID = card.String
	return &p, nil
}

// GetPerson returns a person by row id, or (nil, nil) when absent.
func (s *Store) GetPerson(id int64) (*Person, error) {
	var p Person
	var card sql.NullString
	err := s.db.QueryRow(
		`SELECT id, card_id, name, department, position, registered_on FROM persons WHERE id = ?`,
		id,
	).Scan(&p.ID, &card, &p.Name, &p.Department, &p.Position, &p.RegisteredOn)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get person %d: %w", id, err)
	}
	p.CardID = card.String
	return &p, nil
}

// ListPersons returns all registered persons ordered by name.
func (s *Store) ListPersons() ([]Person, error) {
	rows, err := s.db.Query(
		`SELECT id, card_id, name, department, position, registered_on FROM persons ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	var persons []Person
	for rows.Next() {
		var p Person
		var card sql.NullString
		if err := rows.Scan(&p.ID, &card, &p.Name, &p.Department, &p.Position, &p.RegisteredOn); err != nil {
			return nil, err
		}
		p.CardID = card.String
		persons = append(persons, p)
	}
	return persons, rows.Err()
}

// nullable maps "" to NULL so the card_id UNIQUE constraint permits any
// number of card-less persons.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
