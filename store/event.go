package store

import (
	"database/sql"
	"fmt"
)

// Event is one open/close pair for one person on one day. TimeOut is ""
// while the person is still present.
type Event struct {
	ID      int64
	CardID  string
	Name    string
	TimeIn  string
	TimeOut string
	Date    string
	Status  string
}

// Open reports whether the event has no recorded time-out yet.
func (e *Event) Open() bool { return e.TimeOut == "" }

// LatestEvent returns the most recent event for (cardID, date), or
// (nil, nil) when the person has no event that day.
func (s *Store) LatestEvent(cardID, date string) (*Event, error) {
	var e Event
	var out sql.NullString
	err := s.db.QueryRow(
		`SELECT id, card_id, name, time_in, time_out, date, status
		 FROM attendance WHERE card_id = ? AND date = ?
		 ORDER BY id DESC LIMIT 1`,
		cardID, date,
	).Scan(&e.ID, &e.CardID, &e.Name, &e.TimeIn, &out, &e.Date, &e.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest event %s/%s: %w", cardID, date, err)
	}
	e.TimeOut = out.String
	return &e, nil
}

// OpenEvent inserts a new open event (time_out NULL) and returns its id.
func (s *Store) OpenEvent(cardID, name, timeIn, date string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO attendance (card_id, name, time_in, date, status) VALUES (?, ?, ?, ?, ?)`,
		cardID, name, timeIn, date, StatusPresent,
	)
	if err != nil {
		return 0, fmt.Errorf("open event %s: %w", cardID, err)
	}
	return res.LastInsertId()
}

// CloseEvent records the time-out on an open event.
func (s *Store) CloseEvent(id int64, timeOut string) error {
	res, err := s.db.Exec(`UPDATE attendance SET time_out = ? WHERE id = ?`, timeOut, id)
	if err != nil {
		return fmt.Errorf("close event %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("close event %d: no such event", id)
	}
	return nil
}

// ListEvents returns up to limit events, newest first. limit <= 0 returns
// everything.
func (s *Store) ListEvents(limit int) ([]Event, error) {
	q := `SELECT id, card_id, name, time_in, time_out, date, status
	      FROM attendance ORDER BY date DESC, time_in DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.Query(q+` LIMIT ?`, limit)
	} else {
		rows, err = s.db.Query(q)
	}
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// FilterEvents returns events between from and to (inclusive, stored date
// form) whose name contains nameSub. Empty arguments disable that filter.
func (s *Store) FilterEvents(from, to, nameSub string) ([]Event, error) {
	q := `SELECT id, card_id, name, time_in, time_out, date, status FROM attendance WHERE 1=1`
	var args []any
	if from != "" {
		q += ` AND date >= ?`
		args = append(args, from)
	}
	if to != "" {
		q += ` AND date <= ?`
		args = append(args, to)
	}
	if nameSub != "" {
		q += ` AND name LIKE ?`
		args = append(args, "%"+nameSub+"%")
	}
	q += ` ORDER BY date DESC, time_in DESC`

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("filter events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// DeleteOlderThan removes every event whose date is strictly older than
// cutoff and returns the number removed.
func (s *Store) DeleteOlderThan(cutoff string) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM attendance WHERE date < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup before %s: %w", cutoff, err)
	}
	return res.RowsAffected()
}

// Stats holds the dashboard counters for one day.
type Stats struct {
	Registered  int // persons on file
	ScansToday  int // attendance rows dated today
	PresentNow  int // open events today
	PeopleToday int // distinct names seen today
}

// StatsFor computes the dashboard counters for the given date.
func (s *Store) StatsFor(date string) (Stats, error) {
	var st Stats
	steps := []struct {
		q    string
		args []any
		dst  *int
	}{
		{`SELECT COUNT(*) FROM persons`, nil, &st.Registered},
		{`SELECT COUNT(*) FROM attendance WHERE date = ?`, []any{date}, &st.ScansToday},
		{`SELECT COUNT(*) FROM attendance WHERE time_out IS NULL AND date = ?`, []any{date}, &st.PresentNow},
		{`SELECT COUNT(DISTINCT name) FROM attendance WHERE date = ?`, []any{date}, &st.PeopleToday},
	}
	for _, step := range steps {
		if err := s.db.QueryRow(step.q, step.args...).Scan(step.dst); err != nil {
			return Stats{}, fmt.Errorf("stats: %w", err)
		}
	}
	return st, nil
}

// RecentActivity returns the last n events, newest first.
func (s *Store) RecentActivity(n int) ([]Event, error) {
	if n <= 0 {
		n = 15
	}
	return s.ListEvents(n)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var e Event
		var out sql.NullString
		if err := rows.Scan(&e.ID, &e.CardID, &e.Name, &e.TimeIn, &out, &e.Date, &e.Status); err != nil {
			return nil, err
		}
		e.TimeOut = out.String
		events = append(events, e)
	}
	return events, rows.Err()
}
