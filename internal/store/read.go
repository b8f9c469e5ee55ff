package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/capstan-io/capstan/internal/events"
	"github.com/capstan-io/capstan/internal/scheduler"
	"github.com/capstan-io/capstan/internal/urn"
	"github.com/capstan-io/capstan/internal/value"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// SessionRecord is one persisted session row.
type SessionRecord struct {
	Token   string
	Stack   string
	Project string
	State   string
}

// ReadSession returns the persisted record for token.
func (s *Store) ReadSession(token string) (SessionRecord, error) {
	var rec SessionRecord
	err := s.db.QueryRow(`
		SELECT token, stack, project, state FROM sessions WHERE token = ?
	`, token).Scan(&rec.Token, &rec.Stack, &rec.Project, &rec.State)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, fmt.Errorf("read session %s: %w", token, ErrNotFound)
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("read session: %w", err)
	}
	return rec, nil
}

// ListSessions returns every persisted session, newest first.
func (s *Store) ListSessions() ([]SessionRecord, error) {
	rows, err := s.db.Query(`
		SELECT token, stack, project, state FROM sessions ORDER BY updated_at DESC, token ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		if err := rows.Scan(&rec.Token, &rec.Stack, &rec.Project, &rec.State); err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ReadResources returns every resource checkpoint for a session,
// ordered by urn for determinism.
func (s *Store) ReadResources(token string) ([]scheduler.Record, error) {
	rows, err := s.db.Query(`
		SELECT urn, type, state, inputs, outputs, request_hash, COALESCE(failure, '')
		FROM resources WHERE session_token = ? ORDER BY urn ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("read resources: %w", err)
	}
	defer rows.Close()

	var out []scheduler.Record
	for rows.Next() {
		var (
			rec             scheduler.Record
			u, state        string
			inputs, outputs string
		)
		if err := rows.Scan(&u, &rec.Type, &state, &inputs, &outputs, &rec.RequestHash, &rec.Failure); err != nil {
			return nil, fmt.Errorf("read resources: %w", err)
		}
		rec.URN = urn.URN(u)
		rec.State = scheduler.State(state)
		if rec.Inputs, err = unmarshalBag(inputs); err != nil {
			return nil, fmt.Errorf("read resources: inputs for %s: %w", u, err)
		}
		if rec.Outputs, err = unmarshalBag(outputs); err != nil {
			return nil, fmt.Errorf("read resources: outputs for %s: %w", u, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ReadEvents returns a session's event log in publish order. The
// explicit ORDER BY makes replays deterministic regardless of how rows
// were inserted.
func (s *Store) ReadEvents(token string) ([]events.Event, error) {
	rows, err := s.db.Query(`
		SELECT seq, time, kind, COALESCE(severity, ''), COALESCE(urn, ''),
		       COALESCE(state, ''), COALESCE(message, '')
		FROM events WHERE session_token = ? ORDER BY seq ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var (
			e        events.Event
			ts, u    string
			kind     string
			severity string
		)
		if err := rows.Scan(&e.Seq, &ts, &kind, &severity, &u, &e.State, &e.Message); err != nil {
			return nil, fmt.Errorf("read events: %w", err)
		}
		e.Kind = events.Kind(kind)
		e.Severity = events.Severity(severity)
		e.URN = urn.URN(u)
		if e.Time, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("read events: seq %d: %w", e.Seq, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func unmarshalBag(data string) (value.Object, error) {
	if data == "" || data == "{}" {
		return value.Object{}, nil
	}
	v, err := value.Unmarshal([]byte(data))
	if err != nil {
		return nil, err
	}
	obj, ok := v.(value.Object)
	if !ok {
		return nil, fmt.Errorf("property bag is not an object")
	}
	return obj, nil
}
