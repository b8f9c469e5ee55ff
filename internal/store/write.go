package store

import (
	"fmt"
	"time"

	"github.com/capstan-io/capstan/internal/events"
	"github.com/capstan-io/capstan/internal/scheduler"
	"github.com/capstan-io/capstan/internal/value"
)

// SaveSession upserts a session's lifecycle state.
func (s *Store) SaveSession(token, stack, project, state string) error {
	_, err := s.db.Exec(`
		INSERT INTO sessions (token, stack, project, state)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET
			state = excluded.state,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
	`, token, stack, project, state)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// SaveResource records a resource's terminal checkpoint. Idempotent on
// (session, urn): a retry that carries the same request hash leaves
// the original row untouched, which is what makes idempotent
// registration survive restarts. Property bags are serialized to
// canonical JSON so the stored bytes are comparable.
func (s *Store) SaveResource(token string, rec scheduler.Record) error {
	inputsJSON, err := marshalBag(rec.Inputs)
	if err != nil {
		return fmt.Errorf("save resource: %w", err)
	}
	outputsJSON, err := marshalBag(rec.Outputs)
	if err != nil {
		return fmt.Errorf("save resource: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO resources
		(session_token, urn, type, state, inputs, outputs, request_hash, failure)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_token, urn) DO NOTHING
	`,
		token,
		string(rec.URN),
		rec.Type,
		string(rec.State),
		inputsJSON,
		outputsJSON,
		rec.RequestHash,
		nullable(rec.Failure),
	)
	if err != nil {
		return fmt.Errorf("save resource: %w", err)
	}
	return nil
}

// SaveEvent appends one event to the session's durable log. Idempotent
// on (session, seq); replaying a prefix after a crash is a no-op.
func (s *Store) SaveEvent(token string, e events.Event) error {
	_, err := s.db.Exec(`
		INSERT INTO events
		(session_token, seq, time, kind, severity, urn, state, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_token, seq) DO NOTHING
	`,
		token,
		e.Seq,
		e.Time.UTC().Format(time.RFC3339Nano),
		string(e.Kind),
		nullable(string(e.Severity)),
		nullable(string(e.URN)),
		nullable(e.State),
		nullable(e.Message),
	)
	if err != nil {
		return fmt.Errorf("save event: %w", err)
	}
	return nil
}

// marshalBag serializes a property bag to canonical JSON. A nil bag
// stores as an empty object so reads never deal with NULL inputs.
func marshalBag(bag value.Object) (string, error) {
	if bag == nil {
		return "{}", nil
	}
	data, err := value.MarshalCanonical(bag)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
