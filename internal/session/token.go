package session

import (
	"fmt"

	"github.com/google/uuid"
)

// TokenGenerator mints session tokens.
type TokenGenerator interface {
	NewToken() (string, error)
}

// UUIDGenerator mints UUIDv7 tokens, time-sortable across sessions.
type UUIDGenerator struct{}

func (UUIDGenerator) NewToken() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return id.String(), nil
}

// FixedGenerator returns the same token every time. Tests only.
type FixedGenerator struct {
	Token string
}

func (g FixedGenerator) NewToken() (string, error) {
	return g.Token, nil
}
