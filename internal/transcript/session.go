package transcript

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	sessionIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	sessionIDLength   = 12
)

// NewSessionID creates a random 12-character alphanumeric session identifier.
func NewSessionID() string {
	b := make([]byte, sessionIDLength)
	if _, err := rand.Read(b); err != nil {
		return strings.ReplaceAll(uuid.NewString(), "-", "")[:sessionIDLength]
	}
	for i, v := range b {
		b[i] = sessionIDAlphabet[int(v)%len(sessionIDAlphabet)]
	}
	return string(b)
}

// Session is one conversation instance. Turns are append-only for the life of
// the session and wholesale-replaced on reset.
type Session struct {
	ID             string
	Turns          []ChatTurn
	AcceptedTerms  bool
	ServiceContext *ServiceContext

	// Deferred holds turns withheld until a lead-creation round-trip
	// completes, then appended in order.
	Deferred []ChatTurn
}

// NewSession creates a session with a fresh identifier and empty transcript.
func NewSession() *Session {
	return &Session{ID: NewSessionID()}
}

// Append adds a turn, stamping the time if the caller did not.
func (s *Session) Append(turn ChatTurn) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	s.Turns = append(s.Turns, turn)
}

// Defer queues a turn to be appended once the pending lead round-trip completes.
func (s *Session) Defer(turn ChatTurn) {
	s.Deferred = append(s.Deferred, turn)
}

// FlushDeferred appends the withheld turns in order and clears the queue.
func (s *Session) FlushDeferred() {
	for _, turn := range s.Deferred {
		s.Append(turn)
	}
	s.Deferred = nil
}

// Reset discards all session state and issues a new identifier.
func (s *Session) Reset() {
	s.ID = NewSessionID()
	s.Turns = nil
	s.Deferred = nil
	s.ServiceContext = nil
	s.AcceptedTerms = false
}
