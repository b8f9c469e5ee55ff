package events

import (
	"time"

	"github.com/capstan-io/capstan/internal/urn"
)

// Kind categorizes an event.
type Kind string

const (
	// KindDiagnostic is a log-style message from the coordinator,
	// a provider, or the executing program.
	KindDiagnostic Kind = "diagnostic"

	// KindResourceStatus records a resource state-machine transition.
	KindResourceStatus Kind = "resource-status"

	// KindPolicyViolation records a policy check failure.
	KindPolicyViolation Kind = "policy-violation"

	// KindSessionStatus records a session lifecycle transition.
	KindSessionStatus Kind = "session-status"

	// KindCancel records that the session's cancellation signal was
	// raised.
	KindCancel Kind = "cancel"
)

// Severity grades diagnostic events.
type Severity string

const (
	SeverityDebug   Severity = "debug"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is one immutable record on the session event log.
//
// Seq is assigned by the multiplexer at publish time and is unique and
// strictly increasing within a session. Time is informational only.
type Event struct {
	Seq      int64     `json:"seq"`
	Time     time.Time `json:"time"`
	Kind     Kind      `json:"kind"`
	Severity Severity  `json:"severity,omitempty"`
	URN      urn.URN   `json:"urn,omitempty"`
	State    string    `json:"state,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// Diagnostic builds a diagnostic event. Seq and Time are filled at
// publish time.
func Diagnostic(sev Severity, message string) Event {
	return Event{Kind: KindDiagnostic, Severity: sev, Message: message}
}

// ResourceStatus builds a resource state-transition event.
func ResourceStatus(u urn.URN, state, message string) Event {
	return Event{Kind: KindResourceStatus, URN: u, State: state, Message: message}
}

// PolicyViolation builds a policy violation event.
func PolicyViolation(u urn.URN, message string) Event {
	return Event{Kind: KindPolicyViolation, URN: u, Severity: SeverityError, Message: message}
}

// SessionStatus builds a session lifecycle event.
func SessionStatus(state, message string) Event {
	return Event{Kind: KindSessionStatus, State: state, Message: message}
}

// Cancel builds a cancellation event.
func Cancel(reason string) Event {
	return Event{Kind: KindCancel, Severity: SeverityWarning, Message: reason}
}
