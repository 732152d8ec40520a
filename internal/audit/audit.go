// Package audit fans out security events to a caller-supplied sink
// without ever blocking an authentication operation.
package audit

import (
	"context"
	"time"
)

// EventType names a security-relevant occurrence.
type EventType string

const (
	EventLoginSuccess     EventType = "login_success"
	EventLoginFailure     EventType = "login_failure"
	EventLoginRateLimited EventType = "login_rate_limited"
	EventPairIssued       EventType = "pair_issued"
	EventInviteIssued     EventType = "invite_issued"
	EventRefreshSuccess   EventType = "refresh_success"
	EventRefreshReuse     EventType = "refresh_reuse"
	EventRefreshFailure   EventType = "refresh_failure"
	EventTokenRevoked     EventType = "token_revoked"
	EventSessionRevoked   EventType = "session_revoked"
	EventRateLimited      EventType = "rate_limited"
	EventStoreUnavailable EventType = "store_unavailable"
	EventCorruptHash      EventType = "corrupt_credential_hash"
)

// Event is one audit record. Fields carries small, non-secret context
// (identifiers, reasons) and must never contain secrets or raw tokens.
type Event struct {
	Type      EventType
	At        time.Time
	Success   bool
	UserID    string
	TenantID  string
	SessionID string
	ClientIP  string
	Error     string
	Fields    map[string]string
}

// Sink receives events from the dispatcher goroutine. Implementations
// must be safe for use from a single background goroutine and should
// return quickly; slow sinks cause drops, not latency.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink discards all events.
type NoOpSink struct{}

// Emit implements [Sink].
func (NoOpSink) Emit(context.Context, Event) {}
