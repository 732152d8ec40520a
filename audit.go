package netrunauth

import (
	"context"
	"time"

	"github.com/Netrun-Systems/netrun-auth/internal/audit"
)

// AuditEvent is one security-relevant occurrence emitted by the
// Engine: logins, issuance, refresh, revocation and limiter hits.
type AuditEvent struct {
	Type      string
	At        time.Time
	Success   bool
	UserID    string
	TenantID  string
	SessionID string
	ClientIP  string
	Error     string
	Fields    map[string]string
}

// AuditSink receives events from the Engine's dispatcher. Emit runs on
// a single background goroutine; a slow sink causes drops rather than
// blocking callers when Config.Audit.DropIfFull is set.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// AuditSinkFunc adapts a function to the AuditSink interface.
type AuditSinkFunc func(ctx context.Context, event AuditEvent)

func (f AuditSinkFunc) Emit(ctx context.Context, event AuditEvent) { f(ctx, event) }

// sinkAdapter bridges the public sink to the internal dispatcher.
type sinkAdapter struct {
	sink AuditSink
}

func (a sinkAdapter) Emit(ctx context.Context, e audit.Event) {
	a.sink.Emit(ctx, AuditEvent{
		Type:      string(e.Type),
		At:        e.At,
		Success:   e.Success,
		UserID:    e.UserID,
		TenantID:  e.TenantID,
		SessionID: e.SessionID,
		ClientIP:  e.ClientIP,
		Error:     e.Error,
		Fields:    e.Fields,
	})
}
