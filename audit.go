package authrbac

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

const (
	auditEventRegister             = "auth.register"
	auditEventLoginSuccess         = "auth.login.success"
	auditEventLoginFailure         = "auth.login.failure"
	auditEventLogout               = "auth.logout"
	auditEventRefreshSuccess       = "auth.refresh.success"
	auditEventRefreshInvalid       = "auth.refresh.invalid"
	auditEventPasswordResetRequest = "auth.password.reset_request"
	auditEventPasswordResetConfirm = "auth.password.reset_confirm"
	auditEventPasswordChange       = "auth.password.change"
	auditEventPasswordSetup        = "auth.password.setup"
	auditEventContactVerify        = "auth.contact.verify"
	auditEventPermissionDenied     = "rbac.permission.denied"
)

// AuditEvent defines a public type used by authrbac APIs.
//
// AuditEvent instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditEvent struct {
	Timestamp  time.Time         `json:"timestamp"`
	EventType  string            `json:"event_type"`
	IdentityID string            `json:"identity_id,omitempty"`
	IP         string            `json:"ip,omitempty"`
	UserAgent  string            `json:"user_agent,omitempty"`
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// AuditSink defines a public type used by authrbac APIs.
//
// AuditSink instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink defines a public type used by authrbac APIs.
//
// NoOpSink instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type NoOpSink struct{}

// Emit describes the emit operation and its observable behavior.
//
// Emit does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink defines a public type used by authrbac APIs.
//
// ChannelSink instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ChannelSink struct {
	events chan AuditEvent
}

// NewChannelSink describes the newchannelsink operation and its observable behavior.
//
// NewChannelSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

// Emit describes the emit operation and its observable behavior.
//
// Emit does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events describes the events operation and its observable behavior.
//
// Events does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink defines a public type used by authrbac APIs.
//
// JSONWriterSink instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink describes the newjsonwritersink operation and its observable behavior.
//
// NewJSONWriterSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

// Emit describes the emit operation and its observable behavior.
//
// Emit does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *JSONWriterSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
