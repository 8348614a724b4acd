package authcore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/weighops/authcore/internal/clock"
)

func collectAudit(t *testing.T, sink *ChannelSink, n int) []AuditEvent {
	t.Helper()

	out := make([]AuditEvent, 0, n)
	for len(out) < n {
		select {
		case ev := <-sink.Events():
			out = append(out, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("got %d audit events, want %d", len(out), n)
		}
	}
	return out
}

func TestAuditTrailForLoginFlow(t *testing.T) {
	sink := NewChannelSink(32)
	fc := clock.NewFake(testStart)
	store := newMockUserStore()

	cfg := testConfig()
	cfg.Audit.Enabled = true

	engine, err := New().
		WithConfig(cfg).
		WithUserStore(store).
		WithClock(fc).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	seedUser(t, store, "operator1", "scale-pass", RoleUser)

	if _, err := engine.Login(context.Background(), "operator1", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	loginOK(t, engine, "operator1", "scale-pass")
	if err := engine.Logout(context.Background()); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	events := collectAudit(t, sink, 3)

	if events[0].EventType != "login_failure" || events[0].Success {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[0].Error != "invalid_credentials" {
		t.Fatalf("error code = %q, want invalid_credentials", events[0].Error)
	}
	if events[0].Metadata["reason"] != "password_mismatch" {
		t.Fatalf("metadata = %v", events[0].Metadata)
	}

	if events[1].EventType != "login_success" || !events[1].Success {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
	if events[1].Username != "operator1" || events[1].Metadata["role"] != "user" {
		t.Fatalf("unexpected login_success payload: %+v", events[1])
	}

	if events[2].EventType != "logout" {
		t.Fatalf("unexpected third event: %+v", events[2])
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: testStart,
		EventType: "login_success",
		UserID:    7,
		Username:  "operator1",
		Success:   true,
	})

	var decoded AuditEvent
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, buf.String())
	}
	if decoded.EventType != "login_success" || decoded.UserID != 7 {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	sink := NewChannelSink(8)
	engine, _, store := newTestEngine(t, func(b *Builder) {
		b.WithAuditSink(sink)
	})
	seedUser(t, store, "operator1", "scale-pass", RoleUser)
	loginOK(t, engine, "operator1", "scale-pass")

	select {
	case ev := <-sink.Events():
		t.Fatalf("unexpected audit event %+v with auditing disabled", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
