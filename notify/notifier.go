// Package notify delivers short-lived verification codes to operators. The
// core decides what code to send and when it expires; delivery transport is
// behind the Notifier interface.
package notify

import (
	"context"
	"time"
)

// Channel identifies a delivery transport.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Message is one code delivery request.
type Message struct {
	Channel   Channel
	Recipient string
	Code      string
	TTL       time.Duration
}

// Notifier sends a verification code to an operator. Implementations may
// block; the core invokes Send fire-and-forget and never awaits delivery
// on a verification path.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// NoOp discards every message. Useful for stations without a configured
// gateway and for tests that only exercise TOTP or backup codes.
type NoOp struct{}

func (NoOp) Send(context.Context, Message) error { return nil }

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, msg Message) error

func (f Func) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }
