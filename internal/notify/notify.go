// Package notify sends operator notifications. Delivery is best effort:
// a failed notification never reaches the trading loop.
package notify

import (
	"context"
	"time"
)

// Notifier delivers short text messages to an operator.
type Notifier interface {
	// Send delivers text unless a message was delivered less than throttle ago.
	// A zero throttle always sends.
	Send(ctx context.Context, text string, throttle time.Duration)
}

// Nop drops every message.
type Nop struct{}

// Send implements Notifier.
func (Nop) Send(context.Context, string, time.Duration) {}

var _ Notifier = Nop{}
