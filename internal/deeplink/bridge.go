// Package deeplink carries verification redirects from the browser back into
// the mobile app.
package deeplink

import (
	"context"
	"errors"
	"strings"
	"sync"
)

const (
	ChannelName   = "app.channel.shared.data"
	MethodName    = "handleDeepLink"
	ActionView    = "VIEW"
	defaultBuffer = 8
)

var ErrBridgeClosed = errors.New("deeplink bridge closed")

// Intent is what the platform hands the shell when the app is opened by a URL.
type Intent struct {
	Action string
	Data   string
}

// Event is forwarded to the app runtime. It is fire and forget.
type Event struct {
	Channel string
	Method  string
	URL     string
}

// Bridge forwards VIEW intents with a URL to subscribers on a single channel.
// It is embedded by the mobile shell; the HTTP server does not own one.
type Bridge struct {
	mu     sync.Mutex
	events chan Event
	closed bool
}

func NewBridge(buffer int) *Bridge {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Bridge{events: make(chan Event, buffer)}
}

// Events is the receive side consumed by the app runtime.
func (b *Bridge) Events() <-chan Event {
	return b.events
}

// Forward emits the intent if it is a VIEW with a non-empty URL and reports
// whether an event was sent. It blocks until the runtime accepts the event or
// ctx is done.
func (b *Bridge) Forward(ctx context.Context, intent Intent) (bool, error) {
	if intent.Action != ActionView || strings.TrimSpace(intent.Data) == "" {
		return false, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false, ErrBridgeClosed
	}
	select {
	case b.events <- Event{Channel: ChannelName, Method: MethodName, URL: intent.Data}:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.events)
	}
}
