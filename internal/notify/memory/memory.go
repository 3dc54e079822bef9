// Package memory contains in-memory notifier and publisher implementations for tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/volcanic-ash-alert/internal/advisory"
)

// Notifier records delivered messages for inspection.
type Notifier struct {
	mu       sync.RWMutex
	messages []advisory.Message
	err      error
}

// NewNotifier returns a memory Notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// FailWith makes subsequent Notify calls return err without recording.
func (n *Notifier) FailWith(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

// Notify records msg.
func (n *Notifier) Notify(_ context.Context, msg advisory.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	msg.Attachments = append([]string(nil), msg.Attachments...)
	n.messages = append(n.messages, msg)
	return nil
}

// Messages returns the recorded messages.
func (n *Notifier) Messages() []advisory.Message {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]advisory.Message, len(n.messages))
	copy(out, n.messages)
	return out
}

// Publisher stores published events for inspection.
type Publisher struct {
	mu     sync.RWMutex
	events []advisory.Event
	err    error
}

// NewPublisher returns a memory Publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// FailWith makes subsequent Publish calls return err.
func (p *Publisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Publish records the event and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, event advisory.Event) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, event)
	return fmt.Sprintf("memory-%d", len(p.events)), nil
}

// Events returns the recorded events.
func (p *Publisher) Events() []advisory.Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]advisory.Event, len(p.events))
	copy(out, p.events)
	return out
}
