// Package memory keeps published events in process. It backs local runs with
// no broker configured and tests that assert on announcements.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/JakeFAU/business-discovery/internal/publisher"
)

// Message is one accepted publish.
type Message struct {
	ID         string
	Topic      string
	Payload    any
	Attributes map[string]string
}

// Publisher is safe for concurrent use.
type Publisher struct {
	mu   sync.RWMutex
	log  []Message
	next int
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish appends the payload unless ctx is already done. Ids count up per
// publisher.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("publish to %s: %w", topic, err)
	}
	attrs := publisher.AttributesOf(payload)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	id := "mem-" + strconv.Itoa(p.next)
	p.log = append(p.log, Message{ID: id, Topic: topic, Payload: payload, Attributes: attrs})
	return id, nil
}

// Messages returns a copy of every publish, oldest first.
func (p *Publisher) Messages() []Message {
	return p.filter(func(Message) bool { return true })
}

// Event returns the publishes whose event attribute equals event.
func (p *Publisher) Event(event string) []Message {
	return p.filter(func(m Message) bool { return m.Attributes["event"] == event })
}

// ByTopic returns the payloads published to topic, oldest first.
func (p *Publisher) ByTopic(topic string) []any {
	var out []any
	for _, m := range p.filter(func(m Message) bool { return m.Topic == topic }) {
		out = append(out, m.Payload)
	}
	return out
}

func (p *Publisher) filter(keep func(Message) bool) []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Message, 0, len(p.log))
	for _, m := range p.log {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}
