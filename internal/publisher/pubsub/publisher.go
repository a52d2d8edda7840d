// Package pubsub announces discovery results on Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/JakeFAU/business-discovery/internal/publisher"
)

var errNoClient = errors.New("pubsub client not configured")

// Publisher sends JSON bodies with event attributes and the caller's trace
// context. Topic handles are created on first use and stopped on Close.
type Publisher struct {
	client *pubsub.Client

	mu      sync.Mutex
	handles map[string]*pubsub.Topic
}

// New wraps an existing client.
func New(client *pubsub.Client) *Publisher {
	return &Publisher{client: client, handles: map[string]*pubsub.Topic{}}
}

// Dial connects to Pub/Sub in projectID.
func Dial(ctx context.Context, projectID string) (*Publisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("dial pubsub project %s: %w", projectID, err)
	}
	return New(client), nil
}

// Publish blocks until the broker acknowledges the message or ctx ends.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if p == nil || p.client == nil {
		return "", errNoClient
	}
	msg, err := encode(ctx, payload)
	if err != nil {
		return "", err
	}
	id, err := p.handle(topic).Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish %s to %s: %w", msg.Attributes["event"], topic, err)
	}
	return id, nil
}

// encode builds the wire message. Trace headers share the attribute map with
// the event attributes.
func encode(ctx context.Context, payload any) (*pubsub.Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", payload, err)
	}
	attrs := publisher.AttributesOf(payload)
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(attrs))
	return &pubsub.Message{Data: body, Attributes: attrs}, nil
}

func (p *Publisher) handle(topic string) *pubsub.Topic {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.handles[topic]; ok {
		return h
	}
	h := p.client.Topic(topic)
	p.handles[topic] = h
	return h
}

// Close flushes outstanding messages on every topic, then closes the client.
func (p *Publisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	p.mu.Lock()
	for name, h := range p.handles {
		h.Stop()
		delete(p.handles, name)
	}
	p.mu.Unlock()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
