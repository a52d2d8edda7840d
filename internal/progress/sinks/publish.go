package sinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/business-discovery/internal/progress"
	"github.com/JakeFAU/business-discovery/internal/publisher"
)

// PublishSink forwards terminal events to a publisher. Complete events must
// carry a publisher.ProfileCompleted payload; anything else is ignored.
type PublishSink struct {
	pub   publisher.Publisher
	topic string
}

// NewPublishSink constructs a PublishSink for topic.
func NewPublishSink(pub publisher.Publisher, topic string) *PublishSink {
	return &PublishSink{pub: pub, topic: topic}
}

// Consume publishes every complete or error event in the batch and joins the
// failures.
func (s *PublishSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.pub == nil || s.topic == "" {
		return nil
	}
	var errs []error
	for _, evt := range batch {
		var payload any
		switch data := evt.Data.(type) {
		case publisher.ProfileCompleted:
			if evt.Name != progress.NameComplete {
				continue
			}
			data.RunID = evt.RunID
			payload = data
		case progress.ErrorData:
			payload = publisher.RunFailed{RunID: evt.RunID, Message: data.Message}
		default:
			continue
		}
		if _, err := s.pub.Publish(ctx, s.topic, payload); err != nil {
			errs = append(errs, fmt.Errorf("publish %s event for run %s: %w", evt.Name, evt.RunID, err))
		}
	}
	return errors.Join(errs...)
}

// Close implements the Sink interface; it performs no action.
func (s *PublishSink) Close(context.Context) error {
	return nil
}
