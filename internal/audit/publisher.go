package audit

import (
	"context"
	"log/slog"
	"time"
)

// Sink delivers audit events to their destination.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Publisher buffers events so request handling never blocks on audit
// delivery. A full buffer drops the event with a warning; audit here is
// observability, not a write-ahead log.
type Publisher struct {
	inbox  chan Event
	logger *slog.Logger
}

func NewPublisher(buffer int, logger *slog.Logger) *Publisher {
	return &Publisher{
		inbox:  make(chan Event, buffer),
		logger: logger,
	}
}

// Emit records an event. Non-blocking.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"action", string(event.Action),
		)
	}
}

// Worker drains the publisher into a sink until the context ends.
type Worker struct {
	publisher *Publisher
	sink      Sink
	logger    *slog.Logger
}

func NewWorker(publisher *Publisher, sink Sink, logger *slog.Logger) *Worker {
	return &Worker{publisher: publisher, sink: sink, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.publisher.inbox:
			if err := w.sink.Publish(ctx, event); err != nil {
				// Delivery failures must not take the worker down; the event
				// is lost and logged.
				w.logger.ErrorContext(ctx, "audit publish failed",
					"action", string(event.Action),
					"error", err,
				)
			}
		}
	}
}
