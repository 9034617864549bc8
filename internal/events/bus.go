// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/safetyview/internal/logging"
	"github.com/tomtom215/safetyview/internal/metrics"
	"github.com/tomtom215/safetyview/internal/models"
)

// Transport names reported in logs and health output.
const (
	TransportNATS      = "nats"
	TransportGoChannel = "gochannel"
)

// ErrBusClosed is returned by operations on a closed bus.
var ErrBusClosed = errors.New("event bus is closed")

// Handler processes one RunCompleted event.
type Handler func(ctx context.Context, ev RunCompleted) error

// Bus publishes and consumes RunCompleted events.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	topic      string
	transport  string
	breaker    *gobreaker.CircuitBreaker[struct{}]
	log        *logging.EventLogger

	mu     sync.RWMutex
	closed bool
}

// New connects a bus on topic. An empty natsURL uses the in-process
// gochannel transport.
func New(topic, natsURL string) (*Bus, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	logger := watermill.NewSlogLogger(logging.NewSlogLogger("events"))

	b := &Bus{
		topic:   topic,
		breaker: newPublishBreaker("events-" + topic),
		log:     logging.NewEventLogger(),
	}

	if natsURL == "" {
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
		b.publisher, b.subscriber, b.transport = ch, ch, TransportGoChannel
		return b, nil
	}

	pub, sub, err := newNATS(natsURL, logger)
	if err != nil {
		return nil, err
	}
	b.publisher, b.subscriber, b.transport = pub, sub, TransportNATS
	return b, nil
}

func newNATS(url string, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	natsOpts := []natsgo.Option{
		natsgo.Name("safetyview"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}
	marshaler := &wmNats.NATSMarshaler{}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   marshaler,
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create NATS publisher: %w", err)
	}

	// No queue group: every API process must see every event.
	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     10 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      marshaler,
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, nil, fmt.Errorf("create NATS subscriber: %w", err)
	}
	return pub, sub, nil
}

func newPublishBreaker(name string) *gobreaker.CircuitBreaker[struct{}] {
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String())
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Event publisher circuit breaker changed state")
		},
	})
}

// Transport returns "nats" or "gochannel".
func (b *Bus) Transport() string {
	return b.transport
}

// Topic returns the topic the bus publishes on.
func (b *Bus) Topic() string {
	return b.topic
}

// PublishRunCompleted announces run. Satisfies ingest.Publisher.
func (b *Bus) PublishRunCompleted(ctx context.Context, run *models.IngestionRun) error {
	return b.Publish(ctx, NewRunCompleted(run))
}

// Publish sends ev through the circuit breaker.
func (b *Bus) Publish(ctx context.Context, ev RunCompleted) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	payload, err := ev.Marshal()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := message.NewMessage(ev.EventID, payload)
	msg.Metadata.Set("run_id", ev.RunID)
	msg.Metadata.Set("status", string(ev.Status))
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set("correlation_id", id)
	}

	_, err = b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, b.publisher.Publish(b.topic, msg)
	})
	metrics.RecordEventPublished(b.topic, err)
	if err != nil {
		b.log.LogEventFailed(ctx, ev.EventID, err)
		return fmt.Errorf("publish %s: %w", b.topic, err)
	}
	b.log.LogEventPublished(ctx, ev.EventID, b.topic)
	return nil
}

// Subscribe delivers events to h until ctx ends or the bus closes. Messages
// are always acked: handlers are idempotent cache invalidations and a
// redelivery would not change the outcome.
func (b *Bus) Subscribe(ctx context.Context, h Handler) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	messages, err := b.subscriber.Subscribe(ctx, b.topic)
	b.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.topic, err)
	}

	b.log.LogSubscriptionStarted(b.topic, b.transport)
	defer b.log.LogSubscriptionStopped(b.topic)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return ErrBusClosed
			}
			b.handle(ctx, msg, h)
		}
	}
}

func (b *Bus) handle(ctx context.Context, msg *message.Message, h Handler) {
	defer msg.Ack()

	if id := msg.Metadata.Get("correlation_id"); id != "" {
		ctx = logging.ContextWithCorrelationID(ctx, id)
	}
	ev, err := UnmarshalRunCompleted(msg.Payload)
	if err != nil {
		b.log.LogEventFailed(ctx, msg.UUID, err)
		return
	}
	ctx = logging.ContextWithRunID(ctx, ev.RunID)
	metrics.RecordEventConsumed(b.topic)
	b.log.LogEventReceived(ctx, ev.EventID, b.topic)

	if err := h(ctx, ev); err != nil {
		b.log.LogEventFailed(ctx, ev.EventID, err)
	}
}

// Close shuts the publisher and subscriber down. Safe to call twice.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	if err := b.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	// gochannel uses one value for both sides.
	if b.transport != TransportGoChannel {
		if err := b.subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}
	return errors.Join(errs...)
}
