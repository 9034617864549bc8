// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// EventLogger logs event bus activity with the "events" component field and
// the run, request and correlation IDs found on the context.
type EventLogger struct {
	logger zerolog.Logger
}

// NewEventLogger creates an event logger on the global logger.
func NewEventLogger() *EventLogger {
	return &EventLogger{logger: With().Str("component", "events").Logger()}
}

// NewEventLoggerWithLogger creates an event logger on a custom logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewEventLoggerWithLogger(logger zerolog.Logger) *EventLogger {
	return &EventLogger{logger: logger.With().Str("component", "events").Logger()}
}

// InfoContext logs an info message with key/value pairs.
func (e *EventLogger) InfoContext(ctx context.Context, msg string, fields ...interface{}) {
	logger := e.loggerWithContext(ctx)
	addFieldPairs(logger.Info(), fields).Msg(msg)
}

// DebugContext logs a debug message with key/value pairs.
func (e *EventLogger) DebugContext(ctx context.Context, msg string, fields ...interface{}) {
	logger := e.loggerWithContext(ctx)
	addFieldPairs(logger.Debug(), fields).Msg(msg)
}

func (e *EventLogger) loggerWithContext(ctx context.Context) zerolog.Logger {
	logCtx := e.logger.With()
	if id := RunIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("run_id", id)
	}
	if id := CorrelationIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("correlation_id", id)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("request_id", id)
	}
	return logCtx.Logger()
}

// LogEventPublished logs a published event.
func (e *EventLogger) LogEventPublished(ctx context.Context, eventID, topic string) {
	e.DebugContext(ctx, "event published", "event_id", eventID, "topic", topic)
}

// LogEventReceived logs a consumed event.
func (e *EventLogger) LogEventReceived(ctx context.Context, eventID, topic string) {
	e.DebugContext(ctx, "event received", "event_id", eventID, "topic", topic)
}

// LogEventFailed logs an event that could not be published or handled.
func (e *EventLogger) LogEventFailed(ctx context.Context, eventID string, err error) {
	logger := e.loggerWithContext(ctx)
	logger.Error().Str("event_id", eventID).Err(err).Msg("event processing failed")
}

// LogSubscriptionStarted logs a new subscription.
func (e *EventLogger) LogSubscriptionStarted(topic, transport string) {
	e.logger.Info().Str("topic", topic).Str("transport", transport).Msg("subscription started")
}

// LogSubscriptionStopped logs a closed subscription.
func (e *EventLogger) LogSubscriptionStopped(topic string) {
	e.logger.Info().Str("topic", topic).Msg("subscription stopped")
}

// addFieldPairs adds alternating key/value pairs to a zerolog event.
// Non-string keys and a trailing key without value are ignored.
func addFieldPairs(e *zerolog.Event, fields []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, fields[i+1])
	}
	return e
}
