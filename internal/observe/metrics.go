// Package observe holds the OpenTelemetry metric instruments for the chat
// service and the HTTP middleware that records request latency.
//
// Tests should build their own Metrics with NewMetrics and a ManualReader
// instead of relying on the global provider.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/zhouzirui/beacon"

// Submission outcomes recorded by RecordSubmission.
const (
	OutcomeAccepted   = "accepted"
	OutcomeEmpty      = "empty"
	OutcomeBusy       = "busy"
	OutcomeSuperseded = "superseded"
)

// Metrics holds every instrument the service records. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// CompletionDuration tracks round-trip latency of completion requests.
	CompletionDuration metric.Float64Histogram

	// CompletionRequests counts completion calls by provider and status.
	CompletionRequests metric.Int64Counter

	// Submissions counts user submits by outcome.
	Submissions metric.Int64Counter

	PersonaSwitches metric.Int64Counter
	TypingFrames    metric.Int64Counter
	ActiveSessions  metric.Int64UpDownCounter

	// HTTPRequestDuration tracks request handling time by method, route and status.
	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates all instruments on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.CompletionDuration, err = m.Float64Histogram("beacon.completion.duration",
		metric.WithDescription("Latency of chat completion requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CompletionRequests, err = m.Int64Counter("beacon.completion.requests",
		metric.WithDescription("Completion requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.Submissions, err = m.Int64Counter("beacon.chat.submissions",
		metric.WithDescription("User submissions by outcome."),
	); err != nil {
		return nil, err
	}
	if met.PersonaSwitches, err = m.Int64Counter("beacon.chat.persona_switches",
		metric.WithDescription("Persona selections that reset a session."),
	); err != nil {
		return nil, err
	}
	if met.TypingFrames, err = m.Int64Counter("beacon.chat.typing_frames",
		metric.WithDescription("Partial transcripts emitted by the typing presenter."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("beacon.chat.active_sessions",
		metric.WithDescription("Number of live chat sessions."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("beacon.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordCompletion records one completion call. status is "ok" or the HTTP
// status code / error class reported by the provider.
func (m *Metrics) RecordCompletion(ctx context.Context, provider, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	)
	m.CompletionDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.CompletionRequests.Add(ctx, 1, attrs)
}

// RecordSubmission counts a submit attempt by outcome.
func (m *Metrics) RecordSubmission(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.Submissions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordPersonaSwitch counts a persona change to personaID.
func (m *Metrics) RecordPersonaSwitch(ctx context.Context, personaID string) {
	if m == nil {
		return
	}
	m.PersonaSwitches.Add(ctx, 1, metric.WithAttributes(attribute.String("persona", personaID)))
}

// RecordTypingFrame counts one emitted animation frame.
func (m *Metrics) RecordTypingFrame(ctx context.Context) {
	if m == nil {
		return
	}
	m.TypingFrames.Add(ctx, 1)
}

// SessionOpened and SessionClosed move the live session gauge.
func (m *Metrics) SessionOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, 1)
}

func (m *Metrics) SessionClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, -1)
}
