package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// LogSink writes every event as a structured log line.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(_ context.Context, env Envelope) error {
	s.logger.Info().
		Str("event_id", env.ID.String()).
		Str("kind", env.Event.Kind()).
		Int64("at", int64(env.At)).
		Interface("event", env.Event).
		Msg("event")
	return nil
}

// Fanout delivers an event to every sink, even when some of them fail.
type Fanout struct {
	sinks []Sink
}

func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Emit(ctx context.Context, env Envelope) error {
	ctx, cancel := context.WithTimeout(ctx, emitTimeout)
	defer cancel()

	var errs []error
	for _, s := range f.sinks {
		if err := s.Emit(ctx, env); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", s, err))
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu        sync.Mutex
	envelopes []Envelope
}

func (r *Recorder) Emit(_ context.Context, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envelopes = append(r.envelopes, env)
	return nil
}

// Events returns the recorded events in emission order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.envelopes))
	for i, env := range r.envelopes {
		out[i] = env.Event
	}
	return out
}

func (r *Recorder) Envelopes() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Envelope(nil), r.envelopes...)
}

// Last returns the most recent event, or nil.
func (r *Recorder) Last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.envelopes) == 0 {
		return nil
	}
	return r.envelopes[len(r.envelopes)-1].Event
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envelopes = nil
}
