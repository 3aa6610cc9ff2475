package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/constraint"
)

// rawChannelBuffer is the size of the raw constraint channel.
const rawChannelBuffer = 500

// RawMessage is the wire format extraction sources publish raw
// constraints with. The subject's final token names the source, e.g.
// devmatrix.constraint.raw.structural; a Source field in the payload
// takes precedence when present.
type RawMessage struct {
	Constraints []constraint.RawConstraint `json:"constraints"`
}

// Source subscribes to raw-constraint subjects and emits validated
// constraints. Shape validation happens here, at the extraction
// boundary; malformed items are counted and logged, never forwarded.
type Source struct {
	nc            *nats.Conn
	subjectPrefix string
	logger        *slog.Logger

	mu          sync.Mutex
	sub         *nats.Subscription
	parseErrors int

	// closing gates handler sends and handlers tracks in-flight
	// callbacks, so the output channel is only closed once no handler
	// can still send on it.
	closing  atomic.Bool
	handlers sync.WaitGroup
}

// NewSource creates a raw constraint source over nc.
func NewSource(nc *nats.Conn, subjectPrefix string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{nc: nc, subjectPrefix: subjectPrefix, logger: logger}
}

// ParseErrors returns how many malformed items this source has dropped.
func (s *Source) ParseErrors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parseErrors
}

// Listen subscribes to <prefix>.> and sends validated raw constraints on
// the returned channel until ctx is canceled. The channel is closed on
// shutdown.
func (s *Source) Listen(ctx context.Context) (<-chan constraint.RawConstraint, error) {
	if s.nc == nil {
		return nil, fmt.Errorf("nats connection is required")
	}

	out := make(chan constraint.RawConstraint, rawChannelBuffer)
	subject := strings.TrimSuffix(s.subjectPrefix, ".") + ".>"

	sub, err := s.nc.Subscribe(subject, func(msg *nats.Msg) {
		s.handle(ctx, msg, out)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}

	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		// Stop new deliveries, then wait out in-flight handlers before
		// closing the channel they send on.
		s.closing.Store(true)
		_ = sub.Unsubscribe()
		s.handlers.Wait()
		close(out)
	}()

	s.logger.Info("Listening for raw constraints", "subject", subject)
	return out, nil
}

// handle decodes and validates one message worth of raw constraints.
func (s *Source) handle(ctx context.Context, msg *nats.Msg, out chan<- constraint.RawConstraint) {
	s.handlers.Add(1)
	defer s.handlers.Done()
	if s.closing.Load() {
		return
	}

	var payload RawMessage
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		s.countParseError()
		s.logger.Warn("Dropping undecodable raw constraint message",
			"subject", msg.Subject, "error", err)
		return
	}

	source := sourceFromSubject(msg.Subject)
	for _, raw := range payload.Constraints {
		if raw.Source == "" {
			raw.Source = source
		}
		if err := raw.Validate(); err != nil {
			s.countParseError()
			s.logger.Warn("Dropping malformed raw constraint",
				"subject", msg.Subject,
				"entity", raw.Entity, "field", raw.Field, "error", err)
			continue
		}
		select {
		case out <- raw:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Source) countParseError() {
	s.mu.Lock()
	s.parseErrors++
	s.mu.Unlock()
}

// sourceFromSubject extracts the source ID from the subject's final
// token. Unknown shapes tag as SourceUnknown rather than guessing.
func sourceFromSubject(subject string) constraint.Source {
	parts := strings.Split(subject, ".")
	if len(parts) == 0 {
		return constraint.SourceUnknown
	}
	last := parts[len(parts)-1]
	switch constraint.Source(last) {
	case constraint.SourceStructural, constraint.SourceDeclared, constraint.SourceBusinessLogic:
		return constraint.Source(last)
	}
	return constraint.SourceUnknown
}
