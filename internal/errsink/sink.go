// Package errsink implements the error-reporting sink described in §7: a
// deduplicating, rate-limited funnel for invariant-violation and fatal
// errors, grounded on the teacher's infrastructure/errors.ServiceError
// taxonomy and its circuit-breaker-style suppression window pattern.
package errsink

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/solward/flywheel/pkg/logger"
)

// Kind classifies a report per §7's error taxonomy.
type Kind string

const (
	KindTransientIO         Kind = "transient_io"
	KindLogicalPrecondition Kind = "logical_precondition"
	KindInvariantViolation  Kind = "invariant_violation"
	KindConfiguration       Kind = "configuration"
	KindFatal               Kind = "fatal"
)

// Report is one error occurrence as described in §7.
type Report struct {
	Kind      Kind
	Module    string
	Operation string
	ActorIDs  map[string]string // wallet, token, signature
	Err       error
	Critical  bool // bypasses suppression
}

type suppressionEntry struct {
	lastSeen time.Time
	count    int
}

// Sink deduplicates reports by hash of (kind, module, first-stack-line) —
// approximated here as (kind, module, operation, error-message-first-line),
// since this implementation does not capture raw stack traces. Identical
// reports are suppressed within window; critical reports always pass.
type Sink struct {
	log    *logger.Logger
	window time.Duration

	mu          sync.Mutex
	suppression map[string]*suppressionEntry
}

// New builds a Sink with the given suppression window (default 60s per §7).
func New(window time.Duration) *Sink {
	if window <= 0 {
		window = 60 * time.Second
	}
	return &Sink{
		log:         logger.NewDefault("error-sink"),
		window:      window,
		suppression: make(map[string]*suppressionEntry),
	}
}

// Report records a single error occurrence, logging it unless an identical
// report was already logged within the suppression window.
func (s *Sink) Report(_ context.Context, r Report) {
	key := s.dedupeKey(r)

	if !r.Critical {
		s.mu.Lock()
		entry, seen := s.suppression[key]
		now := time.Now()
		if seen && now.Sub(entry.lastSeen) < s.window {
			entry.count++
			entry.lastSeen = now
			s.mu.Unlock()
			return
		}
		s.suppression[key] = &suppressionEntry{lastSeen: now, count: 1}
		s.mu.Unlock()
	}

	fields := map[string]interface{}{
		"kind":      r.Kind,
		"module":    r.Module,
		"operation": r.Operation,
		"critical":  r.Critical,
	}
	for k, v := range r.ActorIDs {
		fields["actor_"+k] = v
	}
	entry := s.log.WithFields(fields)
	if r.Err != nil {
		entry = entry.WithError(r.Err)
	}
	if r.Kind == KindFatal {
		entry.Error("fatal error reported to sink")
		return
	}
	entry.Warn("error reported to sink")
}

func (s *Sink) dedupeKey(r Report) string {
	h := sha256.New()
	h.Write([]byte(r.Kind))
	h.Write([]byte(r.Module))
	if r.Err != nil {
		h.Write([]byte(firstLine(r.Err.Error())))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}
