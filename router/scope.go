package router

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"
)

// releaseTimeout bounds every scope release. Releases run under their own
// deadline on a fresh context so a fault is rolled back even when the scope
// body's context was cancelled.
const releaseTimeout = 30 * time.Second

var metricActiveFaults = metrics.GetOrRegisterCounter("router.active_faults", nil)

// Scope owns exactly one release action for a temporary network perturbation.
// Close the scope with defer immediately after acquiring it, which guarantees
// the release runs on every exit path, panics and cancellation included.
// Close is idempotent: the release runs once, a failure is reported to the
// first caller and never masked.
type Scope struct {
	name    string
	release func(ctx context.Context) error

	mu     sync.Mutex
	closed bool
}

// NewScope wraps a release action. A nil release produces a no-op scope that
// still satisfies the enter/exit contract, used by platform variants without
// fault injection support.
func NewScope(name string, release func(ctx context.Context) error) *Scope {
	metricActiveFaults.Inc(1)
	return &Scope{name: name, release: release}
}

func (s *Scope) Name() string {
	return s.name
}

func (s *Scope) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	metricActiveFaults.Dec(1)

	if s.release == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	return s.release(ctx)
}

// ScopeStack holds nested fault scopes and releases them in reverse order of
// acquisition. A failed release does not stop the remaining releases, all
// failures are reported joined.
type ScopeStack struct {
	mu     sync.Mutex
	scopes []*Scope
}

func (s *ScopeStack) Push(scope *Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopes = append(s.scopes, scope)
}

func (s *ScopeStack) Close() error {
	s.mu.Lock()
	scopes := s.scopes
	s.scopes = nil
	s.mu.Unlock()

	var errs []error
	for i := len(scopes) - 1; i >= 0; i-- {
		if err := scopes[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
