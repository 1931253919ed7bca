// Package staging tracks the engine files a job owns so they can be released
// together on every exit path.
package staging

import (
	"context"
	"errors"
	"fmt"

	"github.com/eleven-am/reelsync/internal/domain"
)

// Scope is a set of staged names acquired against one engine. A Scope is
// used by a single goroutine.
type Scope struct {
	engine   domain.Engine
	names    []string
	released bool
}

func NewScope(engine domain.Engine) *Scope {
	return &Scope{engine: engine}
}

// Claim registers a name that the engine will produce (an output file) so it
// is released with the rest of the scope.
func (s *Scope) Claim(name string) {
	for _, n := range s.names {
		if n == name {
			return
		}
	}
	s.names = append(s.names, name)
}

// Stage writes data under name and claims it. The name is claimed even when
// staging fails, since a partial write may have been left behind.
func (s *Scope) Stage(ctx context.Context, name string, data []byte) error {
	s.Claim(name)
	if err := s.engine.Stage(ctx, name, data); err != nil {
		return fmt.Errorf("stage %s: %w", name, err)
	}
	return nil
}

// Names returns the claimed names in claim order.
func (s *Scope) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Release unstages every claimed name. All names are attempted; the returned
// error joins every failure. Release is a no-op after the first call.
func (s *Scope) Release(ctx context.Context) error {
	if s.released {
		return nil
	}
	s.released = true

	var errs []error
	for _, name := range s.names {
		if err := s.engine.Unstage(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("unstage %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
