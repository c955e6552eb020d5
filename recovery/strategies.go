package recovery

import (
	"context"
	"fmt"
	"sync"

	"github.com/lesonky/invoice-merge-tool/observability"
)

// StrictStrategy implements a fail-fast recovery strategy.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy {
	return &StrictStrategy{}
}

func (s *StrictStrategy) OnError(ctx context.Context, err error, location Location) Action {
	return ActionFail
}

// LenientStrategy keeps going on every error and remembers what it saw.
// Malformed objects are skipped; truncated tokens are repaired in place.
type LenientStrategy struct {
	Logger observability.Logger

	mu     sync.Mutex
	Errors []error
}

func NewLenientStrategy(logger observability.Logger) *LenientStrategy {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &LenientStrategy{Logger: logger}
}

func (s *LenientStrategy) OnError(ctx context.Context, err error, location Location) Action {
	s.mu.Lock()
	s.Errors = append(s.Errors, fmt.Errorf("[%s] offset %d: %w", location.Component, location.ByteOffset, err))
	s.mu.Unlock()

	action := ActionFix
	if location.Component == "object" {
		action = ActionSkip
	}
	s.Logger.Debug("recovered malformed input",
		observability.String("component", location.Component),
		observability.Int64("offset", location.ByteOffset),
		observability.Int("object", location.ObjectNum),
		observability.String("action", action.String()),
		observability.Error("error", err),
	)
	return action
}

// Count returns how many errors were absorbed so far.
func (s *LenientStrategy) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Errors)
}
