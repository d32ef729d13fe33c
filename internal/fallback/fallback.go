// Package fallback evaluates an ordered list of fallible strategies and
// returns the first one that succeeds.
package fallback

import (
	"context"
	"errors"
	"fmt"

	klog "github.com/Klingon-tech/coinrpc-tools/internal/log"
)

// ErrNoSteps is returned by First when called without steps.
var ErrNoSteps = errors.New("no fallback steps")

// Step is one named strategy.
type Step[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Result carries the value together with the name of the step that produced it.
type Result[T any] struct {
	Value T
	Step  string
}

// First runs steps in order and returns the first success. Failures are
// logged at debug level and only surface, joined, when every step fails.
// A cancelled context stops the chain.
func First[T any](ctx context.Context, steps ...Step[T]) (Result[T], error) {
	if len(steps) == 0 {
		return Result[T]{}, ErrNoSteps
	}

	var errs []error
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return Result[T]{}, err
		}
		v, err := s.Run(ctx)
		if err == nil {
			return Result[T]{Value: v, Step: s.Name}, nil
		}
		logger := klog.WithComponent("fallback")
		logger.Debug().Err(err).Str("step", s.Name).Msg("fallback step failed")
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
	}
	return Result[T]{}, errors.Join(errs...)
}

// Value wraps a constant as a step that always succeeds.
func Value[T any](name string, v T) Step[T] {
	return Step[T]{
		Name: name,
		Run:  func(context.Context) (T, error) { return v, nil },
	}
}
