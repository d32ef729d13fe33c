package retarget

import (
	"context"
	"errors"
	"time"
)

// Watch produces a report immediately and then every interval until ctx is
// cancelled or fn returns an error. Report failures are handed to fn, which
// decides whether they end the loop.
func (r *Reporter) Watch(ctx context.Context, every time.Duration, fn func(*Report, error) error) error {
	if every <= 0 {
		return errors.New("watch interval must be positive")
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		rep, err := r.Report(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if ferr := fn(rep, err); ferr != nil {
			return ferr
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
