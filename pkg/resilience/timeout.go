package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/errors"
)

// WithTimeout runs fn on a context that expires after timeout and waits for
// fn to return, so fn must honour its context. When the deadline, and not
// the caller, ended the call, the error wraps both errors.ErrTimeout and
// fn's own error. A non-positive timeout runs fn on ctx unchanged.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(timeoutCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s exceeded %v: %w: %w", name, timeout, apperrors.ErrTimeout, err)
	}
	return err
}
