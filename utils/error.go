package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// ErrExec runs the functions concurrently and returns the first error.
func ErrExec(functions ...func() error) error {
	group, ctx := errgroup.WithContext(context.Background())
	for _, one := range functions {
		one := one
		group.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return one()
			}
		})
	}
	return group.Wait()
}

// ErrExecSequential runs the functions in order, accumulating every error.
// Used for cleanup chains where later steps must run even if earlier ones
// fail.
func ErrExecSequential(functions ...func() error) error {
	var multiErr error
	for _, one := range functions {
		if err := one(); err != nil {
			multiErr = multierror.Append(multiErr, err)
		}
	}
	return multiErr
}

// RetryExec retries a function with a fixed delay, returning the last error
// after all attempts fail.
func RetryExec(ctx context.Context, function func() error, retries int, delay time.Duration) error {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if err = function(); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("failed after %d retries: %s", retries, err)
}

// ErrExecFormat wraps a function so its error is reported under format.
func ErrExecFormat(format string, function func() error) func() error {
	return func() error {
		if err := function(); err != nil {
			return fmt.Errorf(format, err)
		}
		return nil
	}
}
