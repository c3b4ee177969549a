package wm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/go-ports/curloc/internal/models"
)

// Retrying wraps a Client so that transient query failures are retried under
// Policy. Answers that reflect a real absence (no active window, window gone)
// are returned immediately. When the budget runs out the error wraps
// models.ErrWindowManagerUnreachable.
type Retrying struct {
	Client
	Policy Policy
	Log    *slog.Logger
}

// NewRetrying returns c decorated with retries.
func NewRetrying(c Client, p Policy, log *slog.Logger) *Retrying {
	if log == nil {
		log = slog.Default()
	}
	return &Retrying{Client: c, Policy: p, Log: log}
}

// ActiveWindow implements Client.
func (r *Retrying) ActiveWindow(ctx context.Context) (models.WindowID, error) {
	var id models.WindowID
	err := r.do(ctx, "active window", func() error {
		v, err := r.Client.ActiveWindow(ctx)
		id = v
		return err
	})
	return id, err
}

// WindowPID implements Client.
func (r *Retrying) WindowPID(ctx context.Context, window models.WindowID) (int, error) {
	var pid int
	err := r.do(ctx, "window pid", func() error {
		v, err := r.Client.WindowPID(ctx, window)
		pid = v
		return err
	})
	return pid, err
}

// Windows implements Client.
func (r *Retrying) Windows(ctx context.Context) ([]models.Window, error) {
	var out []models.Window
	err := r.do(ctx, "list windows", func() error {
		v, err := r.Client.Windows(ctx)
		out = v
		return err
	})
	return out, err
}

func (r *Retrying) do(ctx context.Context, op string, fn func() error) error {
	err := r.Policy.Retry(ctx, func() error {
		err := fn()
		if isAbsence(err) {
			return backoff.Permanent(err)
		}
		return err
	}, func(err error, wait time.Duration) {
		r.Log.Debug("window manager query failed; retrying", "op", op, "backend", r.Client.Name(), "wait", wait, "err", err)
	})
	if err == nil || isAbsence(err) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	return fmt.Errorf("%s: %w: %w", op, models.ErrWindowManagerUnreachable, err)
}

// Retry runs op under p, calling notify before each wait. An error wrapped
// with backoff.Permanent ends the loop at once.
func (p Policy) Retry(ctx context.Context, op func() error, notify func(error, time.Duration)) error {
	return backoff.RetryNotify(op, p.backOff(ctx), notify)
}

// isAbsence reports errors that describe the desktop state rather than a
// failure to reach the compositor.
func isAbsence(err error) bool {
	return errors.Is(err, models.ErrNoActiveWindow) || errors.Is(err, models.ErrWindowGone)
}
