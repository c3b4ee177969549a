package wm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"time"

	"github.com/go-ports/curloc/internal/models"
)

// SubscribeOption configures Subscribe.
type SubscribeOption func(*subscribeOptions)

type subscribeOptions struct {
	seed func(context.Context) ([]models.WindowID, error)
}

// WithSeed marks the windows returned by seed as already known. seed is
// called once, after the first event feed is open and before live windows
// are listed, and Subscribe then yields Closed for each seeded window that
// is not live. A failing seed is logged and ignored.
func WithSeed(seed func(context.Context) ([]models.WindowID, error)) SubscribeOption {
	return func(o *subscribeOptions) { o.seed = seed }
}

// Subscribe yields window events from c for as long as ctx lives.
//
// Each connection opens the event feed first and lists windows second, so
// nothing that happens in between is missed. After a reconnect the current
// window list is compared with the windows seen so far and synthetic Closed
// and Created events are yielded for the difference. When a reconnect
// exhausts p the sequence yields one error wrapping
// models.ErrWindowManagerUnreachable and stops. Cancelling ctx ends the
// sequence without an error.
func Subscribe(ctx context.Context, c Client, p Policy, log *slog.Logger, opts ...SubscribeOption) iter.Seq2[models.WindowEvent, error] {
	if log == nil {
		log = slog.Default()
	}
	var o subscribeOptions
	for _, opt := range opts {
		opt(&o)
	}
	if r, ok := c.(*Retrying); ok {
		// connect has its own retry budget.
		c = r.Client
	}
	return func(yield func(models.WindowEvent, error) bool) {
		known := make(map[models.WindowID]struct{})
		first := true

		for {
			var seed func(context.Context) ([]models.WindowID, error)
			if first {
				seed = o.seed
			}
			stream, seeded, live, err := connect(ctx, c, p, log, seed)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				yield(models.WindowEvent{}, fmt.Errorf("subscribe %s: %w: %w", c.Name(), models.ErrWindowManagerUnreachable, err))
				return
			}

			for _, id := range seeded {
				known[id] = struct{}{}
			}
			events := resync(known, live)
			if first {
				// Nothing has been reported yet; only seeded closures matter.
				events = slices.DeleteFunc(events, func(ev models.WindowEvent) bool {
					return ev.Kind != models.EventClosed
				})
				first = false
				if len(events) > 0 {
					log.Info("windows closed before subscribing", "backend", c.Name(), "closed", len(events))
				}
			} else {
				log.Info("window manager event stream restored", "backend", c.Name(), "resync_events", len(events))
			}
			for _, ev := range events {
				if !yield(ev, nil) {
					_ = stream.Close()
					return
				}
			}

			err = pump(stream, known, yield)
			_ = stream.Close()
			if errors.Is(err, errStop) || ctx.Err() != nil {
				return
			}
			log.Warn("window manager event stream lost; reconnecting", "backend", c.Name(), "err", err)
		}
	}
}

var errStop = errors.New("consumer stopped")

// connect opens the event feed, calls seed when set and then lists the live
// windows.
func connect(ctx context.Context, c Client, p Policy, log *slog.Logger, seed func(context.Context) ([]models.WindowID, error)) (EventStream, []models.WindowID, []models.Window, error) {
	var (
		stream EventStream
		seeded []models.WindowID
		live   []models.Window
	)
	err := p.Retry(ctx, func() error {
		s, err := c.Events(ctx)
		if err != nil {
			return err
		}
		if seed != nil && seeded == nil {
			ids, err := seed(ctx)
			if err != nil {
				log.Warn("seeding known windows failed", "err", err)
				ids = []models.WindowID{}
			}
			seeded = ids
		}
		ws, err := c.Windows(ctx)
		if err != nil {
			_ = s.Close()
			return err
		}
		stream, live = s, ws
		return nil
	}, func(err error, wait time.Duration) {
		log.Debug("window manager connect failed; retrying", "backend", c.Name(), "wait", wait, "err", err)
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return stream, seeded, live, nil
}

// pump forwards events from stream until it fails or the consumer stops.
func pump(stream EventStream, known map[models.WindowID]struct{}, yield func(models.WindowEvent, error) bool) error {
	for {
		ev, err := stream.Next()
		if err != nil {
			return err
		}
		switch ev.Kind {
		case models.EventCreated, models.EventFocused:
			known[ev.Window] = struct{}{}
		case models.EventClosed:
			delete(known, ev.Window)
		}
		if !yield(ev, nil) {
			return errStop
		}
	}
}

// resync updates known to match live and returns the events that explain the
// difference, closures first, each group ordered by window id.
func resync(known map[models.WindowID]struct{}, live []models.Window) []models.WindowEvent {
	alive := make(map[models.WindowID]struct{}, len(live))
	for _, w := range live {
		alive[w.ID] = struct{}{}
	}

	var closed, created []models.WindowID
	for id := range known {
		if _, ok := alive[id]; !ok {
			closed = append(closed, id)
		}
	}
	for id := range alive {
		if _, ok := known[id]; !ok {
			created = append(created, id)
		}
	}
	slices.Sort(closed)
	slices.Sort(created)

	out := make([]models.WindowEvent, 0, len(closed)+len(created))
	for _, id := range closed {
		delete(known, id)
		out = append(out, models.WindowEvent{Kind: models.EventClosed, Window: id})
	}
	for _, id := range created {
		known[id] = struct{}{}
		out = append(out, models.WindowEvent{Kind: models.EventCreated, Window: id})
	}
	return out
}
