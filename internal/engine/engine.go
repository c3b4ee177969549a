// Package engine resolves the current location for the focused window and
// keeps the registry in step with window lifecycle events.
package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/go-ports/curloc/internal/models"
	"github.com/go-ports/curloc/internal/proctree"
	"github.com/go-ports/curloc/internal/registry"
	"github.com/go-ports/curloc/internal/wm"
)

// DefaultEvictPolicy bounds retries of a failed eviction until WithRetry
// replaces it.
var DefaultEvictPolicy = wm.Policy{
	Initial:    50 * time.Millisecond,
	Max:        2 * time.Second,
	Multiplier: 2,
	Attempts:   5,
}

// Engine combines a registry, a window manager and a process table. It holds
// no state of its own.
type Engine struct {
	store registry.Store
	wm    wm.Client
	procs proctree.Snapshot
	log   *slog.Logger
	retry wm.Policy
}

// New returns an Engine. A nil logger discards output.
func New(store registry.Store, client wm.Client, procs proctree.Snapshot, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Engine{store: store, wm: client, procs: procs, log: log, retry: DefaultEvictPolicy}
}

// WithRetry sets the policy used to retry failed evictions and returns e.
func (e *Engine) WithRetry(p wm.Policy) *Engine {
	e.retry = p
	return e
}

// List returns every registered entry ordered by window.
func (e *Engine) List(ctx context.Context) ([]models.Entry, error) {
	entries, err := e.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	return entries, nil
}

// Clear drops every entry.
func (e *Engine) Clear(ctx context.Context) error {
	if err := e.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	e.log.Info("registry cleared")
	return nil
}

// ---------------------------------------------------------------------------
// Write
// ---------------------------------------------------------------------------

// Write registers req.Location for the caller's window and returns that
// window. An explicit req.Window is trusted as-is and never reaches the
// window manager; otherwise the owner is found by walking req.PID's ancestors
// until one of them owns windows. That process must own exactly one.
func (e *Engine) Write(ctx context.Context, req models.WriteRequest) (models.WindowID, error) {
	if err := models.ValidateLocation(req.Location); err != nil {
		return "", fmt.Errorf("write: %w", err)
	}

	window := req.Window
	if window == "" {
		owner, err := e.owner(ctx, req.PID)
		if err != nil {
			return "", fmt.Errorf("write: %w", err)
		}
		window = owner
	}

	entry := models.Entry{
		Window:    window,
		Location:  req.Location,
		WriterPID: req.PID,
		Program:   req.Program,
		NvimPipe:  req.NvimPipe,
	}
	if err := e.store.Put(ctx, entry); err != nil {
		return "", fmt.Errorf("write: store: %w", err)
	}
	e.log.Debug("location registered", "window", window, "location", req.Location, "pid", req.PID, "program", req.Program, "nvim_pipe", req.NvimPipe)
	return window, nil
}

func (e *Engine) owner(ctx context.Context, pid int) (models.WindowID, error) {
	if pid <= 0 {
		return "", fmt.Errorf("pid %d: %w", pid, models.ErrAmbiguousOwner)
	}
	windows, err := e.wm.Windows(ctx)
	if err != nil {
		return "", err
	}
	byPID := make(map[int][]models.WindowID, len(windows))
	for _, w := range windows {
		byPID[w.PID] = append(byPID[w.PID], w.ID)
	}

	chain := proctree.Ancestors(e.procs, pid)
	for _, p := range chain {
		switch owned := byPID[p]; len(owned) {
		case 0:
			continue
		case 1:
			return owned[0], nil
		default:
			return "", fmt.Errorf("pid %d (via %d) owns %d windows %v: %w", pid, p, len(owned), owned, models.ErrAmbiguousOwner)
		}
	}
	return "", fmt.Errorf("pid %d: no window owned by it or its %d ancestors: %w", pid, len(chain)-1, models.ErrAmbiguousOwner)
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

// Get resolves the location of the focused window: its registered location
// when there is one, else the working directory found by walking up from the
// window's process.
func (e *Engine) Get(ctx context.Context) (models.Resolution, error) {
	window, err := e.wm.ActiveWindow(ctx)
	if err != nil {
		return models.Resolution{}, fmt.Errorf("get: %w", err)
	}

	entry, ok, err := e.store.Get(ctx, window)
	if err != nil {
		return models.Resolution{}, fmt.Errorf("get: store: %w", err)
	}
	if ok {
		return models.Resolution{
			Window:   window,
			Location: entry.Location,
			Source:   models.SourceRegistry,
			NvimPipe: entry.NvimPipe,
		}, nil
	}

	pid, err := e.wm.WindowPID(ctx, window)
	if err != nil {
		return models.Resolution{}, fmt.Errorf("get: %w", err)
	}
	loc, err := proctree.ResolveFallback(e.procs, pid)
	if err != nil {
		return models.Resolution{}, fmt.Errorf("get: window %s: %w", window, err)
	}
	return models.Resolution{Window: window, Location: loc, Source: models.SourceProcessTree}, nil
}

// ---------------------------------------------------------------------------
// Event loop
// ---------------------------------------------------------------------------

// Watch subscribes to c under p and runs the event loop until ctx ends.
// Stored windows seed the subscription, so entries whose windows closed while
// nothing was watching are evicted once the first connection is up.
func (e *Engine) Watch(ctx context.Context, c wm.Client, p wm.Policy, log *slog.Logger) error {
	return e.Run(ctx, wm.Subscribe(ctx, c, p, log, wm.WithSeed(e.registered)))
}

func (e *Engine) registered(ctx context.Context) ([]models.WindowID, error) {
	entries, err := e.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	ids := make([]models.WindowID, len(entries))
	for i, en := range entries {
		ids[i] = en.Window
	}
	return ids, nil
}

// Run consumes events in delivery order and evicts the entry of every closed
// window. It returns nil once events ends without an error (for example on
// cancellation), the sequence's error otherwise, and an error when an
// eviction still fails after its retries.
func (e *Engine) Run(ctx context.Context, events iter.Seq2[models.WindowEvent, error]) error {
	for ev, err := range events {
		if err != nil {
			return fmt.Errorf("event loop: %w", err)
		}
		if err := e.Apply(ctx, ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("event loop: %w", err)
		}
	}
	return nil
}

// Apply handles one event. Only Closed changes the registry; a failed
// eviction is retried under the engine's policy.
func (e *Engine) Apply(ctx context.Context, ev models.WindowEvent) error {
	if ev.Kind != models.EventClosed {
		e.log.Debug("window event", "kind", ev.Kind, "window", ev.Window)
		return nil
	}
	err := e.retry.Retry(ctx, func() error {
		return e.store.Evict(ctx, ev.Window)
	}, func(err error, wait time.Duration) {
		e.log.Warn("evict failed; retrying", "window", ev.Window, "wait", wait, "err", err)
	})
	if err != nil {
		return fmt.Errorf("evict %s: %w", ev.Window, err)
	}
	e.log.Debug("window closed; entry evicted", "window", ev.Window)
	return nil
}

// Prune evicts entries for windows that are no longer live and returns them.
// Entries are listed before windows so that a registration racing with the
// prune is never removed.
func (e *Engine) Prune(ctx context.Context) ([]models.Entry, error) {
	entries, err := e.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("prune: list entries: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	windows, err := e.wm.Windows(ctx)
	if err != nil {
		return nil, fmt.Errorf("prune: %w", err)
	}
	live := make(map[models.WindowID]bool, len(windows))
	for _, w := range windows {
		live[w.ID] = true
	}

	var evicted []models.Entry
	var errs []error
	for _, en := range entries {
		if live[en.Window] {
			continue
		}
		if err := e.store.Evict(ctx, en.Window); err != nil {
			errs = append(errs, err)
			continue
		}
		evicted = append(evicted, en)
	}
	if len(errs) > 0 {
		return evicted, fmt.Errorf("prune: %w", errors.Join(errs...))
	}
	e.log.Info("registry pruned", "evicted", len(evicted), "kept", len(entries)-len(evicted))
	return evicted, nil
}
