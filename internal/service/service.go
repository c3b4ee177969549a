// Package service wires configuration, the window manager backend, the
// registry store and the resolution engine together, and chooses between the
// daemon and local deployments.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/go-ports/curloc/internal/buildinfo"
	"github.com/go-ports/curloc/internal/config"
	"github.com/go-ports/curloc/internal/db"
	"github.com/go-ports/curloc/internal/engine"
	"github.com/go-ports/curloc/internal/ipc"
	"github.com/go-ports/curloc/internal/logging"
	"github.com/go-ports/curloc/internal/models"
	"github.com/go-ports/curloc/internal/proctree"
	"github.com/go-ports/curloc/internal/registry"
	"github.com/go-ports/curloc/internal/wm"
	"github.com/go-ports/curloc/internal/wm/hyprland"
)

// Backend names accepted in wm.backend.
const (
	BackendAuto     = "auto"
	BackendHyprland = "hyprland"
	BackendStatic   = "static"
)

// DBFile is the SQLite registry inside the curloc home.
const DBFile = "registry.db"

const healthTimeout = 250 * time.Millisecond

// Registry is the surface CLI commands and the MCP server use. It is backed
// either by a local engine or by a running daemon.
type Registry interface {
	Write(ctx context.Context, req models.WriteRequest) (models.WindowID, error)
	Get(ctx context.Context) (models.Resolution, error)
	List(ctx context.Context) ([]models.Entry, error)
	Clear(ctx context.Context) error
	Prune(ctx context.Context) ([]models.Entry, error)
	Close() error
	// Mode reports config.ModeLocal or config.ModeDaemon.
	Mode() string
}

// Options configures Open and RunDaemon.
type Options struct {
	// Home is the curloc home; empty resolves through config.GetHome.
	Home string
	// ActivePID selects the static backend with this pid as the focused window.
	ActivePID int
	// Log receives diagnostics; nil discards them.
	Log *slog.Logger
}

func (o *Options) normalize() {
	if o.Home == "" {
		o.Home = config.GetHome()
	}
	if o.Log == nil {
		o.Log = slog.New(slog.DiscardHandler)
	}
}

// LoadConfig reads <home>/config.yaml.
func LoadConfig(home string) (*config.Config, error) {
	cfg, err := config.Load(filepath.Join(home, "config.yaml"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// ---------------------------------------------------------------------------
// Window manager selection
// ---------------------------------------------------------------------------

// NewWM returns the window manager client configured by cfg. A positive
// activePID always selects the static backend. A compositor
// that cannot be found yields a client whose queries fail with
// models.ErrWindowManagerUnreachable, so operations that never consult it
// (writes with an explicit window, list, clear) still work.
func NewWM(cfg *config.Config, activePID int, log *slog.Logger) (wm.Client, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	backend := cfg.WM.Backend
	switch {
	case activePID > 0:
		backend = BackendStatic
	case backend == "" || backend == BackendAuto:
		backend = detect(cfg)
	}

	switch backend {
	case BackendStatic:
		if activePID <= 0 {
			return nil, fmt.Errorf("wm backend %q requires --active-pid or CURLOC_ACTIVE_PID", backend)
		}
		return wm.Static{PID: activePID}, nil
	case BackendHyprland:
		client, err := hyprland.New(cfg.WM.RuntimeDir, cfg.WM.HyprlandSignature)
		if err != nil {
			log.Debug("hyprland unavailable", "err", err)
			return wm.Unavailable{Err: err}, nil
		}
		return wm.NewRetrying(client, wm.PolicyFromConfig(cfg.Reconnect), log), nil
	case "":
		return wm.Unavailable{Err: fmt.Errorf("no supported window manager detected (set HYPRLAND_INSTANCE_SIGNATURE or --active-pid): %w", models.ErrWindowManagerUnreachable)}, nil
	default:
		return nil, fmt.Errorf("unknown wm backend %q", backend)
	}
}

// detect returns the backend for the running session, or "" when none is
// recognised.
func detect(cfg *config.Config) string {
	if cfg.WM.HyprlandSignature != "" || os.Getenv("HYPRLAND_INSTANCE_SIGNATURE") != "" {
		return BackendHyprland
	}
	return ""
}

// ---------------------------------------------------------------------------
// Local deployment
// ---------------------------------------------------------------------------

// Local runs the engine in-process against the SQLite registry.
type Local struct {
	*engine.Engine

	Home   string
	Config *config.Config

	db     *db.DB
	client wm.Client
	log    *slog.Logger
}

var _ Registry = (*Local)(nil)

// OpenLocal opens the SQLite registry under the home and builds an engine.
func OpenLocal(opts Options) (*Local, error) {
	opts.normalize()
	cfg, err := LoadConfig(opts.Home)
	if err != nil {
		return nil, err
	}
	return openLocal(opts, cfg)
}

func openLocal(opts Options, cfg *config.Config) (*Local, error) {
	client, err := NewWM(cfg, opts.ActivePID, logging.ForComponent(opts.Log, logging.CompWM))
	if err != nil {
		return nil, err
	}
	database, err := db.Open(filepath.Join(opts.Home, DBFile))
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	eng := engine.New(database, client, proctree.NewProcFS(), logging.ForComponent(opts.Log, logging.CompEngine)).
		WithRetry(wm.PolicyFromConfig(cfg.Reconnect))
	return &Local{
		Engine: eng,
		Home:   opts.Home,
		Config: cfg,
		db:     database,
		client: client,
		log:    opts.Log,
	}, nil
}

// Mode implements Registry.
func (l *Local) Mode() string { return config.ModeLocal }

// Close releases the registry database.
func (l *Local) Close() error { return l.db.Close() }

// Watch runs the eviction loop until ctx is cancelled. Entries for windows
// that closed while nothing was watching are evicted once the first
// connection to the window manager is up.
func (l *Local) Watch(ctx context.Context) error {
	return l.Engine.Watch(ctx, l.client, wm.PolicyFromConfig(l.Config.Reconnect), logging.ForComponent(l.log, logging.CompWM))
}

// ---------------------------------------------------------------------------
// Daemon deployment
// ---------------------------------------------------------------------------

// Remote forwards every operation to a running daemon.
type Remote struct {
	*ipc.Client
}

var _ Registry = (*Remote)(nil)

// Mode implements Registry.
func (r *Remote) Mode() string { return config.ModeDaemon }

// Open returns the Registry selected by the configured mode. In auto mode a
// daemon that answers a health check is used, otherwise the local registry.
// An explicit active pid always selects the local registry because the
// daemon has its own window manager.
func Open(ctx context.Context, opts Options) (Registry, error) {
	opts.normalize()
	cfg, err := LoadConfig(opts.Home)
	if err != nil {
		return nil, err
	}

	mode := cfg.Mode
	if opts.ActivePID > 0 {
		mode = config.ModeLocal
	}
	if mode == config.ModeLocal {
		return openLocal(opts, cfg)
	}

	socket, err := config.SocketPath(cfg)
	if err != nil {
		return nil, err
	}
	client := ipc.NewClient(socket)
	if mode == config.ModeDaemon {
		return &Remote{Client: client}, nil
	}

	healthCtx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if _, err := client.Health(healthCtx); err == nil {
		opts.Log.Debug("using daemon", "socket", socket)
		return &Remote{Client: client}, nil
	}
	_ = client.Close()
	opts.Log.Debug("daemon not reachable; using local registry", "socket", socket)
	return openLocal(opts, cfg)
}

// RunDaemon serves the registry on the configured socket and consumes window
// events until ctx is cancelled or the window manager is lost for good.
func RunDaemon(ctx context.Context, opts Options) error {
	opts.normalize()
	cfg, err := LoadConfig(opts.Home)
	if err != nil {
		return err
	}
	socket, err := config.SocketPath(cfg)
	if err != nil {
		return err
	}
	log := logging.ForComponent(opts.Log, logging.CompDaemon)

	client, err := NewWM(cfg, opts.ActivePID, logging.ForComponent(opts.Log, logging.CompWM))
	if err != nil {
		return err
	}

	var (
		store     registry.Store
		storeName string
	)
	if cfg.Daemon.Persist {
		database, err := db.Open(filepath.Join(opts.Home, DBFile))
		if err != nil {
			return fmt.Errorf("open registry: %w", err)
		}
		store, storeName = database, "sqlite"
	} else {
		store, storeName = registry.NewMemory(), "memory"
	}
	defer store.Close()

	policy := wm.PolicyFromConfig(cfg.Reconnect)
	eng := engine.New(store, client, proctree.NewProcFS(), logging.ForComponent(opts.Log, logging.CompEngine)).
		WithRetry(policy)

	srv := ipc.NewServer(socket, eng, ipc.HealthResponse{
		Version: buildinfo.Version,
		Backend: client.Name(),
		Store:   storeName,
	}, logging.ForComponent(opts.Log, logging.CompIPC))

	log.Info("daemon starting", "socket", socket, "backend", client.Name(), "store", storeName, "version", buildinfo.Version)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx) })
	g.Go(func() error {
		if err := eng.Watch(gctx, client, policy, logging.ForComponent(opts.Log, logging.CompWM)); err != nil {
			log.Error("event loop stopped", "err", err)
			return err
		}
		return nil
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("daemon stopped")
	return nil
}
