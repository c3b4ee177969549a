// Package ipc serves the registry over HTTP on a unix socket so that one
// long-lived daemon can own the registry and the window-event subscription
// while short-lived writers and readers talk to it.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/go-ports/curloc/internal/models"
)

// ErrDaemonRunning is returned by Serve when another daemon holds the socket lock.
var ErrDaemonRunning = errors.New("daemon already running")

const maxBodyBytes = 64 << 10

// Backend is the registry API the server exposes.
type Backend interface {
	Write(ctx context.Context, req models.WriteRequest) (models.WindowID, error)
	Get(ctx context.Context) (models.Resolution, error)
	List(ctx context.Context) ([]models.Entry, error)
	Clear(ctx context.Context) error
	Prune(ctx context.Context) ([]models.Entry, error)
}

// Server is the daemon side of the socket.
type Server struct {
	socket   string
	backend  Backend
	health   HealthResponse
	log      *slog.Logger
	httpSrv  *http.Server
	mu       sync.Mutex
	listener net.Listener
	lockFile *os.File

	shutdown    sync.Once
	shutdownErr error
}

// NewServer returns a server for backend on socket. health is reported by
// GET /v1/health with Status and PID filled in.
func NewServer(socket string, backend Backend, health HealthResponse, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	health.Status = "ok"
	health.PID = os.Getpid()

	mux := http.NewServeMux()
	s := &Server{
		socket:  socket,
		backend: backend,
		health:  health,
		log:     log,
		httpSrv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	mux.HandleFunc("GET /v1/health", s.healthHandler)
	mux.HandleFunc("GET /v1/location", s.getHandler)
	mux.HandleFunc("POST /v1/location", s.writeHandler)
	mux.HandleFunc("GET /v1/entries", s.listHandler)
	mux.HandleFunc("DELETE /v1/entries", s.clearHandler)
	mux.HandleFunc("POST /v1/prune", s.pruneHandler)
	return s
}

// Serve listens on the socket until ctx is cancelled. A stale socket file
// left by a crashed daemon is replaced; a live daemon yields ErrDaemonRunning.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.socket), 0o700); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	if err := s.acquireLock(); err != nil {
		return err
	}
	if st, err := os.Lstat(s.socket); err == nil {
		if st.Mode()&os.ModeSocket == 0 {
			_ = s.releaseLock()
			return fmt.Errorf("socket path exists and is not a unix socket: %s", s.socket)
		}
		if err := os.Remove(s.socket); err != nil {
			_ = s.releaseLock()
			return fmt.Errorf("remove stale socket: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		_ = s.releaseLock()
		return fmt.Errorf("stat socket path: %w", err)
	}

	ln, err := net.Listen("unix", s.socket)
	if err != nil {
		_ = s.releaseLock()
		return fmt.Errorf("listen uds: %w", err)
	}
	if err := os.Chmod(s.socket, 0o600); err != nil {
		_ = ln.Close()
		_ = s.releaseLock()
		return fmt.Errorf("chmod socket: %w", err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.log.Info("listening", "socket", s.socket)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errCh:
		_ = s.Shutdown(context.Background())
		if err != nil {
			return fmt.Errorf("serve uds: %w", err)
		}
		return nil
	}
}

// Shutdown stops the server and removes the socket.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdown.Do(func() {
		var errs []error
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		s.mu.Lock()
		s.listener = nil
		s.mu.Unlock()
		if err := os.Remove(s.socket); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
		if err := s.releaseLock(); err != nil {
			errs = append(errs, err)
		}
		s.shutdownErr = errors.Join(errs...)
	})
	return s.shutdownErr
}

func (s *Server) acquireLock() error {
	f, err := os.OpenFile(s.socket+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: %w", s.socket, ErrDaemonRunning)
	}
	s.mu.Lock()
	s.lockFile = f
	s.mu.Unlock()
	return nil
}

func (s *Server) releaseLock() error {
	s.mu.Lock()
	f := s.lockFile
	s.lockFile = nil
	s.mu.Unlock()
	if f == nil {
		return nil
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.health)
}

func (s *Server) getHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.backend.Get(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) writeHandler(w http.ResponseWriter, r *http.Request) {
	var req models.WriteRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "decode request: " + err.Error()})
		return
	}
	window, err := s.backend.Write(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, WriteResponse{Window: window})
}

func (s *Server) listHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := s.backend.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.Entry{}
	}
	writeJSON(w, http.StatusOK, EntriesResponse{Entries: entries})
}

func (s *Server) clearHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Clear(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) pruneHandler(w http.ResponseWriter, r *http.Request) {
	evicted, err := s.backend.Prune(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if evicted == nil {
		evicted = []models.Entry{}
	}
	writeJSON(w, http.StatusOK, EntriesResponse{Entries: evicted})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := models.KindOf(err)
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Warn("request failed", "method", r.Method, "path", r.URL.Path, "kind", kind, "err", err)
	} else {
		s.log.Debug("request failed", "method", r.Method, "path", r.URL.Path, "kind", kind, "err", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: kind})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidLocation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNoActiveWindow),
		errors.Is(err, models.ErrWindowGone),
		errors.Is(err, models.ErrNoCwdFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAmbiguousOwner):
		return http.StatusConflict
	case errors.Is(err, models.ErrWindowManagerUnreachable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
