package ipc_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/curloc/internal/checkers"
	"github.com/go-ports/curloc/internal/engine"
	"github.com/go-ports/curloc/internal/ipc"
	"github.com/go-ports/curloc/internal/models"
	"github.com/go-ports/curloc/internal/proctree"
	"github.com/go-ports/curloc/internal/registry"
	"github.com/go-ports/curloc/internal/wm/wmtest"
)

type fixture struct {
	fake   *wmtest.Fake
	client *ipc.Client
	socket string
}

// startServer runs a daemon over an in-memory registry and a fake window
// manager until the test ends.
func startServer(t *testing.T) *fixture {
	t.Helper()
	dir, err := os.MkdirTemp("", "curloc-ipc")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	socket := filepath.Join(dir, "curloc.sock")

	f := wmtest.New()
	f.AddWindow("W1", 4321)
	f.AddWindow("W2", 555)
	procs := proctree.Table{
		4321: {PID: 4321, Parent: 1, Cwd: "/home/u"},
		555:  {PID: 555, Parent: 100},
		100:  {PID: 100, Parent: 1, Cwd: "/var/log"},
	}
	eng := engine.New(registry.NewMemory(), f, procs, nil)
	srv := ipc.NewServer(socket, eng, ipc.HealthResponse{Version: "test", Backend: "fake", Store: "memory"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	client := ipc.NewClient(socket)
	t.Cleanup(func() { _ = client.Close() })
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := client.Health(context.Background()); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("daemon did not come up")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return &fixture{fake: f, client: client, socket: socket}
}

func TestHealth(t *testing.T) {
	c := qt.New(t)
	fx := startServer(t)

	h, err := fx.client.Health(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(h.Status, qt.Equals, "ok")
	c.Assert(h.Version, qt.Equals, "test")
	c.Assert(h.PID, qt.Equals, os.Getpid())

	st, err := os.Stat(fx.socket)
	c.Assert(err, qt.IsNil)
	c.Assert(st.Mode().Perm(), qt.Equals, os.FileMode(0o600))
}

func TestWriteGet_HappyPath(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	fx := startServer(t)
	fx.fake.Focus("W1")

	w, err := fx.client.Write(ctx, models.WriteRequest{Location: "/home/u/proj", PID: 4321, Program: "zsh"})
	c.Assert(err, qt.IsNil)
	c.Assert(w, qt.Equals, models.WindowID("W1"))

	res, err := fx.client.Get(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(res, qt.Equals, models.Resolution{Window: "W1", Location: "/home/u/proj", Source: models.SourceRegistry})

	entries, err := fx.client.List(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.HasLen, 1)
	c.Assert(entries[0].Program, qt.Equals, "zsh")
	c.Assert(entries[0].WriterPID, qt.Equals, 4321)

	_, err = fx.client.Write(ctx, models.WriteRequest{Location: "/etc", Window: "W1", Program: "nvim", NvimPipe: "/tmp/nvim.sock"})
	c.Assert(err, qt.IsNil)
	res, err = fx.client.Get(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(res.NvimPipe, qt.Equals, "/tmp/nvim.sock")
	entries, err = fx.client.List(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(entries[0].NvimPipe, qt.Equals, "/tmp/nvim.sock")

	fx.fake.Focus("W2")
	res, err = fx.client.Get(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Location, qt.Equals, models.Location("/var/log"))
	c.Assert(res.Source, qt.Equals, models.SourceProcessTree)
	c.Assert(res.NvimPipe, qt.Equals, "")
}

func TestClearPrune(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	fx := startServer(t)

	_, err := fx.client.Write(ctx, models.WriteRequest{Location: "/a", Window: "W1"})
	c.Assert(err, qt.IsNil)
	_, err = fx.client.Write(ctx, models.WriteRequest{Location: "/b", Window: "closed-long-ago"})
	c.Assert(err, qt.IsNil)

	evicted, err := fx.client.Prune(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(evicted, qt.HasLen, 1)
	c.Assert(evicted[0].Window, qt.Equals, models.WindowID("closed-long-ago"))

	c.Assert(fx.client.Clear(ctx), qt.IsNil)
	entries, err := fx.client.List(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.HasLen, 0)
}

func TestErrorKinds(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	fx := startServer(t)

	c.Run("no active window", func(c *qt.C) {
		_, err := fx.client.Get(ctx)
		c.Assert(err, qt.ErrorIs, models.ErrNoActiveWindow)
		c.Assert(models.ExitCode(err), qt.Equals, models.ExitNoActiveWindow)

		var re *ipc.RemoteError
		c.Assert(errors.As(err, &re), qt.IsTrue)
		c.Assert(re.Status, qt.Equals, http.StatusNotFound)
	})

	c.Run("invalid location", func(c *qt.C) {
		_, err := fx.client.Write(ctx, models.WriteRequest{Location: "", Window: "W1"})
		c.Assert(err, qt.ErrorIs, models.ErrInvalidLocation)
	})

	c.Run("ambiguous owner", func(c *qt.C) {
		_, err := fx.client.Write(ctx, models.WriteRequest{Location: "/x", PID: 9999})
		c.Assert(err, qt.ErrorIs, models.ErrAmbiguousOwner)
	})

	c.Run("error body carries the kind", func(c *qt.C) {
		hc := &http.Client{Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", fx.socket)
			},
		}}
		resp, err := hc.Get("http://curloc/v1/location")
		c.Assert(err, qt.IsNil)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		c.Assert(err, qt.IsNil)
		c.Assert(body, checkers.JSONPathEquals("$.kind"), "NoActiveWindow")
	})
}

func TestServe_SecondDaemonRefused(t *testing.T) {
	c := qt.New(t)
	fx := startServer(t)

	srv := ipc.NewServer(fx.socket, engine.New(registry.NewMemory(), wmtest.New(), proctree.Table{}, nil), ipc.HealthResponse{}, nil)
	err := srv.Serve(context.Background())
	c.Assert(err, qt.ErrorIs, ipc.ErrDaemonRunning)

	_, err = fx.client.Health(context.Background())
	c.Assert(err, qt.IsNil)
}

func TestClient_NoDaemon(t *testing.T) {
	c := qt.New(t)
	cl := ipc.NewClient(filepath.Join(t.TempDir(), "absent.sock"))
	_, err := cl.Health(context.Background())
	c.Assert(err, qt.ErrorIs, ipc.ErrDaemonUnavailable)
}
