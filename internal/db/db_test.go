package db_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/curloc/internal/db"
	"github.com/go-ports/curloc/internal/models"
)

// openTestDB opens a fresh SQLite database in a temp directory and registers
// t.Cleanup to close it.
func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("openTestDB: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// ---------------------------------------------------------------------------
// Open
// ---------------------------------------------------------------------------

func TestOpen_HappyPath(t *testing.T) {
	c := qt.New(t)
	d := openTestDB(t)
	c.Assert(d, qt.IsNotNil)

	v, ok, err := d.GetMeta("schema_version")
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, fmt.Sprint(db.SchemaVersion))
}

func TestOpen_Reopen(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "registry.db")

	d, err := db.Open(path)
	c.Assert(err, qt.IsNil)
	c.Assert(d.Put(ctx, models.Entry{Window: "0x1", Location: "/kept", WriterPID: 7, Program: "zsh"}), qt.IsNil)
	c.Assert(d.Close(), qt.IsNil)

	// Opening an existing database leaves its schema and rows alone.
	d, err = db.Open(path)
	c.Assert(err, qt.IsNil)
	defer d.Close()

	e, ok, err := d.Get(ctx, "0x1")
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
	c.Assert(e.Location, qt.Equals, models.Location("/kept"))
	c.Assert(e.Program, qt.Equals, "zsh")
	c.Assert(e.WriterPID, qt.Equals, 7)
}

// ---------------------------------------------------------------------------
// Put / Get
// ---------------------------------------------------------------------------

func TestPutGet_HappyPath(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	c.Run("stored entry is retrievable", func(c *qt.C) {
		d := openTestDB(t)
		c.Assert(d.Put(ctx, models.Entry{
			Window:    "0xabc",
			Location:  "/home/u/proj",
			WriterPID: 4321,
			Program:   "nvim",
			NvimPipe:  "/run/user/1000/nvim.4321.0",
		}), qt.IsNil)

		e, ok, err := d.Get(ctx, "0xabc")
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.IsTrue)
		c.Assert(e.Window, qt.Equals, models.WindowID("0xabc"))
		c.Assert(e.Location, qt.Equals, models.Location("/home/u/proj"))
		c.Assert(e.WriterPID, qt.Equals, 4321)
		c.Assert(e.Program, qt.Equals, "nvim")
		c.Assert(e.NvimPipe, qt.Equals, "/run/user/1000/nvim.4321.0")
		c.Assert(e.RegisteredAt.IsZero(), qt.IsFalse)
	})

	c.Run("unknown window is absent", func(c *qt.C) {
		d := openTestDB(t)
		_, ok, err := d.Get(ctx, "0xnone")
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.IsFalse)
	})

	c.Run("last write wins without merging", func(c *qt.C) {
		d := openTestDB(t)
		c.Assert(d.Put(ctx, models.Entry{Window: "w", Location: "/one", WriterPID: 1, Program: "nvim", NvimPipe: "/tmp/nvim.sock"}), qt.IsNil)
		c.Assert(d.Put(ctx, models.Entry{Window: "w", Location: "/two", WriterPID: 2}), qt.IsNil)

		e, ok, err := d.Get(ctx, "w")
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.IsTrue)
		c.Assert(e.Location, qt.Equals, models.Location("/two"))
		c.Assert(e.WriterPID, qt.Equals, 2)
		c.Assert(e.Program, qt.Equals, "")
		c.Assert(e.NvimPipe, qt.Equals, "")
	})

	c.Run("location is stored verbatim", func(c *qt.C) {
		d := openTestDB(t)
		loc := models.Location("/home/u/проект/with space")
		c.Assert(d.Put(ctx, models.Entry{Window: "w", Location: loc, WriterPID: 1}), qt.IsNil)
		e, _, err := d.Get(ctx, "w")
		c.Assert(err, qt.IsNil)
		c.Assert(e.Location, qt.Equals, loc)
	})
}

// ---------------------------------------------------------------------------
// Evict / List / Clear
// ---------------------------------------------------------------------------

func TestEvict(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	d := openTestDB(t)

	c.Assert(d.Put(ctx, models.Entry{Window: "w", Location: "/one", WriterPID: 1}), qt.IsNil)
	c.Assert(d.Evict(ctx, "w"), qt.IsNil)
	c.Assert(d.Evict(ctx, "w"), qt.IsNil)
	c.Assert(d.Evict(ctx, "never"), qt.IsNil)

	_, ok, err := d.Get(ctx, "w")
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)
}

func TestListClear(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	d := openTestDB(t)

	entries, err := d.List(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.HasLen, 0)

	c.Assert(d.Put(ctx, models.Entry{Window: "0x2", Location: "/b", WriterPID: 2}), qt.IsNil)
	c.Assert(d.Put(ctx, models.Entry{Window: "0x1", Location: "/a", WriterPID: 1}), qt.IsNil)

	entries, err = d.List(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.HasLen, 2)
	c.Assert(entries[0].Window, qt.Equals, models.WindowID("0x1"))
	c.Assert(entries[1].Window, qt.Equals, models.WindowID("0x2"))

	c.Assert(d.Clear(ctx), qt.IsNil)
	entries, err = d.List(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.HasLen, 0)
}

// ---------------------------------------------------------------------------
// Multi-handle access
// ---------------------------------------------------------------------------

func TestConcurrentHandles(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	// Separate handles on one file stand in for separate CLI processes.
	path := filepath.Join(t.TempDir(), "registry.db")
	handles := make([]*db.DB, 4)
	for i := range handles {
		d, err := db.Open(path)
		c.Assert(err, qt.IsNil)
		handles[i] = d
	}
	defer func() {
		for _, d := range handles {
			_ = d.Close()
		}
	}()

	var wg sync.WaitGroup
	errs := make(chan error, len(handles)*50)
	for i, d := range handles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 50 {
				win := models.WindowID(fmt.Sprintf("w%d", j%3))
				if err := d.Put(ctx, models.Entry{Window: win, Location: models.Location(fmt.Sprintf("/h%d/%d", i, j)), WriterPID: i}); err != nil {
					errs <- err
				}
				if _, _, err := d.Get(ctx, win); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		c.Errorf("concurrent access: %v", err)
	}

	entries, err := handles[0].List(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.HasLen, 3)
}
