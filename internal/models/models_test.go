package models_test

import (
	"errors"
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/curloc/internal/models"
)

func TestValidateLocation(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		name    string
		loc     models.Location
		wantErr error
	}{
		{"absolute path", "/home/u/proj", nil},
		{"relative path is stored verbatim", "proj", nil},
		{"empty string", "", models.ErrInvalidLocation},
		{"whitespace only is stored verbatim", "  \t", nil},
	}

	for _, tt := range tests {
		c.Run(tt.name, func(c *qt.C) {
			err := models.ValidateLocation(tt.loc)
			if tt.wantErr == nil {
				c.Assert(err, qt.IsNil)
				return
			}
			c.Assert(err, qt.ErrorIs, tt.wantErr)
		})
	}
}

func TestExitCode(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil is success", nil, models.ExitOK},
		{"no active window", models.ErrNoActiveWindow, models.ExitNoActiveWindow},
		{"wrapped window gone", fmt.Errorf("lookup: %w", models.ErrWindowGone), models.ExitWindowGone},
		{"ambiguous owner", models.ErrAmbiguousOwner, models.ExitAmbiguousOwner},
		{"unreachable", fmt.Errorf("a: %w", fmt.Errorf("b: %w", models.ErrWindowManagerUnreachable)), models.ExitWindowManagerUnreachable},
		{"no cwd", models.ErrNoCwdFound, models.ExitNoCwdFound},
		{"invalid location", models.ErrInvalidLocation, models.ExitInvalidLocation},
		{"unclassified error", errors.New("disk full"), models.ExitFailure},
	}

	for _, tt := range tests {
		c.Run(tt.name, func(c *qt.C) {
			c.Assert(models.ExitCode(tt.err), qt.Equals, tt.want)
		})
	}
}

func TestKindRoundTrip(t *testing.T) {
	c := qt.New(t)

	sentinels := []error{
		models.ErrNoActiveWindow,
		models.ErrWindowGone,
		models.ErrAmbiguousOwner,
		models.ErrWindowManagerUnreachable,
		models.ErrNoCwdFound,
		models.ErrInvalidLocation,
	}
	seen := make(map[int]bool)
	for _, s := range sentinels {
		kind := models.KindOf(fmt.Errorf("wrapped: %w", s))
		c.Assert(kind, qt.Not(qt.Equals), "")
		c.Assert(models.ErrorForKind(kind), qt.Equals, s)

		code := models.ExitCode(s)
		c.Assert(seen[code], qt.IsFalse, qt.Commentf("exit code %d reused", code))
		seen[code] = true
	}

	c.Assert(models.KindOf(errors.New("other")), qt.Equals, "")
	c.Assert(models.ErrorForKind("Bogus"), qt.IsNil)
}

func TestEventKindString(t *testing.T) {
	c := qt.New(t)
	c.Assert(models.EventCreated.String(), qt.Equals, "created")
	c.Assert(models.EventFocused.String(), qt.Equals, "focused")
	c.Assert(models.EventClosed.String(), qt.Equals, "closed")
	c.Assert(models.EventKind(0).String(), qt.Equals, "unknown")
}
