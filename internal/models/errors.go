package models

import "errors"

// Resolution failure kinds. Callers branch on these with errors.Is.
var (
	ErrNoActiveWindow           = errors.New("no active window")
	ErrWindowGone               = errors.New("window gone")
	ErrAmbiguousOwner           = errors.New("ambiguous window owner")
	ErrWindowManagerUnreachable = errors.New("window manager unreachable")
	ErrNoCwdFound               = errors.New("no working directory found")
	ErrInvalidLocation          = errors.New("invalid location")
)

// Exit codes, stable across releases so scripts can branch on them.
const (
	ExitOK                       = 0
	ExitFailure                  = 1
	ExitNoActiveWindow           = 3
	ExitWindowGone               = 4
	ExitAmbiguousOwner           = 5
	ExitWindowManagerUnreachable = 6
	ExitNoCwdFound               = 7
	ExitInvalidLocation          = 8
)

var kinds = []struct {
	err  error
	name string
	code int
}{
	{ErrNoActiveWindow, "NoActiveWindow", ExitNoActiveWindow},
	{ErrWindowGone, "WindowGone", ExitWindowGone},
	{ErrAmbiguousOwner, "AmbiguousOwner", ExitAmbiguousOwner},
	{ErrWindowManagerUnreachable, "WindowManagerUnreachable", ExitWindowManagerUnreachable},
	{ErrNoCwdFound, "NoCwdFound", ExitNoCwdFound},
	{ErrInvalidLocation, "InvalidLocation", ExitInvalidLocation},
}

// KindOf returns the stable kind name for err, or "" when err does not wrap
// one of the resolution sentinels.
func KindOf(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return ""
}

// ErrorForKind maps a kind name back to its sentinel. Unknown names return nil.
func ErrorForKind(name string) error {
	for _, k := range kinds {
		if k.name == name {
			return k.err
		}
	}
	return nil
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return ExitFailure
}
