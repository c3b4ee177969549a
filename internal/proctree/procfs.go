package proctree

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/prometheus/procfs"
)

// ProcFS samples the live process table from a procfs mount. Every call
// reads fresh; nothing is cached since the table changes under us.
type ProcFS struct {
	Root string // defaults to procfs.DefaultMountPoint
}

// NewProcFS returns a ProcFS reading from /proc.
func NewProcFS() *ProcFS { return &ProcFS{Root: procfs.DefaultMountPoint} }

func (p *ProcFS) proc(pid int) (procfs.Proc, error) {
	root := p.Root
	if root == "" {
		root = procfs.DefaultMountPoint
	}
	pfs, err := procfs.NewFS(root)
	if err != nil {
		return procfs.Proc{}, fmt.Errorf("open procfs %s: %w", root, err)
	}
	proc, err := pfs.Proc(pid)
	if err != nil {
		return procfs.Proc{}, wrapProcErr(pid, err)
	}
	return proc, nil
}

// Parent reads the ppid field of /proc/<pid>/stat.
func (p *ProcFS) Parent(pid int) (int, error) {
	proc, err := p.proc(pid)
	if err != nil {
		return 0, err
	}
	stat, err := proc.Stat()
	if err != nil {
		return 0, wrapProcErr(pid, err)
	}
	return stat.PPID, nil
}

// Cwd resolves the /proc/<pid>/cwd link.
func (p *ProcFS) Cwd(pid int) (string, error) {
	proc, err := p.proc(pid)
	if err != nil {
		return "", err
	}
	cwd, err := proc.Cwd()
	if err != nil {
		return "", wrapProcErr(pid, err)
	}
	// procfs reports a missing link as "".
	if cwd == "" {
		return "", fmt.Errorf("pid %d: no cwd: %w", pid, ErrNoProcess)
	}
	// The kernel appends this marker when the directory was removed.
	if strings.HasSuffix(cwd, " (deleted)") {
		return "", fmt.Errorf("pid %d: cwd %q was deleted", pid, strings.TrimSuffix(cwd, " (deleted)"))
	}
	return cwd, nil
}

func wrapProcErr(pid int, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("pid %d: %w", pid, ErrNoProcess)
	}
	return fmt.Errorf("pid %d: %w", pid, err)
}
