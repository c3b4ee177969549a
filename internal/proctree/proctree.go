// Package proctree walks process ancestry to infer a working directory when a
// window has no explicit registration.
package proctree

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-ports/curloc/internal/models"
)

// maxDepth bounds the ancestor walk; real chains are a handful of levels.
const maxDepth = 256

// ErrNoProcess is returned by a Snapshot when the pid is not (or no longer)
// present.
var ErrNoProcess = errors.New("no such process")

// Snapshot answers the two questions the walker asks of the process table.
// Both may fail for reasons outside our control (permission denied, the
// process exited between calls).
type Snapshot interface {
	Parent(pid int) (int, error)
	Cwd(pid int) (string, error)
}

// Node is one sampled process. A zero Parent means no parent is known.
type Node struct {
	PID    int
	Parent int
	Cwd    string
}

// Table is an in-memory Snapshot keyed by pid.
type Table map[int]Node

// Parent implements Snapshot.
func (t Table) Parent(pid int) (int, error) {
	n, ok := t[pid]
	if !ok {
		return 0, fmt.Errorf("pid %d: %w", pid, ErrNoProcess)
	}
	return n.Parent, nil
}

// Cwd implements Snapshot.
func (t Table) Cwd(pid int) (string, error) {
	n, ok := t[pid]
	if !ok {
		return "", fmt.Errorf("pid %d: %w", pid, ErrNoProcess)
	}
	return n.Cwd, nil
}

// Ancestors returns pid followed by its ancestors, nearest first, stopping
// before init. A pid the snapshot cannot resolve ends the chain.
func Ancestors(snap Snapshot, pid int) []int {
	chain := make([]int, 0, 8)
	seen := make(map[int]bool)
	for pid > 1 && !seen[pid] && len(chain) < maxDepth {
		seen[pid] = true
		chain = append(chain, pid)
		parent, err := snap.Parent(pid)
		if err != nil {
			break
		}
		pid = parent
	}
	return chain
}

// ResolveFallback returns the working directory of the closest process in
// pid's ancestor chain (pid itself included) that has a usable one.
// Processes whose cwd cannot be read are skipped, not fatal.
func ResolveFallback(snap Snapshot, pid int) (models.Location, error) {
	chain := Ancestors(snap, pid)
	for _, p := range chain {
		cwd, err := snap.Cwd(p)
		if err != nil {
			continue
		}
		if usable(cwd) {
			return models.Location(cwd), nil
		}
	}
	return "", fmt.Errorf("pid %d (%d ancestors searched): %w", pid, len(chain), models.ErrNoCwdFound)
}

func usable(cwd string) bool {
	return cwd != "" && filepath.IsAbs(cwd)
}
