// Package proctree discovers and terminates descendant process trees. The
// enumeration capability is kept behind the narrow Directory interface so the
// traversal logic stays independent of how a platform lists processes.
package proctree

import (
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Descriptor identifies a live process by id together with the start time
// observed for that id. The pair, not the id alone, names a process: the
// operating system recycles ids, and a recorded id whose holder has a later
// start time belongs to an unrelated process.
type Descriptor struct {
	PID       int32
	StartTime time.Time
}

// Directory is the live-process lookup capability required by the reaper and
// the runner's finalization step.
type Directory interface {
	// Children returns descriptors for every live process whose parent id
	// equals pid.
	Children(pid int32) ([]Descriptor, error)

	// StartTime reports the start time of the process currently holding pid.
	StartTime(pid int32) (time.Time, error)

	// Alive reports whether any process currently holds pid.
	Alive(pid int32) (bool, error)

	// Kill forcibly terminates the process holding pid.
	Kill(pid int32) error
}

type systemDirectory struct{}

// System returns a Directory backed by the operating system's process table.
func System() Directory { return systemDirectory{} }

func (systemDirectory) Children(pid int32) ([]Descriptor, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	var kids []Descriptor
	for _, p := range procs {
		ppid, err := p.Ppid()
		if err != nil || ppid != pid {
			// The process may have exited between enumeration and lookup.
			continue
		}
		created, err := p.CreateTime()
		if err != nil {
			continue
		}
		kids = append(kids, Descriptor{PID: p.Pid, StartTime: time.UnixMilli(created)})
	}
	return kids, nil
}

func (systemDirectory) StartTime(pid int32) (time.Time, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return time.Time{}, fmt.Errorf("process %d: %w", pid, err)
	}
	created, err := p.CreateTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("process %d start time: %w", pid, err)
	}
	return time.UnixMilli(created), nil
}

func (systemDirectory) Alive(pid int32) (bool, error) {
	return process.PidExists(pid)
}

func (systemDirectory) Kill(pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return fmt.Errorf("process %d: %w", pid, err)
	}
	return p.Kill()
}
