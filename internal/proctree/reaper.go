package proctree

import (
	"io"

	"github.com/sirupsen/logrus"
)

// DefaultMaxDepth bounds the traversal so a pathological process tree cannot
// recurse without limit.
const DefaultMaxDepth = 32

// Reaper terminates the descendants of a process, deepest first. The sweep is
// advisory cleanup: every per-node failure is absorbed and logged, never
// escalated to the caller.
type Reaper struct {
	dir      Directory
	maxDepth int
	log      *logrus.Entry
}

// NewReaper constructs a reaper over the provided directory. A non-positive
// maxDepth selects DefaultMaxDepth.
func NewReaper(dir Directory, maxDepth int, log *logrus.Entry) *Reaper {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if log == nil {
		log = discardEntry()
	}
	return &Reaper{dir: dir, maxDepth: maxDepth, log: log}
}

// Reap kills every live descendant of root and returns the number of
// processes terminated. The root itself is left to the caller. A candidate is
// only eligible when its start time is at or after the start time of the node
// being swept; anything earlier holds a recycled id and must survive.
func (r *Reaper) Reap(root Descriptor) int {
	return r.reap(root, 0)
}

func (r *Reaper) reap(node Descriptor, depth int) int {
	if depth >= r.maxDepth {
		r.log.WithField("pid", node.PID).Debug("reap: depth bound reached")
		return 0
	}

	kids, err := r.dir.Children(node.PID)
	if err != nil {
		r.log.WithField("pid", node.PID).WithError(err).Debug("reap: enumerate children")
		return 0
	}

	killed := 0
	for _, kid := range kids {
		if kid.StartTime.Before(node.StartTime) {
			// Recycled id: the original child exited and the os handed its
			// pid to a process that predates this subtree.
			continue
		}
		// Post-order: take the subtree down before its parent so children
		// cannot be re-parented out of the kill set.
		killed += r.reap(kid, depth+1)
		if err := r.dir.Kill(kid.PID); err != nil {
			r.log.WithField("pid", kid.PID).WithError(err).Debug("reap: kill")
			continue
		}
		killed++
	}
	return killed
}

func discardEntry() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}
