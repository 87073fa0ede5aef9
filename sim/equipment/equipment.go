// Package equipment models the finite-capacity resources of a cluster:
// per-node equipment (CPU-, disk- and network-like) with pluggable contention
// regimes, the nodes that own them, and the links that connect nodes.
//
// Simulated time is measured in ticks; one tick is one microsecond.
// Capacities are declared in units per second and converted internally.
package equipment

import (
	"errors"
	"fmt"
	"math"
)

// TicksPerSecond converts between declared per-second capacities and the
// engine's microsecond tick clock.
const TicksPerSecond = 1e6

// Kind classifies equipment by the demand component it serves.
type Kind string

const (
	KindCPU  Kind = "cpu"
	KindDisk Kind = "disk"
	KindNet  Kind = "net"
)

// Regime selects the contention formula of an equipment instance.
type Regime string

const (
	// RegimeSharedQueue models a saturating open queue: all occupants share
	// the capacity equally, so each of n occupants progresses at capacity/n.
	// Past saturation the backlog (and therefore delay) grows linearly.
	RegimeSharedQueue Regime = "shared-queue"

	// RegimeFixedSlowdown fixes a job's completion at admission time:
	// delay = demand/capacity scaled by the number of concurrent occupants.
	// Used for resources modeled without true queueing.
	RegimeFixedSlowdown Regime = "fixed-slowdown"
)

// ErrOverloaded signals that an admission was rejected because the
// equipment's occupant limit was reached. The engine turns this into a
// request drop, never into a run failure.
var ErrOverloaded = errors.New("equipment overloaded")

// job is one admitted unit of demand. Under RegimeSharedQueue remaining is
// drained as simulated time advances; under RegimeFixedSlowdown completeAt
// is final from admission.
type job struct {
	id         string
	remaining  float64
	completeAt int64
	admittedAt int64
}

// Equipment is a finite-capacity resource owned by exactly one node.
// It is mutated only by the simulation engine while processing events, so it
// needs no locking. Occupants are kept in admission order and never
// reordered here; any priority policy belongs to the placement layer.
type Equipment struct {
	ID       string
	NodeID   string
	Kind     Kind
	Capacity float64 // units per second
	// QueueLimit bounds concurrent occupants (queued + in service).
	// Zero means unbounded.
	QueueLimit int
	Regime     Regime

	jobs        []*job
	lastAdvance int64
	busyTicks   int64

	// Counters exposed to observers and results.
	Admitted      int
	Released      int
	Rejected      int
	PeakOccupants int
}

// New creates an Equipment instance. Capacity must be positive; this is
// enforced by scenario validation before a run starts.
func New(id, nodeID string, kind Kind, capacity float64, queueLimit int, regime Regime) *Equipment {
	return &Equipment{
		ID:         id,
		NodeID:     nodeID,
		Kind:       kind,
		Capacity:   capacity,
		QueueLimit: queueLimit,
		Regime:     regime,
	}
}

// capacityPerTick returns the drain rate in units per tick.
func (e *Equipment) capacityPerTick() float64 {
	return e.Capacity / TicksPerSecond
}

// advance drains remaining work up to now. Between two engine calls the
// occupant set is constant, so applying the shared rate over the whole
// elapsed window is exact.
func (e *Equipment) advance(now int64) {
	elapsed := now - e.lastAdvance
	if elapsed <= 0 {
		return
	}
	if len(e.jobs) > 0 {
		e.busyTicks += elapsed
		if e.Regime == RegimeSharedQueue {
			rate := e.capacityPerTick() / float64(len(e.jobs))
			drained := rate * float64(elapsed)
			for _, j := range e.jobs {
				j.remaining -= drained
			}
		}
	}
	e.lastAdvance = now
}

// Admit adds demand to the equipment at the given tick. It is the only
// mutator that adds load. Returns ErrOverloaded when the occupant limit is
// reached; the caller drops the request and the run continues.
func (e *Equipment) Admit(now int64, jobID string, demand float64) error {
	e.advance(now)

	if e.QueueLimit > 0 && len(e.jobs) >= e.QueueLimit {
		e.Rejected++
		return fmt.Errorf("%s: %w (occupants=%d limit=%d)", e.ID, ErrOverloaded, len(e.jobs), e.QueueLimit)
	}

	j := &job{id: jobID, admittedAt: now}
	switch e.Regime {
	case RegimeFixedSlowdown:
		occupants := float64(len(e.jobs) + 1)
		delay := demand / e.Capacity * TicksPerSecond * occupants
		j.completeAt = now + int64(math.Ceil(delay))
	default: // RegimeSharedQueue
		j.remaining = demand
	}
	e.jobs = append(e.jobs, j)
	e.Admitted++
	if len(e.jobs) > e.PeakOccupants {
		e.PeakOccupants = len(e.jobs)
	}
	return nil
}

// NextCompletion returns the tick at which the earliest occupant finishes,
// or false when the equipment is idle. The engine keeps exactly one pending
// service event per equipment and re-derives it from this after every
// occupant-set change.
func (e *Equipment) NextCompletion(now int64) (int64, bool) {
	e.advance(now)
	if len(e.jobs) == 0 {
		return 0, false
	}

	if e.Regime == RegimeFixedSlowdown {
		earliest := e.jobs[0].completeAt
		for _, j := range e.jobs[1:] {
			if j.completeAt < earliest {
				earliest = j.completeAt
			}
		}
		if earliest < now {
			earliest = now
		}
		return earliest, true
	}

	minRemaining := e.jobs[0].remaining
	for _, j := range e.jobs[1:] {
		if j.remaining < minRemaining {
			minRemaining = j.remaining
		}
	}
	if minRemaining <= 0 {
		return now, true
	}
	rate := e.capacityPerTick() / float64(len(e.jobs))
	ticks := int64(math.Ceil(minRemaining / rate))
	if ticks < 1 {
		ticks = 1
	}
	return now + ticks, true
}

// Finish releases every occupant whose work is complete at now and returns
// their job IDs in admission order. Completions are quantized to the tick:
// a shared-queue job with less than one tick of residual work is done.
func (e *Equipment) Finish(now int64) []string {
	e.advance(now)
	if len(e.jobs) == 0 {
		return nil
	}

	var done []string
	remaining := e.jobs[:0]
	for _, j := range e.jobs {
		finished := false
		if e.Regime == RegimeFixedSlowdown {
			finished = j.completeAt <= now
		} else {
			finished = j.remaining <= e.capacityPerTick()/float64(len(e.jobs))
		}
		if finished {
			done = append(done, j.id)
			e.Released++
		} else {
			remaining = append(remaining, j)
		}
	}
	e.jobs = remaining
	return done
}

// Occupants returns the current number of admitted jobs.
func (e *Equipment) Occupants() int {
	return len(e.jobs)
}

// CommittedLoad returns the total residual demand currently held, in units.
// For fixed-slowdown equipment this is approximated by the occupant count
// since residual work is not tracked.
func (e *Equipment) CommittedLoad() float64 {
	if e.Regime == RegimeFixedSlowdown {
		return float64(len(e.jobs))
	}
	var total float64
	for _, j := range e.jobs {
		if j.remaining > 0 {
			total += j.remaining
		}
	}
	return total
}

// Utilization returns the time-weighted busy fraction of the equipment over
// [0, now]: the share of simulated time with at least one occupant.
func (e *Equipment) Utilization(now int64) float64 {
	e.advance(now)
	if now <= 0 {
		return 0
	}
	return float64(e.busyTicks) / float64(now)
}
