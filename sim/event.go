package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/michelgokan/perfsim/sim/equipment"
	"github.com/michelgokan/perfsim/sim/traffic"
)

// arrivalEvent injects one request into its chain and lazily schedules the
// next arrival from the same generator.
type arrivalEvent struct {
	at  int64
	gen traffic.Generator
}

func (e *arrivalEvent) Timestamp() int64 { return e.at }

func (e *arrivalEvent) Execute(s *Simulation) {
	logrus.Debugf("[tick %07d] arrival on chain %s", e.at, e.gen.ChainID())
	s.handleArrival(e.gen.ChainID(), e.at)

	if next, ok := e.gen.Next(); ok {
		s.schedule(&arrivalEvent{at: next.Timestamp, gen: e.gen})
	}
}

// stageArrivalEvent marks one sub-flow of a request reaching a stage, either
// from the chain entry, a same-node edge, or a cross-node transmission.
type stageArrivalEvent struct {
	at      int64
	req     *Request
	stageID string
}

func (e *stageArrivalEvent) Timestamp() int64 { return e.at }

func (e *stageArrivalEvent) Execute(s *Simulation) {
	s.handleStageArrival(e.req, e.stageID, e.at)
}

// serviceEvent fires when the earliest occupant of an equipment completes.
// The engine keeps at most one pending serviceEvent per equipment; it is
// cancelled and rescheduled whenever the occupant set changes.
type serviceEvent struct {
	at int64
	eq *equipment.Equipment
}

func (e *serviceEvent) Timestamp() int64 { return e.at }

func (e *serviceEvent) Execute(s *Simulation) {
	s.handleService(e.eq, e.at)
}

// replacementEvent re-invokes the placement policy at a scheduled tick.
// The resulting decision governs only requests created afterward.
type replacementEvent struct {
	at int64
}

func (e *replacementEvent) Timestamp() int64 { return e.at }

func (e *replacementEvent) Execute(s *Simulation) {
	s.handleReplacement(e.at)
}
