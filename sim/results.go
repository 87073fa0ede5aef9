package sim

import (
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/michelgokan/perfsim/sim/equipment"
)

// TicksPerSecond converts between tick counts and wall seconds: one tick is
// one microsecond of simulated time.
const TicksPerSecond = 1_000_000

// ChainStats is the per-chain block of a run result. Truncated counts the
// requests still in flight when the run window closed; Created always equals
// Completed + Dropped + Truncated.
type ChainStats struct {
	Created     int
	Completed   int
	Dropped     int
	Truncated   int
	DropReasons map[string]int
	Latency     Distribution
}

// EquipmentStats is the per-equipment block of a run result. Utilization is
// the time-weighted busy fraction over the whole run window.
type EquipmentStats struct {
	NodeID        string
	Kind          equipment.Kind
	Utilization   float64
	PeakOccupants int
	Admitted      int
	Rejected      int
	Series        []UtilizationPoint
}

// Result is the immutable outcome of one simulation run.
type Result struct {
	RunID    string
	Scenario string
	Policy   string
	Seed     int64

	// SimEndedTime is the tick the run window closed: the last dispatched
	// tick, or the horizon when it cut the run short.
	SimEndedTime     int64
	EventsDispatched int64

	Created   int
	Completed int
	Dropped   int
	Truncated int

	Chains    map[string]*ChainStats
	Equipment map[string]*EquipmentStats
}

func (s *Simulation) buildResult(end int64) *Result {
	res := &Result{
		RunID:            uuid.NewString(),
		Scenario:         s.scenario.Name,
		Policy:           s.decision.Policy,
		Seed:             s.scenario.Seed,
		SimEndedTime:     end,
		EventsDispatched: s.eventsDispatched,
		Created:          s.created,
		Completed:        s.completed,
		Dropped:          s.dropped,
		Truncated:        s.truncated,
		Chains:           make(map[string]*ChainStats, len(s.chains)),
		Equipment:        make(map[string]*EquipmentStats),
	}
	for id := range s.chains {
		res.Chains[id] = s.kpi.chainStats(id)
	}
	for _, eq := range s.scenario.Cluster.Equipment() {
		res.Equipment[eq.ID] = &EquipmentStats{
			NodeID:        eq.NodeID,
			Kind:          eq.Kind,
			Utilization:   eq.Utilization(end),
			PeakOccupants: eq.PeakOccupants,
			Admitted:      eq.Admitted,
			Rejected:      eq.Rejected,
			Series:        s.util.Series[eq.ID],
		}
	}
	return res
}

// LatencySeconds converts a tick-valued latency distribution to seconds.
func (d Distribution) LatencySeconds() Distribution {
	out := d
	out.Mean /= TicksPerSecond
	out.Stdev /= TicksPerSecond
	out.P50 /= TicksPerSecond
	out.P95 /= TicksPerSecond
	out.P99 /= TicksPerSecond
	out.Min /= TicksPerSecond
	out.Max /= TicksPerSecond
	return out
}

// Print logs the result in a human-readable form.
func (r *Result) Print() {
	logrus.Infof("==== run %s (%s) ====", r.RunID, r.Scenario)
	logrus.Infof("policy=%s seed=%d ended=%d ticks events=%d", r.Policy, r.Seed, r.SimEndedTime, r.EventsDispatched)
	logrus.Infof("requests: created=%d completed=%d dropped=%d truncated=%d", r.Created, r.Completed, r.Dropped, r.Truncated)

	chainIDs := make([]string, 0, len(r.Chains))
	for id := range r.Chains {
		chainIDs = append(chainIDs, id)
	}
	sort.Strings(chainIDs)
	for _, id := range chainIDs {
		cs := r.Chains[id]
		logrus.Infof("chain %s: created=%d completed=%d dropped=%d truncated=%d", id, cs.Created, cs.Completed, cs.Dropped, cs.Truncated)
		if cs.Latency.Count > 0 {
			sec := cs.Latency.LatencySeconds()
			logrus.Infof("chain %s latency (s): mean=%.6f p50=%.6f p95=%.6f p99=%.6f max=%.6f",
				id, sec.Mean, sec.P50, sec.P95, sec.P99, sec.Max)
		}
		for reason, n := range cs.DropReasons {
			logrus.Infof("chain %s drops (%s): %d", id, reason, n)
		}
	}

	eqIDs := make([]string, 0, len(r.Equipment))
	for id := range r.Equipment {
		eqIDs = append(eqIDs, id)
	}
	sort.Strings(eqIDs)
	for _, id := range eqIDs {
		es := r.Equipment[id]
		logrus.Infof("equipment %s (%s/%s): util=%.4f peak=%d admitted=%d rejected=%d",
			id, es.NodeID, es.Kind, es.Utilization, es.PeakOccupants, es.Admitted, es.Rejected)
	}
}
