// Package placement maps service-chain stages onto cluster equipment.
//
// Policies are pluggable behind a single interface; the engine computes one
// PlacementDecision before the first event is scheduled and optionally again
// at re-placement ticks. An infeasible placement is a SchedulingFailure that
// refuses the run, never a silent zero-throughput simulation.
package placement

import (
	"fmt"

	"github.com/michelgokan/perfsim/sim/chain"
	"github.com/michelgokan/perfsim/sim/equipment"
)

// Policy chooses a node (and thereby its equipment) for every stage of every
// chain, given the cluster's declared capacities.
type Policy interface {
	Name() string
	Place(chains []*chain.ServiceChain, cluster *equipment.Cluster) (*Decision, error)
}

// Assignment resolves one stage: the node it runs on, and the equipment IDs
// serving each demanded resource kind on that node.
type Assignment struct {
	NodeID    string
	Equipment map[equipment.Kind]string
}

// Decision maps every (chain, stage) pair to an Assignment. A stage lookup
// miss is a hard error in the engine: an uncovered stage is a scheduling
// failure, not a no-op.
type Decision struct {
	Policy        string
	EffectiveFrom int64

	assignments map[string]Assignment
}

// NewDecision creates an empty decision attributed to a policy.
func NewDecision(policy string) *Decision {
	return &Decision{
		Policy:      policy,
		assignments: make(map[string]Assignment),
	}
}

func stageKey(chainID, stageID string) string {
	return chainID + "/" + stageID
}

// Assign records the assignment for one stage.
func (d *Decision) Assign(chainID, stageID string, a Assignment) {
	d.assignments[stageKey(chainID, stageID)] = a
}

// Assignment returns the assignment for a stage, with ok=false when the
// stage is uncovered.
func (d *Decision) Assignment(chainID, stageID string) (Assignment, bool) {
	a, ok := d.assignments[stageKey(chainID, stageID)]
	return a, ok
}

// Covers verifies that every stage of every chain is assigned. The engine
// calls this after Place as a guard against buggy policies.
func (d *Decision) Covers(chains []*chain.ServiceChain) error {
	for _, c := range chains {
		for _, st := range c.Stages() {
			if _, ok := d.Assignment(c.ID, st.ID); !ok {
				return &SchedulingFailure{
					Chain:  c.ID,
					Stage:  st.ID,
					Reason: fmt.Sprintf("policy %q left the stage unassigned", d.Policy),
				}
			}
		}
	}
	return nil
}

// SchedulingFailure reports that no feasible assignment exists for a stage.
// It carries enough detail to identify the offending stage and resource kind,
// and is a distinct type from validation errors: chain shape is fine, the
// topology and demand are not.
type SchedulingFailure struct {
	Chain  string
	Stage  string
	Kind   equipment.Kind
	Reason string
}

func (f *SchedulingFailure) Error() string {
	if f.Kind != "" {
		return fmt.Sprintf("scheduling failure: chain %q stage %q (%s): %s", f.Chain, f.Stage, f.Kind, f.Reason)
	}
	return fmt.Sprintf("scheduling failure: chain %q stage %q: %s", f.Chain, f.Stage, f.Reason)
}

// demandByKind expands a stage's demand vector into the equipment kinds it
// occupies. NetBytes is included because the stage's node must own network
// equipment to send over when the outgoing edge crosses nodes.
func demandByKind(st *chain.Stage) map[equipment.Kind]float64 {
	out := make(map[equipment.Kind]float64, 3)
	if st.Demand.CPU > 0 {
		out[equipment.KindCPU] = st.Demand.CPU
	}
	if st.Demand.DiskIO > 0 {
		out[equipment.KindDisk] = st.Demand.DiskIO
	}
	if st.Demand.NetBytes > 0 {
		out[equipment.KindNet] = st.Demand.NetBytes
	}
	return out
}

// kindOrder fixes the iteration order over demand kinds so that scoring and
// failure reporting are deterministic.
var kindOrder = []equipment.Kind{equipment.KindCPU, equipment.KindDisk, equipment.KindNet}

// tracker keeps per-equipment free capacity during a placement pass.
// Each placed stage reserves its demand, the requests/limits way: a stage
// fits on a node only if every demanded kind still has room.
type tracker struct {
	cluster *equipment.Cluster
	free    map[string]float64 // equipment ID → unreserved capacity
}

func newTracker(cluster *equipment.Cluster) *tracker {
	t := &tracker{cluster: cluster, free: make(map[string]float64)}
	for _, eq := range cluster.Equipment() {
		t.free[eq.ID] = eq.Capacity
	}
	return t
}

// fits reports whether the node can hold the stage's demand, and how.
func (t *tracker) fits(nodeID string, demand map[equipment.Kind]float64) (map[equipment.Kind]string, bool) {
	node := t.cluster.Node(nodeID)
	if node == nil {
		return nil, false
	}
	eqIDs := make(map[equipment.Kind]string, len(demand))
	for _, kind := range kindOrder {
		units, wanted := demand[kind]
		if !wanted {
			continue
		}
		eq := node.Equipment(kind)
		if eq == nil || t.free[eq.ID] < units {
			return nil, false
		}
		eqIDs[kind] = eq.ID
	}
	return eqIDs, true
}

// reserve commits the stage's demand on the node.
func (t *tracker) reserve(nodeID string, demand map[equipment.Kind]float64) {
	node := t.cluster.Node(nodeID)
	for kind, units := range demand {
		if eq := node.Equipment(kind); eq != nil {
			t.free[eq.ID] -= units
		}
	}
}

// freeFraction scores a node by the smallest remaining capacity fraction
// across the demanded kinds, after hypothetically placing the stage there.
func (t *tracker) freeFraction(nodeID string, demand map[equipment.Kind]float64) float64 {
	node := t.cluster.Node(nodeID)
	score := 1.0
	for _, kind := range kindOrder {
		units, wanted := demand[kind]
		if !wanted {
			continue
		}
		eq := node.Equipment(kind)
		frac := (t.free[eq.ID] - units) / eq.Capacity
		if frac < score {
			score = frac
		}
	}
	return score
}

// infeasible builds the SchedulingFailure for a stage no node can hold,
// naming the first demanded kind that failed everywhere.
func (t *tracker) infeasible(c *chain.ServiceChain, st *chain.Stage, demand map[equipment.Kind]float64) *SchedulingFailure {
	for _, kind := range kindOrder {
		units, wanted := demand[kind]
		if !wanted {
			continue
		}
		anyFits := false
		for _, node := range t.cluster.Nodes() {
			if eq := node.Equipment(kind); eq != nil && t.free[eq.ID] >= units {
				anyFits = true
				break
			}
		}
		if !anyFits {
			return &SchedulingFailure{
				Chain:  c.ID,
				Stage:  st.ID,
				Kind:   kind,
				Reason: fmt.Sprintf("demand %.3f exceeds remaining %s capacity on every node", units, kind),
			}
		}
	}
	// Per-kind capacity exists somewhere but no single node holds all kinds.
	return &SchedulingFailure{
		Chain:  c.ID,
		Stage:  st.ID,
		Reason: "no single node satisfies the full demand vector",
	}
}

// NewPolicy returns the named built-in policy. Recognized names:
// "binpack", "roundrobin", "latency".
func NewPolicy(name string) (Policy, error) {
	switch name {
	case "binpack", "":
		return &BinPacking{}, nil
	case "roundrobin":
		return &RoundRobin{}, nil
	case "latency":
		return &LatencyAware{}, nil
	default:
		return nil, fmt.Errorf("unknown placement policy %q", name)
	}
}
