package placement

import (
	"github.com/michelgokan/perfsim/sim/chain"
	"github.com/michelgokan/perfsim/sim/equipment"
)

// RoundRobin cycles through the cluster's nodes in insertion order, placing
// each stage on the next node that can hold it. A node that cannot fit the
// stage is skipped; a full cycle without a fit is a SchedulingFailure.
type RoundRobin struct {
	cursor int
}

func (p *RoundRobin) Name() string { return "roundrobin" }

func (p *RoundRobin) Place(chains []*chain.ServiceChain, cluster *equipment.Cluster) (*Decision, error) {
	decision := NewDecision(p.Name())
	t := newTracker(cluster)
	nodes := cluster.Nodes()

	for _, c := range chains {
		for _, st := range c.Stages() {
			demand := demandByKind(st)

			placed := false
			for attempt := 0; attempt < len(nodes); attempt++ {
				node := nodes[p.cursor%len(nodes)]
				p.cursor++
				eqIDs, ok := t.fits(node.ID, demand)
				if !ok {
					continue
				}
				t.reserve(node.ID, demand)
				decision.Assign(c.ID, st.ID, Assignment{NodeID: node.ID, Equipment: eqIDs})
				placed = true
				break
			}
			if !placed {
				return nil, t.infeasible(c, st, demand)
			}
		}
	}
	return decision, nil
}
