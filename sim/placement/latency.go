package placement

import (
	"github.com/michelgokan/perfsim/sim/chain"
	"github.com/michelgokan/perfsim/sim/equipment"
)

// LatencyAware minimizes cross-node link hops between causally adjacent
// stages of the same chain: each stage prefers the node its predecessors
// landed on, then the feasible node with the fewest total hops to them.
// Entry stages (no placed predecessor) fall back to most-remaining-capacity
// scoring so the first stage does not always pile onto the first node.
type LatencyAware struct{}

func (p *LatencyAware) Name() string { return "latency" }

func (p *LatencyAware) Place(chains []*chain.ServiceChain, cluster *equipment.Cluster) (*Decision, error) {
	decision := NewDecision(p.Name())
	t := newTracker(cluster)

	for _, c := range chains {
		for _, st := range c.Stages() {
			demand := demandByKind(st)

			// Nodes of already-placed predecessors. Stages() iterates in
			// construction order, which Validate guarantees is consistent
			// with the DAG having a single entry; a predecessor not yet
			// placed simply doesn't contribute to the score.
			var predNodes []string
			for _, predID := range c.Predecessors(st.ID) {
				if a, ok := decision.Assignment(c.ID, predID); ok {
					predNodes = append(predNodes, a.NodeID)
				}
			}

			bestNode := ""
			bestHops := 0
			bestScore := 0.0
			var bestEq map[equipment.Kind]string
			for _, node := range cluster.Nodes() {
				eqIDs, ok := t.fits(node.ID, demand)
				if !ok {
					continue
				}
				hops, reachable := totalHops(cluster, node.ID, predNodes)
				if !reachable {
					continue
				}
				score := t.freeFraction(node.ID, demand)
				better := bestNode == "" ||
					hops < bestHops ||
					(hops == bestHops && score > bestScore)
				if better {
					bestNode, bestHops, bestScore, bestEq = node.ID, hops, score, eqIDs
				}
			}
			if bestNode == "" {
				return nil, t.infeasible(c, st, demand)
			}

			t.reserve(bestNode, demand)
			decision.Assign(c.ID, st.ID, Assignment{NodeID: bestNode, Equipment: bestEq})
		}
	}
	return decision, nil
}

// totalHops sums shortest-path hop counts from node to every predecessor
// node. Returns false when any predecessor is unreachable.
func totalHops(cluster *equipment.Cluster, node string, preds []string) (int, bool) {
	total := 0
	for _, p := range preds {
		h, err := cluster.HopCount(node, p)
		if err != nil {
			return 0, false
		}
		total += h
	}
	return total, true
}
