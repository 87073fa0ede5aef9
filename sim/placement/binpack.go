package placement

import (
	"github.com/sirupsen/logrus"

	"github.com/michelgokan/perfsim/sim/chain"
	"github.com/michelgokan/perfsim/sim/equipment"
)

// BinPacking greedily assigns each stage to the node with the most remaining
// relevant capacity, reserving the stage's demand as it goes. Ties break on
// node insertion order so placement is deterministic.
type BinPacking struct{}

func (p *BinPacking) Name() string { return "binpack" }

func (p *BinPacking) Place(chains []*chain.ServiceChain, cluster *equipment.Cluster) (*Decision, error) {
	decision := NewDecision(p.Name())
	t := newTracker(cluster)

	for _, c := range chains {
		for _, st := range c.Stages() {
			demand := demandByKind(st)

			bestNode := ""
			bestScore := 0.0
			var bestEq map[equipment.Kind]string
			for _, node := range cluster.Nodes() {
				eqIDs, ok := t.fits(node.ID, demand)
				if !ok {
					continue
				}
				score := t.freeFraction(node.ID, demand)
				if bestNode == "" || score > bestScore {
					bestNode, bestScore, bestEq = node.ID, score, eqIDs
				}
			}
			if bestNode == "" {
				return nil, t.infeasible(c, st, demand)
			}

			t.reserve(bestNode, demand)
			decision.Assign(c.ID, st.ID, Assignment{NodeID: bestNode, Equipment: bestEq})
			logrus.Debugf("binpack: %s/%s -> %s (free fraction %.3f)", c.ID, st.ID, bestNode, bestScore)
		}
	}
	return decision, nil
}
