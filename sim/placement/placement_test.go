package placement

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/michelgokan/perfsim/sim/chain"
	"github.com/michelgokan/perfsim/sim/equipment"
)

func clusterWithCPUs(t *testing.T, capacities ...float64) *equipment.Cluster {
	t.Helper()
	c := equipment.NewCluster()
	var prev string
	for i, cap := range capacities {
		id := string(rune('a' + i))
		n, err := equipment.NewNode(id,
			equipment.New(id+"/cpu", id, equipment.KindCPU, cap, 0, equipment.RegimeSharedQueue))
		if err != nil {
			t.Fatalf("NewNode(%s): %v", id, err)
		}
		if err := c.AddNode(n); err != nil {
			t.Fatalf("AddNode(%s): %v", id, err)
		}
		if prev != "" {
			_ = c.AddLink(&equipment.Link{ID: prev + id, A: prev, B: id, Bandwidth: 1e6, Latency: 10})
		}
		prev = id
	}
	return c
}

func cpuChain(id string, demands ...float64) *chain.ServiceChain {
	stages := make([]*chain.Stage, len(demands))
	for i, d := range demands {
		st := &chain.Stage{ID: string(rune('s' + i)), Demand: chain.Demand{CPU: d}}
		if i > 0 {
			stages[i-1].Successors = []string{st.ID}
		}
		stages[i] = st
	}
	return chain.New(id, stages...)
}

func TestBinPacking_PrefersNodeWithMostHeadroom(t *testing.T) {
	// GIVEN nodes with 10 and 100 CPU units free
	cluster := clusterWithCPUs(t, 10, 100)
	chains := []*chain.ServiceChain{cpuChain("c1", 5)}

	// WHEN the single stage is placed
	d, err := (&BinPacking{}).Place(chains, cluster)

	// THEN it lands on the roomier node
	assert.NoError(t, err)
	a, ok := d.Assignment("c1", "s")
	assert.True(t, ok)
	assert.Equal(t, "b", a.NodeID)
	assert.Equal(t, "b/cpu", a.Equipment[equipment.KindCPU])
}

func TestBinPacking_ReservationsShiftLaterStages(t *testing.T) {
	// GIVEN two equal nodes and two stages that each fill half a node
	cluster := clusterWithCPUs(t, 10, 10)
	chains := []*chain.ServiceChain{cpuChain("c1", 6, 6)}

	d, err := (&BinPacking{}).Place(chains, cluster)
	assert.NoError(t, err)

	// THEN the second stage avoids the node the first one loaded
	a1, _ := d.Assignment("c1", "s")
	a2, _ := d.Assignment("c1", "t")
	assert.NotEqual(t, a1.NodeID, a2.NodeID)
}

func TestBinPacking_Infeasible_ReturnsSchedulingFailure(t *testing.T) {
	// GIVEN demand larger than any single node
	cluster := clusterWithCPUs(t, 10, 10)
	chains := []*chain.ServiceChain{cpuChain("c1", 25)}

	_, err := (&BinPacking{}).Place(chains, cluster)

	// THEN the failure names the chain, stage, and kind
	var sf *SchedulingFailure
	assert.ErrorAs(t, err, &sf)
	assert.Equal(t, "c1", sf.Chain)
	assert.Equal(t, "s", sf.Stage)
	assert.Equal(t, equipment.KindCPU, sf.Kind)
}

func TestBinPacking_MissingKind_ReturnsSchedulingFailure(t *testing.T) {
	// GIVEN a cluster with CPU-only nodes and a disk-demanding stage
	cluster := clusterWithCPUs(t, 100)
	chains := []*chain.ServiceChain{chain.New("c1",
		&chain.Stage{ID: "s", Demand: chain.Demand{CPU: 1, DiskIO: 5}})}

	_, err := (&BinPacking{}).Place(chains, cluster)

	var sf *SchedulingFailure
	assert.ErrorAs(t, err, &sf)
	assert.Equal(t, equipment.KindDisk, sf.Kind)
}

func TestRoundRobin_CyclesNodesInOrder(t *testing.T) {
	cluster := clusterWithCPUs(t, 100, 100, 100)
	chains := []*chain.ServiceChain{cpuChain("c1", 1, 1, 1)}

	d, err := (&RoundRobin{}).Place(chains, cluster)
	assert.NoError(t, err)

	var got []string
	for _, stage := range []string{"s", "t", "u"} {
		a, _ := d.Assignment("c1", stage)
		got = append(got, a.NodeID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestRoundRobin_SkipsFullNodes(t *testing.T) {
	// GIVEN a first node too small for any stage
	cluster := clusterWithCPUs(t, 1, 100)
	chains := []*chain.ServiceChain{cpuChain("c1", 5, 5)}

	d, err := (&RoundRobin{}).Place(chains, cluster)
	assert.NoError(t, err)

	for _, stage := range []string{"s", "t"} {
		a, _ := d.Assignment("c1", stage)
		assert.Equal(t, "b", a.NodeID)
	}
}

func TestLatencyAware_ColocatesAdjacentStages(t *testing.T) {
	// GIVEN three linked nodes with ample capacity
	cluster := clusterWithCPUs(t, 100, 100, 100)
	chains := []*chain.ServiceChain{cpuChain("c1", 1, 1, 1)}

	d, err := (&LatencyAware{}).Place(chains, cluster)
	assert.NoError(t, err)

	// THEN every stage shares its predecessor's node (zero hops is optimal)
	a1, _ := d.Assignment("c1", "s")
	a2, _ := d.Assignment("c1", "t")
	a3, _ := d.Assignment("c1", "u")
	assert.Equal(t, a1.NodeID, a2.NodeID)
	assert.Equal(t, a2.NodeID, a3.NodeID)
}

func TestLatencyAware_SpillsToNearestNodeWhenFull(t *testing.T) {
	// GIVEN node capacities that force the second stage off the first node
	cluster := clusterWithCPUs(t, 10, 10)
	chains := []*chain.ServiceChain{cpuChain("c1", 8, 8)}

	d, err := (&LatencyAware{}).Place(chains, cluster)
	assert.NoError(t, err)

	a1, _ := d.Assignment("c1", "s")
	a2, _ := d.Assignment("c1", "t")
	assert.NotEqual(t, a1.NodeID, a2.NodeID)

	// THEN the spill lands one hop away, not further
	hops, err := cluster.HopCount(a1.NodeID, a2.NodeID)
	assert.NoError(t, err)
	assert.Equal(t, 1, hops)
}

func TestDecision_Covers_ReportsUnassignedStage(t *testing.T) {
	chains := []*chain.ServiceChain{cpuChain("c1", 1, 1)}
	d := NewDecision("test")
	d.Assign("c1", "s", Assignment{NodeID: "a"})

	err := d.Covers(chains)

	var sf *SchedulingFailure
	assert.ErrorAs(t, err, &sf)
	assert.Equal(t, "t", sf.Stage)
}

func TestNewPolicy_ResolvesNamesAndRejectsUnknown(t *testing.T) {
	for name, want := range map[string]string{
		"":           "binpack",
		"binpack":    "binpack",
		"roundrobin": "roundrobin",
		"latency":    "latency",
	} {
		p, err := NewPolicy(name)
		assert.NoError(t, err)
		assert.Equal(t, want, p.Name())
	}
	_, err := NewPolicy("chaos")
	assert.ErrorContains(t, err, "unknown placement policy")
}
