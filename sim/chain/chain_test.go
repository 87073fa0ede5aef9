package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func linearChain() *ServiceChain {
	return New("checkout",
		&Stage{ID: "gateway", Demand: Demand{CPU: 1}, Successors: []string{"auth"}},
		&Stage{ID: "auth", Demand: Demand{CPU: 2}, Successors: []string{"payment"}},
		&Stage{ID: "payment", Demand: Demand{CPU: 3, DiskIO: 1}},
	)
}

func fanOutChain() *ServiceChain {
	// gateway fans out to inventory and pricing, which join at respond.
	return New("browse",
		&Stage{ID: "gateway", Demand: Demand{CPU: 1}, Successors: []string{"inventory", "pricing"}},
		&Stage{ID: "inventory", Demand: Demand{CPU: 2}, Successors: []string{"respond"}},
		&Stage{ID: "pricing", Demand: Demand{CPU: 1}, Successors: []string{"respond"}},
		&Stage{ID: "respond", Demand: Demand{CPU: 1}},
	)
}

func TestServiceChain_Validate_LinearChain_Passes(t *testing.T) {
	c := linearChain()
	assert.NoError(t, c.Validate())
	assert.Equal(t, "gateway", c.Entry())
	assert.True(t, c.IsTerminal("payment"))
	assert.False(t, c.IsTerminal("auth"))
}

func TestServiceChain_Validate_FanOutFanIn_Passes(t *testing.T) {
	c := fanOutChain()
	assert.NoError(t, c.Validate())

	// THEN the join stage sees both branches as predecessors
	assert.ElementsMatch(t, []string{"inventory", "pricing"}, c.Predecessors("respond"))
	assert.Empty(t, c.Predecessors("gateway"))
}

func TestServiceChain_Validate_Cycle_Fails(t *testing.T) {
	// GIVEN a -> b -> c -> a with a separate entry feeding the cycle
	c := New("loop",
		&Stage{ID: "entry", Successors: []string{"a"}},
		&Stage{ID: "a", Successors: []string{"b"}},
		&Stage{ID: "b", Successors: []string{"c"}},
		&Stage{ID: "c", Successors: []string{"a"}},
	)
	assert.ErrorContains(t, c.Validate(), "cycle")
}

func TestServiceChain_Validate_AllStagesInCycle_Fails(t *testing.T) {
	c := New("loop",
		&Stage{ID: "a", Successors: []string{"b"}},
		&Stage{ID: "b", Successors: []string{"a"}},
	)
	assert.ErrorContains(t, c.Validate(), "no entry stage")
}

func TestServiceChain_Validate_TwoEntries_Fails(t *testing.T) {
	c := New("split",
		&Stage{ID: "a", Successors: []string{"c"}},
		&Stage{ID: "b", Successors: []string{"c"}},
		&Stage{ID: "c"},
	)
	assert.ErrorContains(t, c.Validate(), "entry stages")
}

func TestServiceChain_Validate_UnknownSuccessor_Fails(t *testing.T) {
	c := New("dangling", &Stage{ID: "a", Successors: []string{"ghost"}})
	assert.ErrorContains(t, c.Validate(), "unknown successor")
}

func TestServiceChain_Validate_DuplicateStage_Fails(t *testing.T) {
	c := New("dup",
		&Stage{ID: "a", Successors: []string{"b"}},
		&Stage{ID: "b"},
		&Stage{ID: "a"},
	)
	assert.ErrorContains(t, c.Validate(), "more than once")
}

func TestServiceChain_Validate_NegativeDemand_Fails(t *testing.T) {
	c := New("neg", &Stage{ID: "a", Demand: Demand{CPU: -1}})
	assert.ErrorContains(t, c.Validate(), "negative demand")
}

func TestServiceChain_Validate_SelfEdge_Fails(t *testing.T) {
	c := New("self",
		&Stage{ID: "a", Successors: []string{"a", "b"}},
		&Stage{ID: "b"},
	)
	assert.ErrorContains(t, c.Validate(), "self-edge")
}

func TestServiceChain_Validate_DuplicateEdge_Fails(t *testing.T) {
	c := New("twice",
		&Stage{ID: "a", Successors: []string{"b", "b"}},
		&Stage{ID: "b"},
	)
	assert.ErrorContains(t, c.Validate(), "twice")
}

func TestServiceChain_Validate_Empty_Fails(t *testing.T) {
	assert.ErrorContains(t, New("empty").Validate(), "no stages")
	assert.ErrorContains(t, New("", &Stage{ID: "a"}).Validate(), "empty ID")
}

func TestServiceChain_Stages_PreserveConstructionOrder(t *testing.T) {
	c := linearChain()
	got := make([]string, 0, c.Len())
	for _, st := range c.Stages() {
		got = append(got, st.ID)
	}
	assert.Equal(t, []string{"gateway", "auth", "payment"}, got)
}
