// Package chain models service chains: directed acyclic graphs of stages,
// each stage carrying the resource demand one request places on the
// equipment it is assigned to.
package chain

import "fmt"

// Demand is the resource-demand vector of a single stage, per request.
// CPU is in compute units (e.g. millicore-seconds), DiskIO in IO units,
// NetBytes in bytes transferred to the next stage when the edge crosses nodes.
type Demand struct {
	CPU      float64
	DiskIO   float64
	NetBytes float64
}

// Stage is one node of a service chain DAG. Successors name the stages the
// request moves to after this stage completes: zero successors mark a
// terminal stage, more than one is a fan-out.
type Stage struct {
	ID         string
	Demand     Demand
	Successors []string
}

// ServiceChain is a validated DAG of stages with exactly one entry stage.
// Construction order of stages is preserved so that iteration is
// deterministic across runs.
type ServiceChain struct {
	ID string

	stages map[string]*Stage
	order  []string
	preds  map[string][]string
	entry  string
	dups   []string
}

// New builds a ServiceChain from stages. Structural properties (single entry,
// acyclicity, reachability) are checked by Validate, not here, so callers can
// assemble chains incrementally and validate once.
func New(id string, stages ...*Stage) *ServiceChain {
	c := &ServiceChain{
		ID:     id,
		stages: make(map[string]*Stage, len(stages)),
		preds:  make(map[string][]string),
	}
	for _, st := range stages {
		if _, dup := c.stages[st.ID]; dup {
			// Keep the first definition; Validate reports the duplicate.
			c.dups = append(c.dups, st.ID)
			continue
		}
		c.stages[st.ID] = st
		c.order = append(c.order, st.ID)
	}
	for _, id := range c.order {
		for _, succ := range c.stages[id].Successors {
			c.preds[succ] = append(c.preds[succ], id)
		}
	}
	return c
}

// Stage returns the stage with the given ID, or nil.
func (c *ServiceChain) Stage(id string) *Stage {
	return c.stages[id]
}

// Stages returns all stages in construction order.
func (c *ServiceChain) Stages() []*Stage {
	out := make([]*Stage, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.stages[id])
	}
	return out
}

// Len returns the number of stages.
func (c *ServiceChain) Len() int {
	return len(c.order)
}

// Entry returns the ID of the unique entry stage. Only meaningful after a
// successful Validate.
func (c *ServiceChain) Entry() string {
	return c.entry
}

// Predecessors returns the IDs of stages with an edge into the given stage.
// A result longer than one marks a fan-in stage.
func (c *ServiceChain) Predecessors(id string) []string {
	return c.preds[id]
}

// IsTerminal reports whether the stage has no outgoing edges.
func (c *ServiceChain) IsTerminal(id string) bool {
	st := c.stages[id]
	return st != nil && len(st.Successors) == 0
}

// Validate checks the chain invariants: no duplicate or dangling stage
// references, non-negative demand, exactly one entry stage, at least one
// terminal stage, no cycles, and every stage reachable from the entry.
// The first violation found is returned.
func (c *ServiceChain) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("chain has empty ID")
	}
	if len(c.order) == 0 {
		return fmt.Errorf("chain %q has no stages", c.ID)
	}
	if len(c.dups) > 0 {
		return fmt.Errorf("chain %q declares stage %q more than once", c.ID, c.dups[0])
	}

	for _, id := range c.order {
		st := c.stages[id]
		if st.Demand.CPU < 0 || st.Demand.DiskIO < 0 || st.Demand.NetBytes < 0 {
			return fmt.Errorf("chain %q stage %q has negative demand", c.ID, id)
		}
		seen := make(map[string]bool, len(st.Successors))
		for _, succ := range st.Successors {
			if _, ok := c.stages[succ]; !ok {
				return fmt.Errorf("chain %q stage %q references unknown successor %q", c.ID, id, succ)
			}
			if succ == id {
				return fmt.Errorf("chain %q stage %q has a self-edge", c.ID, id)
			}
			if seen[succ] {
				return fmt.Errorf("chain %q stage %q lists successor %q twice", c.ID, id, succ)
			}
			seen[succ] = true
		}
	}

	// Exactly one entry stage (no predecessors).
	var entries []string
	for _, id := range c.order {
		if len(c.preds[id]) == 0 {
			entries = append(entries, id)
		}
	}
	switch len(entries) {
	case 0:
		return fmt.Errorf("chain %q has no entry stage (every stage has a predecessor: cycle)", c.ID)
	case 1:
		c.entry = entries[0]
	default:
		return fmt.Errorf("chain %q has %d entry stages (%v), want exactly one", c.ID, len(entries), entries)
	}

	if err := c.checkAcyclic(); err != nil {
		return err
	}

	// Every stage must be reachable from the entry, otherwise its demand
	// could never be exercised and fan-in joins on it would never fire.
	reached := make(map[string]bool, len(c.order))
	frontier := []string{c.entry}
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		if reached[id] {
			continue
		}
		reached[id] = true
		frontier = append(frontier, c.stages[id].Successors...)
	}
	for _, id := range c.order {
		if !reached[id] {
			return fmt.Errorf("chain %q stage %q is unreachable from entry %q", c.ID, id, c.entry)
		}
	}

	hasTerminal := false
	for _, id := range c.order {
		if len(c.stages[id].Successors) == 0 {
			hasTerminal = true
			break
		}
	}
	if !hasTerminal {
		return fmt.Errorf("chain %q has no terminal stage", c.ID)
	}

	return nil
}

// checkAcyclic runs Kahn's algorithm over the stage graph.
func (c *ServiceChain) checkAcyclic() error {
	indegree := make(map[string]int, len(c.order))
	for _, id := range c.order {
		indegree[id] = len(c.preds[id])
	}

	var ready []string
	for _, id := range c.order {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	visited := 0
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		visited++
		for _, succ := range c.stages[id].Successors {
			indegree[succ]--
			if indegree[succ] == 0 {
				ready = append(ready, succ)
			}
		}
	}

	if visited != len(c.order) {
		return fmt.Errorf("chain %q contains a cycle", c.ID)
	}
	return nil
}
