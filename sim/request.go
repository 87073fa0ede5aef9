package sim

import "github.com/michelgokan/perfsim/sim/placement"

// RequestState is the lifecycle state of a request.
type RequestState string

const (
	StateActive    RequestState = "ACTIVE"
	StateCompleted RequestState = "COMPLETED"
	StateDropped   RequestState = "DROPPED"
	// StateTruncated marks a request still in flight when the run window
	// closed; it counts in neither the completed nor the dropped bucket.
	StateTruncated RequestState = "TRUNCATED"
)

// Drop reasons recorded on terminal requests and aggregated per chain.
const (
	DropReasonOverload  = "resource overload"
	DropReasonAdmission = "admission rejected"
)

// Request is one traversal instance of a service chain. Fan-out spawns
// concurrent sub-flows that all share this identity; the request completes
// when its last sub-flow reaches a terminal stage.
//
// The request pins the placement decision it was admitted under, so a
// re-placement mid-run never moves in-flight work.
type Request struct {
	ID        string
	ChainID   string
	CreatedAt int64
	// EndedAt is the completion or drop tick; latency is EndedAt-CreatedAt.
	EndedAt    int64
	State      RequestState
	DropReason string

	decision *placement.Decision

	// activeFlows counts live sub-flows: 1 at arrival, +k-1 on a k-way
	// fan-out, -(p-1) when p sub-flows join at a fan-in, -1 at a terminal.
	activeFlows int

	// outstandingJobs tracks, per stage, the resource jobs still running on
	// equipment. A stage completes when its count returns to zero.
	outstandingJobs map[string]int

	// joinArrived / joinReadyAt implement fan-in: arrivals seen per join
	// stage, and the latest arrival tick (the join's admission time).
	joinArrived map[string]int
	joinReadyAt map[string]int64
}

func newRequest(id, chainID string, now int64, decision *placement.Decision) *Request {
	return &Request{
		ID:              id,
		ChainID:         chainID,
		CreatedAt:       now,
		State:           StateActive,
		decision:        decision,
		activeFlows:     1,
		outstandingJobs: make(map[string]int),
		joinArrived:     make(map[string]int),
		joinReadyAt:     make(map[string]int64),
	}
}

// Terminal reports whether the request has finished (completed, dropped or
// truncated). Events still in flight for a terminal request are ignored by
// the engine.
func (r *Request) Terminal() bool {
	return r.State != StateActive
}

// Latency returns the end-to-end latency in ticks, valid once terminal.
func (r *Request) Latency() int64 {
	return r.EndedAt - r.CreatedAt
}

// noteJoinArrival records one predecessor sub-flow reaching a fan-in stage.
// It returns true when all expected predecessors have arrived, along with
// the join timestamp (the max of the arrival ticks).
func (r *Request) noteJoinArrival(stageID string, now int64, expected int) (bool, int64) {
	r.joinArrived[stageID]++
	if now > r.joinReadyAt[stageID] {
		r.joinReadyAt[stageID] = now
	}
	if r.joinArrived[stageID] < expected {
		return false, 0
	}
	readyAt := r.joinReadyAt[stageID]
	// Chains are DAGs: a join fires at most once per request.
	delete(r.joinArrived, stageID)
	delete(r.joinReadyAt, stageID)
	return true, readyAt
}
