package sim

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/michelgokan/perfsim/sim/chain"
	"github.com/michelgokan/perfsim/sim/equipment"
	"github.com/michelgokan/perfsim/sim/placement"
	"github.com/michelgokan/perfsim/sim/traffic"
)

// jobBinding ties an equipment job back to the simulation entity it serves:
// either a stage's resource job or a cross-node transmission.
type jobBinding struct {
	req     *Request
	stageID string

	// Transmission bindings: the sub-flow moves to nextStageID after the
	// network job completes plus pathDelay ticks of link transit.
	transmission bool
	nextStageID  string
	pathDelay    int64
}

// Simulation owns the event queue, the live request set, and the clock of
// one run. All state mutation happens inside event processing in
// non-decreasing timestamp order, so no locking exists anywhere in the run.
//
// Parallelism is expressed only as independent Simulation instances; they
// share no mutable state.
type Simulation struct {
	scenario *Scenario
	chains   map[string]*chain.ServiceChain

	clock int64
	heap  *eventHeap
	seq   uint64

	rng        *PartitionedRNG
	decision   *placement.Decision
	generators []traffic.Generator

	requests   map[string]*Request
	reqCounter map[string]int
	bindings   map[string]*jobBinding

	// serviceEvents holds the single pending completion event per equipment.
	serviceEvents map[string]*EventHandle

	observers []Observer
	kpi       *KPIObserver
	util      *UtilizationObserver

	inFlight  int
	created   int
	completed int
	dropped   int
	truncated int

	eventsDispatched int64
	stopped          atomic.Bool
	ran              bool
}

// New validates the scenario, computes the initial placement, and returns a
// ready-to-run simulation. Validation errors and scheduling failures are
// returned here, before any event exists; Run can no longer fail that way.
func New(sc *Scenario) (*Simulation, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	decision, err := sc.Policy.Place(sc.Chains, sc.Cluster)
	if err != nil {
		return nil, err
	}
	if err := decision.Covers(sc.Chains); err != nil {
		return nil, err
	}

	s := &Simulation{
		scenario:      sc,
		chains:        make(map[string]*chain.ServiceChain, len(sc.Chains)),
		heap:          newEventHeap(),
		rng:           NewPartitionedRNG(NewSimulationKey(sc.Seed)),
		decision:      decision,
		requests:      make(map[string]*Request),
		reqCounter:    make(map[string]int),
		bindings:      make(map[string]*jobBinding),
		serviceEvents: make(map[string]*EventHandle),
		kpi:           NewKPIObserver(),
		util:          NewUtilizationObserver(),
	}
	for _, c := range sc.Chains {
		s.chains[c.ID] = c
	}
	s.observers = []Observer{s.kpi, s.util}

	if err := s.checkAdjacency(decision); err != nil {
		return nil, err
	}

	s.generators, err = sc.generators(s.rng)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// checkAdjacency verifies that every cross-node stage edge has a link path,
// so transit delays are always resolvable once events start flowing.
func (s *Simulation) checkAdjacency(d *placement.Decision) error {
	for _, c := range s.scenario.Chains {
		for _, st := range c.Stages() {
			from, _ := d.Assignment(c.ID, st.ID)
			for _, succID := range st.Successors {
				to, _ := d.Assignment(c.ID, succID)
				if from.NodeID == to.NodeID {
					continue
				}
				if !s.scenario.Cluster.Reachable(from.NodeID, to.NodeID) {
					return &placement.SchedulingFailure{
						Chain:  c.ID,
						Stage:  st.ID,
						Reason: fmt.Sprintf("no link path from node %q to node %q for successor %q", from.NodeID, to.NodeID, succID),
					}
				}
			}
		}
	}
	return nil
}

// AttachObserver registers an additional observer. Must be called before
// Run; observers are invoked synchronously and must not mutate sim state.
func (s *Simulation) AttachObserver(o Observer) {
	s.observers = append(s.observers, o)
}

// Clock returns the current simulated tick.
func (s *Simulation) Clock() int64 {
	return s.clock
}

// Stop requests a cooperative abort. The flag is honored between event
// dispatches: the in-progress event always completes atomically first, so a
// stopped run is truncated, never corrupted. Safe to call from another
// goroutine.
func (s *Simulation) Stop() {
	s.stopped.Store(true)
}

// schedule inserts an event. Scheduling into the past is an engine bug, not
// an input error, hence the panic.
func (s *Simulation) schedule(ev Event) *EventHandle {
	if ev.Timestamp() < s.clock {
		panic(fmt.Sprintf("sim: event scheduled at %d before clock %d", ev.Timestamp(), s.clock))
	}
	s.seq++
	return s.heap.schedule(ev, s.seq)
}

// Cancel removes a pending event. Cancelling an already-dispatched (or
// already-cancelled) event is a no-op returning false.
func (s *Simulation) Cancel(h *EventHandle) bool {
	return s.heap.cancel(h)
}

// notify fans a lifecycle notification out to all observers, synchronously,
// after the event's mutation and before the clock advances further.
func (s *Simulation) notify(kind EventKind, pl Payload) {
	for _, o := range s.observers {
		o.OnEvent(kind, pl)
	}
}

// Run executes the event loop until the queue drains, the horizon is
// crossed, or Stop is called, and returns the aggregated result. A
// Simulation runs once.
func (s *Simulation) Run() (*Result, error) {
	if s.ran {
		return nil, fmt.Errorf("sim: simulation already ran; build a new one per run")
	}
	s.ran = true

	horizon := s.scenario.Horizon
	logrus.Infof("starting run %q: %d chains, %d nodes, policy=%s, seed=%d, horizon=%d",
		s.scenario.Name, len(s.scenario.Chains), len(s.scenario.Cluster.Nodes()), s.decision.Policy, s.scenario.Seed, horizon)

	// Re-placement events are primed before any arrival so that at a tied
	// tick the new decision is installed first and governs the requests
	// created at that tick.
	for _, tick := range s.scenario.replacementTicks() {
		if horizon > 0 && tick > horizon {
			continue
		}
		s.schedule(&replacementEvent{at: tick})
	}
	// Prime one arrival per generator; each arrival schedules its successor.
	for _, gen := range s.generators {
		if arr, ok := gen.Next(); ok {
			s.schedule(&arrivalEvent{at: arr.Timestamp, gen: gen})
		}
	}

	for {
		if s.stopped.Load() {
			logrus.Warnf("[tick %07d] run %q stopped by caller", s.clock, s.scenario.Name)
			break
		}
		handle := s.heap.popNext()
		if handle == nil {
			break
		}
		at := handle.ev.Timestamp()
		if horizon > 0 && at > horizon {
			// The run window closes at the horizon even when no event
			// lands exactly on it.
			s.clock = horizon
			break
		}
		if at < s.clock {
			panic(fmt.Sprintf("sim: clock went backwards: %d < %d", at, s.clock))
		}
		s.clock = at
		s.eventsDispatched++
		handle.ev.Execute(s)
	}

	end := s.clock
	s.truncateInFlight(end)
	logrus.Infof("[tick %07d] run %q ended: created=%d completed=%d dropped=%d truncated=%d events=%d",
		s.clock, s.scenario.Name, s.created, s.completed, s.dropped, s.truncated, s.eventsDispatched)

	return s.buildResult(end), nil
}

// truncateInFlight retires every request still live when the run window
// closes (horizon crossed or Stop called). Truncated requests are neither
// completed nor dropped: they get their own bucket so created always equals
// completed + dropped + truncated. IDs are sorted so the notification order
// is reproducible.
func (s *Simulation) truncateInFlight(end int64) {
	if s.inFlight == 0 {
		return
	}
	ids := make([]string, 0, s.inFlight)
	for id, req := range s.requests {
		if !req.Terminal() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		req := s.requests[id]
		req.State = StateTruncated
		req.EndedAt = end
		s.inFlight--
		s.truncated++
		logrus.Debugf("[tick %07d] request %s truncated at run end", end, req.ID)
		s.notify(KindRequestTruncated, Payload{Time: end, RequestID: req.ID, ChainID: req.ChainID})
	}
}

// === Event handlers ===

// handleArrival allocates a request under the current placement decision and
// either admits it at the chain's entry stage or drops it at the ceiling.
func (s *Simulation) handleArrival(chainID string, now int64) {
	c := s.chains[chainID]
	s.reqCounter[chainID]++
	req := newRequest(fmt.Sprintf("%s-%06d", chainID, s.reqCounter[chainID]), chainID, now, s.decision)
	s.requests[req.ID] = req
	s.created++
	s.inFlight++
	s.notify(KindRequestCreated, Payload{Time: now, RequestID: req.ID, ChainID: chainID})

	if s.scenario.MaxInFlight > 0 && s.inFlight > s.scenario.MaxInFlight {
		s.drop(req, DropReasonAdmission, now)
		return
	}
	s.schedule(&stageArrivalEvent{at: now, req: req, stageID: c.Entry()})
}

// handleStageArrival runs the fan-in gate, then admits the stage's demand.
func (s *Simulation) handleStageArrival(req *Request, stageID string, now int64) {
	if req.Terminal() {
		return
	}
	c := s.chains[req.ChainID]

	if preds := c.Predecessors(stageID); len(preds) > 1 {
		ready, joinAt := req.noteJoinArrival(stageID, now, len(preds))
		if !ready {
			return
		}
		// All sub-flows merge into one; the join admits at the latest
		// arrival, which is exactly now.
		req.activeFlows -= len(preds) - 1
		now = joinAt
	}
	s.admitStage(req, stageID, now)
}

// admitStage places the stage's node-local demand (CPU, disk) onto the
// assigned equipment. A saturation rejection on any component drops the
// whole request.
func (s *Simulation) admitStage(req *Request, stageID string, now int64) {
	c := s.chains[req.ChainID]
	st := c.Stage(stageID)
	assign, ok := req.decision.Assignment(req.ChainID, stageID)
	if !ok {
		// Covers() runs before the first event; an uncovered stage here is
		// an engine bug.
		panic(fmt.Sprintf("sim: stage %s/%s has no assignment", req.ChainID, stageID))
	}

	type component struct {
		kind  equipment.Kind
		units float64
	}
	components := []component{}
	if st.Demand.CPU > 0 {
		components = append(components, component{equipment.KindCPU, st.Demand.CPU})
	}
	if st.Demand.DiskIO > 0 {
		components = append(components, component{equipment.KindDisk, st.Demand.DiskIO})
	}

	s.notify(KindStageAdmitted, Payload{Time: now, RequestID: req.ID, ChainID: req.ChainID, StageID: stageID, NodeID: assign.NodeID})

	if len(components) == 0 {
		// Pure forwarding stage: nothing to occupy locally.
		s.stageComplete(req, stageID, now)
		return
	}

	for _, comp := range components {
		eq := s.equipmentFor(assign, comp.kind)
		jobID := req.ID + "/" + stageID + "/" + string(comp.kind)
		if err := eq.Admit(now, jobID, comp.units); err != nil {
			logrus.Debugf("[tick %07d] %s rejected %s: %v", now, eq.ID, jobID, err)
			s.drop(req, DropReasonOverload, now)
			return
		}
		req.outstandingJobs[stageID]++
		s.bindings[jobID] = &jobBinding{req: req, stageID: stageID}
		s.touchEquipment(eq, now)
		s.sampleEquipment(eq, now)
	}
}

// handleService releases every occupant finished at now on one equipment and
// routes the consequences: stage-resource jobs count down toward stage
// completion, transmission jobs deliver the sub-flow to the next stage after
// the link transit delay.
func (s *Simulation) handleService(eq *equipment.Equipment, now int64) {
	s.serviceEvents[eq.ID] = nil

	for _, jobID := range eq.Finish(now) {
		binding := s.bindings[jobID]
		delete(s.bindings, jobID)
		if binding == nil || binding.req.Terminal() {
			continue
		}
		if binding.transmission {
			s.schedule(&stageArrivalEvent{
				at:      now + binding.pathDelay,
				req:     binding.req,
				stageID: binding.nextStageID,
			})
			continue
		}
		binding.req.outstandingJobs[binding.stageID]--
		if binding.req.outstandingJobs[binding.stageID] == 0 {
			s.stageComplete(binding.req, binding.stageID, now)
		}
	}

	s.sampleEquipment(eq, now)
	s.touchEquipment(eq, now)
}

// stageComplete advances the request past a finished stage: terminal stages
// retire the sub-flow, fan-outs spawn one sub-flow per successor edge.
func (s *Simulation) stageComplete(req *Request, stageID string, now int64) {
	c := s.chains[req.ChainID]
	st := c.Stage(stageID)
	s.notify(KindStageCompleted, Payload{Time: now, RequestID: req.ID, ChainID: req.ChainID, StageID: stageID})

	if len(st.Successors) == 0 {
		req.activeFlows--
		if req.activeFlows == 0 {
			s.complete(req, now)
		}
		return
	}

	req.activeFlows += len(st.Successors) - 1
	for _, succID := range st.Successors {
		s.routeEdge(req, stageID, succID, now)
		if req.Terminal() {
			// A transmission rejection dropped the request; remaining
			// edges are moot.
			return
		}
	}
}

// routeEdge moves one sub-flow along a chain edge. Same-node edges admit
// immediately; cross-node edges occupy the source node's network equipment
// with the stage's byte demand, then pay the link path delay.
func (s *Simulation) routeEdge(req *Request, fromStageID, toStageID string, now int64) {
	from, _ := req.decision.Assignment(req.ChainID, fromStageID)
	to, _ := req.decision.Assignment(req.ChainID, toStageID)

	if from.NodeID == to.NodeID {
		s.schedule(&stageArrivalEvent{at: now, req: req, stageID: toStageID})
		return
	}

	bytes := s.chains[req.ChainID].Stage(fromStageID).Demand.NetBytes
	pathDelay, err := s.scenario.Cluster.TransitDelay(from.NodeID, to.NodeID, bytes)
	if err != nil {
		// Reachability was checked against the decision before the run;
		// hitting this means the topology and decision disagree.
		panic(fmt.Sprintf("sim: unroutable edge %s/%s -> %s: %v", req.ChainID, fromStageID, toStageID, err))
	}

	netEq := s.equipmentFor(from, equipment.KindNet)
	if bytes <= 0 || netEq == nil {
		s.schedule(&stageArrivalEvent{at: now + pathDelay, req: req, stageID: toStageID})
		return
	}

	jobID := req.ID + "/" + fromStageID + "->" + toStageID + "/net"
	if err := netEq.Admit(now, jobID, bytes); err != nil {
		logrus.Debugf("[tick %07d] %s rejected transmission %s: %v", now, netEq.ID, jobID, err)
		s.drop(req, DropReasonOverload, now)
		return
	}
	s.bindings[jobID] = &jobBinding{
		req:          req,
		stageID:      fromStageID,
		transmission: true,
		nextStageID:  toStageID,
		pathDelay:    pathDelay,
	}
	s.touchEquipment(netEq, now)
	s.sampleEquipment(netEq, now)
}

// handleReplacement recomputes placement mid-run. Failure keeps the previous
// decision: in-flight and future requests stay schedulable, and the miss is
// visible in the log rather than aborting a half-finished run.
func (s *Simulation) handleReplacement(now int64) {
	decision, err := s.scenario.Policy.Place(s.scenario.Chains, s.scenario.Cluster)
	if err != nil {
		logrus.Warnf("[tick %07d] re-placement failed, keeping previous decision: %v", now, err)
		return
	}
	if err := decision.Covers(s.scenario.Chains); err != nil {
		logrus.Warnf("[tick %07d] re-placement incomplete, keeping previous decision: %v", now, err)
		return
	}
	if err := s.checkAdjacency(decision); err != nil {
		logrus.Warnf("[tick %07d] re-placement unroutable, keeping previous decision: %v", now, err)
		return
	}
	decision.EffectiveFrom = now
	s.decision = decision
	logrus.Infof("[tick %07d] placement recomputed (policy=%s); governs requests created from here on", now, decision.Policy)
	s.notify(KindPlacementUpdated, Payload{Time: now})
}

// equipmentFor resolves the equipment serving one demanded kind of an
// assignment. The decision's per-kind equipment pin wins when it names a
// known ID; assignments without a pin (custom policies) fall back to the
// assigned node's equipment of that kind.
func (s *Simulation) equipmentFor(assign placement.Assignment, kind equipment.Kind) *equipment.Equipment {
	if id, ok := assign.Equipment[kind]; ok {
		if eq := s.scenario.Cluster.EquipmentByID(id); eq != nil {
			return eq
		}
	}
	node := s.scenario.Cluster.Node(assign.NodeID)
	if node == nil {
		return nil
	}
	return node.Equipment(kind)
}

// touchEquipment re-derives the single pending completion event of an
// equipment after its occupant set changed.
func (s *Simulation) touchEquipment(eq *equipment.Equipment, now int64) {
	if h := s.serviceEvents[eq.ID]; h != nil {
		s.Cancel(h)
		s.serviceEvents[eq.ID] = nil
	}
	if next, ok := eq.NextCompletion(now); ok {
		s.serviceEvents[eq.ID] = s.schedule(&serviceEvent{at: next, eq: eq})
	}
}

// sampleEquipment publishes a utilization sample for observers.
func (s *Simulation) sampleEquipment(eq *equipment.Equipment, now int64) {
	s.notify(KindEquipmentSampled, Payload{
		Time:        now,
		NodeID:      eq.NodeID,
		EquipmentID: eq.ID,
		Utilization: eq.Utilization(now),
		Occupants:   eq.Occupants(),
	})
}

func (s *Simulation) complete(req *Request, now int64) {
	req.State = StateCompleted
	req.EndedAt = now
	s.inFlight--
	s.completed++
	logrus.Debugf("[tick %07d] request %s completed, latency=%d ticks", now, req.ID, req.Latency())
	s.notify(KindRequestCompleted, Payload{
		Time:      now,
		RequestID: req.ID,
		ChainID:   req.ChainID,
		Latency:   req.Latency(),
	})
}

func (s *Simulation) drop(req *Request, reason string, now int64) {
	if req.Terminal() {
		return
	}
	req.State = StateDropped
	req.EndedAt = now
	req.DropReason = reason
	s.inFlight--
	s.dropped++
	logrus.Debugf("[tick %07d] request %s dropped: %s", now, req.ID, reason)
	s.notify(KindRequestDropped, Payload{
		Time:      now,
		RequestID: req.ID,
		ChainID:   req.ChainID,
		Reason:    reason,
	})
}

// Requests exposes the request table for tests and observers that run after
// the loop has stopped.
func (s *Simulation) Requests() map[string]*Request {
	return s.requests
}
