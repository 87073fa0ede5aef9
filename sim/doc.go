// Package sim provides the discrete-event engine that predicts latency,
// throughput, and utilization of microservice chains running on a modeled
// cluster.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - event_heap.go: the event queue, deterministic (timestamp, sequence) ordering, cancellation
//   - request.go: Request lifecycle (active → completed/dropped) and fan-out flow accounting
//   - simulator.go: the event loop and the handlers that move requests through their chain
//
// # Architecture
//
// The sim package owns the clock, the event queue, and request routing;
// domain models live in sub-packages:
//   - sim/chain/: service-chain DAGs (stages, demand vectors, validation)
//   - sim/equipment/: contended resources (CPU, disk, network), nodes, links, cluster topology
//   - sim/placement/: stage-to-node assignment policies and placement decisions
//   - sim/traffic/: arrival processes (Poisson, periodic, trace replay)
//
// A run is: build a Scenario, call New (which validates and places), then
// Run. Observers receive every lifecycle notification synchronously; the
// built-in KPI and utilization observers feed the returned Result.
//
// # Determinism
//
// All randomness flows from the scenario seed through PartitionedRNG, each
// subsystem drawing from its own stream, and ties in the event queue break
// by insertion order. Two runs of the same scenario produce identical
// results, event for event.
package sim
