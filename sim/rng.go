package sim

import (
	"hash/fnv"
	"math/rand"
)

// SimulationKey uniquely identifies a reproducible simulation run.
// Two runs with the same SimulationKey and identical Scenario MUST produce
// bit-for-bit identical results.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

const (
	// SubsystemTraffic is the RNG subsystem feeding arrival generation.
	SubsystemTraffic = "traffic"

	// SubsystemPlacement is the RNG subsystem for placement policies that
	// want randomized tie-breaking.
	SubsystemPlacement = "placement"
)

// SubsystemChain returns the subsystem name for one chain's traffic stream,
// so each chain draws from an isolated, order-independent stream.
func SubsystemChain(chainID string) string {
	return "traffic_" + chainID
}

// PartitionedRNG provides deterministic, isolated RNG instances per
// subsystem. The subsystem seed derives from the master seed XOR a 64-bit
// FNV-1a hash of the subsystem name, so adding a subsystem never perturbs
// the streams of existing ones.
//
// Not safe for concurrent use; the event loop is single-threaded.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns the deterministically-seeded RNG for the named
// subsystem. The same name always returns the same *rand.Rand instance.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	derived := int64(p.key) ^ fnv1a64(name)
	rng := rand.New(rand.NewSource(derived))
	p.subsystems[name] = rng
	return rng
}

// SeedFor returns a derived seed for the named subsystem without allocating
// an RNG, for components that own their own rand.Rand (traffic generators).
func (p *PartitionedRNG) SeedFor(name string) int64 {
	return int64(p.key) ^ fnv1a64(name)
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
