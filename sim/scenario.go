package sim

import (
	"fmt"
	"math"
	"sort"

	"github.com/michelgokan/perfsim/sim/chain"
	"github.com/michelgokan/perfsim/sim/equipment"
	"github.com/michelgokan/perfsim/sim/placement"
	"github.com/michelgokan/perfsim/sim/traffic"
)

// Traffic process names accepted in a TrafficProfile.
const (
	ProcessPoisson  = "poisson"
	ProcessPeriodic = "periodic"
	ProcessReplay   = "replay"
)

// TrafficProfile describes the arrival process of one chain. Stochastic
// processes draw their seed from the run's partitioned RNG, so the profile
// itself stays declarative.
type TrafficProfile struct {
	ChainID string
	Process string
	// Rate in requests per second; used by poisson and periodic.
	Rate float64
	// Offsets are the replay trace's arrival ticks; used by replay.
	Offsets []int64
	// MaxRequests bounds this chain's arrivals. Zero means bounded by the
	// scenario horizon only.
	MaxRequests int
}

// Scenario is the fully validated input of one simulation run: the cluster,
// the chains, a traffic profile per chain, a placement policy, and the run
// bounds. The core never reads files; front-ends assemble this value.
type Scenario struct {
	Name    string
	Cluster *equipment.Cluster
	Chains  []*chain.ServiceChain
	Traffic []TrafficProfile
	Policy  placement.Policy

	Seed int64
	// Horizon in ticks; zero means run until all arrivals drain.
	Horizon int64
	// MaxInFlight caps concurrently live requests cluster-wide; an arrival
	// past the ceiling is dropped at admission. Zero disables the ceiling.
	MaxInFlight int
	// Replacements lists ticks at which the policy is re-invoked; the new
	// decision governs only requests created afterward.
	Replacements []int64
}

// chainByID returns the chain with the given ID, or nil.
func (sc *Scenario) chainByID(id string) *chain.ServiceChain {
	for _, c := range sc.Chains {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Validate enforces every pre-run invariant that is not a placement
// concern: chain DAG shape, cluster numerics, traffic numerics, and run
// bounds. All violations are ValidationErrors; the first one found wins.
func (sc *Scenario) Validate() error {
	if sc.Cluster == nil {
		return &ValidationError{Where: "cluster", Err: fmt.Errorf("scenario has no cluster")}
	}
	if err := sc.Cluster.Validate(); err != nil {
		return &ValidationError{Where: "cluster", Err: err}
	}
	if len(sc.Chains) == 0 {
		return &ValidationError{Where: "chains", Err: fmt.Errorf("scenario has no service chains")}
	}
	seen := make(map[string]bool, len(sc.Chains))
	for _, c := range sc.Chains {
		if seen[c.ID] {
			return &ValidationError{Where: "chains", Err: fmt.Errorf("duplicate chain %q", c.ID)}
		}
		seen[c.ID] = true
		if err := c.Validate(); err != nil {
			return &ValidationError{Where: "chain " + c.ID, Err: err}
		}
	}
	if sc.Policy == nil {
		return &ValidationError{Where: "policy", Err: fmt.Errorf("scenario has no placement policy")}
	}
	if err := sc.validateTraffic(); err != nil {
		return err
	}
	if sc.Horizon < 0 {
		return &ValidationError{Where: "bounds", Err: fmt.Errorf("negative horizon %d", sc.Horizon)}
	}
	if sc.MaxInFlight < 0 {
		return &ValidationError{Where: "bounds", Err: fmt.Errorf("negative in-flight ceiling %d", sc.MaxInFlight)}
	}
	for _, at := range sc.Replacements {
		if at <= 0 {
			return &ValidationError{Where: "replacements", Err: fmt.Errorf("re-placement tick %d is not positive", at)}
		}
	}
	return nil
}

func (sc *Scenario) validateTraffic() error {
	if len(sc.Traffic) == 0 {
		return &ValidationError{Where: "traffic", Err: fmt.Errorf("scenario has no traffic profiles")}
	}
	profiled := make(map[string]bool, len(sc.Traffic))
	for i := range sc.Traffic {
		tp := &sc.Traffic[i]
		where := "traffic for chain " + tp.ChainID
		if sc.chainByID(tp.ChainID) == nil {
			return &ValidationError{Where: where, Err: fmt.Errorf("no such chain")}
		}
		if profiled[tp.ChainID] {
			return &ValidationError{Where: where, Err: fmt.Errorf("duplicate traffic profile")}
		}
		profiled[tp.ChainID] = true

		switch tp.Process {
		case ProcessPoisson, ProcessPeriodic:
			if tp.Rate <= 0 || math.IsInf(tp.Rate, 0) || math.IsNaN(tp.Rate) {
				return &ValidationError{Where: where, Err: fmt.Errorf("arrival rate must be positive and finite, got %v", tp.Rate)}
			}
			// An unbounded stochastic stream with no horizon never drains.
			if tp.MaxRequests <= 0 && sc.Horizon <= 0 {
				return &ValidationError{Where: where, Err: fmt.Errorf("profile needs a request bound or the scenario a horizon")}
			}
		case ProcessReplay:
			if len(tp.Offsets) == 0 {
				return &ValidationError{Where: where, Err: fmt.Errorf("replay trace is empty")}
			}
			for _, off := range tp.Offsets {
				if off < 0 {
					return &ValidationError{Where: where, Err: fmt.Errorf("replay trace contains negative tick %d", off)}
				}
			}
		default:
			return &ValidationError{Where: where, Err: fmt.Errorf("unknown arrival process %q", tp.Process)}
		}
		if tp.MaxRequests < 0 {
			return &ValidationError{Where: where, Err: fmt.Errorf("negative request bound %d", tp.MaxRequests)}
		}
	}
	return nil
}

// generators builds one arrival generator per traffic profile, seeding the
// stochastic ones from the partitioned RNG in profile order.
func (sc *Scenario) generators(rng *PartitionedRNG) ([]traffic.Generator, error) {
	bounds := func(tp *TrafficProfile) traffic.Bounds {
		return traffic.Bounds{MaxRequests: tp.MaxRequests, Horizon: sc.Horizon}
	}
	gens := make([]traffic.Generator, 0, len(sc.Traffic))
	for i := range sc.Traffic {
		tp := &sc.Traffic[i]
		switch tp.Process {
		case ProcessPoisson:
			seed := rng.SeedFor(SubsystemChain(tp.ChainID))
			gens = append(gens, traffic.NewPoisson(tp.ChainID, tp.Rate, seed, bounds(tp)))
		case ProcessPeriodic:
			gens = append(gens, traffic.NewPeriodic(tp.ChainID, tp.Rate, bounds(tp)))
		case ProcessReplay:
			g, err := traffic.NewReplay(tp.ChainID, tp.Offsets, bounds(tp))
			if err != nil {
				return nil, &ValidationError{Where: "traffic for chain " + tp.ChainID, Err: err}
			}
			gens = append(gens, g)
		}
	}
	return gens, nil
}

// replacementTicks returns the re-placement ticks sorted ascending.
func (sc *Scenario) replacementTicks() []int64 {
	ticks := make([]int64, len(sc.Replacements))
	copy(ticks, sc.Replacements)
	sort.Slice(ticks, func(i, j int) bool { return ticks[i] < ticks[j] })
	return ticks
}
