package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	sim "github.com/michelgokan/perfsim/sim"
	"github.com/michelgokan/perfsim/sim/chain"
	"github.com/michelgokan/perfsim/sim/equipment"
	"github.com/michelgokan/perfsim/sim/placement"
)

// The scenarioDoc types mirror the YAML scenario schema. They stay local to
// cmd: the sim core takes assembled values, never documents.

type scenarioDoc struct {
	Name         string       `yaml:"name"`
	Seed         int64        `yaml:"seed"`
	HorizonTicks int64        `yaml:"horizon_ticks"`
	MaxInFlight  int          `yaml:"max_in_flight"`
	Policy       string       `yaml:"policy"`
	Replacements []int64      `yaml:"replacement_ticks"`
	Nodes        []nodeDoc    `yaml:"nodes"`
	Links        []linkDoc    `yaml:"links"`
	Chains       []chainDoc   `yaml:"chains"`
	Traffic      []trafficDoc `yaml:"traffic"`
}

type nodeDoc struct {
	ID        string         `yaml:"id"`
	Equipment []equipmentDoc `yaml:"equipment"`
}

type equipmentDoc struct {
	Kind     string  `yaml:"kind"`
	Capacity float64 `yaml:"capacity"`
	// QueueLimit caps concurrent occupants; zero or omitted means unbounded.
	QueueLimit int    `yaml:"queue_limit"`
	Regime     string `yaml:"regime"`
}

type linkDoc struct {
	ID           string  `yaml:"id"`
	From         string  `yaml:"from"`
	To           string  `yaml:"to"`
	Bandwidth    float64 `yaml:"bandwidth_bytes_per_sec"`
	LatencyTicks int64   `yaml:"latency_ticks"`
}

type chainDoc struct {
	ID     string     `yaml:"id"`
	Stages []stageDoc `yaml:"stages"`
}

type stageDoc struct {
	ID         string   `yaml:"id"`
	CPU        float64  `yaml:"cpu"`
	DiskIO     float64  `yaml:"disk_io"`
	NetBytes   float64  `yaml:"net_bytes"`
	Successors []string `yaml:"successors"`
}

type trafficDoc struct {
	Chain       string  `yaml:"chain"`
	Process     string  `yaml:"process"`
	Rate        float64 `yaml:"rate"`
	Offsets     []int64 `yaml:"offsets"`
	MaxRequests int     `yaml:"max_requests"`
}

// LoadScenario parses a YAML scenario document into a sim.Scenario. Shape
// errors surface here; semantic validation stays with Scenario.Validate.
func LoadScenario(path string) (*sim.Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(raw)
}

// ParseScenario assembles a scenario from raw YAML bytes.
func ParseScenario(raw []byte) (*sim.Scenario, error) {
	var doc scenarioDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing scenario document: %w", err)
	}

	cluster, err := buildCluster(&doc)
	if err != nil {
		return nil, err
	}

	chains := make([]*chain.ServiceChain, 0, len(doc.Chains))
	for _, cd := range doc.Chains {
		stages := make([]*chain.Stage, 0, len(cd.Stages))
		for _, sd := range cd.Stages {
			stages = append(stages, &chain.Stage{
				ID: sd.ID,
				Demand: chain.Demand{
					CPU:      sd.CPU,
					DiskIO:   sd.DiskIO,
					NetBytes: sd.NetBytes,
				},
				Successors: sd.Successors,
			})
		}
		chains = append(chains, chain.New(cd.ID, stages...))
	}

	traffics := make([]sim.TrafficProfile, 0, len(doc.Traffic))
	for _, td := range doc.Traffic {
		traffics = append(traffics, sim.TrafficProfile{
			ChainID:     td.Chain,
			Process:     td.Process,
			Rate:        td.Rate,
			Offsets:     td.Offsets,
			MaxRequests: td.MaxRequests,
		})
	}

	policy, err := newPolicy(doc.Policy)
	if err != nil {
		return nil, err
	}

	return &sim.Scenario{
		Name:         doc.Name,
		Cluster:      cluster,
		Chains:       chains,
		Traffic:      traffics,
		Policy:       policy,
		Seed:         doc.Seed,
		Horizon:      doc.HorizonTicks,
		MaxInFlight:  doc.MaxInFlight,
		Replacements: doc.Replacements,
	}, nil
}

func buildCluster(doc *scenarioDoc) (*equipment.Cluster, error) {
	cluster := equipment.NewCluster()
	for _, nd := range doc.Nodes {
		eqs := make([]*equipment.Equipment, 0, len(nd.Equipment))
		for _, ed := range nd.Equipment {
			regime := equipment.Regime(ed.Regime)
			if ed.Regime == "" {
				regime = equipment.RegimeSharedQueue
			}
			kind := equipment.Kind(ed.Kind)
			eqs = append(eqs, equipment.New(
				fmt.Sprintf("%s/%s", nd.ID, kind),
				nd.ID, kind, ed.Capacity, ed.QueueLimit, regime,
			))
		}
		node, err := equipment.NewNode(nd.ID, eqs...)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", nd.ID, err)
		}
		if err := cluster.AddNode(node); err != nil {
			return nil, err
		}
	}
	for _, ld := range doc.Links {
		if err := cluster.AddLink(&equipment.Link{
			ID:        ld.ID,
			A:         ld.From,
			B:         ld.To,
			Bandwidth: ld.Bandwidth,
			Latency:   ld.LatencyTicks,
		}); err != nil {
			return nil, err
		}
	}
	return cluster, nil
}

func newPolicy(name string) (placement.Policy, error) {
	return placement.NewPolicy(name)
}
