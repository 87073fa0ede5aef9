package sim

import "github.com/montanaflynn/stats"

// Distribution captures the statistical summary of a metric, in the unit of
// the raw samples (latencies are in ticks).
type Distribution struct {
	Mean  float64
	Stdev float64
	P50   float64
	P95   float64
	P99   float64
	Min   float64
	Max   float64
	Count int
}

// NewDistribution computes a Distribution from raw values. Returns the zero
// Distribution for empty input.
func NewDistribution(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	data := stats.Float64Data(values)
	mean, _ := stats.Mean(data)
	stdev, _ := stats.StandardDeviation(data)
	p50, _ := stats.Median(data)
	p95, _ := stats.Percentile(data, 95)
	p99, _ := stats.Percentile(data, 99)
	min, _ := stats.Min(data)
	max, _ := stats.Max(data)
	return Distribution{
		Mean:  mean,
		Stdev: stdev,
		P50:   p50,
		P95:   p95,
		P99:   p99,
		Min:   min,
		Max:   max,
		Count: len(values),
	}
}

// KPIObserver aggregates per-chain counters and end-to-end latency samples.
// It is the default observer every simulation carries; results are built
// from its accumulators after the run drains.
type KPIObserver struct {
	created   map[string]int
	completed map[string]int
	dropped   map[string]int
	truncated map[string]int
	dropWhy   map[string]map[string]int
	latencies map[string][]float64
}

// NewKPIObserver creates an empty KPI accumulator.
func NewKPIObserver() *KPIObserver {
	return &KPIObserver{
		created:   make(map[string]int),
		completed: make(map[string]int),
		dropped:   make(map[string]int),
		truncated: make(map[string]int),
		dropWhy:   make(map[string]map[string]int),
		latencies: make(map[string][]float64),
	}
}

func (o *KPIObserver) OnEvent(kind EventKind, pl Payload) {
	switch kind {
	case KindRequestCreated:
		o.created[pl.ChainID]++
	case KindRequestCompleted:
		o.completed[pl.ChainID]++
		o.latencies[pl.ChainID] = append(o.latencies[pl.ChainID], float64(pl.Latency))
	case KindRequestDropped:
		o.dropped[pl.ChainID]++
		if o.dropWhy[pl.ChainID] == nil {
			o.dropWhy[pl.ChainID] = make(map[string]int)
		}
		o.dropWhy[pl.ChainID][pl.Reason]++
	case KindRequestTruncated:
		o.truncated[pl.ChainID]++
	}
}

// chainStats builds the per-chain result block for one chain.
func (o *KPIObserver) chainStats(chainID string) *ChainStats {
	reasons := make(map[string]int, len(o.dropWhy[chainID]))
	for k, v := range o.dropWhy[chainID] {
		reasons[k] = v
	}
	return &ChainStats{
		Created:     o.created[chainID],
		Completed:   o.completed[chainID],
		Dropped:     o.dropped[chainID],
		Truncated:   o.truncated[chainID],
		DropReasons: reasons,
		Latency:     NewDistribution(o.latencies[chainID]),
	}
}

// UtilizationPoint is one sample of an equipment's time-weighted busy
// fraction, taken after an event touched that equipment.
type UtilizationPoint struct {
	Time        int64
	Utilization float64
	Occupants   int
}

// UtilizationObserver collects per-equipment utilization series from
// KindEquipmentSampled notifications.
type UtilizationObserver struct {
	Series map[string][]UtilizationPoint
}

// NewUtilizationObserver creates an empty utilization collector.
func NewUtilizationObserver() *UtilizationObserver {
	return &UtilizationObserver{Series: make(map[string][]UtilizationPoint)}
}

func (o *UtilizationObserver) OnEvent(kind EventKind, pl Payload) {
	if kind != KindEquipmentSampled {
		return
	}
	o.Series[pl.EquipmentID] = append(o.Series[pl.EquipmentID], UtilizationPoint{
		Time:        pl.Time,
		Utilization: pl.Utilization,
		Occupants:   pl.Occupants,
	})
}
