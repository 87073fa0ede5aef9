package traffic

import (
	"fmt"
	"sort"
)

// Replay emits arrivals from a pre-recorded, ordered sequence of timestamps,
// e.g. one extracted from a production trace. The trace is copied and sorted
// at construction so the caller's slice stays untouched.
type Replay struct {
	chainID string
	offsets []int64
	bounds  Bounds

	idx     int
	emitted int
}

// NewReplay creates a trace-replay generator from arrival timestamps in
// ticks. Negative timestamps are rejected.
func NewReplay(chainID string, offsets []int64, bounds Bounds) (*Replay, error) {
	sorted := make([]int64, len(offsets))
	copy(sorted, offsets)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	if len(sorted) > 0 && sorted[0] < 0 {
		return nil, fmt.Errorf("trace for chain %q contains a negative timestamp", chainID)
	}
	return &Replay{chainID: chainID, offsets: sorted, bounds: bounds}, nil
}

func (r *Replay) ChainID() string { return r.chainID }

func (r *Replay) Next() (Arrival, bool) {
	if r.idx >= len(r.offsets) {
		return Arrival{}, false
	}
	at := r.offsets[r.idx]
	if r.bounds.exhausted(r.emitted, at) {
		return Arrival{}, false
	}
	if r.bounds.Horizon > 0 && at > r.bounds.Horizon {
		return Arrival{}, false
	}
	r.idx++
	r.emitted++
	return Arrival{ChainID: r.chainID, Timestamp: at}, true
}

func (r *Replay) Reset() {
	r.idx = 0
	r.emitted = 0
}
