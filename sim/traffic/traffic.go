// Package traffic produces request-arrival sequences for service chains.
//
// Generators are lazy, restartable and seed-parameterized: the same seed and
// parameters reproduce an identical arrival sequence, which is what makes
// whole-run regression tests deterministic. A generator is bounded by a
// maximum request count, a time horizon, or both; Next signals exhaustion
// explicitly instead of looping forever.
package traffic

// Arrival describes one request arrival: which chain it enters and when.
type Arrival struct {
	ChainID   string
	Timestamp int64
}

// Generator is a restartable arrival sequence for a single chain.
type Generator interface {
	// ChainID names the chain this generator feeds.
	ChainID() string

	// Next returns the next arrival. The second return is false once the
	// sequence is exhausted (count or horizon bound reached).
	Next() (Arrival, bool)

	// Reset restarts the sequence from its seed, reproducing the exact
	// arrivals already emitted.
	Reset()
}

// Bounds limits a generator. Zero values mean unbounded on that axis; at
// least one bound must be set, which scenario validation enforces.
type Bounds struct {
	// MaxRequests caps the number of arrivals emitted.
	MaxRequests int
	// Horizon stops the sequence once an arrival would land past this tick.
	Horizon int64
}

// exhausted applies the shared bound check.
func (b Bounds) exhausted(emitted int, at int64) bool {
	if b.MaxRequests > 0 && emitted >= b.MaxRequests {
		return true
	}
	if b.Horizon > 0 && at > b.Horizon {
		return true
	}
	return false
}
