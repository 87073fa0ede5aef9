package traffic

import "math"

// Periodic emits deterministically spaced arrivals at the configured rate:
// one request every 1/rate seconds, starting one interval after time zero.
type Periodic struct {
	chainID  string
	interval int64
	bounds   Bounds

	clock   int64
	emitted int
}

// NewPeriodic creates a periodic generator. Rate is in requests per second.
func NewPeriodic(chainID string, rate float64, bounds Bounds) *Periodic {
	interval := int64(math.Round(1e6 / rate))
	if interval < 1 {
		interval = 1
	}
	return &Periodic{chainID: chainID, interval: interval, bounds: bounds}
}

func (p *Periodic) ChainID() string { return p.chainID }

func (p *Periodic) Next() (Arrival, bool) {
	if p.bounds.exhausted(p.emitted, p.clock) {
		return Arrival{}, false
	}
	at := p.clock + p.interval
	if p.bounds.Horizon > 0 && at > p.bounds.Horizon {
		return Arrival{}, false
	}
	p.clock = at
	p.emitted++
	return Arrival{ChainID: p.chainID, Timestamp: at}, true
}

func (p *Periodic) Reset() {
	p.clock = 0
	p.emitted = 0
}
