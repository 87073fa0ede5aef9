package traffic

import "math/rand"

// Poisson emits memoryless arrivals: exponentially distributed inter-arrival
// times with the configured mean rate, i.e. a Poisson arrival process.
type Poisson struct {
	chainID string
	rate    float64 // requests per second
	seed    int64
	bounds  Bounds

	rng     *rand.Rand
	clock   int64
	emitted int
}

// NewPoisson creates a seeded Poisson generator. Rate is in requests per
// second and must be positive and finite (enforced by scenario validation).
func NewPoisson(chainID string, rate float64, seed int64, bounds Bounds) *Poisson {
	p := &Poisson{chainID: chainID, rate: rate, seed: seed, bounds: bounds}
	p.Reset()
	return p
}

func (p *Poisson) ChainID() string { return p.chainID }

func (p *Poisson) Next() (Arrival, bool) {
	if p.bounds.exhausted(p.emitted, p.clock) {
		return Arrival{}, false
	}
	ratePerTick := p.rate / 1e6
	iat := int64(p.rng.ExpFloat64() / ratePerTick)
	if iat < 1 {
		iat = 1
	}
	at := p.clock + iat
	if p.bounds.Horizon > 0 && at > p.bounds.Horizon {
		return Arrival{}, false
	}
	p.clock = at
	p.emitted++
	return Arrival{ChainID: p.chainID, Timestamp: at}, true
}

func (p *Poisson) Reset() {
	p.rng = rand.New(rand.NewSource(p.seed))
	p.clock = 0
	p.emitted = 0
}
