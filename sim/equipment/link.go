package equipment

import "math"

// Link connects two nodes. Bandwidth is in bytes per second, Latency is the
// one-way propagation delay in ticks. Links are bidirectional.
type Link struct {
	ID        string
	A, B      string
	Bandwidth float64
	Latency   int64
}

// Connects reports whether the link touches the given node.
func (l *Link) Connects(node string) bool {
	return l.A == node || l.B == node
}

// Other returns the far endpoint relative to node, or "" if the link does
// not touch node.
func (l *Link) Other(node string) string {
	switch node {
	case l.A:
		return l.B
	case l.B:
		return l.A
	}
	return ""
}

// TransitDelay returns the ticks needed to move the given payload across the
// link: propagation latency plus serialization at the link's bandwidth.
func (l *Link) TransitDelay(bytes float64) int64 {
	delay := l.Latency
	if bytes > 0 && l.Bandwidth > 0 {
		delay += int64(math.Ceil(bytes / l.Bandwidth * TicksPerSecond))
	}
	return delay
}
