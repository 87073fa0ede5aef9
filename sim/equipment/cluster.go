package equipment

import (
	"fmt"
	"math"
)

// Cluster owns the nodes and links of one topology and answers the
// capacity and reachability queries the placement layer needs. It is
// immutable after construction within a run.
type Cluster struct {
	nodes     map[string]*Node
	nodeOrder []string
	links     []*Link
	adjacency map[string][]*Link
	byID      map[string]*Equipment
}

// NewCluster creates an empty cluster.
func NewCluster() *Cluster {
	return &Cluster{
		nodes:     make(map[string]*Node),
		adjacency: make(map[string][]*Link),
		byID:      make(map[string]*Equipment),
	}
}

// AddNode registers a node. Node IDs must be unique, and so must the IDs of
// the equipment the node carries: placement decisions reference equipment by
// ID across the whole cluster.
func (c *Cluster) AddNode(n *Node) error {
	if n == nil {
		return fmt.Errorf("cluster: nil node")
	}
	if _, dup := c.nodes[n.ID]; dup {
		return fmt.Errorf("cluster: duplicate node %q", n.ID)
	}
	for _, eq := range n.EquipmentList() {
		if _, dup := c.byID[eq.ID]; dup {
			return fmt.Errorf("cluster: duplicate equipment %q", eq.ID)
		}
	}
	c.nodes[n.ID] = n
	c.nodeOrder = append(c.nodeOrder, n.ID)
	for _, eq := range n.EquipmentList() {
		c.byID[eq.ID] = eq
	}
	return nil
}

// AddLink registers a link between two already-added nodes.
func (c *Cluster) AddLink(l *Link) error {
	if l == nil {
		return fmt.Errorf("cluster: nil link")
	}
	if _, ok := c.nodes[l.A]; !ok {
		return fmt.Errorf("cluster: link %q references unknown node %q", l.ID, l.A)
	}
	if _, ok := c.nodes[l.B]; !ok {
		return fmt.Errorf("cluster: link %q references unknown node %q", l.ID, l.B)
	}
	c.links = append(c.links, l)
	c.adjacency[l.A] = append(c.adjacency[l.A], l)
	c.adjacency[l.B] = append(c.adjacency[l.B], l)
	return nil
}

// Node returns the node with the given ID, or nil.
func (c *Cluster) Node(id string) *Node {
	return c.nodes[id]
}

// Nodes returns all nodes in insertion order. Deterministic iteration order
// is what keeps placement reproducible across runs.
func (c *Cluster) Nodes() []*Node {
	out := make([]*Node, 0, len(c.nodeOrder))
	for _, id := range c.nodeOrder {
		out = append(out, c.nodes[id])
	}
	return out
}

// NodeIDs returns all node IDs in insertion order.
func (c *Cluster) NodeIDs() []string {
	out := make([]string, len(c.nodeOrder))
	copy(out, c.nodeOrder)
	return out
}

// Links returns all links in insertion order.
func (c *Cluster) Links() []*Link {
	out := make([]*Link, len(c.links))
	copy(out, c.links)
	return out
}

// CapacityOf returns the declared capacity of the given node's equipment of
// the given kind, or zero when the node has no such equipment.
func (c *Cluster) CapacityOf(nodeID string, kind Kind) float64 {
	n := c.nodes[nodeID]
	if n == nil {
		return 0
	}
	eq := n.Equipment(kind)
	if eq == nil {
		return 0
	}
	return eq.Capacity
}

// EquipmentByID returns the equipment with the given ID anywhere in the
// cluster, or nil.
func (c *Cluster) EquipmentByID(id string) *Equipment {
	return c.byID[id]
}

// Equipment returns every equipment instance in the cluster, ordered by node
// insertion order then equipment declaration order.
func (c *Cluster) Equipment() []*Equipment {
	var out []*Equipment
	for _, id := range c.nodeOrder {
		out = append(out, c.nodes[id].EquipmentList()...)
	}
	return out
}

// PathBetween returns the ordered links of a shortest hop path from a to b.
// Returns an empty path when a == b, and an error when no path exists.
// BFS over links in insertion order keeps the result deterministic.
func (c *Cluster) PathBetween(a, b string) ([]*Link, error) {
	if _, ok := c.nodes[a]; !ok {
		return nil, fmt.Errorf("cluster: unknown node %q", a)
	}
	if _, ok := c.nodes[b]; !ok {
		return nil, fmt.Errorf("cluster: unknown node %q", b)
	}
	if a == b {
		return nil, nil
	}

	type hop struct {
		node string
		via  *Link
		prev *hop
	}
	visited := map[string]bool{a: true}
	frontier := []*hop{{node: a}}
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		for _, l := range c.adjacency[cur.node] {
			next := l.Other(cur.node)
			if visited[next] {
				continue
			}
			h := &hop{node: next, via: l, prev: cur}
			if next == b {
				var path []*Link
				for p := h; p.via != nil; p = p.prev {
					path = append([]*Link{p.via}, path...)
				}
				return path, nil
			}
			visited[next] = true
			frontier = append(frontier, h)
		}
	}
	return nil, fmt.Errorf("cluster: no path between %q and %q", a, b)
}

// Reachable reports whether b can be reached from a.
func (c *Cluster) Reachable(a, b string) bool {
	_, err := c.PathBetween(a, b)
	return err == nil
}

// HopCount returns the number of links on a shortest path between a and b,
// or an error when unreachable.
func (c *Cluster) HopCount(a, b string) (int, error) {
	path, err := c.PathBetween(a, b)
	if err != nil {
		return 0, err
	}
	return len(path), nil
}

// TransitDelay returns the total ticks to move a payload from a to b along a
// shortest path: the sum of each link's propagation latency plus
// serialization delay.
func (c *Cluster) TransitDelay(a, b string, bytes float64) (int64, error) {
	path, err := c.PathBetween(a, b)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, l := range path {
		total += l.TransitDelay(bytes)
	}
	return total, nil
}

// Validate checks the cluster's numeric invariants: at least one node,
// positive equipment capacities, positive link bandwidths and non-negative
// latencies. Violations here are configuration errors that refuse the run.
func (c *Cluster) Validate() error {
	if len(c.nodeOrder) == 0 {
		return fmt.Errorf("cluster has no nodes")
	}
	for _, id := range c.nodeOrder {
		for _, eq := range c.nodes[id].EquipmentList() {
			if eq.Capacity <= 0 || math.IsInf(eq.Capacity, 0) || math.IsNaN(eq.Capacity) {
				return fmt.Errorf("node %q equipment %q: capacity must be positive and finite, got %v", id, eq.ID, eq.Capacity)
			}
			if eq.QueueLimit < 0 {
				return fmt.Errorf("node %q equipment %q: negative queue limit", id, eq.ID)
			}
			switch eq.Regime {
			case RegimeSharedQueue, RegimeFixedSlowdown:
			default:
				return fmt.Errorf("node %q equipment %q: unknown contention regime %q", id, eq.ID, eq.Regime)
			}
		}
	}
	for _, l := range c.links {
		if l.Bandwidth <= 0 || math.IsInf(l.Bandwidth, 0) || math.IsNaN(l.Bandwidth) {
			return fmt.Errorf("link %q: bandwidth must be positive and finite, got %v", l.ID, l.Bandwidth)
		}
		if l.Latency < 0 {
			return fmt.Errorf("link %q: negative latency", l.ID)
		}
	}
	return nil
}
