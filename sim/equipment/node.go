package equipment

import "fmt"

// Node is a named host owning a fixed set of equipment, at most one per
// kind. Topology is immutable once the cluster is built: replica or scale
// changes are modeled as new nodes in a new cluster, never as mutation.
type Node struct {
	ID string

	equipment map[Kind]*Equipment
	kinds     []Kind
}

// NewNode creates a node owning the given equipment. Each equipment's NodeID
// is stamped with the node's ID.
func NewNode(id string, eqs ...*Equipment) (*Node, error) {
	n := &Node{
		ID:        id,
		equipment: make(map[Kind]*Equipment, len(eqs)),
	}
	for _, eq := range eqs {
		if eq == nil {
			return nil, fmt.Errorf("node %q: nil equipment", id)
		}
		if _, dup := n.equipment[eq.Kind]; dup {
			return nil, fmt.Errorf("node %q: duplicate equipment kind %q", id, eq.Kind)
		}
		eq.NodeID = id
		n.equipment[eq.Kind] = eq
		n.kinds = append(n.kinds, eq.Kind)
	}
	return n, nil
}

// Equipment returns the node's equipment of the given kind, or nil when the
// node has none.
func (n *Node) Equipment(kind Kind) *Equipment {
	return n.equipment[kind]
}

// EquipmentList returns the node's equipment in declaration order.
func (n *Node) EquipmentList() []*Equipment {
	out := make([]*Equipment, 0, len(n.kinds))
	for _, k := range n.kinds {
		out = append(out, n.equipment[k])
	}
	return out
}
