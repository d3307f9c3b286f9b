// Package graph provides the directed graph shared by every analysis in the
// slicer: control-flow graphs, post-dominator trees and dependence graphs
// are all values of the same Graph type over *Node identities.
package graph

import (
	"fmt"
	"sort"
)

// NoLine is the line number of nodes that do not correspond to source code.
const NoLine = -1

// NodeKind classifies a node for display purposes.
// Analyses never branch on it; they only look at edges.
type NodeKind string

const (
	KindEntry     NodeKind = "entry"     // Synthetic method entry
	KindExit      NodeKind = "exit"      // Synthetic method exit
	KindStatement NodeKind = "statement" // Plain instruction
	KindBranch    NodeKind = "branch"    // Instruction with more than one successor
)

// Node is one instruction of a method, or a synthetic entry/exit marker.
//
// Nodes are compared by pointer identity. ID and Line are informational;
// two distinct nodes may share both.
type Node struct {
	ID          string
	Kind        NodeKind
	Line        int
	Text        string
	Instruction any
}

// NewNode creates a node for an instruction at the given source line.
func NewNode(id string, line int, instruction any) *Node {
	return &Node{
		ID:          id,
		Kind:        KindStatement,
		Line:        line,
		Instruction: instruction,
	}
}

// NewSyntheticNode creates an instruction-less node such as an entry or exit marker.
func NewSyntheticNode(id string, kind NodeKind) *Node {
	return &Node{
		ID:   id,
		Kind: kind,
		Line: NoLine,
	}
}

// Synthetic reports whether the node carries no instruction.
func (n *Node) Synthetic() bool {
	return n.Instruction == nil
}

func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	if n.Line > 0 {
		return fmt.Sprintf("%s@%d", n.ID, n.Line)
	}
	return n.ID
}

// NodeSet is an unordered set of nodes.
type NodeSet map[*Node]struct{}

// NewNodeSet returns a set holding the given nodes.
func NewNodeSet(nodes ...*Node) NodeSet {
	s := make(NodeSet, len(nodes))
	for _, n := range nodes {
		s[n] = struct{}{}
	}
	return s
}

// Add inserts n and reports whether it was absent.
func (s NodeSet) Add(n *Node) bool {
	if _, ok := s[n]; ok {
		return false
	}
	s[n] = struct{}{}
	return true
}

// Contains reports whether n is in the set.
func (s NodeSet) Contains(n *Node) bool {
	_, ok := s[n]
	return ok
}

// Len returns the number of nodes in the set.
func (s NodeSet) Len() int {
	return len(s)
}

// Equal reports whether both sets hold exactly the same nodes.
func (s NodeSet) Equal(other NodeSet) bool {
	if len(s) != len(other) {
		return false
	}
	for n := range s {
		if _, ok := other[n]; !ok {
			return false
		}
	}
	return true
}

// Sorted returns the nodes ordered by line, then by ID.
// Synthetic nodes (no line) come first.
func (s NodeSet) Sorted() []*Node {
	nodes := make([]*Node, 0, len(s))
	for n := range s {
		nodes = append(nodes, n)
	}
	SortNodes(nodes)
	return nodes
}

// Lines returns the distinct positive line numbers of the set in ascending order.
func (s NodeSet) Lines() []int {
	seen := make(map[int]struct{})
	lines := make([]int, 0, len(s))
	for n := range s {
		if n.Line <= 0 {
			continue
		}
		if _, ok := seen[n.Line]; ok {
			continue
		}
		seen[n.Line] = struct{}{}
		lines = append(lines, n.Line)
	}
	sort.Ints(lines)
	return lines
}

// SortNodes orders nodes in place by line, then by ID.
func SortNodes(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Line != nodes[j].Line {
			return nodes[i].Line < nodes[j].Line
		}
		return nodes[i].ID < nodes[j].ID
	})
}
