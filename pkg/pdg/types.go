// Package pdg combines control and data dependence into a program
// dependence graph and slices it.
package pdg

import (
	"errors"

	"github.com/l3aro/go-program-slicer/pkg/dfg"
	"github.com/l3aro/go-program-slicer/pkg/graph"
)

// ErrNodeNotFound is returned when a slicing criterion is not a node of the graph.
var ErrNodeNotFound = errors.New("node not found in program dependence graph")

// DepType represents the type of dependence in a PDG edge.
type DepType string

const (
	DepTypeControl DepType = "control" // Control dependence
	DepTypeData    DepType = "data"    // Data dependence
)

// Edge is a labelled PDG edge. An edge that is both a control and a data
// dependence is reported once per type.
type Edge struct {
	From *graph.Node
	To   *graph.Node
	Type DepType
	// Vars lists the variables carried by a data edge.
	Vars []dfg.Variable
}

// DependencyInfo contains the control and data dependencies of one node.
type DependencyInfo struct {
	ControlIn  []Edge // Control dependences of this node
	ControlOut []Edge // Nodes this node controls
	DataIn     []Edge // Definitions this node reads
	DataOut    []Edge // Uses reached by this node's definitions
}

// NodeInfo is the serializable view of a PDG node.
type NodeInfo struct {
	ID   string         `json:"id" msgpack:"id"`
	Kind graph.NodeKind `json:"kind" msgpack:"kind"`
	Line int            `json:"line" msgpack:"line"`
	Text string         `json:"text,omitempty" msgpack:"text,omitempty"`
}

// EdgeInfo is the serializable view of a PDG edge.
type EdgeInfo struct {
	Source string         `json:"source" msgpack:"source"`
	Target string         `json:"target" msgpack:"target"`
	Type   DepType        `json:"type" msgpack:"type"`
	Vars   []dfg.Variable `json:"vars,omitempty" msgpack:"vars,omitempty"`
}

// Info is the serializable view of a whole PDG.
type Info struct {
	FunctionName string     `json:"function_name" msgpack:"function_name"`
	Nodes        []NodeInfo `json:"nodes" msgpack:"nodes"`
	Edges        []EdgeInfo `json:"edges" msgpack:"edges"`
}
