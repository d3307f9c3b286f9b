// Package dfg computes reaching definitions over an instruction-level CFG
// and derives the data-dependence graph from them.
//
// The analysis never looks at instructions itself. A DefUseOracle tells it
// which variables each instruction defines and uses; GoOracle is the
// implementation for CFGs built by package cfg.
package dfg

import (
	"github.com/l3aro/go-program-slicer/pkg/graph"
)

// VarKind tells apart the storage a Variable names.
type VarKind string

const (
	VarLocal   VarKind = "local"   // Local variable, parameter or receiver
	VarField   VarKind = "field"   // Struct field reached through a selector, e.g. "p.x"
	VarElement VarKind = "element" // Some element of a slice, array or map
	VarGlobal  VarKind = "global"  // Package-level variable
)

// Variable identifies a storage location by kind, name and static type.
// Two variables are the same dependence target only if all three match,
// so x:int and x:string are distinct. Type is empty when unknown.
type Variable struct {
	Kind VarKind `json:"kind" msgpack:"kind"`
	Name string  `json:"name" msgpack:"name"`
	Type string  `json:"type,omitempty" msgpack:"type,omitempty"`
}

func (v Variable) String() string {
	if v.Type == "" {
		return v.Name
	}
	return v.Name + ":" + v.Type
}

// Definition is a (node, variable) pair: node writes variable.
type Definition struct {
	Node *graph.Node
	Var  Variable
}

// DefSet is a set of definitions.
type DefSet map[Definition]struct{}

func (s DefSet) add(d Definition) bool {
	if _, ok := s[d]; ok {
		return false
	}
	s[d] = struct{}{}
	return true
}

// Contains reports whether d is in the set.
func (s DefSet) Contains(d Definition) bool {
	_, ok := s[d]
	return ok
}

// Equal reports whether both sets hold the same definitions.
func (s DefSet) Equal(other DefSet) bool {
	if len(s) != len(other) {
		return false
	}
	for d := range s {
		if _, ok := other[d]; !ok {
			return false
		}
	}
	return true
}

func (s DefSet) clone() DefSet {
	out := make(DefSet, len(s))
	for d := range s {
		out[d] = struct{}{}
	}
	return out
}

// DefUseOracle reports the variables an instruction writes and reads.
// Either call may fail for an instruction it does not understand.
type DefUseOracle interface {
	Definitions(instruction any) ([]Variable, error)
	Uses(instruction any) ([]Variable, error)
}

// TableOracle is a DefUseOracle backed by fixed tables keyed by instruction.
// Instructions missing from a table define or use nothing.
type TableOracle struct {
	Defs map[any][]Variable
	Used map[any][]Variable
}

// Definitions implements DefUseOracle.
func (o TableOracle) Definitions(instruction any) ([]Variable, error) {
	return o.Defs[instruction], nil
}

// Uses implements DefUseOracle.
func (o TableOracle) Uses(instruction any) ([]Variable, error) {
	return o.Used[instruction], nil
}
