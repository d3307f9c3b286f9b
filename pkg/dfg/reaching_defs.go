package dfg

import (
	"github.com/l3aro/go-program-slicer/internal/log"
	"github.com/l3aro/go-program-slicer/pkg/graph"
)

// ReachingDefinitions holds the per-node sets of the reaching-definitions
// fixed point, together with the uses the oracle reported for each node.
type ReachingDefinitions struct {
	Gen  map[*graph.Node]DefSet
	Kill map[*graph.Node]DefSet
	In   map[*graph.Node]DefSet
	Out  map[*graph.Node]DefSet
	Uses map[*graph.Node][]Variable

	// Passes is the number of full sweeps over the nodes, including the
	// final sweep that changed nothing.
	Passes int

	// definers lists, per variable, the nodes defining it in CFG order.
	definers map[Variable][]*graph.Node
	order    []*graph.Node
}

func newReachingDefinitions() *ReachingDefinitions {
	return &ReachingDefinitions{
		Gen:      make(map[*graph.Node]DefSet),
		Kill:     make(map[*graph.Node]DefSet),
		In:       make(map[*graph.Node]DefSet),
		Out:      make(map[*graph.Node]DefSet),
		Uses:     make(map[*graph.Node][]Variable),
		definers: make(map[Variable][]*graph.Node),
	}
}

// ComputeReachingDefinitions runs the classic forward may-analysis:
//
//	GEN(n)  = {(n, v) | v defined by n}
//	KILL(n) = {(m, v) | m != n, v defined by both m and n}
//	IN(n)   = union of OUT(p) over predecessors p
//	OUT(n)  = GEN(n) ∪ (IN(n) − KILL(n))
//
// iterating in CFG order until a sweep changes nothing. Synthetic nodes
// define and use nothing. When the oracle fails for an instruction that
// instruction is treated as defining (or using) nothing.
func ComputeReachingDefinitions(cfg *graph.Graph, oracle DefUseOracle) *ReachingDefinitions {
	rd := newReachingDefinitions()
	if cfg == nil || oracle == nil {
		return rd
	}
	rd.order = cfg.Nodes()

	logger := log.Default()
	defined := make(map[*graph.Node][]Variable, len(rd.order))
	for _, n := range rd.order {
		rd.Gen[n] = make(DefSet)
		rd.In[n] = make(DefSet)
		rd.Out[n] = make(DefSet)
		if n.Synthetic() {
			continue
		}

		defs, err := oracle.Definitions(n.Instruction)
		if err != nil {
			logger.Debug("definitions unavailable", "node", n.String(), "error", err)
			defs = nil
		}
		for _, v := range defs {
			if rd.Gen[n].add(Definition{Node: n, Var: v}) {
				defined[n] = append(defined[n], v)
				rd.definers[v] = append(rd.definers[v], n)
			}
		}

		uses, err := oracle.Uses(n.Instruction)
		if err != nil {
			logger.Debug("uses unavailable", "node", n.String(), "error", err)
			uses = nil
		}
		rd.Uses[n] = dedupVariables(uses)
	}

	for _, n := range rd.order {
		kill := make(DefSet)
		for _, v := range defined[n] {
			for _, m := range rd.definers[v] {
				if m != n {
					kill.add(Definition{Node: m, Var: v})
				}
			}
		}
		rd.Kill[n] = kill
	}

	for changed := true; changed; {
		changed = false
		rd.Passes++
		for _, n := range rd.order {
			in := make(DefSet)
			for _, p := range cfg.Predecessors(n) {
				for d := range rd.Out[p] {
					in.add(d)
				}
			}

			out := rd.Gen[n].clone()
			for d := range in {
				if !rd.Kill[n].Contains(d) {
					out.add(d)
				}
			}

			if !in.Equal(rd.In[n]) || !out.Equal(rd.Out[n]) {
				rd.In[n] = in
				rd.Out[n] = out
				changed = true
			}
		}
	}

	logger.Debug("reaching definitions computed", "nodes", len(rd.order), "passes", rd.Passes)
	return rd
}

// ReachingDefiners returns the nodes whose definition of v reaches n, in
// CFG order.
func (rd *ReachingDefinitions) ReachingDefiners(n *graph.Node, v Variable) []*graph.Node {
	in := rd.In[n]
	if len(in) == 0 {
		return nil
	}
	var out []*graph.Node
	for _, m := range rd.definers[v] {
		if in.Contains(Definition{Node: m, Var: v}) {
			out = append(out, m)
		}
	}
	return out
}

func dedupVariables(vars []Variable) []Variable {
	if len(vars) == 0 {
		return nil
	}
	seen := make(map[Variable]struct{}, len(vars))
	out := make([]Variable, 0, len(vars))
	for _, v := range vars {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
