package pdg

import (
	"fmt"

	"github.com/l3aro/go-program-slicer/pkg/cfg"
	"github.com/l3aro/go-program-slicer/pkg/dfg"
)

// ExtractGoPDG builds the PDG of a function in a Go file. The returned
// method owns the syntax tree the PDG's instructions point into; close it
// once the PDG is no longer needed.
func ExtractGoPDG(filePath string, functionName string) (*cfg.Method, *PDG, error) {
	m, err := cfg.ExtractGoCFG(filePath, functionName)
	if err != nil {
		return nil, nil, fmt.Errorf("extracting CFG: %w", err)
	}
	return m, ForMethod(m), nil
}

// ParseGoPDG is ExtractGoPDG for in-memory source.
func ParseGoPDG(content []byte, functionName string) (*cfg.Method, *PDG, error) {
	m, err := cfg.ParseGo(content, functionName)
	if err != nil {
		return nil, nil, fmt.Errorf("extracting CFG: %w", err)
	}
	return m, ForMethod(m), nil
}

// ForMethod returns the PDG of m using the Go def/use oracle.
func ForMethod(m *cfg.Method) *PDG {
	return New(m.CFG, dfg.NewGoOracle(m))
}
