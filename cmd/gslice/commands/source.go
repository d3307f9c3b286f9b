package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/l3aro/go-program-slicer/internal/log"
	"github.com/l3aro/go-program-slicer/pkg/cfg"
	"github.com/l3aro/go-program-slicer/pkg/pdg"
)

// readSource reads a Go source file named on the command line.
func readSource(filePath string) ([]byte, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, expected a file: %s", filePath)
	}
	if !isGoFile(filePath) {
		return nil, fmt.Errorf("unsupported file type: %s (only .go files supported)", filePath)
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return content, nil
}

func isGoFile(filePath string) bool {
	return strings.HasSuffix(filePath, ".go")
}

// parseMethod builds the CFG of functionName, suggesting a close match when
// the function does not exist.
func parseMethod(filePath string, content []byte, functionName string) (*cfg.Method, error) {
	m, err := cfg.ParseGo(content, functionName)
	if err != nil {
		if errors.Is(err, cfg.ErrFunctionNotFound) {
			if suggestions := similarFunctions(content, functionName); len(suggestions) > 0 {
				return nil, fmt.Errorf("function %q not found in %s: %w\nDid you mean: %s?",
					functionName, filePath, cfg.ErrFunctionNotFound, suggestions[0])
			}
			return nil, fmt.Errorf("function %q not found in %s: %w", functionName, filePath, cfg.ErrFunctionNotFound)
		}
		return nil, fmt.Errorf("extracting CFG: %w", err)
	}
	m.FilePath = filePath
	return m, nil
}

// similarFunctions lists the functions of content whose name resembles
// name: case-insensitive matches first, then prefix, then substring matches.
// A method also matches exactly on its name without the receiver.
func similarFunctions(content []byte, name string) []string {
	lower := strings.ToLower(name)
	if lower == "" {
		return nil
	}

	var exact, prefix, contains []string
	for _, fn := range cfg.ListFunctions(content) {
		candidate := strings.ToLower(fn)
		method := candidate[strings.LastIndex(candidate, ".")+1:]
		switch {
		case candidate == lower || method == lower:
			exact = append(exact, fn)
		case strings.HasPrefix(candidate, lower) || strings.HasPrefix(lower, candidate):
			prefix = append(prefix, fn)
		case strings.Contains(candidate, lower) || strings.Contains(lower, candidate):
			contains = append(contains, fn)
		}
	}
	return append(append(exact, prefix...), contains...)
}

// computePDG builds and fully evaluates the PDG of a function so that the
// syntax tree can be released before the graph is used.
func computePDG(filePath string, content []byte, functionName string) (*pdg.PDG, error) {
	m, err := parseMethod(filePath, content, functionName)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	p := pdg.ForMethod(m)
	p.Graph()
	return p, nil
}

// loadPDG returns the PDG of a function, going through the snapshot cache
// when one is configured.
func (a *app) loadPDG(filePath string, content []byte, functionName string) (*pdg.PDG, error) {
	store, err := a.cacheStore()
	if err != nil {
		log.Default().Warn("Snapshot cache unavailable", "dir", a.cfg.CacheDir, "error", err)
		store = nil
	}
	if store == nil {
		return computePDG(filePath, content, functionName)
	}

	snap, hit, err := store.GetOrCompute(filePath, content, functionName, func() (*pdg.PDG, error) {
		return computePDG(filePath, content, functionName)
	})
	if err != nil {
		return nil, err
	}
	log.Default().Debug("PDG snapshot loaded", "file", filePath, "function", functionName, "cache_hit", hit)
	return snap.Restore()
}
