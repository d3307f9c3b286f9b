package coverage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/tools/cover"
)

// ErrFileNotInProfile is returned when a coverage profile has no blocks for
// the requested source file.
var ErrFileNotInProfile = errors.New("file not found in coverage profile")

// ErrAmbiguousFile is returned when several profile entries match the
// requested source file equally well.
var ErrAmbiguousFile = errors.New("file matches several coverage profile entries")

// LinesFromProfile reads a `go test -coverprofile` file and returns the
// lines of sourceFile covered by at least one executed block.
//
// Profiles name files by import path. When sourceFile lives inside a module
// its import path is derived from the enclosing go.mod; otherwise the entry
// sharing the longest trailing run of path components wins.
func LinesFromProfile(profilePath, sourceFile string) (LineSet, error) {
	profiles, err := cover.ParseProfiles(profilePath)
	if err != nil {
		return nil, fmt.Errorf("parsing coverage profile %s: %w", profilePath, err)
	}
	return linesFromProfiles(profiles, sourceFile)
}

func linesFromProfiles(profiles []*cover.Profile, sourceFile string) (LineSet, error) {
	name, err := matchProfile(profiles, sourceFile)
	if err != nil {
		return nil, err
	}
	tracker := NewTracker()
	for _, p := range profiles {
		if p.FileName != name {
			continue
		}
		for _, b := range p.Blocks {
			if b.Count == 0 {
				continue
			}
			for line := b.StartLine; line <= b.EndLine; line++ {
				tracker.Record(line)
			}
		}
	}
	return tracker.Lines(), nil
}

// matchProfile picks the profile file name that denotes sourceFile.
func matchProfile(profiles []*cover.Profile, sourceFile string) (string, error) {
	if importPath, ok := moduleImportPath(sourceFile); ok {
		for _, p := range profiles {
			if p.FileName == importPath {
				return importPath, nil
			}
		}
	}

	want := components(sourceFile)
	best := 0
	var candidates []string
	seen := make(map[string]bool)
	for _, p := range profiles {
		if seen[p.FileName] {
			continue
		}
		seen[p.FileName] = true
		n := commonSuffix(components(p.FileName), want)
		switch {
		case n == 0 || n < best:
		case n > best:
			best = n
			candidates = []string{p.FileName}
		default:
			candidates = append(candidates, p.FileName)
		}
	}

	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("%s: %w", sourceFile, ErrFileNotInProfile)
	case 1:
		return candidates[0], nil
	default:
		sort.Strings(candidates)
		return "", fmt.Errorf("%s: %w: %s", sourceFile, ErrAmbiguousFile, strings.Join(candidates, ", "))
	}
}

// moduleImportPath derives the import path of file from the nearest go.mod
// above it.
func moduleImportPath(file string) (string, bool) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", false
	}
	for dir := filepath.Dir(abs); ; {
		data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
		if err == nil {
			module := modfile.ModulePath(data)
			if module == "" {
				return "", false
			}
			rel, err := filepath.Rel(dir, abs)
			if err != nil {
				return "", false
			}
			return module + "/" + filepath.ToSlash(rel), true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func components(path string) []string {
	var parts []string
	for _, part := range strings.Split(filepath.ToSlash(filepath.Clean(path)), "/") {
		if part != "" && part != "." {
			parts = append(parts, part)
		}
	}
	return parts
}

// commonSuffix counts the trailing path components a and b share.
func commonSuffix(a, b []string) int {
	n := 0
	for i, j := len(a)-1, len(b)-1; i >= 0 && j >= 0 && a[i] == b[j]; i, j = i-1, j-1 {
		n++
	}
	return n
}
