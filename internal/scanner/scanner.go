// Package scanner finds the Go source files under a directory. It skips
// hidden and vendored directories and honours .gsliceignore files with
// gitignore-style glob patterns.
package scanner

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Options configures the scanner behavior.
type Options struct {
	IncludeTests    bool     // Also return _test.go files
	DefaultExcludes []string // Directory names never descended into
	IgnoreFileName  string   // Name of the ignore file (default: .gsliceignore)
}

// DefaultOptions returns scanner options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		IncludeTests:   false,
		IgnoreFileName: ".gsliceignore",
		DefaultExcludes: []string{
			"vendor",
			"testdata",
			"node_modules",
		},
	}
}

// ignoreRule is one line of an ignore file. Patterns without a slash match
// any path element; patterns with one match the path relative to the
// directory holding the ignore file.
type ignoreRule struct {
	base    string // Slash path of the directory holding the ignore file, relative to root
	pattern string
	negate  bool
	dirOnly bool
}

func (r ignoreRule) match(rel string, isDir bool) bool {
	if r.dirOnly && !isDir {
		return false
	}
	if r.base != "" {
		if !strings.HasPrefix(rel, r.base+"/") {
			return false
		}
		rel = strings.TrimPrefix(rel, r.base+"/")
	}
	if strings.Contains(r.pattern, "/") {
		ok, _ := path.Match(strings.TrimPrefix(r.pattern, "/"), rel)
		return ok
	}
	ok, _ := path.Match(r.pattern, path.Base(rel))
	return ok
}

// Find returns the Go source files under root as slash-separated paths
// relative to root, sorted. A root naming a file returns that file.
func Find(root string, opts Options) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return []string{filepath.Base(root)}, nil
	}

	var (
		rules []ignoreRule
		files []string
	)
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." {
				if isExcluded(d.Name(), opts) || ignored(rules, rel, true) {
					return filepath.SkipDir
				}
			}
			nested, err := loadIgnoreFile(p, rel, opts.IgnoreFileName)
			if err != nil {
				return err
			}
			rules = append(rules, nested...)
			return nil
		}

		name := d.Name()
		if !strings.HasSuffix(name, ".go") || strings.HasPrefix(name, ".") {
			return nil
		}
		if !opts.IncludeTests && strings.HasSuffix(name, "_test.go") {
			return nil
		}
		if ignored(rules, rel, false) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

func isExcluded(name string, opts Options) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
		return true
	}
	for _, exclude := range opts.DefaultExcludes {
		if name == exclude {
			return true
		}
	}
	return false
}

// ignored applies rules in order; a later negated rule re-includes a path.
func ignored(rules []ignoreRule, rel string, isDir bool) bool {
	out := false
	for _, r := range rules {
		if r.match(rel, isDir) {
			out = !r.negate
		}
	}
	return out
}

// loadIgnoreFile reads the ignore file of dir, if any.
func loadIgnoreFile(dir, rel, name string) ([]ignoreRule, error) {
	if name == "" {
		return nil, nil
	}
	file, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	base := rel
	if base == "." {
		base = ""
	}

	var rules []ignoreRule
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r := ignoreRule{base: base}
		if strings.HasPrefix(line, "!") {
			r.negate = true
			line = line[1:]
		}
		if strings.HasSuffix(line, "/") {
			r.dirOnly = true
			line = strings.TrimSuffix(line, "/")
		}
		r.pattern = line
		rules = append(rules, r)
	}
	return rules, scanner.Err()
}
