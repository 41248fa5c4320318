// Package mover moves resource representations between the local
// filesystem and remote servers.
package mover

import (
	"context"
	"path"
	"regexp"
	"strings"

	"github.com/msageha/conductor/internal/location"
	"github.com/msageha/conductor/internal/locator"
)

// Mover locates, retrieves, uploads and removes files on one server.
// Every Mover is also a locator.Lister.
type Mover interface {
	Name() string
	Protocol() location.Scheme
	DataRoots() []string
	// Find returns the paths matching each pattern. A pattern is a
	// directory plus a regular expression for the file name; relative
	// patterns are tried under every data root.
	Find(ctx context.Context, patterns ...string) ([]string, error)
	// Fetch copies paths into destDir, creating it if needed, and returns the local copies.
	Fetch(ctx context.Context, destDir string, paths ...string) ([]string, error)
	// Post copies local paths into destDir on the mover's server.
	Post(ctx context.Context, destDir string, paths ...string) ([]string, error)
	Delete(ctx context.Context, paths ...string) error
	List(ctx context.Context, dir string) ([]locator.Entry, error)
}

type findTarget struct {
	dir  string
	name *regexp.Regexp
}

// prepareFind expands a pattern into (directory, name regexp) pairs.
func prepareFind(roots []string, pattern string) ([]findTarget, error) {
	var full []string
	if strings.HasPrefix(pattern, "/") || len(roots) == 0 {
		full = []string{pattern}
	} else {
		for _, r := range roots {
			full = append(full, path.Join(r, pattern))
		}
	}
	targets := make([]findTarget, 0, len(full))
	for _, f := range full {
		dir, name := path.Split(f)
		if name == "" {
			name = ".*"
		}
		re, err := regexp.Compile(name)
		if err != nil {
			return nil, err
		}
		targets = append(targets, findTarget{dir: path.Clean(dir), name: re})
	}
	return targets, nil
}
