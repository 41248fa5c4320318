package mover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/msageha/conductor/internal/location"
	"github.com/msageha/conductor/internal/locator"
	"github.com/msageha/conductor/internal/logging"
	"github.com/msageha/conductor/internal/model"
)

// Local moves files within the local filesystem. It is safe for concurrent use.
type Local struct {
	name   string
	roots  []string
	logger *logging.Logger
}

// NewLocal returns a Local mover. With no roots it searches the user's home directory.
func NewLocal(name string, roots []string, logger *logging.Logger) *Local {
	if len(roots) == 0 {
		if home, err := os.UserHomeDir(); err == nil {
			roots = []string{home}
		}
	}
	return &Local{name: name, roots: slices.Clone(roots), logger: logger.With("mover.local")}
}

func (l *Local) Name() string              { return l.name }
func (l *Local) Protocol() location.Scheme { return location.SchemeFile }
func (l *Local) DataRoots() []string       { return slices.Clone(l.roots) }

func (l *Local) Find(ctx context.Context, patterns ...string) ([]string, error) {
	var found []string
	for _, p := range patterns {
		targets, err := prepareFind(l.roots, p)
		if err != nil {
			return nil, fmt.Errorf("find %q: %w", p, err)
		}
		for _, t := range targets {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			entries, err := os.ReadDir(t.dir)
			if err != nil {
				l.logger.Warnf("find in %s: %v", t.dir, err)
				continue
			}
			for _, e := range entries {
				if t.name.MatchString(e.Name()) {
					found = append(found, filepath.Join(t.dir, e.Name()))
				}
			}
		}
	}
	return found, nil
}

func (l *Local) Fetch(ctx context.Context, destDir string, paths ...string) ([]string, error) {
	return l.copyAll(ctx, destDir, paths)
}

func (l *Local) Post(ctx context.Context, destDir string, paths ...string) ([]string, error) {
	return l.copyAll(ctx, destDir, paths)
}

func (l *Local) copyAll(ctx context.Context, destDir string, paths []string) ([]string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", destDir, err)
	}
	copied := make([]string, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		target := filepath.Join(destDir, filepath.Base(p))
		if err := copyFile(p, target); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return copied, model.WrapError(model.KindLocalPathNotFound, err, "copy %s", p)
			}
			return copied, fmt.Errorf("copy %s: %w", p, err)
		}
		copied = append(copied, target)
	}
	return copied, nil
}

func copyFile(src, dst string) error {
	if same, _ := samePath(src, dst); same {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

func samePath(a, b string) (bool, error) {
	sa, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	sb, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	return os.SameFile(sa, sb), nil
}

// Delete removes each path and then any parent directories left empty,
// stopping at the data roots. Failures to remove parents are ignored.
func (l *Local) Delete(ctx context.Context, paths ...string) error {
	var errs []error
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.Remove(p); err != nil {
			l.logger.Errorf("delete %s: %v", p, err)
			errs = append(errs, err)
			continue
		}
		l.removeEmptyParents(filepath.Dir(p))
	}
	return errors.Join(errs...)
}

func (l *Local) removeEmptyParents(dir string) {
	for dir != "/" && dir != "." && !l.isRoot(dir) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func (l *Local) isRoot(dir string) bool {
	for _, r := range l.roots {
		if filepath.Clean(r) == dir {
			return true
		}
	}
	return false
}

func (l *Local) List(_ context.Context, dir string) ([]locator.Entry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]locator.Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, locator.Entry{Name: e.Name(), Dir: e.IsDir()})
	}
	return out, nil
}
