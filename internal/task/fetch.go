package task

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sync"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/msageha/conductor/internal/model"
	"github.com/msageha/conductor/internal/pattern"
	"github.com/msageha/conductor/internal/resource"
)

// FetchInputs fetches every active input into the inputs directory on a
// bounded worker pool. An input that cannot be fetched maps to "". Only
// cancellation aborts the fetch; partial results stay on disk.
func (t *Task) FetchInputs(ctx context.Context) (map[*resource.TaskResource]string, error) {
	inputs := t.ActiveInputs()
	fetched := make(map[*resource.TaskResource]string, len(inputs))
	if len(inputs) == 0 {
		return fetched, nil
	}

	var (
		mu    sync.Mutex
		done  int
		bytes uint64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for _, inp := range inputs {
		g.Go(func() error {
			p, err := t.fetchOne(gctx, inp)
			if err != nil {
				return err
			}
			var size uint64
			if fi, err := os.Stat(p); p != "" && err == nil {
				size = uint64(fi.Size())
			}

			t.recordPath(inp, p)
			mu.Lock()
			defer mu.Unlock()
			fetched[inp] = p
			done++
			bytes += size
			t.setProgress(done * 40 / len(inputs))
			t.setDetails("fetched %d/%d input(s), %s", done, len(inputs), humanize.Bytes(bytes))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fetched, nil
}

func (t *Task) fetchOne(ctx context.Context, inp *resource.TaskResource) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	t.logger.Infof("%s: fetching %s", t.name, inp)
	p, err := inp.Fetch(ctx, t.InputsDir())
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, model.ErrResourceNotFound) {
			t.logger.Warnf("%s: input %s not found", t.name, inp)
		} else {
			t.logger.Errorf("%s: fetch %s: %v", t.name, inp, err)
		}
		return "", nil
	}
	if t.decompress {
		if p, err = resource.Decompress(p); err != nil {
			t.logger.Errorf("%s: %v", t.name, err)
			return "", nil
		}
	}
	return p, nil
}

// AbleToExecute returns the names of mandatory active inputs that were
// not fetched. Inactive inputs impose nothing.
func (t *Task) AbleToExecute(fetched map[*resource.TaskResource]string) []string {
	var missing []string
	for _, inp := range t.inputs {
		if !inp.Active() || inp.Optional() {
			continue
		}
		if fetched[inp] == "" {
			missing = append(missing, inp.String())
		}
	}
	return missing
}

// CheckOutputs looks for every active output in the outputs directory and
// returns what it found plus the names of what it did not.
func (t *Task) CheckOutputs() (map[*resource.TaskResource]string, []string) {
	found := make(map[*resource.TaskResource]string)
	var missing []string
	for _, out := range t.ActiveOutputs() {
		p, err := findLocal(t.OutputsDir(), out.Resource)
		if err != nil {
			t.logger.Warnf("%s: %v", t.name, err)
		}
		if p == "" {
			missing = append(missing, out.String())
			continue
		}
		found[out] = p
		t.recordPath(out, p)
	}
	return found, missing
}

// findLocal returns the first file in dir whose name matches the
// resource's rendered local pattern.
func findLocal(dir string, r *resource.Resource) (string, error) {
	if r.LocalPattern() == "" {
		return "", fmt.Errorf("%s has no local pattern", r.Name())
	}
	re, err := regexp.Compile(pattern.Render(r.LocalPattern(), r))
	if err != nil {
		return "", fmt.Errorf("local pattern of %s: %w", r.Name(), err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.Type().IsRegular() && re.MatchString(e.Name()) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", nil
}

// PostOutputs is the default publisher: each path is posted to its
// resource's post locations.
func PostOutputs(ctx context.Context, t *Task, _ any, paths map[*resource.TaskResource]string) error {
	for _, tr := range slices.Concat(t.outputs, t.inputs) {
		p, ok := paths[tr]
		if !ok || p == "" {
			continue
		}
		posted, err := tr.Resource.Post(ctx, p)
		if err != nil {
			return err
		}
		t.logger.Infof("%s: published %s to %d location(s)", t.name, filepath.Base(p), len(posted))
	}
	return nil
}
