// Package locator resolves a path template to a concrete existing path by
// descending a directory tree level by level and backtracking out of
// branches that hold no matching file.
package locator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"time"

	"github.com/msageha/conductor/internal/logging"
	"github.com/msageha/conductor/internal/pattern"
	"github.com/msageha/conductor/internal/selection"
	"github.com/msageha/conductor/internal/timeslot"
)

// DefaultMaxAttempts bounds how many leaf directories are tried before giving up.
const DefaultMaxAttempts = 20

// Entry is one item of a directory listing.
type Entry struct {
	Name string
	Dir  bool
}

// Lister lists a directory. Implementations return an error wrapping
// fs.ErrNotExist for a missing directory; it is treated as empty.
type Lister interface {
	List(ctx context.Context, dir string) ([]Entry, error)
}

// Reference is the resource whose timeslot and parameters drive the search.
type Reference interface {
	pattern.Context
	Parameters() map[string]string
}

// Request describes one search.
type Request struct {
	Root         string
	Template     string
	LocalPattern string
	Reference    Reference
	Policy       selection.Policy
}

// Result is the located path with the timeslot and parameters read from it.
type Result struct {
	Path       string
	Parameters map[string]string
	Timeslot   time.Time
}

// Locator searches the tree a Lister exposes.
type Locator struct {
	lister      Lister
	logger      *logging.Logger
	maxAttempts int
}

// Option configures a Locator.
type Option func(*Locator)

// WithMaxAttempts sets how many leaf directories are tried. Values below 1 keep the default.
func WithMaxAttempts(n int) Option {
	return func(l *Locator) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

// WithLogger sets the logger; a nil logger discards output.
func WithLogger(logger *logging.Logger) Option {
	return func(l *Locator) {
		l.logger = logger.With("locator")
	}
}

// New returns a Locator listing through lister.
func New(lister Lister, opts ...Option) *Locator {
	l := &Locator{lister: lister, maxAttempts: DefaultMaxAttempts}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Locate returns the best match for req. ok is false when nothing matched
// within the attempt budget. A listing failure aborts the search.
func (l *Locator) Locate(ctx context.Context, req Request) (Result, bool, error) {
	if err := req.Policy.Validate(req.Reference.Parameters()); err != nil {
		return Result{}, false, err
	}
	comps, namePattern := pattern.Split(req.Template)
	excluded := make(map[string]bool)

	for attempt := 0; attempt < l.maxAttempts; attempt++ {
		dir, ok, err := l.findDirectory(ctx, req, comps, excluded)
		if err != nil || !ok {
			return Result{}, false, err
		}
		res, ok, err := l.findInfo(ctx, req, dir, namePattern)
		if err != nil {
			return Result{}, false, err
		}
		if ok {
			l.logger.Debugf("located %s after %d attempt(s)", res.Path, attempt+1)
			return res, true, nil
		}
		l.logger.Debugf("no match in %s, excluding it", dir)
		excluded[dir] = true
	}
	l.logger.Warnf("gave up on %s after %d directories", path.Join(req.Root, req.Template), l.maxAttempts)
	return Result{}, false, nil
}

// findDirectory descends one component per level. When a level has no
// surviving candidate its directory is excluded and descent resumes one
// level up; a dead end at the root means nothing can match.
func (l *Locator) findDirectory(ctx context.Context, req Request, comps []pattern.Component, excluded map[string]bool) (string, bool, error) {
	if excluded[req.Root] {
		return "", false, nil
	}
	stack := []string{req.Root}
	for level := 0; level < len(comps); {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}
		dir := stack[level]
		next, ok, err := l.choose(ctx, req, dir, comps[level], excluded)
		if err != nil {
			return "", false, err
		}
		if !ok {
			if level == 0 {
				return "", false, nil
			}
			excluded[dir] = true
			stack = stack[:level]
			level--
			continue
		}
		stack = append(stack[:level+1], next)
		level++
	}
	return stack[len(stack)-1], true, nil
}

func (l *Locator) choose(ctx context.Context, req Request, dir string, comp pattern.Component, excluded map[string]bool) (string, bool, error) {
	pick := func(name string) (string, bool) {
		p := path.Join(dir, name)
		return p, !excluded[p]
	}
	if comp.Kind == pattern.ComponentLiteral {
		p, ok := pick(comp.Text)
		return p, ok, nil
	}

	selected := comp.Kind == pattern.ComponentParameter && comp.Parameter == req.Policy.Parameter
	temporalFixed := len(comp.Parts) == 0 || comp.LockedBy(req.Policy.Lock)
	if temporalFixed && !selected {
		if rendered := pattern.Render(comp.Text, req.Reference); resolved(rendered) {
			p, ok := pick(rendered)
			return p, ok, nil
		}
	}

	keep := ""
	if selected {
		keep = req.Policy.Parameter
	}
	re, err := regexp.Compile(pattern.ToRegex(comp.Text, req.Reference, pattern.RegexOptions{
		Keep: keep, RenderKnown: true, QuoteLiterals: true, Anchor: true, Locked: req.Policy.Lock,
	}))
	if err != nil {
		return "", false, fmt.Errorf("compile component %q: %w", comp.Text, err)
	}
	entries, err := l.list(ctx, dir)
	if err != nil {
		return "", false, err
	}
	var names []string
	for _, e := range entries {
		if e.Dir && re.MatchString(e.Name) {
			names = append(names, e.Name)
		}
	}

	switch {
	case selected:
		idx := re.SubexpIndex(pattern.GroupName(keep))
		value := func(n string) string {
			if m := re.FindStringSubmatch(n); m != nil && idx >= 0 {
				return m[idx]
			}
			return n
		}
		slices.SortStableFunc(names, func(a, b string) int {
			c := selection.Compare(value(a), value(b))
			if req.Policy.ParameterRule == selection.Highest {
				return -c
			}
			return c
		})
	case len(comp.Parts) > 0:
		selection.SortNames(names, req.Policy.Temporal == selection.Latest)
	default:
		selection.SortNames(names, false)
		if len(names) > 1 {
			l.logger.Warnf("parameter %q in %s is not used for selection, taking %q", comp.Parameter, dir, names[0])
		}
	}
	for _, n := range names {
		if p, ok := pick(n); ok {
			return p, true, nil
		}
	}
	return "", false, nil
}

var timeslotTokenRe = regexp.MustCompile(`\d{12}`)

// findInfo ranks the entries of dir matching namePattern and returns the top one.
func (l *Locator) findInfo(ctx context.Context, req Request, dir, namePattern string) (Result, bool, error) {
	re, err := regexp.Compile(pattern.ToRegex(namePattern, req.Reference, pattern.RegexOptions{
		Keep: req.Policy.Parameter, RenderKnown: true,
	}))
	if err != nil {
		return Result{}, false, fmt.Errorf("compile name pattern %q: %w", namePattern, err)
	}
	entries, err := l.list(ctx, dir)
	if err != nil {
		return Result{}, false, err
	}
	params := pattern.Parameters(req.LocalPattern)
	var cands []selection.Candidate
	for _, e := range entries {
		if !re.MatchString(e.Name) {
			continue
		}
		cands = append(cands, selection.Candidate{
			Path:       path.Join(dir, e.Name),
			Parameters: extractParameters(req.LocalPattern, params, e.Name),
			Timeslot:   extractTimeslot(e.Name),
		})
	}
	top, ok := selection.First(selection.Rank(cands, req.Policy, req.Reference.Timeslot()))
	if !ok {
		return Result{}, false, nil
	}
	return Result(top), true, nil
}

func (l *Locator) list(ctx context.Context, dir string) ([]Entry, error) {
	entries, err := l.lister.List(ctx, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	return entries, nil
}

func extractTimeslot(name string) time.Time {
	tok := timeslotTokenRe.FindString(name)
	if tok == "" {
		return time.Time{}
	}
	ts, err := timeslot.Parse(tok)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func extractParameters(localPattern string, names []string, entry string) map[string]string {
	out := make(map[string]string, len(names))
	for _, n := range names {
		if v, ok := pattern.Extract(localPattern, n, entry); ok {
			out[n] = v
		}
	}
	return out
}

func resolved(s string) bool {
	for _, seg := range pattern.Parse(s) {
		if seg.Kind != pattern.KindLiteral {
			return false
		}
	}
	return true
}
