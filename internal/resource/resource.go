// Package resource models dated, parameterised resources and the task
// resources built from them.
package resource

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/msageha/conductor/internal/location"
	"github.com/msageha/conductor/internal/locator"
	"github.com/msageha/conductor/internal/logging"
	"github.com/msageha/conductor/internal/model"
	"github.com/msageha/conductor/internal/mover"
	"github.com/msageha/conductor/internal/pattern"
)

// Env carries the collaborators every resource shares.
type Env struct {
	Movers      *mover.Registry
	Logger      *logging.Logger
	MaxAttempts int
}

// Resource is a named, dated, parameterised entity. Name, URN and path
// templates are rendered against the current timeslot and parameters each
// time they are read. The timeslot and parameters may be read while a
// locate on another goroutine updates them.
type Resource struct {
	name         string
	urn          string
	localPattern string
	collection   *model.CollectionConfig

	mu         sync.RWMutex
	timeslot   time.Time
	parameters map[string]string

	get  []Location
	post []Location
	find []Location

	env    *Env
	logger *logging.Logger
}

func New(name, urn, localPattern string, ts time.Time, parameters map[string]string, env *Env) *Resource {
	if env == nil {
		env = &Env{}
	}
	if env.Movers == nil {
		env.Movers = mover.NewRegistry(mover.WithRegistryLogger(env.Logger))
	}
	params := make(map[string]string, len(parameters))
	maps.Copy(params, parameters)
	return &Resource{
		name:         name,
		urn:          urn,
		localPattern: localPattern,
		timeslot:     ts,
		parameters:   params,
		env:          env,
		logger:       env.Logger.With("resource"),
	}
}

// Clone returns an independent copy; locations and the environment are shared.
func (r *Resource) Clone() *Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	params := maps.Clone(r.parameters)
	if params == nil {
		params = make(map[string]string)
	}
	return &Resource{
		name:         r.name,
		urn:          r.urn,
		localPattern: r.localPattern,
		collection:   r.collection,
		timeslot:     r.timeslot,
		parameters:   params,
		get:          r.get,
		post:         r.post,
		find:         r.find,
		env:          r.env,
		logger:       r.logger,
	}
}

func (r *Resource) Name() string         { return pattern.Render(r.name, r) }
func (r *Resource) URN() string          { return pattern.Render(r.urn, r) }
func (r *Resource) SafeName() string     { return strings.ReplaceAll(r.Name(), " ", "_") }
func (r *Resource) LocalPattern() string { return r.localPattern }

func (r *Resource) Timeslot() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.timeslot
}

func (r *Resource) SetTimeslot(ts time.Time) {
	r.mu.Lock()
	r.timeslot = ts
	r.mu.Unlock()
}

func (r *Resource) SetCollection(c model.CollectionConfig) { r.collection = &c }

// Parameter reports a parameter's value. Empty values count as unknown.
func (r *Resource) Parameter(name string) (string, bool) {
	r.mu.RLock()
	v := r.parameters[name]
	r.mu.RUnlock()
	return v, v != ""
}

func (r *Resource) SetParameter(name, value string) {
	r.mu.Lock()
	r.parameters[name] = value
	r.mu.Unlock()
}

func (r *Resource) Parameters() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.parameters)
}

// Field resolves {name}, {urn}, {safe_name} and {collection.*} placeholders.
func (r *Resource) Field(name string) (string, bool) {
	switch name {
	case "name":
		return r.name, true
	case "urn":
		return r.urn, true
	case "safe_name":
		return strings.ReplaceAll(r.name, " ", "_"), true
	case "collection.short_name", "collection.name":
		if r.collection == nil {
			return "", false
		}
		if name == "collection.name" {
			return r.collection.Name, true
		}
		return r.collection.ShortName, true
	}
	return "", false
}

func (r *Resource) String() string {
	return r.URN()
}

func (r *Resource) AddLocation(m Method, loc Location) {
	switch m {
	case MethodGet:
		r.get = append(r.get, loc)
	case MethodPost:
		r.post = append(r.post, loc)
	case MethodFind:
		r.find = append(r.find, loc)
	}
}

func (r *Resource) Locations(m Method) []Location {
	switch m {
	case MethodGet:
		return slices.Clone(r.get)
	case MethodPost:
		return slices.Clone(r.post)
	case MethodFind:
		return slices.Clone(r.find)
	}
	return nil
}

func (r *Resource) mover(loc Location, u location.URL) (mover.Mover, error) {
	return r.env.Movers.Get(loc.moverSpec(u))
}

// unavailable reports errors that only rule out one location.
func unavailable(err error) bool {
	return errors.Is(err, model.ErrHostUnreachable) ||
		errors.Is(err, model.ErrInvalidCredentials) ||
		errors.Is(err, model.ErrInvalidScheme) ||
		errors.Is(err, model.ErrResourceNotFound)
}

// Locate runs the directory search for every find location in order and
// updates the timeslot and parameters in place from the first match.
func (r *Resource) Locate(ctx context.Context) (bool, error) {
	for _, loc := range r.find {
		for _, u := range loc.URLs {
			m, err := r.mover(loc, u)
			if err != nil {
				r.logger.Warnf("locate %s in %s: %v", r.Name(), u.Redacted(), err)
				continue
			}
			root := "/"
			if !path.IsAbs(u.Path) {
				root = "."
			}
			r.logger.Debugf("trying to locate %s in %s", r.Name(), u.Redacted())
			res, ok, err := locator.New(m,
				locator.WithMaxAttempts(r.env.MaxAttempts),
				locator.WithLogger(r.env.Logger),
			).Locate(ctx, locator.Request{
				Root:         root,
				Template:     strings.TrimPrefix(u.Path, "/"),
				LocalPattern: r.localPattern,
				Reference:    r,
				Policy:       loc.Policy,
			})
			if err != nil {
				if unavailable(err) {
					r.logger.Warnf("locate %s in %s: %v", r.Name(), u.Redacted(), err)
					continue
				}
				return false, fmt.Errorf("locate %s: %w", r.Name(), err)
			}
			if !ok {
				continue
			}
			r.apply(res)
			r.logger.Infof("located %s at %s", r.Name(), res.Path)
			return true, nil
		}
	}
	return false, nil
}

func (r *Resource) apply(res locator.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !res.Timeslot.IsZero() {
		r.timeslot = res.Timeslot
	}
	for k, v := range res.Parameters {
		if v != "" {
			r.parameters[k] = v
		}
	}
}

// Find searches the get locations for paths matching the rendered
// location path, trying cheaper schemes first. The first mover that
// returns any match wins.
func (r *Resource) Find(ctx context.Context) (mover.Mover, []string, error) {
	type target struct {
		loc Location
		u   location.URL
	}
	var targets []target
	for _, loc := range r.get {
		for _, u := range loc.URLs {
			targets = append(targets, target{loc, u})
		}
	}
	slices.SortStableFunc(targets, func(a, b target) int {
		return a.u.Scheme.Priority() - b.u.Scheme.Priority()
	})
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		m, err := r.mover(t.loc, t.u)
		if err != nil {
			r.logger.Warnf("find %s: %v", r.Name(), err)
			continue
		}
		found, err := m.Find(ctx, pattern.Render(t.u.Path, r))
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			r.logger.Warnf("find %s on %s: %v", r.Name(), m.Name(), err)
			continue
		}
		if len(found) > 0 {
			return m, found, nil
		}
	}
	return nil, nil, nil
}

// Get fetches the resource into destDir from the first get location that
// has it.
func (r *Resource) Get(ctx context.Context, destDir string) (string, error) {
	var errs []error
	for _, loc := range r.get {
		for _, u := range loc.URLs {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			m, err := r.mover(loc, u)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			src := pattern.Render(u.Path, r)
			r.logger.Debugf("trying %s", u.Redacted())
			got, err := m.Fetch(ctx, destDir, src)
			if err != nil {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				r.logger.Debugf("get %s from %s: %v", r.Name(), m.Name(), err)
				errs = append(errs, err)
				continue
			}
			if len(got) > 0 {
				return got[0], nil
			}
		}
	}
	return "", model.WrapError(model.KindResourceNotFound, errors.Join(errs...), "%s", r.Name())
}

// Post uploads localPath to every post location and returns where it went.
// Failures at one location do not stop the others.
func (r *Resource) Post(ctx context.Context, localPath string) ([]string, error) {
	var posted []string
	var errs []error
	for _, loc := range r.post {
		for _, u := range loc.URLs {
			if err := ctx.Err(); err != nil {
				return posted, err
			}
			m, err := r.mover(loc, u)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			dest := pattern.Render(u.Path, r)
			r.logger.Debugf("posting %s to %s", localPath, u.Redacted())
			got, err := m.Post(ctx, dest, localPath)
			if err != nil {
				r.logger.Errorf("could not post to %s: %v", u.Redacted(), err)
				errs = append(errs, err)
				continue
			}
			posted = append(posted, got...)
		}
	}
	if len(posted) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("post %s: %w", r.Name(), errors.Join(errs...))
	}
	return posted, nil
}

// Delete removes every path Find reports, from the mover it was found on.
func (r *Resource) Delete(ctx context.Context) ([]string, error) {
	m, found, err := r.Find(ctx)
	if err != nil || m == nil {
		return nil, err
	}
	if err := m.Delete(ctx, found...); err != nil {
		return nil, fmt.Errorf("delete %s: %w", r.Name(), err)
	}
	r.logger.Infof("deleted %d path(s) for %s from %s", len(found), r.Name(), m.Name())
	return found, nil
}
