package mover

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/msageha/conductor/internal/location"
	"github.com/msageha/conductor/internal/lock"
	"github.com/msageha/conductor/internal/logging"
	"github.com/msageha/conductor/internal/model"
)

// Spec describes a mover to build.
type Spec struct {
	Name      string
	URL       location.URL
	DataRoots []string
}

// Registry builds movers on first use and hands out the same instance for
// a (protocol, name) pair afterwards, so connection state is shared.
type Registry struct {
	mu      sync.Mutex
	movers  map[string]Mover
	group   singleflight.Group
	locks   *lock.MutexMap
	dial    Dialer
	timeout time.Duration
	logger  *logging.Logger
}

type RegistryOption func(*Registry)

func WithRegistryDialer(d Dialer) RegistryOption {
	return func(r *Registry) { r.dial = d }
}

func WithRegistryTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.timeout = d }
}

func WithRegistryLogger(l *logging.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		movers:  make(map[string]Mover),
		locks:   lock.NewMutexMap(),
		dial:    DialFTP,
		timeout: DefaultFTPTimeout,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func registryKey(protocol location.Scheme, name string) string {
	return string(protocol) + "/" + name
}

// Get returns the mover registered for spec's protocol and name, creating it if needed.
func (r *Registry) Get(spec Spec) (Mover, error) {
	key := registryKey(spec.URL.Scheme, spec.Name)
	if m, ok := r.Lookup(spec.URL.Scheme, spec.Name); ok {
		return m, nil
	}
	v, err, _ := r.group.Do(key, func() (any, error) {
		if m, ok := r.Lookup(spec.URL.Scheme, spec.Name); ok {
			return m, nil
		}
		m, err := r.build(spec)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.movers[key] = m
		r.mu.Unlock()
		r.logger.Debugf("created %s mover %q", spec.URL.Scheme, spec.Name)
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Mover), nil
}

func (r *Registry) build(spec Spec) (Mover, error) {
	switch spec.URL.Scheme {
	case location.SchemeFile, "":
		return NewLocal(spec.Name, spec.DataRoots, r.logger), nil
	case location.SchemeFTP:
		return NewFTP(spec.Name, spec.URL, spec.DataRoots, r.logger,
			WithDialer(r.dial), WithTimeout(r.timeout), WithLocks(r.locks)), nil
	}
	return nil, model.Errorf(model.KindInvalidScheme, "no mover for protocol %q", spec.URL.Scheme)
}

func (r *Registry) Lookup(protocol location.Scheme, name string) (Mover, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.movers[registryKey(protocol, name)]
	return m, ok
}

// Reset re-enables a failed FTP mover.
func (r *Registry) Reset(protocol location.Scheme, name string) error {
	m, ok := r.Lookup(protocol, name)
	if !ok {
		return model.Errorf(model.KindNotDefined, "mover %s", registryKey(protocol, name))
	}
	if f, ok := m.(*FTP); ok {
		f.Reset()
	}
	return nil
}

// Close quits every open remote connection.
func (r *Registry) Close() error {
	r.mu.Lock()
	movers := make([]Mover, 0, len(r.movers))
	for _, m := range r.movers {
		movers = append(movers, m)
	}
	r.mu.Unlock()

	var firstErr error
	for _, m := range movers {
		if f, ok := m.(*FTP); ok {
			if err := f.Close(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("close %s: %w", f.Name(), err)
			}
		}
	}
	return firstErr
}
