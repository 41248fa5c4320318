package settings

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/msageha/conductor/internal/location"
	"github.com/msageha/conductor/internal/logging"
	"github.com/msageha/conductor/internal/model"
	"github.com/msageha/conductor/internal/mover"
	"github.com/msageha/conductor/internal/resource"
	"github.com/msageha/conductor/internal/task"
)

// Provider serves a validated settings document and builds runtime
// objects from it. Movers are shared through one registry.
type Provider struct {
	path   string
	logOut io.Writer
	dialer mover.Dialer

	mu     sync.RWMutex
	doc    model.Settings
	env    *resource.Env
	logger *logging.Logger
}

type Option func(*Provider)

// WithLogOutput sets where the provider's logger writes. Defaults to stderr.
func WithLogOutput(w io.Writer) Option {
	return func(p *Provider) { p.logOut = w }
}

// WithDialer replaces the FTP dialer of the mover registry.
func WithDialer(d mover.Dialer) Option {
	return func(p *Provider) { p.dialer = d }
}

// Open loads, validates and serves the settings file at path.
func Open(path string, opts ...Option) (*Provider, error) {
	doc, err := Load(path)
	if err != nil {
		return nil, err
	}
	p, err := New(doc, opts...)
	if err != nil {
		return nil, err
	}
	p.path = path
	return p, nil
}

// New serves an in-memory settings document.
func New(doc model.Settings, opts ...Option) (*Provider, error) {
	if err := Validate(doc); err != nil {
		return nil, err
	}
	p := &Provider{logOut: os.Stderr}
	for _, o := range opts {
		o(p)
	}
	p.install(doc)
	return p, nil
}

// install swaps in doc with a fresh logger and mover registry. Objects
// built earlier keep the environment they were built with.
func (p *Provider) install(doc model.Settings) {
	logger := logging.New(p.logOut, logging.ParseLevel(doc.Conductor.Logging.Level))
	ropts := []mover.RegistryOption{mover.WithRegistryLogger(logger)}
	if doc.Conductor.FTPTimeoutSec > 0 {
		ropts = append(ropts, mover.WithRegistryTimeout(time.Duration(doc.Conductor.FTPTimeoutSec)*time.Second))
	}
	if p.dialer != nil {
		ropts = append(ropts, mover.WithRegistryDialer(p.dialer))
	}
	env := &resource.Env{
		Movers:      mover.NewRegistry(ropts...),
		Logger:      logger,
		MaxAttempts: doc.Conductor.MaxDirectoryAttempts,
	}

	p.mu.Lock()
	old := p.env
	p.doc, p.env, p.logger = doc, env, logger
	p.mu.Unlock()
	if old != nil {
		_ = old.Movers.Close()
	}
}

func (p *Provider) Path() string { return p.path }

func (p *Provider) Settings() model.Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.doc
}

func (p *Provider) Logger() *logging.Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.logger
}

func (p *Provider) Env() *resource.Env {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.env
}

// Close quits every remote connection opened through the provider.
func (p *Provider) Close() error {
	return p.Env().Movers.Close()
}

func (p *Provider) server(name string) (model.ServerConfig, bool) {
	for _, s := range p.Settings().Servers {
		if s.Name == name {
			return s, true
		}
	}
	return model.ServerConfig{}, false
}

// GetMover returns the mover for a server and protocol. Post movers are
// named "<server>:post".
func (p *Provider) GetMover(name string, protocol location.Scheme) (mover.Mover, error) {
	serverName, method := name, resource.MethodGet
	if s, ok := strings.CutSuffix(name, ":post"); ok {
		serverName, method = s, resource.MethodPost
	}
	server, ok := p.server(serverName)
	if !ok {
		return nil, model.Errorf(model.KindNotDefined, "server %q", serverName)
	}
	for _, sc := range server.Schemes {
		m := resource.Method(strings.ToLower(sc.Method))
		if m == "" {
			m = resource.MethodGet
		}
		scheme, err := location.ParseScheme(sc.SchemeName)
		if err != nil || scheme != protocol || m != method {
			continue
		}
		return p.Env().Movers.Get(mover.Spec{
			Name: name,
			URL: location.URL{
				Scheme:   scheme,
				Host:     server.Domain,
				Port:     sc.PortNumber,
				User:     sc.UserName,
				Password: sc.UserPassword,
			},
			DataRoots: sc.BasePaths,
		})
	}
	return nil, model.Errorf(model.KindNotDefined, "%s mover %q", protocol, name)
}

// GetResource builds the named resource at ts with its locations.
func (p *Provider) GetResource(name string, ts time.Time) (*resource.Resource, error) {
	doc := p.Settings()
	var cfg *model.ResourceConfig
	for i := range doc.Resources {
		if doc.Resources[i].Name == name {
			cfg = &doc.Resources[i]
			break
		}
	}
	if cfg == nil {
		return nil, model.Errorf(model.KindNotDefined, "resource %q", name)
	}

	params := make(map[string]string, len(cfg.Parameters))
	for _, pc := range cfg.Parameters {
		params[pc.Name] = pc.Value
	}
	r := resource.New(cfg.Name, cfg.URN, cfg.LocalPattern, ts, params, p.Env())
	if cfg.Collection != "" {
		for _, c := range doc.Collections {
			if c.ShortName == cfg.Collection {
				r.SetCollection(c)
			}
		}
	}
	for _, group := range []struct {
		method resource.Method
		locs   []model.LocationConfig
	}{
		{resource.MethodGet, cfg.GetLocations},
		{resource.MethodPost, cfg.PostLocations},
		{resource.MethodFind, cfg.FindLocations},
	} {
		for _, lc := range group.locs {
			server, ok := p.server(lc.Server)
			if !ok {
				return nil, model.Errorf(model.KindNotDefined, "server %q of resource %q", lc.Server, name)
			}
			loc, err := resource.NewLocation(group.method, server, lc)
			if err != nil {
				return nil, err
			}
			r.AddLocation(group.method, loc)
		}
	}
	return r, nil
}

// TaskSettings is a task's configuration plus the run knobs the caller
// applies around the run.
type TaskSettings struct {
	model.TaskConfig
}

// RemoveWorkingDirectory defaults to true.
func (ts TaskSettings) RemoveWorkingDirectory() bool {
	return ts.TaskConfig.RemoveWorkingDirectory == nil || *ts.TaskConfig.RemoveWorkingDirectory
}

// TaskConfig returns the named task's settings.
func (p *Provider) TaskConfig(name string) (TaskSettings, error) {
	for _, t := range p.Settings().Tasks {
		if t.Name == name {
			return TaskSettings{t}, nil
		}
	}
	return TaskSettings{}, model.Errorf(model.KindNotDefined, "task %q", name)
}

// GetTask builds the named task at ts with its inputs and outputs. The
// task's working directory exists once this returns.
func (p *Provider) GetTask(name string, ts time.Time, opts ...task.Option) (*task.Task, error) {
	tc, err := p.TaskConfig(name)
	if err != nil {
		return nil, err
	}
	inputs, err := p.taskResources(tc.Inputs, ts)
	if err != nil {
		return nil, err
	}
	outputs, err := p.taskResources(tc.Outputs, ts)
	if err != nil {
		return nil, err
	}

	doc := p.Settings()
	t, err := task.New(task.Config{
		Name:             tc.Name,
		URN:              tc.URN,
		Description:      tc.Description,
		Timeslot:         ts,
		WorkRoot:         doc.Conductor.WorkRoot,
		DecompressInputs: tc.DecompressInputs != nil && *tc.DecompressInputs,
		Workers:          doc.Conductor.Workers,
		Deletion:         tc.Deletion,
		Logger:           p.Logger(),
	}, opts...)
	if err != nil {
		return nil, err
	}
	t.AddInput(inputs...)
	t.AddOutput(outputs...)
	return t, nil
}

func (p *Provider) taskResources(cfgs []model.TaskResourceConfig, ts time.Time) ([]*resource.TaskResource, error) {
	var out []*resource.TaskResource
	for _, cfg := range cfgs {
		base, err := p.GetResource(cfg.Name, ts)
		if err != nil {
			return nil, err
		}
		trs, err := resource.NewTaskResources(base, cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, trs...)
	}
	return out, nil
}
