package resource

import (
	"strings"

	"github.com/msageha/conductor/internal/location"
	"github.com/msageha/conductor/internal/model"
	"github.com/msageha/conductor/internal/mover"
	"github.com/msageha/conductor/internal/selection"
)

type Method string

const (
	MethodGet  Method = "get"
	MethodPost Method = "post"
	MethodFind Method = "find"
)

// Location ties a resource to one server scheme. URL paths may hold
// template placeholders. Policy only applies to find locations.
type Location struct {
	Server        string
	Mover         string
	URLs          []location.URL
	Roots         []string
	Authorization string
	MediaType     string
	Policy        selection.Policy
}

// NewLocation expands cfg against the server's scheme for method m.
func NewLocation(m Method, server model.ServerConfig, cfg model.LocationConfig) (Location, error) {
	scheme, ok := schemeFor(server, m, cfg.Scheme)
	if !ok {
		return Location{}, model.Errorf(model.KindInvalidScheme,
			"server %q has no %s scheme %q", server.Name, m, cfg.Scheme)
	}
	urls, err := location.Expand(server, scheme, cfg.RelativePaths)
	if err != nil {
		return Location{}, err
	}
	loc := Location{
		Server:        server.Name,
		Mover:         moverName(server.Name, m),
		URLs:          urls,
		Roots:         scheme.BasePaths,
		Authorization: cfg.Authorization,
		MediaType:     cfg.MediaType,
	}
	if m == MethodFind {
		loc.Policy, err = selection.NewPolicy(cfg.TemporalRule, cfg.LockTimeslot, cfg.Parameter, cfg.ParameterRule)
		if err != nil {
			return Location{}, err
		}
	}
	return loc, nil
}

// schemeFor picks the server scheme serving method m. Find uses get schemes.
func schemeFor(server model.ServerConfig, m Method, name string) (model.SchemeConfig, bool) {
	want := MethodGet
	if m == MethodPost {
		want = MethodPost
	}
	for _, s := range server.Schemes {
		method := Method(strings.ToLower(s.Method))
		if method == "" {
			method = MethodGet
		}
		if method == want && strings.EqualFold(s.SchemeName, name) {
			return s, true
		}
	}
	return model.SchemeConfig{}, false
}

// moverName gives post locations a mover of their own; its scheme may log
// in as a different user.
func moverName(server string, m Method) string {
	if m == MethodPost {
		return server + ":post"
	}
	return server
}

func (l Location) moverSpec(u location.URL) mover.Spec {
	name := l.Mover
	if name == "" {
		name = l.Server
	}
	return mover.Spec{Name: name, URL: u, DataRoots: l.Roots}
}
