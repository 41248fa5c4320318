package settings

import (
	"fmt"
	"strings"

	"github.com/msageha/conductor/internal/location"
	"github.com/msageha/conductor/internal/model"
	"github.com/msageha/conductor/internal/resource"
)

// Validate reports every problem in doc at once. Cross references
// (servers, collections, resources) must resolve.
func Validate(doc model.Settings) error {
	var ve model.ValidationErrors

	c := doc.Conductor
	if c.Workers < 0 {
		ve.Add("conductor.workers", "must not be negative")
	}
	if c.FTPTimeoutSec < 0 {
		ve.Add("conductor.ftp_timeout_sec", "must not be negative")
	}
	if c.MaxDirectoryAttempts < 0 {
		ve.Add("conductor.max_directory_attempts", "must not be negative")
	}

	servers := make(map[string]model.ServerConfig, len(doc.Servers))
	for i, s := range doc.Servers {
		field := fmt.Sprintf("servers[%d]", i)
		if s.Name == "" {
			ve.Add(field+".name", "is required")
			continue
		}
		if _, dup := servers[s.Name]; dup {
			ve.Add(field+".name", fmt.Sprintf("duplicate server %q", s.Name))
		}
		servers[s.Name] = s
		for j, sc := range s.Schemes {
			sf := fmt.Sprintf("%s.schemes[%d]", field, j)
			if _, err := location.ParseScheme(sc.SchemeName); err != nil {
				ve.Add(sf+".scheme_name", err.Error())
			}
			switch strings.ToLower(sc.Method) {
			case "", string(resource.MethodGet), string(resource.MethodPost):
			default:
				ve.Add(sf+".method", fmt.Sprintf("unknown method %q", sc.Method))
			}
			if sc.PortNumber < 0 || sc.PortNumber > 65535 {
				ve.Add(sf+".port_number", "out of range")
			}
		}
	}

	collections := make(map[string]bool, len(doc.Collections))
	for i, col := range doc.Collections {
		if col.ShortName == "" {
			ve.Add(fmt.Sprintf("collections[%d].short_name", i), "is required")
		}
		collections[col.ShortName] = true
	}

	resources := make(map[string]bool, len(doc.Resources))
	for i, r := range doc.Resources {
		field := fmt.Sprintf("resources[%d]", i)
		if r.Name == "" {
			ve.Add(field+".name", "is required")
		}
		if resources[r.Name] {
			ve.Add(field+".name", fmt.Sprintf("duplicate resource %q", r.Name))
		}
		resources[r.Name] = true
		if r.Collection != "" && !collections[r.Collection] {
			ve.Add(field+".collection", fmt.Sprintf("collection %q is not defined", r.Collection))
		}
		for _, group := range []struct {
			method resource.Method
			locs   []model.LocationConfig
		}{
			{resource.MethodGet, r.GetLocations},
			{resource.MethodPost, r.PostLocations},
			{resource.MethodFind, r.FindLocations},
		} {
			method := group.method
			for j, l := range group.locs {
				lf := fmt.Sprintf("%s.%s_locations[%d]", field, method, j)
				s, ok := servers[l.Server]
				if !ok {
					ve.Add(lf+".server", fmt.Sprintf("server %q is not defined", l.Server))
					continue
				}
				if _, err := resource.NewLocation(method, s, l); err != nil {
					ve.Add(lf, err.Error())
				}
			}
		}
	}

	tasks := make(map[string]bool, len(doc.Tasks))
	for i, t := range doc.Tasks {
		field := fmt.Sprintf("tasks[%d]", i)
		if t.Name == "" {
			ve.Add(field+".name", "is required")
		}
		if tasks[t.Name] {
			ve.Add(field+".name", fmt.Sprintf("duplicate task %q", t.Name))
		}
		tasks[t.Name] = true
		if t.Deletion.Count < 0 {
			ve.Add(field+".deletion.count", "must not be negative")
		}
		for _, group := range []struct {
			kind string
			trs  []model.TaskResourceConfig
		}{{"inputs", t.Inputs}, {"outputs", t.Outputs}} {
			for j, tr := range group.trs {
				tf := fmt.Sprintf("%s.%s[%d]", field, group.kind, j)
				if !resources[tr.Name] {
					ve.Add(tf+".name", fmt.Sprintf("resource %q is not defined", tr.Name))
				}
				if _, err := resource.ParseStrategy(tr.Strategy); err != nil {
					ve.Add(tf+".strategy", err.Error())
				}
			}
		}
	}
	return ve.Err()
}
