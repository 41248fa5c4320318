package pattern

import (
	"path"
	"strings"

	"github.com/msageha/conductor/internal/timeslot"
)

type ComponentKind int

const (
	ComponentLiteral ComponentKind = iota
	ComponentTemporal
	ComponentParameter
)

// Component classifies one path component of a template for directory descent.
// A component with any parameter placeholder is a parameter component; one
// with only temporal placeholders is temporal.
type Component struct {
	Text      string
	Kind      ComponentKind
	Parts     []timeslot.Part
	Parameter string
}

var timeslotStringParts = []timeslot.Part{
	timeslot.PartYear, timeslot.PartMonth, timeslot.PartDay, timeslot.PartHour, timeslot.PartMinute,
}

func Classify(fragment string) Component {
	c := Component{Text: fragment, Kind: ComponentLiteral}
	for _, seg := range Parse(fragment) {
		switch seg.Kind {
		case KindParameter:
			if c.Parameter == "" {
				c.Parameter = seg.Name
			}
			c.Kind = ComponentParameter
		case KindTemporal:
			c.Parts = append(c.Parts, seg.Part)
			if c.Kind == ComponentLiteral {
				c.Kind = ComponentTemporal
			}
		case KindTimeslotString:
			c.Parts = append(c.Parts, timeslotStringParts...)
			if c.Kind == ComponentLiteral {
				c.Kind = ComponentTemporal
			}
		}
	}
	return c
}

// LockedBy reports whether every temporal part of c is in locked.
func (c Component) LockedBy(locked []timeslot.Part) bool {
	if len(c.Parts) == 0 {
		return false
	}
	for _, p := range c.Parts {
		found := false
		for _, l := range locked {
			if l == p {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Split breaks a slash-separated template into its directory components and
// the terminal name pattern. An empty name pattern becomes ".*".
func Split(template string) ([]Component, string) {
	dir, name := path.Split(template)
	if name == "" {
		name = ".*"
	}
	var comps []Component
	for _, frag := range strings.Split(strings.Trim(dir, "/"), "/") {
		if frag == "" {
			continue
		}
		comps = append(comps, Classify(frag))
	}
	return comps, name
}
