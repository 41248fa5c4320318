package resource

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/msageha/conductor/internal/model"
	"github.com/msageha/conductor/internal/timeslot"
)

// TaskResource scopes a Resource to one task run.
type TaskResource struct {
	Resource             *Resource
	ExceptWhen           model.CalendarConfig
	OptionalWhen         model.CalendarConfig
	CanGetRepresentation bool
	FilteringRules       []string
}

// Active is false when any calendar component of the timeslot is listed in
// ExceptWhen. A resource without a timeslot is always active.
func (t *TaskResource) Active() bool {
	return !onCalendar(t.ExceptWhen, t.Resource.Timeslot())
}

// Optional is true when any calendar component of the timeslot is listed in OptionalWhen.
func (t *TaskResource) Optional() bool {
	return onCalendar(t.OptionalWhen, t.Resource.Timeslot())
}

func onCalendar(c model.CalendarConfig, ts time.Time) bool {
	if ts.IsZero() {
		return false
	}
	return slices.Contains(c.Years, ts.Year()) ||
		slices.Contains(c.Months, int(ts.Month())) ||
		slices.Contains(c.Days, ts.Day()) ||
		slices.Contains(c.Hours, ts.Hour()) ||
		slices.Contains(c.Minutes, ts.Minute()) ||
		slices.Contains(c.Dekades, timeslot.Dekade(ts))
}

func (t *TaskResource) String() string {
	return fmt.Sprintf("%s@%s", t.Resource.Name(), timeslot.String(t.Resource.Timeslot()))
}

// Fetch retrieves the resource into destDir and returns the local path.
// A resource that cannot be retrieved directly is located first. When no
// get location has it, the get locations are searched and Choose picks
// among the matches. A missing resource is reported with a
// ResourceNotFound error.
func (t *TaskResource) Fetch(ctx context.Context, destDir string) (string, error) {
	r := t.Resource
	if !t.CanGetRepresentation && len(r.find) > 0 {
		ok, err := r.Locate(ctx)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", model.Errorf(model.KindResourceNotFound, "could not locate %s", r.Name())
		}
	}
	local, err := r.Get(ctx, destDir)
	if err == nil || !errors.Is(err, model.ErrResourceNotFound) {
		return local, err
	}
	m, found, ferr := r.Find(ctx)
	if ferr != nil {
		return "", ferr
	}
	if m == nil {
		return "", err
	}
	chosen := Choose(found, t.FilteringRules, r.logger)
	got, ferr := m.Fetch(ctx, destDir, chosen)
	if ferr != nil {
		return "", fmt.Errorf("fetch %s: %w", r.Name(), ferr)
	}
	if len(got) == 0 {
		return "", model.Errorf(model.KindResourceNotFound, "%s vanished from %s", chosen, m.Name())
	}
	return got[0], nil
}
