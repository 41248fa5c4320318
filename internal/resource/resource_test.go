package resource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msageha/conductor/internal/location"
	"github.com/msageha/conductor/internal/model"
	"github.com/msageha/conductor/internal/mover"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func localServer(getRoot, postRoot string) model.ServerConfig {
	return model.ServerConfig{
		Name:   "localhost",
		Domain: "localhost",
		Schemes: []model.SchemeConfig{
			{SchemeName: "file", Method: "get", BasePaths: []string{getRoot}},
			{SchemeName: "file", Method: "post", BasePaths: []string{postRoot}},
		},
	}
}

func addLocation(t *testing.T, r *Resource, m Method, server model.ServerConfig, cfg model.LocationConfig) {
	t.Helper()
	cfg.Server = server.Name
	loc, err := NewLocation(m, server, cfg)
	require.NoError(t, err)
	r.AddLocation(m, loc)
}

func newLST(ts time.Time, area string) *Resource {
	return New("LST", "urn:lsasaf:lst:{timeslot_string}",
		"g2_LST_{parameters[area]}_{timeslot_string}.h5", ts,
		map[string]string{"area": area}, &Env{MaxAttempts: 5})
}

func date(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func TestResource_Rendering(t *testing.T) {
	r := New("LST {collection.short_name}", "urn:{collection.short_name}:lst:{timeslot_string}", "", date(2024, 1, 2, 3), nil, nil)
	r.SetCollection(model.CollectionConfig{ShortName: "lsasaf", Name: "Land SAF"})

	assert.Equal(t, "LST lsasaf", r.Name())
	assert.Equal(t, "LST_lsasaf", r.SafeName())
	assert.Equal(t, "urn:lsasaf:lst:202401020300", r.URN())

	r.SetTimeslot(date(2024, 1, 2, 4))
	assert.Equal(t, "urn:lsasaf:lst:202401020400", r.URN())
}

func TestResource_CloneIsIndependent(t *testing.T) {
	r := newLST(date(2024, 1, 2, 0), "Euro")
	c := r.Clone()
	c.SetParameter("area", "Afri")
	c.SetTimeslot(date(2025, 1, 1, 0))

	v, _ := r.Parameter("area")
	assert.Equal(t, "Euro", v)
	assert.Equal(t, date(2024, 1, 2, 0), r.Timeslot())
}

func TestResource_UnknownParameter(t *testing.T) {
	r := newLST(date(2024, 1, 2, 0), "")
	_, ok := r.Parameter("area")
	assert.False(t, ok)
}

func TestResource_Get(t *testing.T) {
	getRoot, postRoot := t.TempDir(), t.TempDir()
	server := localServer(getRoot, postRoot)
	writeFile(t, filepath.Join(getRoot, "LST", "2024", "g2_LST_Euro_202401020300.h5"), "lst")

	r := newLST(date(2024, 1, 2, 3), "Euro")
	addLocation(t, r, MethodGet, server, model.LocationConfig{
		Scheme:        "file",
		RelativePaths: []string{"LST/{timeslot.year}/g2_LST_{parameters[area]}_{timeslot_string}.h5"},
	})

	dest := filepath.Join(t.TempDir(), "inputs")
	got, err := r.Get(context.Background(), dest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "g2_LST_Euro_202401020300.h5"), got)

	r.SetTimeslot(date(2024, 1, 2, 4))
	_, err = r.Get(context.Background(), dest)
	assert.True(t, errors.Is(err, model.ErrResourceNotFound))
}

func TestResource_FindTriesLocalFirst(t *testing.T) {
	getRoot, postRoot := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(getRoot, "LST", "g2_LST_Euro_202401020300.h5"), "lst")

	dials := 0
	registry := mover.NewRegistry(mover.WithRegistryDialer(
		func(context.Context, string, string, string, time.Duration) (mover.Conn, error) {
			dials++
			return nil, errors.New("connection refused")
		}))
	r := New("LST", "urn:lst", "", date(2024, 1, 2, 3), nil, &Env{Movers: registry})

	remote := model.ServerConfig{Name: "archive", Domain: "ftp.example.org", Schemes: []model.SchemeConfig{
		{SchemeName: "ftp", Method: "get", BasePaths: []string{"/data"}},
	}}
	addLocation(t, r, MethodGet, remote, model.LocationConfig{Scheme: "ftp", RelativePaths: []string{`LST/.*_{timeslot_string}\.h5`}})
	addLocation(t, r, MethodGet, localServer(getRoot, postRoot), model.LocationConfig{Scheme: "file", RelativePaths: []string{`LST/.*_{timeslot_string}\.h5`}})

	m, found, err := r.Find(context.Background())
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, location.SchemeFile, m.Protocol())
	assert.Equal(t, []string{filepath.Join(getRoot, "LST", "g2_LST_Euro_202401020300.h5")}, found)
	assert.Equal(t, 0, dials)

	r.SetTimeslot(date(2024, 1, 2, 4))
	m, found, err = r.Find(context.Background())
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Empty(t, found)
	assert.Equal(t, 1, dials)
}

func TestResource_Locate(t *testing.T) {
	getRoot, postRoot := t.TempDir(), t.TempDir()
	for _, name := range []string{
		"g2_LST_Euro_202401010000.h5",
		"g2_LST_Euro_202401020000.h5",
		"g2_LST_Afri_202401030000.h5",
	} {
		writeFile(t, filepath.Join(getRoot, "LST", "2024", "01", name), "x")
	}
	r := newLST(date(2024, 1, 15, 0), "Euro")
	addLocation(t, r, MethodFind, localServer(getRoot, postRoot), model.LocationConfig{
		Scheme:        "file",
		RelativePaths: []string{"LST/{timeslot.year}/{timeslot.month:02d}/g2_LST_{parameters[area]}_{timeslot_string}.h5"},
		TemporalRule:  "latest",
	})

	ok, err := r.Locate(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, date(2024, 1, 2, 0), r.Timeslot())
	v, _ := r.Parameter("area")
	assert.Equal(t, "Euro", v)
}

func TestResource_LocateWhileRead(t *testing.T) {
	getRoot, postRoot := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(getRoot, "LST", "2024", "01", "g2_LST_Euro_202401020000.h5"), "x")
	r := newLST(date(2024, 1, 15, 0), "Euro")
	addLocation(t, r, MethodFind, localServer(getRoot, postRoot), model.LocationConfig{
		Scheme:        "file",
		RelativePaths: []string{"LST/{timeslot.year}/{timeslot.month:02d}/g2_LST_{parameters[area]}_{timeslot_string}.h5"},
	})

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = r.URN()
					_ = r.Parameters()
					_ = r.Clone()
				}
			}
		}()
	}
	ok, err := r.Locate(context.Background())
	close(stop)
	wg.Wait()

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "urn:lsasaf:lst:202401020000", r.URN())
}

func TestResource_LocateNothing(t *testing.T) {
	getRoot, postRoot := t.TempDir(), t.TempDir()
	r := newLST(date(2024, 1, 15, 0), "Euro")
	addLocation(t, r, MethodFind, localServer(getRoot, postRoot), model.LocationConfig{
		Scheme:        "file",
		RelativePaths: []string{"LST/{timeslot.year}/g2_LST_{parameters[area]}_{timeslot_string}.h5"},
	})

	ok, err := r.Locate(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, date(2024, 1, 15, 0), r.Timeslot())
}

func TestResource_Post(t *testing.T) {
	getRoot, postRoot := t.TempDir(), t.TempDir()
	r := newLST(date(2024, 1, 2, 3), "Euro")
	addLocation(t, r, MethodPost, localServer(getRoot, postRoot), model.LocationConfig{
		Scheme:        "file",
		RelativePaths: []string{"out/{timeslot.year}"},
	})
	local := filepath.Join(t.TempDir(), "product.h5")
	writeFile(t, local, "product")

	posted, err := r.Post(context.Background(), local)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(postRoot, "out", "2024", "product.h5")}, posted)

	_, err = r.Post(context.Background(), filepath.Join(t.TempDir(), "missing.h5"))
	assert.True(t, errors.Is(err, model.ErrLocalPathNotFound))
}

func TestResource_Delete(t *testing.T) {
	getRoot, postRoot := t.TempDir(), t.TempDir()
	target := filepath.Join(getRoot, "LST", "2024", "g2_LST_Euro_202401020300.h5")
	writeFile(t, target, "x")
	r := newLST(date(2024, 1, 2, 3), "Euro")
	addLocation(t, r, MethodGet, localServer(getRoot, postRoot), model.LocationConfig{
		Scheme:        "file",
		RelativePaths: []string{"LST/{timeslot.year}/g2_LST_{parameters[area]}_{timeslot_string}.h5"},
	})

	deleted, err := r.Delete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{target}, deleted)
	_, err = os.Stat(filepath.Join(getRoot, "LST"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(getRoot)
	assert.NoError(t, err)

	deleted, err = r.Delete(context.Background())
	require.NoError(t, err)
	assert.Empty(t, deleted)
}

func TestNewLocation(t *testing.T) {
	server := localServer("/data", "/out")

	loc, err := NewLocation(MethodPost, server, model.LocationConfig{Scheme: "FILE", RelativePaths: []string{"a", "/abs"}})
	require.NoError(t, err)
	require.Len(t, loc.URLs, 2)
	assert.Equal(t, "/out/a", loc.URLs[0].Path)
	assert.Equal(t, "/abs", loc.URLs[1].Path)
	assert.Equal(t, "localhost:post", loc.Mover)

	_, err = NewLocation(MethodGet, server, model.LocationConfig{Scheme: "ftp"})
	assert.True(t, errors.Is(err, model.ErrInvalidScheme))

	_, err = NewLocation(MethodFind, server, model.LocationConfig{Scheme: "file", TemporalRule: "sideways"})
	assert.True(t, errors.Is(err, model.ErrInvalidSelectionInput))
}
