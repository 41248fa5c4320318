package mover

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msageha/conductor/internal/location"
	"github.com/msageha/conductor/internal/model"
)

func TestRegistry_SameInstancePerKey(t *testing.T) {
	s := newFakeServer(nil)
	r := NewRegistry(WithRegistryDialer(s.dial))
	spec := Spec{Name: "archive", URL: location.URL{Scheme: location.SchemeFTP, Host: "ftp.example.org"}}

	var wg sync.WaitGroup
	got := make([]Mover, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := r.Get(spec)
			assert.NoError(t, err)
			got[i] = m
		}(i)
	}
	wg.Wait()
	for _, m := range got {
		assert.Same(t, got[0], m)
	}

	local, err := r.Get(Spec{Name: "archive", URL: location.URL{Scheme: location.SchemeFile}})
	require.NoError(t, err)
	assert.NotSame(t, got[0], local)
	assert.Equal(t, location.SchemeFile, local.Protocol())
}

func TestRegistry_UnknownProtocol(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get(Spec{Name: "web", URL: location.URL{Scheme: location.SchemeHTTP}})
	assert.True(t, errors.Is(err, model.ErrInvalidScheme))
}

func TestRegistry_ResetReenablesFailedMover(t *testing.T) {
	s := newFakeServer(nil)
	s.dialErr = errors.New("connection refused")
	r := NewRegistry(WithRegistryDialer(s.dial))

	m, err := r.Get(Spec{Name: "archive", URL: location.URL{Scheme: location.SchemeFTP, Host: "h"}})
	require.NoError(t, err)
	_, err = m.Find(t.Context(), "/x/.*")
	require.Error(t, err)
	assert.Equal(t, StateFailed, m.(*FTP).State())

	require.NoError(t, r.Reset(location.SchemeFTP, "archive"))
	assert.Equal(t, StateDisconnected, m.(*FTP).State())
	assert.True(t, errors.Is(r.Reset(location.SchemeFTP, "nope"), model.ErrNotDefined))
	assert.NoError(t, r.Close())
}
