package mover

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/textproto"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msageha/conductor/internal/location"
	"github.com/msageha/conductor/internal/model"
)

// fakeServer is an in-memory FTP server reached through fakeConn.
type fakeServer struct {
	files    map[string][]byte
	dialErr  error
	dials    int
	quits    int
	listErrs []error
}

func newFakeServer(files map[string]string) *fakeServer {
	s := &fakeServer{files: make(map[string][]byte)}
	for p, c := range files {
		s.files[p] = []byte(c)
	}
	return s
}

func (s *fakeServer) dial(_ context.Context, _, _, _ string, _ time.Duration) (Conn, error) {
	s.dials++
	if s.dialErr != nil {
		return nil, s.dialErr
	}
	return &fakeConn{s: s}, nil
}

type fakeConn struct {
	s *fakeServer
}

var errUnavailable = &textproto.Error{Code: ftp.StatusFileUnavailable, Msg: "No such file or directory"}

func (c *fakeConn) List(dir string) ([]*ftp.Entry, error) {
	if len(c.s.listErrs) > 0 {
		err := c.s.listErrs[0]
		c.s.listErrs = c.s.listErrs[1:]
		return nil, err
	}
	prefix := strings.TrimSuffix(dir, "/") + "/"
	seen := map[string]bool{}
	var out []*ftp.Entry
	for p := range c.s.files {
		rest, ok := strings.CutPrefix(p, prefix)
		if !ok {
			continue
		}
		name, _, isDir := strings.Cut(rest, "/")
		if seen[name] {
			continue
		}
		seen[name] = true
		typ := ftp.EntryTypeFile
		if isDir {
			typ = ftp.EntryTypeFolder
		}
		out = append(out, &ftp.Entry{Name: name, Type: typ})
	}
	if out == nil {
		return nil, errUnavailable
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *fakeConn) Retr(p string) (io.ReadCloser, error) {
	b, ok := c.s.files[p]
	if !ok {
		return nil, errUnavailable
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (c *fakeConn) Stor(p string, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	c.s.files[p] = b
	return nil
}

func (c *fakeConn) MakeDir(string) error { return nil }

func (c *fakeConn) Delete(p string) error {
	if _, ok := c.s.files[p]; !ok {
		return errUnavailable
	}
	delete(c.s.files, p)
	return nil
}

func (c *fakeConn) RemoveDir(string) error { return nil }

func (c *fakeConn) Quit() error {
	c.s.quits++
	return nil
}

func newTestFTP(s *fakeServer, roots ...string) *FTP {
	u := location.URL{Scheme: location.SchemeFTP, Host: "ftp.example.org", User: "geo", Password: "secret"}
	return NewFTP("archive", u, roots, nil, WithDialer(s.dial))
}

func TestFTP_ConnectsLazily(t *testing.T) {
	s := newFakeServer(nil)
	m := newTestFTP(s)
	assert.Equal(t, 0, s.dials)
	assert.Equal(t, StateDisconnected, m.State())
}

func TestFTP_FailedConnectionIsSticky(t *testing.T) {
	s := newFakeServer(nil)
	s.dialErr = errors.New("dial tcp: i/o timeout")
	m := newTestFTP(s, "/data")

	_, err := m.Find(context.Background(), `LST/.*\.h5`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrHostUnreachable))

	_, err = m.Find(context.Background(), `LST/.*\.h5`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrHostUnreachable))

	assert.Equal(t, 1, s.dials)
	assert.Equal(t, StateFailed, m.State())

	s.dialErr = nil
	m.Reset()
	_, err = m.Find(context.Background(), `LST/.*\.h5`)
	require.NoError(t, err)
	assert.Equal(t, 2, s.dials)
}

func TestFTP_CancelledDialIsNotSticky(t *testing.T) {
	s := newFakeServer(map[string]string{"/data/LST/a.h5": "x"})
	m := newTestFTP(s, "/data")

	ctx, cancel := context.WithCancel(context.Background())
	m.dial = func(ctx context.Context, addr, user, password string, timeout time.Duration) (Conn, error) {
		cancel()
		s.dials++
		return nil, ctx.Err()
	}
	_, err := m.Find(ctx, `LST/.*\.h5`)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, model.ErrHostUnreachable))
	assert.Equal(t, StateDisconnected, m.State())

	m.dial = s.dial
	found, err := m.Find(context.Background(), `LST/.*\.h5`)
	require.NoError(t, err)
	assert.Equal(t, []string{"/data/LST/a.h5"}, found)
	assert.Equal(t, 2, s.dials)
}

func TestFTP_LoginRejected(t *testing.T) {
	s := newFakeServer(nil)
	s.dialErr = &textproto.Error{Code: ftp.StatusNotLoggedIn, Msg: "Login incorrect."}
	m := newTestFTP(s)

	_, err := m.List(context.Background(), "/data")
	assert.True(t, errors.Is(err, model.ErrInvalidCredentials))
}

func TestFTP_ReusesConnection(t *testing.T) {
	s := newFakeServer(map[string]string{"/data/LST/a.h5": "a"})
	m := newTestFTP(s, "/data")

	for i := 0; i < 3; i++ {
		found, err := m.Find(context.Background(), `LST/.*\.h5`)
		require.NoError(t, err)
		assert.Equal(t, []string{"/data/LST/a.h5"}, found)
	}
	assert.Equal(t, 1, s.dials)
}

func TestFTP_TransientErrorReconnectsOnce(t *testing.T) {
	s := newFakeServer(map[string]string{"/data/LST/a.h5": "a"})
	s.listErrs = []error{&textproto.Error{Code: ftp.StatusNotAvailable, Msg: "Timeout"}}
	m := newTestFTP(s, "/data")

	found, err := m.Find(context.Background(), `LST/.*\.h5`)
	require.NoError(t, err)
	assert.Equal(t, []string{"/data/LST/a.h5"}, found)
	assert.Equal(t, 2, s.dials)
	assert.Equal(t, 1, s.quits)
}

func TestFTP_TransientErrorRetriedOnlyOnce(t *testing.T) {
	s := newFakeServer(map[string]string{"/data/LST/a.h5": "a"})
	s.listErrs = []error{io.EOF, io.EOF, io.EOF}
	m := newTestFTP(s, "/data")

	_, err := m.Find(context.Background(), `LST/.*\.h5`)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, s.dials)
	assert.Len(t, s.listErrs, 1)
}

func TestFTP_NotFoundIsEmpty(t *testing.T) {
	s := newFakeServer(nil)
	m := newTestFTP(s, "/data")

	found, err := m.Find(context.Background(), `LST/.*\.h5`)
	require.NoError(t, err)
	assert.Empty(t, found)

	_, err = m.List(context.Background(), "/data/LST")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFTP_FetchPostDelete(t *testing.T) {
	s := newFakeServer(map[string]string{"/data/LST/a.h5": "remote"})
	m := newTestFTP(s, "/data")
	dest := filepath.Join(t.TempDir(), "inputs")

	got, err := m.Fetch(context.Background(), dest, "/data/LST/a.h5", "/data/LST/missing.h5")
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dest, "a.h5")}, got)
	content, err := os.ReadFile(got[0])
	require.NoError(t, err)
	assert.Equal(t, "remote", string(content))

	local := filepath.Join(t.TempDir(), "out.h5")
	require.NoError(t, os.WriteFile(local, []byte("product"), 0o644))
	posted, err := m.Post(context.Background(), "/outgoing/LST", local)
	require.NoError(t, err)
	assert.Equal(t, []string{"/outgoing/LST/out.h5"}, posted)
	assert.Equal(t, "product", string(s.files["/outgoing/LST/out.h5"]))

	require.NoError(t, m.Delete(context.Background(), "/outgoing/LST/out.h5"))
	_, ok := s.files[path.Join("/outgoing/LST", "out.h5")]
	assert.False(t, ok)
}

func TestFTP_ListEntries(t *testing.T) {
	s := newFakeServer(map[string]string{
		"/data/2024/01/a.h5": "a",
		"/data/readme":       "r",
	})
	m := newTestFTP(s)

	entries, err := m.List(context.Background(), "/data")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "2024", entries[0].Name)
	assert.True(t, entries[0].Dir)
	assert.Equal(t, "readme", entries[1].Name)
	assert.False(t, entries[1].Dir)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(&textproto.Error{Code: 421}))
	assert.True(t, isTransient(os.ErrDeadlineExceeded))
	assert.False(t, isTransient(errUnavailable))
	assert.False(t, isTransient(errors.New("boom")))
}
