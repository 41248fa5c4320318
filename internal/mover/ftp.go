package mover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/textproto"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jlaffaye/ftp"

	"github.com/msageha/conductor/internal/location"
	"github.com/msageha/conductor/internal/locator"
	"github.com/msageha/conductor/internal/lock"
	"github.com/msageha/conductor/internal/logging"
	"github.com/msageha/conductor/internal/model"
)

// DefaultFTPTimeout bounds the connection attempt only.
const DefaultFTPTimeout = 5 * time.Second

// Conn is the subset of an FTP control connection the mover uses.
type Conn interface {
	List(dir string) ([]*ftp.Entry, error)
	Retr(path string) (io.ReadCloser, error)
	Stor(path string, r io.Reader) error
	MakeDir(path string) error
	Delete(path string) error
	RemoveDir(path string) error
	Quit() error
}

// Dialer opens and authenticates a connection.
type Dialer func(ctx context.Context, addr, user, password string, timeout time.Duration) (Conn, error)

type serverConn struct {
	*ftp.ServerConn
}

func (c serverConn) Retr(p string) (io.ReadCloser, error) {
	return c.ServerConn.Retr(p)
}

// DialFTP connects with github.com/jlaffaye/ftp and logs in.
func DialFTP(ctx context.Context, addr, user, password string, timeout time.Duration) (Conn, error) {
	c, err := ftp.Dial(addr, ftp.DialWithTimeout(timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, err
	}
	if user == "" {
		user = "anonymous"
	}
	if err := c.Login(user, password); err != nil {
		_ = c.Quit()
		return nil, err
	}
	return serverConn{c}, nil
}

type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "disconnected"
	}
}

// FTP keeps one lazily opened connection. A failed connection attempt
// leaves the mover in StateFailed: later calls fail at once without
// dialing until Reset is called. Calls are serialised through the shared
// lock map because a single control connection is not concurrency-safe.
type FTP struct {
	name     string
	host     string
	port     int
	user     string
	password string
	roots    []string
	timeout  time.Duration
	dial     Dialer
	locks    *lock.MutexMap
	logger   *logging.Logger

	// guarded by locks[key]
	conn    Conn
	state   State
	failure error
}

type FTPOption func(*FTP)

func WithDialer(d Dialer) FTPOption {
	return func(m *FTP) { m.dial = d }
}

func WithTimeout(d time.Duration) FTPOption {
	return func(m *FTP) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func WithLocks(locks *lock.MutexMap) FTPOption {
	return func(m *FTP) { m.locks = locks }
}

func NewFTP(name string, u location.URL, roots []string, logger *logging.Logger, opts ...FTPOption) *FTP {
	m := &FTP{
		name:     name,
		host:     u.Host,
		port:     u.Port,
		user:     u.User,
		password: u.Password,
		roots:    slices.Clone(roots),
		timeout:  DefaultFTPTimeout,
		dial:     DialFTP,
		logger:   logger.With("mover.ftp"),
	}
	for _, o := range opts {
		o(m)
	}
	if m.locks == nil {
		m.locks = lock.NewMutexMap()
	}
	return m
}

func (m *FTP) Name() string              { return m.name }
func (m *FTP) Protocol() location.Scheme { return location.SchemeFTP }
func (m *FTP) DataRoots() []string       { return slices.Clone(m.roots) }

func (m *FTP) key() string {
	return string(location.SchemeFTP) + "/" + m.name
}

func (m *FTP) addr() string {
	return location.URL{Scheme: location.SchemeFTP, Host: m.host, Port: m.port}.Address()
}

func (m *FTP) State() State {
	var s State
	_ = m.locks.Do(m.key(), func() error {
		s = m.state
		return nil
	})
	return s
}

// Reset closes any connection and clears a sticky failure.
func (m *FTP) Reset() {
	_ = m.locks.Do(m.key(), func() error {
		m.disconnect()
		m.failure = nil
		return nil
	})
}

// Close quits the connection, keeping a sticky failure in place.
func (m *FTP) Close() error {
	return m.locks.Do(m.key(), func() error {
		if m.state == StateConnected {
			m.disconnect()
		}
		return nil
	})
}

func (m *FTP) connection(ctx context.Context) (Conn, error) {
	switch m.state {
	case StateConnected:
		return m.conn, nil
	case StateFailed:
		return nil, m.failure
	}
	m.logger.Infof("connecting to %s", m.addr())
	conn, err := m.dial(ctx, m.addr(), m.user, m.password, m.timeout)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		kind := model.KindHostUnreachable
		var te *textproto.Error
		if errors.As(err, &te) && (te.Code == ftp.StatusNotLoggedIn || te.Code == ftp.StatusInvalidCredentials) {
			kind = model.KindInvalidCredentials
		}
		m.state = StateFailed
		m.failure = model.WrapError(kind, err, "ftp server %s", m.addr())
		m.logger.Errorf("could not establish FTP connection: %v", err)
		return nil, m.failure
	}
	m.conn = conn
	m.state = StateConnected
	return conn, nil
}

func (m *FTP) disconnect() {
	if m.conn != nil {
		_ = m.conn.Quit()
	}
	m.conn = nil
	m.state = StateDisconnected
}

// do runs fn on the connection. A transient failure closes the
// connection, reconnects once and retries fn once.
func (m *FTP) do(ctx context.Context, op string, fn func(Conn) error) error {
	return m.locks.Do(m.key(), func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := m.connection(ctx)
		if err != nil {
			return err
		}
		err = fn(conn)
		if err == nil || !isTransient(err) {
			return err
		}
		m.logger.Infof("%s on %s: %v; reconnecting", op, m.addr(), err)
		m.disconnect()
		if conn, err = m.connection(ctx); err != nil {
			return err
		}
		return fn(conn)
	})
}

func ftpCode(err error) int {
	var te *textproto.Error
	if errors.As(err, &te) {
		return te.Code
	}
	return 0
}

func isNotFound(err error) bool {
	return ftpCode(err) == ftp.StatusFileUnavailable
}

func isTransient(err error) bool {
	if code := ftpCode(err); code != 0 {
		return code >= 400 && code < 500
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

func (m *FTP) Find(ctx context.Context, patterns ...string) ([]string, error) {
	var found []string
	err := m.do(ctx, "find", func(c Conn) error {
		found = found[:0]
		for _, p := range patterns {
			targets, err := prepareFind(m.roots, p)
			if err != nil {
				return fmt.Errorf("find %q: %w", p, err)
			}
			for _, t := range targets {
				m.logger.Debugf("looking for %s in %s", t.name, t.dir)
				entries, err := c.List(t.dir)
				if isNotFound(err) {
					m.logger.Warnf("find in %s: %v", t.dir, err)
					continue
				}
				if err != nil {
					return err
				}
				for _, e := range entries {
					name := path.Base(e.Name)
					if t.name.MatchString(name) {
						found = append(found, path.Join(t.dir, name))
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (m *FTP) Fetch(ctx context.Context, destDir string, paths ...string) ([]string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", destDir, err)
	}
	var copied []string
	err := m.do(ctx, "fetch", func(c Conn) error {
		copied = copied[:0]
		for _, p := range paths {
			target := filepath.Join(destDir, path.Base(p))
			n, err := download(c, p, target)
			if isNotFound(err) {
				m.logger.Errorf("fetch %s: %v", p, err)
				continue
			}
			if err != nil {
				return err
			}
			m.logger.Debugf("fetched %s (%s)", p, humanize.Bytes(uint64(n)))
			copied = append(copied, target)
		}
		return nil
	})
	return copied, err
}

func download(c Conn, src, dst string) (int64, error) {
	r, err := c.Retr(src)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return 0, err
	}
	return n, nil
}

func (m *FTP) Post(ctx context.Context, destDir string, paths ...string) ([]string, error) {
	var posted []string
	err := m.do(ctx, "post", func(c Conn) error {
		posted = posted[:0]
		makeDirAll(c, destDir)
		for _, p := range paths {
			target := path.Join(destDir, filepath.Base(p))
			if err := upload(c, p, target); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return model.WrapError(model.KindLocalPathNotFound, err, "post %s", p)
				}
				if isNotFound(err) {
					return model.WrapError(model.KindResourceNotFound, err, "post %s", target)
				}
				return err
			}
			posted = append(posted, target)
		}
		return nil
	})
	return posted, err
}

// makeDirAll creates each component of dir, ignoring errors for ones that exist.
func makeDirAll(c Conn, dir string) {
	cur := "/"
	if !path.IsAbs(dir) {
		cur = ""
	}
	for _, part := range splitPath(dir) {
		cur = path.Join(cur, part)
		_ = c.MakeDir(cur)
	}
}

func splitPath(p string) []string {
	var parts []string
	for _, s := range strings.Split(path.Clean(p), "/") {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

func upload(c Conn, src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	return c.Stor(dst, f)
}

// Delete removes each path and then tries to remove its parent directory,
// which only succeeds when it is empty.
func (m *FTP) Delete(ctx context.Context, paths ...string) error {
	return m.do(ctx, "delete", func(c Conn) error {
		for _, p := range paths {
			err := c.Delete(p)
			if isNotFound(err) {
				m.logger.Errorf("delete %s: %v", p, err)
				continue
			}
			if err != nil {
				return err
			}
			_ = c.RemoveDir(path.Dir(p))
		}
		return nil
	})
}

// List returns the entries of dir. A missing directory yields an error
// wrapping fs.ErrNotExist.
func (m *FTP) List(ctx context.Context, dir string) ([]locator.Entry, error) {
	var out []locator.Entry
	err := m.do(ctx, "list", func(c Conn) error {
		entries, err := c.List(dir)
		if err != nil {
			return err
		}
		out = out[:0]
		for _, e := range entries {
			name := path.Base(e.Name)
			if name == "." || name == ".." {
				continue
			}
			out = append(out, locator.Entry{Name: name, Dir: e.Type == ftp.EntryTypeFolder})
		}
		return nil
	})
	if isNotFound(err) {
		return nil, fmt.Errorf("list %s: %w: %v", dir, fs.ErrNotExist, err)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
