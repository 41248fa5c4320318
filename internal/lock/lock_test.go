package lock

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutexMap_IndependentKeys(t *testing.T) {
	m := NewMutexMap()
	done := make(chan struct{})

	m.Lock("ftp/eumetcast")
	go func() {
		m.Lock("ftp/archive")
		m.Unlock("ftp/archive")
		close(done)
	}()

	<-done
	m.Unlock("ftp/eumetcast")
}

func TestMutexMap_DoSerialises(t *testing.T) {
	m := NewMutexMap()
	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Do("ftp/shared", func() error {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestMutexMap_DoReturnsError(t *testing.T) {
	m := NewMutexMap()
	want := errors.New("boom")
	assert.Same(t, want, m.Do("k", func() error { return want }))
}

func TestFileLock_WritesPIDAndRejectsSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lst.lock")

	first := NewFileLock(path)
	require.NoError(t, first.TryLock())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(data)))

	second := NewFileLock(path)
	assert.Error(t, second.TryLock())

	require.NoError(t, first.Unlock())
	require.NoError(t, second.TryLock())
	require.NoError(t, second.Unlock())
}

func TestFileLock_UnlockWithoutLock(t *testing.T) {
	fl := NewFileLock(filepath.Join(t.TempDir(), "never.lock"))
	assert.NoError(t, fl.Unlock())
	assert.NoError(t, fl.Unlock())
}
