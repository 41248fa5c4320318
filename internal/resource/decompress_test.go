package resource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// "LST payload\n" compressed with bzip2.
var bz2Payload = []byte{
	0x42, 0x5a, 0x68, 0x39, 0x31, 0x41, 0x59, 0x26, 0x53, 0x59, 0xc6, 0xcb, 0xc8, 0x3b, 0x00, 0x00,
	0x01, 0x57, 0x80, 0x00, 0x10, 0x40, 0x00, 0x00, 0x04, 0x0c, 0x00, 0x24, 0x04, 0xc0, 0x20, 0x20,
	0x00, 0x22, 0x01, 0xa3, 0x4d, 0x08, 0x06, 0x9a, 0x68, 0xc1, 0x36, 0x0f, 0x14, 0x95, 0x78, 0xbb,
	0x92, 0x29, 0xc2, 0x84, 0x86, 0x36, 0x5e, 0x41, 0xd8,
}

func TestDecompress(t *testing.T) {
	src := filepath.Join(t.TempDir(), "g2_LST_202401020300.h5.bz2")
	require.NoError(t, os.WriteFile(src, bz2Payload, 0o644))

	got, err := Decompress(src)
	require.NoError(t, err)
	assert.Equal(t, src[:len(src)-len(".bz2")], got)
	content, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "LST payload\n", string(content))
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}

func TestDecompress_PlainFileUntouched(t *testing.T) {
	src := filepath.Join(t.TempDir(), "plain.h5")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	got, err := Decompress(src)
	require.NoError(t, err)
	assert.Equal(t, src, got)
}

func TestDecompress_Corrupt(t *testing.T) {
	src := filepath.Join(t.TempDir(), "bad.h5.bz2")
	require.NoError(t, os.WriteFile(src, []byte("not bzip2"), 0o644))

	_, err := Decompress(src)
	assert.Error(t, err)
	_, err = os.Stat(filepath.Join(filepath.Dir(src), "bad.h5"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(src)
	assert.NoError(t, err)
}
