package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "out")
	s, err := NewStore(root)
	require.NoError(t, err)

	exists, err := s.Exists(ctx, "songs")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.Put(ctx, "songs/year=2018/part-00000.parquet", strings.NewReader("data")))
	exists, err = s.Exists(ctx, "songs")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := os.ReadFile(filepath.Join(root, "songs", "year=2018", "part-00000.parquet"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))

	entries, err := os.ReadDir(filepath.Join(root, "songs", "year=2018"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")

	require.NoError(t, s.RemoveAll(ctx, "songs"))
	exists, err = s.Exists(ctx, "songs")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStorePutCanceled(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.Put(ctx, "x", strings.NewReader("data")))
}
