package sink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/japaniel/cncbits/pkg/paths"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSinkOverwrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Downloads")
	s := NewFileSink(paths.Static{Data: t.TempDir(), Output: dir})

	path, err := s.Write("SET_ZERO_LOCATION.TAP", "first program that is longer\n")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "SET_ZERO_LOCATION.TAP"), path)

	_, err = s.Write("SET_ZERO_LOCATION.TAP", "second\n")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(data))
}

func TestFileSinkRejectsPaths(t *testing.T) {
	s := NewFileSink(paths.Static{Output: t.TempDir()})
	for _, name := range []string{"", "../escape.TAP", "nested/file.TAP", `dir\file.TAP`} {
		_, err := s.Write(name, "x")
		assert.Error(t, err, "filename %q", name)
	}
}

func TestFileSinkReportsUnwritableDirectory(t *testing.T) {
	// a regular file where the output directory should be
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := NewFileSink(paths.Static{Output: blocker}).Write("MOVE_TO_SPOILBOARD_ZERO.TAP", "x")
	assert.Error(t, err)
}
