package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "biology.txt")

	n, err := WriteFileAtomic(path, strings.NewReader("cells"))
	require.NoError(t, err)
	require.Equal(t, int64(5), n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "cells", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
