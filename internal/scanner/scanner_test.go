package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func relPaths(files []FileInfo) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.RelPath)
	}
	return out
}

func TestScan_RootNotFound(t *testing.T) {
	_, err := Scan(context.Background(), filepath.Join(t.TempDir(), "nope"), Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRootNotFound)
}

func TestScan_SortedAndHashed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.py", "print('b')\n")
	writeFile(t, dir, "a.py", "print('a')\n")
	writeFile(t, dir, "sub/c.md", "# notes\n")

	files, err := Scan(context.Background(), dir, Config{Workers: 4})
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, []string{"a.py", "b.py", "sub/c.md"}, relPaths(files))

	sum := sha256.Sum256([]byte("print('a')\n"))
	assert.Equal(t, hex.EncodeToString(sum[:]), files[0].Hash)
	assert.Equal(t, ".py", files[0].Ext)
	assert.Equal(t, int64(len("print('a')\n")), files[0].Size)
	assert.Equal(t, filepath.Join(dir, "a.py"), files[0].Path)
}

func TestScan_Deterministic(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"one.go", "two.go", "three.go", "sub/four.go"} {
		writeFile(t, dir, name, "package x // "+name+"\n")
	}

	first, err := Scan(context.Background(), dir, Config{Workers: 8})
	require.NoError(t, err)
	second, err := Scan(context.Background(), dir, Config{Workers: 8})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestScan_DenyLists(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "keep.py", "x = 1\n")
	writeFile(t, dir, "skip.pyc", "binary\n")
	writeFile(t, dir, "package-lock.json", "{}\n")

	files, err := Scan(context.Background(), dir, Config{
		DenyExts:  []string{".pyc"},
		DenyNames: []string{"package-lock.json"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.py"}, relPaths(files))
}

func TestScan_AllowListWins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "keep.md", "# doc\n")
	writeFile(t, dir, "skip.py", "x = 1\n")

	files, err := Scan(context.Background(), dir, Config{
		AllowExts: []string{".md"},
		DenyExts:  []string{".md"}, // allow list takes precedence
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.md"}, relPaths(files))
}

func TestScan_SkipsHiddenAndToolingDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "visible.py", "x = 1\n")
	writeFile(t, dir, ".git/config", "[core]\n")
	writeFile(t, dir, "__pycache__/visible.cpython-312.pyc", "cache\n")
	writeFile(t, dir, "node_modules/pkg/index.js", "module.exports = {}\n")
	writeFile(t, dir, ".hidden.py", "x = 2\n") // hidden files pass, only dirs are skipped

	files, err := Scan(context.Background(), dir, Config{})
	require.NoError(t, err)
	assert.Equal(t, []string{".hidden.py", "visible.py"}, relPaths(files))
}

func TestScan_MaxFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt"} {
		writeFile(t, dir, name, "content\n")
	}

	files, err := Scan(context.Background(), dir, Config{MaxFiles: 2})
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestScan_MaxFileSize(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "small.txt", "ok\n")
	writeFile(t, dir, "big.txt", string(make([]byte, 1024)))

	files, err := Scan(context.Background(), dir, Config{MaxFileSize: 100})
	require.NoError(t, err)
	assert.Equal(t, []string{"small.txt"}, relPaths(files))
}

func TestScan_CanceledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "content\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Scan(ctx, dir, Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
