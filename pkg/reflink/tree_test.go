package reflink

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildTree lays out a small project under root and returns the relative
// paths of its regular files.
func buildTree(t *testing.T, root string) []string {
	t.Helper()

	files := map[string]string{
		"README.md":              "# project\n",
		"main.go":                "package main\n",
		"pkg/util/util.go":       "package util\n",
		"pkg/util/util_test.go":  "package util\n",
		"docs/guide/intro.txt":   "intro\n",
		"build/output.bin":       "binary\n",
		"logs/app.log":           "log line\n",
		"pkg/util/testdata/a.in": "input\n",
	}

	var paths []string
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		writeFile(t, path, content)
		paths = append(paths, rel)
	}
	return paths
}

func TestCloneTree(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	require.NoError(t, os.Mkdir(src, 0o755))
	files := buildTree(t, src)

	stats, err := CloneTree(context.Background(), src, dst, TreeOptions{Workers: 2})
	require.NoError(t, err)

	for _, rel := range files {
		path := filepath.FromSlash(rel)
		require.Equal(t, readFile(t, filepath.Join(src, path)), readFile(t, filepath.Join(dst, path)), "content of %s", rel)
	}

	require.EqualValues(t, len(files), stats.Files)
	require.Equal(t, stats.Files, stats.Reflinked+stats.Copied)
	require.EqualValues(t, 7, stats.Directories)
	require.Zero(t, stats.Excluded)
	t.Logf("cloned tree: %d reflinked, %d copied in %v", stats.Reflinked, stats.Copied, stats.Elapsed)
}

func TestCloneTreeIsolation(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	require.NoError(t, os.Mkdir(src, 0o755))
	buildTree(t, src)

	_, err := CloneTree(context.Background(), src, dst, TreeOptions{})
	require.NoError(t, err)

	writeFile(t, filepath.Join(dst, "main.go"), "package modified\n")
	require.Equal(t, "package main\n", readFile(t, filepath.Join(src, "main.go")))
}

func TestCloneTreeExclude(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	require.NoError(t, os.Mkdir(src, 0o755))
	buildTree(t, src)

	stats, err := CloneTree(context.Background(), src, dst, TreeOptions{
		Exclude: []string{"build/", "*.log", "# a comment", ""},
	})
	require.NoError(t, err)

	require.NoDirExists(t, filepath.Join(dst, "build"))
	require.NoFileExists(t, filepath.Join(dst, "logs", "app.log"))
	require.DirExists(t, filepath.Join(dst, "logs"))
	require.FileExists(t, filepath.Join(dst, "main.go"))
	require.EqualValues(t, 2, stats.Excluded)
	require.EqualValues(t, 6, stats.Files)
}

func TestCloneTreeGitignore(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	require.NoError(t, os.Mkdir(src, 0o755))
	buildTree(t, src)
	writeFile(t, filepath.Join(src, ".gitignore"), "build/\n")
	writeFile(t, filepath.Join(src, "pkg", ".gitignore"), "testdata/\n")

	stats, err := CloneTree(context.Background(), src, dst, TreeOptions{UseGitignore: true})
	require.NoError(t, err)

	require.NoDirExists(t, filepath.Join(dst, "build"))
	require.NoDirExists(t, filepath.Join(dst, "pkg", "util", "testdata"))
	require.FileExists(t, filepath.Join(dst, ".gitignore"))
	require.FileExists(t, filepath.Join(dst, "pkg", "util", "util.go"))
	require.FileExists(t, filepath.Join(dst, "logs", "app.log"))
	require.EqualValues(t, 2, stats.Excluded)
}

func TestCloneTreeSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Skipping symlink test on windows")
	}

	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	require.NoError(t, os.Mkdir(src, 0o755))
	buildTree(t, src)
	require.NoError(t, os.Symlink("main.go", filepath.Join(src, "link.go")))
	require.NoError(t, os.Symlink("pkg/util", filepath.Join(src, "util")))

	stats, err := CloneTree(context.Background(), src, dst, TreeOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.Symlinks)

	target, err := os.Readlink(filepath.Join(dst, "link.go"))
	require.NoError(t, err)
	require.Equal(t, "main.go", target)

	target, err = os.Readlink(filepath.Join(dst, "util"))
	require.NoError(t, err)
	require.Equal(t, "pkg/util", target)
}

func TestCloneTreeDirectoryPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Skipping permission test on windows")
	}

	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	require.NoError(t, os.Mkdir(src, 0o750))
	buildTree(t, src)
	locked := filepath.Join(src, "docs")
	require.NoError(t, os.Chmod(locked, 0o555))
	t.Cleanup(func() {
		os.Chmod(locked, 0o755)
		os.Chmod(filepath.Join(dst, "docs"), 0o755)
	})

	_, err := CloneTree(context.Background(), src, dst, TreeOptions{})
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dst, "docs"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o555), info.Mode().Perm())
	require.FileExists(t, filepath.Join(dst, "docs", "guide", "intro.txt"))

	info, err = os.Stat(dst)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o750), info.Mode().Perm())
}

func TestCloneTreeExistingDestination(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	require.NoError(t, os.Mkdir(src, 0o755))
	require.NoError(t, os.Mkdir(dst, 0o755))
	buildTree(t, src)

	_, err := CloneTree(context.Background(), src, dst, TreeOptions{})
	require.ErrorIs(t, err, os.ErrExist)
	require.NoFileExists(t, filepath.Join(dst, "main.go"))
}

func TestCloneTreeSourceNotDirectory(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "file.txt")
	writeFile(t, src, "hello")

	_, err := CloneTree(context.Background(), src, filepath.Join(root, "dst"), TreeOptions{})
	require.Error(t, err)
	require.NoDirExists(t, filepath.Join(root, "dst"))
}

func TestCloneTreeCanceled(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.Mkdir(src, 0o755))
	buildTree(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := CloneTree(ctx, src, filepath.Join(root, "dst"), TreeOptions{})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, stats.Files)
}

func TestCloneTreeNoFallback(t *testing.T) {
	root := t.TempDir()
	supported, err := IsSupported(root)
	require.NoError(t, err)
	if supported {
		t.Skip("Skipping no-fallback test - filesystem supports reflinks")
	}

	src := filepath.Join(root, "src")
	require.NoError(t, os.Mkdir(src, 0o755))
	buildTree(t, src)

	_, err = CloneTree(context.Background(), src, filepath.Join(root, "dst"), TreeOptions{NoFallback: true})
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestCloneTreeProgress(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.Mkdir(src, 0o755))
	files := buildTree(t, src)

	var calls atomic.Int64
	var last TreeStats
	stats, err := CloneTree(context.Background(), src, filepath.Join(root, "dst"), TreeOptions{
		Progress: func(s TreeStats) {
			calls.Add(1)
			last = s
		},
	})
	require.NoError(t, err)
	require.Positive(t, calls.Load())
	require.EqualValues(t, len(files), last.Files)
	require.Equal(t, stats.Files, last.Files)
}

func TestCloneTreeForceCopy(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.Mkdir(src, 0o755))
	files := buildTree(t, src)

	stats, err := CloneTree(context.Background(), src, filepath.Join(root, "dst"), TreeOptions{ForceCopy: true})
	require.NoError(t, err)
	require.Zero(t, stats.Reflinked)
	require.EqualValues(t, len(files), stats.Copied)
	require.Positive(t, stats.BytesCopied)
}

func TestCloneTreeDestinationInsideSource(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.Mkdir(src, 0o755))
	buildTree(t, src)

	for _, dst := range []string{
		filepath.Join(src, "copy"),
		filepath.Join(src, "pkg", "backup"),
		filepath.Join(src, "docs", "..", "copy"),
	} {
		stats, err := CloneTree(context.Background(), src, dst, TreeOptions{})
		require.ErrorIs(t, err, errDestinationInsideSource, "dst %s", dst)
		require.Zero(t, stats.Directories)
		require.NoDirExists(t, dst)
	}

	_, err := CloneTree(context.Background(), src, src, TreeOptions{})
	require.ErrorIs(t, err, errDestinationInsideSource)
}

func TestCloneTreeDestinationInsideSourceThroughSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Skipping symlink test on windows")
	}

	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.Mkdir(src, 0o755))
	buildTree(t, src)
	alias := filepath.Join(root, "alias")
	require.NoError(t, os.Symlink(src, alias))

	_, err := CloneTree(context.Background(), src, filepath.Join(alias, "copy"), TreeOptions{})
	require.ErrorIs(t, err, errDestinationInsideSource)
	require.NoDirExists(t, filepath.Join(src, "copy"))
}

func TestCloneTreeSiblingWithSharedPrefix(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.Mkdir(src, 0o755))
	buildTree(t, src)

	_, err := CloneTree(context.Background(), src, filepath.Join(root, "src-copy"), TreeOptions{})
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(root, "src-copy", "main.go"))
}
