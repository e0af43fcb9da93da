package ddt

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireDiscoveryError(t *testing.T, err error) *DiscoveryError {
	t.Helper()
	var de *DiscoveryError
	require.True(t, errors.As(err, &de), "expected DiscoveryError, got %v", err)
	return de
}

func TestDiscoverMatchesFilesBySortedPosition(t *testing.T) {
	root := writeTree(t, map[string]string{
		"data/b.gml":           "",
		"data/a.XML":           "",
		"data/c.zip":           "",
		"data/notes.txt":       "",
		"request/1.properties": "",
		"request/2.properties": "",
		"request/3.properties": "",
		"request/readme.md":    "",
		"expected/x.xml":       "",
		"expected/y.xml":       "",
		"expected/z.xml":       "",
		"expected/z.xml.orig":  "",
	})
	require.NoError(t, os.Mkdir(filepath.Join(root, "data", "sub.xml"), 0o755))

	cases, err := Discover(root)
	require.NoError(t, err)
	require.Len(t, cases, 3)

	assert.Equal(t, Case{
		Index:               0,
		InputPath:           filepath.Join(root, "data", "a.XML"),
		RequestTemplatePath: filepath.Join(root, "request", "1.properties"),
		ExpectedPath:        filepath.Join(root, "expected", "x.xml"),
	}, cases[0])
	assert.Equal(t, filepath.Join(root, "data", "b.gml"), cases[1].InputPath)
	assert.Equal(t, filepath.Join(root, "expected", "y.xml"), cases[1].ExpectedPath)
	assert.Equal(t, filepath.Join(root, "data", "c.zip"), cases[2].InputPath)
	assert.Equal(t, 2, cases[2].Index)
	assert.False(t, cases[0].StemsAgree())
}

func TestDiscoverFailsOnCountMismatch(t *testing.T) {
	root := writeTree(t, map[string]string{
		"data/a.xml":           "",
		"data/b.xml":           "",
		"request/a.properties": "",
		"request/b.properties": "",
		"expected/a.xml":       "",
	})
	_, err := Discover(root)
	de := requireDiscoveryError(t, err)
	assert.Contains(t, de.Error(), "2 in data, 2 in request, 1 in expected")
}

func TestDiscoverFailsOnEmptyOrMissingDirectory(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		root := writeTree(t, map[string]string{"data/a.xml": "", "request/a.properties": ""})
		_, err := Discover(root)
		requireDiscoveryError(t, err)
	})

	t.Run("missing", func(t *testing.T) {
		root := t.TempDir()
		_, err := Discover(root)
		de := requireDiscoveryError(t, err)
		assert.True(t, errors.Is(err, os.ErrNotExist))
		assert.Equal(t, root, de.Root)
	})
}

func TestDiscoverFailsOnDuplicateNames(t *testing.T) {
	root := writeTree(t, map[string]string{
		"data/a.gml":           "",
		"data/a.xml":           "",
		"request/1.properties": "",
		"request/2.properties": "",
		"expected/1.xml":       "",
		"expected/2.xml":       "",
	})
	_, err := Discover(root)
	de := requireDiscoveryError(t, err)
	assert.Contains(t, de.Message, `"a"`)
}

func TestCaseName(t *testing.T) {
	for input, name := range map[string]string{
		"sample.xml":      "sample",
		"my file (1).gml": "my_file__1_",
		"archive.tar.zip": "archive.tar",
		"..xml":           "7",
		".hidden.xml":     "hidden",
		"Ünïcode.xml":     "_n_code",
	} {
		c := Case{Index: 7, InputPath: filepath.Join("data", input)}
		assert.Equal(t, name, c.Name(), input)
	}
}

func TestCaseStemsAgree(t *testing.T) {
	c := Case{
		InputPath:           "data/sample.xml",
		RequestTemplatePath: "request/sample.properties",
		ExpectedPath:        "expected/sample.xml",
	}
	assert.True(t, c.StemsAgree())
	c.ExpectedPath = "expected/result.xml"
	assert.False(t, c.StemsAgree())
}
