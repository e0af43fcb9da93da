package ddt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type fixture struct {
	input, request, expected string
}

// writeTree creates a fixture tree in a temporary directory. Files are keyed by
// "<dir>/<name>".
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{DataDir, RequestDir, ExpectedDir} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, filepath.FromSlash(name)), []byte(content), 0o600))
	}
	return root
}

func writeFixtures(t *testing.T, cases map[string]fixture) string {
	t.Helper()
	files := make(map[string]string)
	for name, f := range cases {
		files[DataDir+"/"+name+".xml"] = f.input
		files[RequestDir+"/"+name+".properties"] = f.request
		files[ExpectedDir+"/"+name+".xml"] = f.expected
	}
	return writeTree(t, files)
}
