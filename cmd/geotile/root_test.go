package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const coast = `{"type":"FeatureCollection","features":[
  {"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[10,10],[10.1,10],[10.2,10.05]]}}
]}`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestRootCommand_Help(t *testing.T) {
	out, err := run(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "import")
	assert.Contains(t, out, "query")
	assert.Contains(t, out, "stats")
}

func TestImportQueryStats(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, "coast.geojson", coast)

	out, err := run(t, "import", file, "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 lines, 3 points")

	out, err = run(t, "query", "--dir", dir, "--lat", "10", "--lon", "10.1", "--radius", "20000")
	require.NoError(t, err)
	assert.Contains(t, out, "TILE")
	assert.Contains(t, out, "3 points")

	out, err = run(t, "query", "--dir", dir, "--lat", "10", "--lon", "10.1", "--radius", "20000", "--geojson")
	require.NoError(t, err)
	assert.Contains(t, out, "MultiLineString")

	out, err = run(t, "stats", "--dir", dir, "--load")
	require.NoError(t, err)
	assert.Contains(t, out, "tiles")
	assert.Contains(t, out, "dirty layers")
}

func TestImport_Errors(t *testing.T) {
	_, err := run(t, "import")
	assert.Error(t, err)

	_, err = run(t, "import", "--dir", t.TempDir(), filepath.Join(t.TempDir(), "missing.geojson"))
	assert.Error(t, err)

	bad := writeFile(t, "bad.geojson", `{"type":`)
	_, err = run(t, "import", "--dir", t.TempDir(), bad)
	assert.Error(t, err)
}

func TestQuery_UnknownKind(t *testing.T) {
	_, err := run(t, "query", "--dir", t.TempDir(), "--kind", "vector")
	assert.Error(t, err)
}

func TestConfig_Precedence(t *testing.T) {
	dir := t.TempDir()

	t.Setenv("GEOTILE_BACKEND", "bogus")
	_, err := run(t, "stats", "--dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")

	// Flags win over the environment.
	_, err = run(t, "stats", "--dir", dir, "--backend", "local")
	require.NoError(t, err)
}

func TestConfig_File(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, "geotile.yaml", "dir: "+dir+"\ncompression: brotli\n")

	_, err := run(t, "stats", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "brotli")

	_, err = run(t, "stats", "--config", cfg, "--compression", "zstd")
	require.NoError(t, err)

	_, err = run(t, "stats", "--config", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
