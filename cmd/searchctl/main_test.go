package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/searchclient/internal/enginetest"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func setup(t *testing.T) (*enginetest.Server, string) {
	t.Helper()
	srv := enginetest.NewServer(t)
	cfg := writeFile(t, "searchctl.yaml", fmt.Sprintf(`
engine:
  urls: [%q]
transport:
  maxAttempts: 1
logging:
  level: error
`, srv.URL))
	return srv, cfg
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, &out)
	return out.String(), err
}

const actionsNDJSON = `{"index":{"index":"books","id":"1","document":{"title":"Dune"}}}
{"index":{"index":"books","id":"2","document":{"title":"Emma"}}}

{"delete":{"index":"books","id":"missing"}}
`

func TestPing(t *testing.T) {
	_, cfg := setup(t)
	out, err := runCmd(t, "-config", cfg, "ping")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)
}

func TestBulkThenSearchAndGet(t *testing.T) {
	srv, cfg := setup(t)
	file := writeFile(t, "actions.ndjson", actionsNDJSON)

	out, err := runCmd(t, "-config", cfg, "bulk", "-refresh", "true", file)
	require.NoError(t, err)
	assert.Contains(t, out, "3 actions, 0 failed")
	assert.NotNil(t, srv.Source("books", "2"))

	out, err = runCmd(t, "-config", cfg, "search", "-match", "title=dune", "books")
	require.NoError(t, err)
	assert.Contains(t, out, `"Dune"`)
	assert.NotContains(t, out, `"Emma"`)

	out, err = runCmd(t, "-config", cfg, "get", "books", "2")
	require.NoError(t, err)
	assert.Contains(t, out, `"Emma"`)

	_, err = runCmd(t, "-config", cfg, "get", "books", "404")
	assert.ErrorContains(t, err, "not found")
}

func TestGetUsesConfiguredDefaultType(t *testing.T) {
	srv := enginetest.NewServer(t)
	cfg := writeFile(t, "searchctl.yaml", fmt.Sprintf(`
engine:
  urls: [%q]
  defaultType: book
transport:
  maxAttempts: 1
logging:
  level: error
`, srv.URL))
	file := writeFile(t, "actions.ndjson", `{"index":{"index":"books","type":"book","id":"1","document":{"title":"Dune"}}}`)
	_, err := runCmd(t, "-config", cfg, "bulk", file)
	require.NoError(t, err)

	out, err := runCmd(t, "-config", cfg, "get", "books", "1")
	require.NoError(t, err)
	assert.Contains(t, out, `"Dune"`)
	reqs := srv.Requests()
	assert.Equal(t, "/books/book/1", reqs[len(reqs)-1].Path)
}

func TestBulkReportsFailures(t *testing.T) {
	_, cfg := setup(t)
	file := writeFile(t, "actions.json",
		`[{"index":{"index":"books","id":"1","document":{},"create_only":true}},
		  {"index":{"index":"books","id":"1","document":{},"create_only":true}}]`)

	out, err := runCmd(t, "-config", cfg, "bulk", file)
	require.Error(t, err)
	assert.Contains(t, out, "2 actions, 1 failed")
	assert.Contains(t, out, "#1 create books/1: 409 version_conflict_engine_exception")
}

func TestRefresh(t *testing.T) {
	_, cfg := setup(t)
	file := writeFile(t, "actions.ndjson", actionsNDJSON)
	_, err := runCmd(t, "-config", cfg, "bulk", file)
	require.NoError(t, err)

	_, err = runCmd(t, "-config", cfg, "refresh", "books")
	require.NoError(t, err)
	out, err := runCmd(t, "-config", cfg, "search", "books")
	require.NoError(t, err)
	assert.Contains(t, out, `"Emma"`)
}

func TestUsageErrors(t *testing.T) {
	_, cfg := setup(t)
	for _, args := range [][]string{
		{},
		{"-config", cfg},
		{"-config", cfg, "frobnicate"},
		{"-config", cfg, "get", "books"},
		{"-config", cfg, "refresh"},
		{"-config", cfg, "publish"},
	} {
		_, err := runCmd(t, args...)
		assert.ErrorIs(t, err, errUsage, "%v", args)
	}
}

func TestReadActionsRejectsBadLine(t *testing.T) {
	file := writeFile(t, "bad.ndjson", `{"delete":{"index":"books","id":"1"}}
{"launch":{}}
`)
	_, err := readActions(file)
	assert.ErrorContains(t, err, "bad.ndjson:2")

	_, err = readActions(writeFile(t, "empty.ndjson", "\n\n"))
	assert.ErrorContains(t, err, "holds no actions")
}
