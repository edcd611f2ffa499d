package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `
expectations:
  - request: {method: GET, path: /ping}
    response: {status: 200, contentType: text/plain, body: pong}
  - request: {method: DELETE, path: /items/1}
    response: {status: 204}
`

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "expectations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "expectd "+Version)

	out, err = execute(t, "version", "--json")
	require.NoError(t, err)
	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, Version, v["version"])
}

func TestValidateCmd(t *testing.T) {
	path := writeFixture(t)

	out, err := execute(t, "validate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "valid: 2 expectations")
	assert.Contains(t, out, "GET /ping")

	out, err = execute(t, "validate", "-f", path, "--json")
	require.NoError(t, err)
	var res struct {
		Valid        bool     `json:"valid"`
		Expectations []string `json:"expectations"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Valid)
	assert.Len(t, res.Expectations, 2)
}

func TestValidateCmd_Errors(t *testing.T) {
	_, err := execute(t, "validate")
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("expectations:\n  - request: {method: FETCH, path: /}\n    response: {status: 200}\n"), 0644))
	_, err = execute(t, "validate", "-f", bad)
	assert.Error(t, err)
}

func serveAsync(t *testing.T, g *globalFlags, opts *serveOptions) (string, context.CancelFunc, <-chan error, *bytes.Buffer) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	urls := make(chan string, 1)
	errc := make(chan error, 1)
	var out bytes.Buffer

	go func() {
		errc <- runServe(ctx, g, opts, &out, &bytes.Buffer{}, func(url string) { urls <- url })
	}()

	select {
	case url := <-urls:
		return url, cancel, errc, &out
	case err := <-errc:
		cancel()
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("server did not start")
	}
	return "", cancel, errc, &out
}

func newServeOptions(path string) *serveOptions {
	return &serveOptions{
		files:           []string{path},
		addr:            "127.0.0.1:0",
		historySize:     10,
		shutdownTimeout: 5 * time.Second,
	}
}

func TestRunServe_Passes(t *testing.T) {
	url, cancel, errc, out := serveAsync(t, &globalFlags{}, newServeOptions(writeFixture(t)))

	resp, err := http.Get(url + "/ping")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, url+"/items/1", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()
	require.NoError(t, <-errc)
	assert.Equal(t, "verification passed\n", out.String())
}

func TestRunServe_FailsVerification(t *testing.T) {
	url, cancel, errc, out := serveAsync(t, &globalFlags{jsonOutput: true}, newServeOptions(writeFixture(t)))

	resp, err := http.Get(url + "/pong")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cancel()
	assert.ErrorIs(t, <-errc, ErrVerificationFailed)

	var rep struct {
		Passed     bool              `json:"passed"`
		Missing    []json.RawMessage `json:"missing"`
		Unexpected []json.RawMessage `json:"unexpected"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &rep))
	assert.False(t, rep.Passed)
	assert.Len(t, rep.Missing, 2)
	assert.Len(t, rep.Unexpected, 1)
}

func TestRunServe_NoFiles(t *testing.T) {
	opts := newServeOptions(filepath.Join(t.TempDir(), "*.yaml"))
	err := runServe(context.Background(), &globalFlags{}, opts, &bytes.Buffer{}, &bytes.Buffer{}, nil)
	assert.Error(t, err)
}
