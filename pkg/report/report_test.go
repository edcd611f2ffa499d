package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/expectd/pkg/expect"
	"github.com/getmockd/expectd/pkg/fingerprint"
)

func TestBuild_Passed(t *testing.T) {
	r := Build(nil)
	assert.True(t, r.Passed)
	assert.Empty(t, r.Missing)
	assert.Empty(t, r.Unexpected)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, r))
	assert.Equal(t, "verification passed\n", buf.String())
}

func TestBuild_SetupError(t *testing.T) {
	p := expect.NewProvider()
	p.RespondWith(200, "", nil)

	r := Build(p.Verify())
	assert.False(t, r.Passed)
	assert.Contains(t, r.SetupError, "no pending expectation")

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, r))
	assert.Contains(t, buf.String(), "verification failed: expectation setup failed")
}

func TestBuild_Unsatisfied(t *testing.T) {
	p := expect.NewProvider()
	p.ExpectWithBody(fingerprint.MethodPost, "/items", "application/json", []byte(`{"n":1}`)).
		RespondWith(201, "", nil)
	p.Expect(fingerprint.MethodGet, "/health").RespondWith(200, "", nil)

	p.ResolveRequest(fingerprint.MethodPost, "/items",
		map[string]string{"Content-Type": "application/json"}, []byte(`{"n":2}`))

	r := Build(p.Verify())
	require.False(t, r.Passed)
	require.Len(t, r.Missing, 2)
	require.Len(t, r.Unexpected, 1)
	assert.Equal(t, `{"n":2}`, r.Unexpected[0].Body)

	require.Len(t, r.NearMisses, 1)
	nm := r.NearMisses[0]
	assert.Equal(t, "/items", nm.Expected.Path)
	assert.Equal(t, `{"n":1}`, nm.Expected.Body)
	assert.Equal(t, 1, nm.Distance)
	assert.Contains(t, nm.Chunks, Chunk{Type: "removed", Content: "1"})
	assert.Contains(t, nm.Chunks, Chunk{Type: "added", Content: "2"})

	var text bytes.Buffer
	require.NoError(t, WriteText(&text, r))
	out := text.String()
	assert.Contains(t, out, "2 missing, 1 unexpected")
	assert.Contains(t, out, "  - GET /health\n")
	assert.Contains(t, out, `[-1-] {+2+}`)

	var js bytes.Buffer
	require.NoError(t, WriteJSON(&js, r))
	var decoded Report
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, r.Missing, decoded.Missing)
	assert.Len(t, decoded.NearMisses, 1)
}

func TestBuild_NoNearMissWithoutBothSides(t *testing.T) {
	p := expect.NewProvider()
	p.Resolve(fingerprint.New(fingerprint.MethodPost, "/x", nil, nil))

	r := Build(p.Verify())
	assert.Empty(t, r.Missing)
	assert.Len(t, r.Unexpected, 1)
	assert.Nil(t, r.NearMisses)
}

func TestRequest_String(t *testing.T) {
	req := Request{Method: "GET", Path: "/users/1", Headers: map[string]string{"accept": "a"}}
	assert.Equal(t, "GET /users/1 [Accept: a]", req.String())
}
