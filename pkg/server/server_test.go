package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/expectd/pkg/expect"
	"github.com/getmockd/expectd/pkg/fingerprint"
	"github.com/getmockd/expectd/pkg/report"
	"github.com/getmockd/expectd/pkg/requestlog"
)

func do(t *testing.T, method, url, contentType, body string) (*http.Response, string) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestHandler_MatchAndMiss(t *testing.T) {
	p := expect.NewProvider()
	p.Expect(fingerprint.MethodGet, "/users/1").
		RespondWithString(200, "application/json", `{"id":1}`).
		ExpectWithBody(fingerprint.MethodPost, "/items", "application/json", []byte(`{"n":1}`)).
		RespondWithString(201, "", "")

	ts := httptest.NewServer(NewHandler(p, Config{}))
	defer ts.Close()

	resp, body := do(t, http.MethodGet, ts.URL+"/users/1", "", "")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, `{"id":1}`, body)

	resp, body = do(t, http.MethodPost, ts.URL+"/items", "application/json", `{"n":1}`)
	assert.Equal(t, 201, resp.StatusCode)
	assert.Empty(t, body)

	resp, body = do(t, http.MethodGet, ts.URL+"/nope", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "no expectation for GET /nope")

	ue := new(expect.UnsatisfiedExpectationError)
	require.ErrorAs(t, p.Verify(), &ue)
	assert.Empty(t, ue.Missing)
	require.Len(t, ue.Unexpected, 1)
	assert.Equal(t, "/nope", ue.Unexpected[0].Path())
}

func TestHandler_IgnoresUnlistedHeaders(t *testing.T) {
	p := expect.NewProvider()
	p.Expect(fingerprint.MethodGet, "/a").RespondWith(200, "", nil)

	ts := httptest.NewServer(NewHandler(p, Config{}))
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/a", nil)
	require.NoError(t, err)
	req.Header.Set("X-Trace", "123")
	req.Header.Set("User-Agent", "test")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	assert.NoError(t, p.Verify())
}

func TestHandler_MatchHeaders(t *testing.T) {
	p := expect.NewProvider()
	p.ExpectRequest(fingerprint.New(fingerprint.MethodGet, "/secure",
		map[string]string{"Authorization": "Bearer t"}, nil)).
		RespondWith(200, "", nil)

	ts := httptest.NewServer(NewHandler(p, Config{MatchHeaders: []string{"Authorization"}}))
	defer ts.Close()

	resp, _ := do(t, http.MethodGet, ts.URL+"/secure", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/secure", nil)
	require.NoError(t, err)
	req.Header.Set("authorization", "Bearer t")
	r2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	r2.Body.Close()
	assert.Equal(t, http.StatusOK, r2.StatusCode)
}

func TestHandler_NoMatchStatus(t *testing.T) {
	p := expect.NewProvider()
	ts := httptest.NewServer(NewHandler(p, Config{NoMatchStatus: 598}))
	defer ts.Close()

	resp, _ := do(t, http.MethodDelete, ts.URL+"/x", "", "")
	assert.Equal(t, 598, resp.StatusCode)
}

func TestHandler_UnknownMethodIsResolved(t *testing.T) {
	p := expect.NewProvider()
	ts := httptest.NewServer(NewHandler(p, Config{}))
	defer ts.Close()

	resp, _ := do(t, "PURGE", ts.URL+"/cache", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	received := p.Received()
	require.Len(t, received, 1)
	assert.Equal(t, fingerprint.Method("PURGE"), received[0].Method())
}

func TestHandler_RootPath(t *testing.T) {
	p := expect.NewProvider()
	p.Expect(fingerprint.MethodGet, "/").RespondWithString(200, "text/plain", "root")
	ts := httptest.NewServer(NewHandler(p, Config{}))
	defer ts.Close()

	resp, body := do(t, http.MethodGet, ts.URL+"/", "", "")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "root", body)
}

func TestHandler_BodyTooLarge(t *testing.T) {
	p := expect.NewProvider()
	ts := httptest.NewServer(NewHandler(p, Config{MaxBodyBytes: 4}))
	defer ts.Close()

	resp, _ := do(t, http.MethodPost, ts.URL+"/big", "text/plain", "0123456789")
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	err := p.Verify()
	assert.True(t, errors.Is(err, expect.ErrUnsatisfiedExpectation), "got %v", err)

	received := p.Received()
	require.Len(t, received, 1)
	assert.Equal(t, "/big", received[0].Path())
	assert.Equal(t, []byte("0123"), received[0].Body())
	limit, ok := received[0].Header(HeaderBodyTruncated)
	require.True(t, ok)
	assert.Equal(t, "4", limit)
}

func TestHandler_BodyTooLargeNeverSatisfiesExpectation(t *testing.T) {
	p := expect.NewProvider()
	p.ExpectWithBody(fingerprint.MethodPost, "/big", "text/plain", []byte("0123")).
		RespondWith(200, "", nil)
	ts := httptest.NewServer(NewHandler(p, Config{MaxBodyBytes: 4}))
	defer ts.Close()

	resp, _ := do(t, http.MethodPost, ts.URL+"/big", "text/plain", "0123456789")
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	ue := new(expect.UnsatisfiedExpectationError)
	require.ErrorAs(t, p.Verify(), &ue)
	assert.Len(t, ue.Missing, 1)
	assert.Len(t, ue.Unexpected, 1)
}

func TestHandler_QueryIsPartOfFingerprint(t *testing.T) {
	p := expect.NewProvider()
	p.Expect(fingerprint.MethodGet, "/search?q=a").RespondWithString(200, "text/plain", "a")
	p.Expect(fingerprint.MethodGet, "/search").RespondWithString(200, "text/plain", "all")
	ts := httptest.NewServer(NewHandler(p, Config{}))
	defer ts.Close()

	resp, body := do(t, http.MethodGet, ts.URL+"/search?q=a", "", "")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "a", body)

	resp, body = do(t, http.MethodGet, ts.URL+"/search", "", "")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "all", body)
	require.NoError(t, p.Verify())

	for _, q := range []string{"?q=b", "?drop=table"} {
		resp, _ = do(t, http.MethodGet, ts.URL+"/search"+q, "", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}

	ue := new(expect.UnsatisfiedExpectationError)
	require.ErrorAs(t, p.Verify(), &ue)
	assert.Empty(t, ue.Missing)
	require.Len(t, ue.Unexpected, 2)
	paths := []string{ue.Unexpected[0].Path(), ue.Unexpected[1].Path()}
	assert.ElementsMatch(t, []string{"/search?q=b", "/search?drop=table"}, paths)
}

func TestAdmin_Endpoints(t *testing.T) {
	store := requestlog.NewMemoryStore(10)
	p := expect.NewProvider(expect.WithRequestLog(store))
	p.Expect(fingerprint.MethodGet, "/a").RespondWith(200, "", nil)

	ts := httptest.NewServer(NewHandler(p, Config{RequestLog: store}))
	defer ts.Close()

	resp, body := do(t, http.MethodGet, ts.URL+"/__expectd/health", "", "")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, body, `"populating"`)

	resp, body = do(t, http.MethodGet, ts.URL+"/__expectd/verify", "", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var rep report.Report
	require.NoError(t, json.Unmarshal([]byte(body), &rep))
	assert.False(t, rep.Passed)
	require.Len(t, rep.Missing, 1)
	assert.Equal(t, "/a", rep.Missing[0].Path)

	do(t, http.MethodGet, ts.URL+"/a", "", "")

	resp, body = do(t, http.MethodGet, ts.URL+"/__expectd/verify", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal([]byte(body), &rep))
	assert.True(t, rep.Passed)

	resp, body = do(t, http.MethodGet, ts.URL+"/__expectd/requests?path=/a", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var entries []requestlog.Entry
	require.NoError(t, json.Unmarshal([]byte(body), &entries))
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Matched)
}

func TestAdmin_Disabled(t *testing.T) {
	p := expect.NewProvider()
	ts := httptest.NewServer(NewHandler(p, Config{DisableAdmin: true}))
	defer ts.Close()

	resp, _ := do(t, http.MethodGet, ts.URL+"/__expectd/health", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Len(t, p.Received(), 1)
}

func TestServer_StartShutdown(t *testing.T) {
	p := expect.NewProvider()
	p.Expect(fingerprint.MethodGet, "/ping").RespondWithString(200, "text/plain", "pong")

	s := New(p, Config{})
	assert.Empty(t, s.URL())
	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrAlreadyStarted)

	url := s.URL()
	require.True(t, strings.HasPrefix(url, "http://127.0.0.1:"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Get(url + "/ping")
			if assert.NoError(t, err) {
				resp.Body.Close()
				assert.Equal(t, 200, resp.StatusCode)
			}
		}()
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	require.NoError(t, s.Shutdown(ctx))

	assert.NoError(t, p.Verify())
	assert.Empty(t, s.URL())
}

func TestRequestPath(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"/a", "/a"},
		{"/a?", "/a?"},
		{"/a?x=1&y=2", "/a?x=1&y=2"},
		{"/a%20b?q=%2F", "/a b?q=%2F"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, RequestPath(httptest.NewRequest(http.MethodGet, tt.target, nil)))
		})
	}
}

func TestFingerprint_JoinsRepeatedHeaders(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x?q=1", nil)
	r.Header.Add("Accept", "a")
	r.Header.Add("Accept", "b")

	f := Fingerprint(r, []string{"Accept", "X-Missing"}, nil)
	assert.Equal(t, "/x?q=1", f.Path())
	assert.Equal(t, fingerprint.Headers{"Accept": "a, b"}, f.Headers())
}

func TestAdmin_Metrics(t *testing.T) {
	p := expect.NewProvider()
	p.Expect(fingerprint.MethodGet, "/a").RespondWith(200, "", nil)

	s := New(p, Config{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	do(t, http.MethodGet, ts.URL+"/a", "", "")
	do(t, http.MethodGet, ts.URL+"/b", "", "")
	do(t, http.MethodGet, ts.URL+"/__expectd/verify", "", "")

	resp, body := do(t, http.MethodGet, ts.URL+"/__expectd/metrics", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `expectd_requests_total{method="GET",result="matched",status="200"} 1`)
	assert.Contains(t, body, `expectd_requests_total{method="GET",result="unmatched",status="404"} 1`)
	assert.Contains(t, body, `expectd_verifications_total{result="failed"} 1`)
	assert.Contains(t, body, "expectd_expectations 1\n")
	assert.Equal(t, float64(1), s.Metrics().VerificationsTotal.Value("failed"))
}
