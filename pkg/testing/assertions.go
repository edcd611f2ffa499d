package testing

import (
	"encoding/json"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/getmockd/expectd/pkg/fingerprint"
)

// RequestLog is one request the mock server received, repeats included.
type RequestLog struct {
	Method string
	// Path includes the query string, e.g. "/search?q=a".
	Path string
	// Headers holds only the headers the server matches on.
	Headers map[string]string
	Body    string
	// Matched reports whether an expectation answered the request; Status
	// is the response status it got (0 when unmatched).
	Matched bool
	Status  int
}

func (r *RequestLog) String() string {
	return r.Method + " " + r.Path
}

// AssertMethod asserts the request method, ignoring case.
func (r *RequestLog) AssertMethod(t testing.TB, expected string) bool {
	t.Helper()
	return assert.Equal(t, string(fingerprint.ParseMethod(expected)), r.Method, "method of %s", r)
}

// AssertPath asserts the request path, query included.
func (r *RequestLog) AssertPath(t testing.TB, expected string) bool {
	t.Helper()
	return assert.Equal(t, expected, r.Path, "path of %s", r)
}

// AssertHeader asserts a matched-on header value. The name is
// case-insensitive.
func (r *RequestLog) AssertHeader(t testing.TB, name, expected string) bool {
	t.Helper()
	actual, ok := r.Headers[textproto.CanonicalMIMEHeaderKey(name)]
	if !assert.True(t, ok, "%s has no header %q (only matched-on headers are recorded)", r, name) {
		return false
	}
	return assert.Equal(t, expected, actual, "header %q of %s", name, r)
}

// AssertBody asserts the exact request body.
func (r *RequestLog) AssertBody(t testing.TB, expected string) bool {
	t.Helper()
	return assert.Equal(t, expected, r.Body, "body of %s", r)
}

// AssertJSONBody asserts the request body is JSON equal to expected, which
// may be a JSON string, []byte, or any value json.Marshal accepts.
func (r *RequestLog) AssertJSONBody(t testing.TB, expected any) bool {
	t.Helper()
	var want string
	switch v := expected.(type) {
	case string:
		want = v
	case []byte:
		want = string(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			t.Errorf("AssertJSONBody: failed to marshal expected value: %v", err)
			return false
		}
		want = string(data)
	}
	return assert.JSONEq(t, want, r.Body, "body of %s", r)
}

// AssertMatched asserts an expectation answered the request.
func (r *RequestLog) AssertMatched(t testing.TB) bool {
	t.Helper()
	return assert.True(t, r.Matched, "%s was not matched by any expectation", r)
}

// AssertUnmatched asserts no expectation answered the request.
func (r *RequestLog) AssertUnmatched(t testing.TB) bool {
	t.Helper()
	return assert.False(t, r.Matched, "%s was answered by an expectation (status %d)", r, r.Status)
}

// AssertStatus asserts the status of the canned response.
func (r *RequestLog) AssertStatus(t testing.TB, expected int) bool {
	t.Helper()
	return assert.Equal(t, expected, r.Status, "response status of %s", r)
}
