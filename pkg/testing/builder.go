package testing

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/getmockd/expectd/pkg/expect"
	"github.com/getmockd/expectd/pkg/fingerprint"
)

// ExpectationBuilder describes one expected request. It is finished by one
// of the Respond methods, which registers the expectation.
type ExpectationBuilder struct {
	server  *MockServer
	method  fingerprint.Method
	path    string
	headers map[string]string
	body    []byte
	err     error // first error encountered during building
}

// setError records the first error encountered during building.
func (b *ExpectationBuilder) setError(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Err returns any error encountered during building.
func (b *ExpectationBuilder) Err() error {
	return b.err
}

// WithHeader requires a request header. Only headers the server matches on
// (see WithMatchHeaders) can ever be satisfied.
func (b *ExpectationBuilder) WithHeader(key, value string) *ExpectationBuilder {
	if b.headers == nil {
		b.headers = make(map[string]string)
	}
	b.headers[key] = value
	return b
}

// WithContentType requires the request Content-Type. Empty is a no-op.
func (b *ExpectationBuilder) WithContentType(contentType string) *ExpectationBuilder {
	if contentType == "" {
		return b
	}
	return b.WithHeader(fingerprint.HeaderContentType, contentType)
}

// WithBody requires an exact request body.
func (b *ExpectationBuilder) WithBody(body string) *ExpectationBuilder {
	b.body = []byte(body)
	return b
}

// WithJSONBody requires the request body to be the JSON encoding of v, byte
// for byte, with Content-Type application/json.
func (b *ExpectationBuilder) WithJSONBody(v any) *ExpectationBuilder {
	data, err := json.Marshal(v)
	if err != nil {
		b.setError(fmt.Errorf("WithJSONBody: failed to marshal body: %w", err))
		return b
	}
	b.body = data
	return b.WithContentType("application/json")
}

func (b *ExpectationBuilder) fingerprint() fingerprint.Fingerprint {
	return fingerprint.New(b.method, b.path, b.headers, b.body)
}

// Respond registers the expectation with resp.
func (b *ExpectationBuilder) Respond(resp expect.Response) *MockServer {
	b.server.t.Helper()
	if b.err != nil {
		b.server.t.Fatalf("building expectation %s %s: %v", b.method, b.path, b.err)
		return b.server
	}
	b.server.register(b.fingerprint(), resp)
	return b.server
}

// RespondWith registers the expectation with a status, content type and
// body. The body is always present, even when empty.
func (b *ExpectationBuilder) RespondWith(status int, contentType, body string) *MockServer {
	b.server.t.Helper()
	return b.Respond(expect.NewResponse(status, contentType, []byte(body)))
}

// RespondStatus registers the expectation with a bodiless response.
func (b *ExpectationBuilder) RespondStatus(status int) *MockServer {
	b.server.t.Helper()
	return b.Respond(expect.NewResponse(status, "", nil))
}

// RespondJSON registers the expectation with v encoded as JSON.
func (b *ExpectationBuilder) RespondJSON(status int, v any) *MockServer {
	b.server.t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		b.setError(fmt.Errorf("RespondJSON: failed to marshal body: %w", err))
	}
	return b.Respond(expect.NewResponse(status, "application/json", data))
}

// RespondOK is RespondJSON with status 200.
func (b *ExpectationBuilder) RespondOK(v any) *MockServer {
	b.server.t.Helper()
	return b.RespondJSON(http.StatusOK, v)
}

// RespondCreated is RespondJSON with status 201.
func (b *ExpectationBuilder) RespondCreated(v any) *MockServer {
	b.server.t.Helper()
	return b.RespondJSON(http.StatusCreated, v)
}

// RespondNoContent registers a 204 with no body.
func (b *ExpectationBuilder) RespondNoContent() *MockServer {
	b.server.t.Helper()
	return b.RespondStatus(http.StatusNoContent)
}

// RespondNotFound registers a 404 with a JSON error body.
func (b *ExpectationBuilder) RespondNotFound() *MockServer {
	b.server.t.Helper()
	return b.RespondJSON(http.StatusNotFound, map[string]string{"error": "not_found"})
}

// RespondServerError registers a 500 with a JSON error body.
func (b *ExpectationBuilder) RespondServerError(message string) *MockServer {
	b.server.t.Helper()
	return b.RespondJSON(http.StatusInternalServerError, map[string]string{"error": message})
}
