package config

import (
	"github.com/getmockd/expectd/pkg/expect"
	"github.com/getmockd/expectd/pkg/fingerprint"
)

// File is an expectation file: a list of request/response pairs.
type File struct {
	// Version is the file format version. Defaults to "1.0".
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// Name is an optional label for the set.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Expectations are registered in order, so a later duplicate replaces
	// an earlier one.
	Expectations []Expectation `json:"expectations" yaml:"expectations"`
}

// Expectation pairs an expected request with its canned response.
type Expectation struct {
	Name     string       `json:"name,omitempty" yaml:"name,omitempty"`
	Request  RequestSpec  `json:"request" yaml:"request"`
	Response ResponseSpec `json:"response" yaml:"response"`
}

// RequestSpec describes an expected request.
type RequestSpec struct {
	Method  string            `json:"method" yaml:"method"`
	Path    string            `json:"path" yaml:"path"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// ContentType is shorthand for a Content-Type entry in Headers.
	ContentType string `json:"contentType,omitempty" yaml:"contentType,omitempty"`

	// Body is nil when the request has no body.
	Body *string `json:"body,omitempty" yaml:"body,omitempty"`
}

// ResponseSpec describes a canned response.
type ResponseSpec struct {
	Status      int    `json:"status" yaml:"status"`
	ContentType string `json:"contentType,omitempty" yaml:"contentType,omitempty"`

	// Body is nil for "no body"; a pointer to "" is an empty body.
	Body *string `json:"body,omitempty" yaml:"body,omitempty"`
}

// Fingerprint builds the request fingerprint for s.
func (s RequestSpec) Fingerprint() fingerprint.Fingerprint {
	headers := make(map[string]string, len(s.Headers)+1)
	for k, v := range s.Headers {
		headers[k] = v
	}
	if s.ContentType != "" {
		headers[fingerprint.HeaderContentType] = s.ContentType
	}

	var body []byte
	if s.Body != nil {
		body = []byte(*s.Body)
	}
	return fingerprint.New(fingerprint.ParseMethod(s.Method), s.Path, headers, body)
}

// Response builds the canned response for s.
func (s ResponseSpec) Response() expect.Response {
	var body []byte
	if s.Body != nil {
		body = []byte(*s.Body)
	}
	return expect.NewResponse(s.Status, s.ContentType, body)
}

// Apply registers every expectation in f on p, in order. It returns the
// provider's first setup error, if any.
func (f *File) Apply(p *expect.Provider) error {
	for _, e := range f.Expectations {
		p.ExpectRequest(e.Request.Fingerprint()).
			RespondWithResponse(e.Response.Response())
	}
	return p.Err()
}

// Merge appends the expectations of others to f.
func (f *File) Merge(others ...*File) {
	for _, o := range others {
		if o == nil {
			continue
		}
		f.Expectations = append(f.Expectations, o.Expectations...)
	}
}
