package requestlog

import "time"

// Entry is one request presented to the resolver. Unlike the receipt ledger,
// which is a set, the history keeps every request including repeats.
type Entry struct {
	// ID is a unique identifier for the entry.
	ID string `json:"id"`

	// Timestamp is when the request was resolved.
	Timestamp time.Time `json:"timestamp"`

	// Method is the HTTP method.
	Method string `json:"method"`

	// Path is the request path.
	Path string `json:"path"`

	// Headers are the fingerprinted request headers.
	Headers map[string]string `json:"headers,omitempty"`

	// Body is the request body (truncated if larger than MaxBodySize).
	Body string `json:"body,omitempty"`

	// BodySize is the original body size in bytes.
	BodySize int `json:"bodySize"`

	// Matched reports whether an expectation answered the request.
	Matched bool `json:"matched"`

	// ResponseStatus is the configured status code, or 0 on a miss.
	ResponseStatus int `json:"responseStatus,omitempty"`
}

// MaxBodySize is the number of body bytes kept on an Entry.
const MaxBodySize = 10 * 1024

// TruncateBody returns body as a string, cut to MaxBodySize.
func TruncateBody(body []byte) string {
	if len(body) > MaxBodySize {
		return string(body[:MaxBodySize])
	}
	return string(body)
}
