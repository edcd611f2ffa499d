package expect

import "bytes"

// Response is a canned response attached to an expectation. It is immutable.
//
// A Response distinguishes an absent body from an empty one: HasBody reports
// false only when the response was configured with a nil body.
type Response struct {
	statusCode  int
	contentType string
	body        []byte
}

// NewResponse builds a Response. A nil body means "no body"; a non-nil empty
// slice means "empty body". The body is copied.
func NewResponse(statusCode int, contentType string, body []byte) Response {
	return Response{
		statusCode:  statusCode,
		contentType: contentType,
		body:        bytes.Clone(body),
	}
}

// StatusCode returns the HTTP status code.
func (r Response) StatusCode() int { return r.statusCode }

// ContentType returns the content type, or "" when none was configured.
func (r Response) ContentType() string { return r.contentType }

// HasContentType reports whether a content type was configured.
func (r Response) HasContentType() bool { return r.contentType != "" }

// Body returns a copy of the body. It is nil when the response has no body
// and non-nil (possibly empty) otherwise.
func (r Response) Body() []byte { return bytes.Clone(r.body) }

// HasBody reports whether a body was configured, even an empty one.
func (r Response) HasBody() bool { return r.body != nil }

// Equal reports whether r and other carry the same status, content type and
// body, including the absent/empty body distinction.
func (r Response) Equal(other Response) bool {
	return r.statusCode == other.statusCode &&
		r.contentType == other.contentType &&
		r.HasBody() == other.HasBody() &&
		bytes.Equal(r.body, other.body)
}
