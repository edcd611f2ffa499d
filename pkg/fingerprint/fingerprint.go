package fingerprint

import (
	"bytes"
	"fmt"
	"net/textproto"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Method is an HTTP request method.
type Method string

// Known HTTP methods.
const (
	MethodGet     Method = "GET"
	MethodHead    Method = "HEAD"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodPatch   Method = "PATCH"
	MethodDelete  Method = "DELETE"
	MethodOptions Method = "OPTIONS"
	MethodTrace   Method = "TRACE"
	MethodConnect Method = "CONNECT"
)

var knownMethods = map[Method]bool{
	MethodGet:     true,
	MethodHead:    true,
	MethodPost:    true,
	MethodPut:     true,
	MethodPatch:   true,
	MethodDelete:  true,
	MethodOptions: true,
	MethodTrace:   true,
	MethodConnect: true,
}

// ParseMethod normalizes s to upper case. It does not reject unknown methods;
// use Valid for that.
func ParseMethod(s string) Method {
	return Method(strings.ToUpper(strings.TrimSpace(s)))
}

// Valid reports whether m is one of the known HTTP methods.
func (m Method) Valid() bool {
	return knownMethods[m]
}

func (m Method) String() string {
	return string(m)
}

// HeaderContentType is the canonical Content-Type header name.
const HeaderContentType = "Content-Type"

// Headers maps a header name to a single value.
// Names are canonicalized with textproto.CanonicalMIMEHeaderKey, so lookups
// are case-insensitive on the name. Values are compared exactly.
type Headers map[string]string

// CanonicalHeaders returns a copy of h with canonical names. When two names
// collapse to the same canonical form, the value of the name that sorts last
// (byte order, before canonicalization) wins, so the result does not depend
// on map iteration order.
func CanonicalHeaders(h map[string]string) Headers {
	if len(h) == 0 {
		return nil
	}
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make(Headers, len(h))
	for _, k := range names {
		out[textproto.CanonicalMIMEHeaderKey(k)] = h[k]
	}
	return out
}

// Fingerprint identifies a request for matching. Two fingerprints are equal
// iff method, path, headers and body are all equal. A Fingerprint is
// immutable; accessors return copies.
//
// A nil body and an empty body produce the same fingerprint, since a server
// reading a request off the wire cannot tell the two apart.
type Fingerprint struct {
	method  Method
	path    string
	headers Headers
	body    []byte
	key     string
}

// New builds a Fingerprint. The headers and body are copied.
func New(method Method, path string, headers map[string]string, body []byte) Fingerprint {
	f := Fingerprint{
		method:  method,
		path:    path,
		headers: CanonicalHeaders(headers),
	}
	if len(body) > 0 {
		f.body = bytes.Clone(body)
	}
	f.key = f.computeKey()
	return f
}

// Method returns the request method.
func (f Fingerprint) Method() Method { return f.method }

// Path returns the request path.
func (f Fingerprint) Path() string { return f.path }

// Header returns the value of the named header and whether it was present.
func (f Fingerprint) Header(name string) (string, bool) {
	v, ok := f.headers[textproto.CanonicalMIMEHeaderKey(name)]
	return v, ok
}

// Headers returns a copy of the header mapping.
func (f Fingerprint) Headers() Headers {
	if f.headers == nil {
		return nil
	}
	out := make(Headers, len(f.headers))
	for k, v := range f.headers {
		out[k] = v
	}
	return out
}

// Body returns a copy of the request body, or nil when there is none.
func (f Fingerprint) Body() []byte {
	return bytes.Clone(f.body)
}

// Key returns the canonical encoding of the fingerprint. Equal fingerprints
// have equal keys, so the key is safe to use as a map key.
func (f Fingerprint) Key() string {
	if f.key == "" {
		// zero value
		return Fingerprint{}.computeKey()
	}
	return f.key
}

// Equal reports whether f and other identify the same request.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f.Key() == other.Key()
}

// IsZero reports whether f is the zero Fingerprint.
func (f Fingerprint) IsZero() bool {
	return f.method == "" && f.path == "" && len(f.headers) == 0 && len(f.body) == 0
}

// computeKey writes every field length-prefixed so no two distinct
// fingerprints can encode to the same string.
func (f Fingerprint) computeKey() string {
	var b strings.Builder
	writeField(&b, string(f.method))
	writeField(&b, f.path)

	names := make([]string, 0, len(f.headers))
	for k := range f.headers {
		names = append(names, k)
	}
	sort.Strings(names)
	b.WriteString(strconv.Itoa(len(names)))
	b.WriteByte('|')
	for _, k := range names {
		writeField(&b, k)
		writeField(&b, f.headers[k])
	}

	writeField(&b, string(f.body))
	return b.String()
}

func writeField(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}

// String renders the fingerprint for humans, e.g.
//
//	POST /items [Content-Type: application/json] body={"n":1}
func (f Fingerprint) String() string {
	var b strings.Builder
	b.WriteString(string(f.method))
	b.WriteByte(' ')
	b.WriteString(f.path)

	if len(f.headers) > 0 {
		names := make([]string, 0, len(f.headers))
		for k := range f.headers {
			names = append(names, k)
		}
		sort.Strings(names)
		parts := make([]string, len(names))
		for i, k := range names {
			parts[i] = k + ": " + f.headers[k]
		}
		b.WriteString(" [")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteByte(']')
	}

	if len(f.body) > 0 {
		fmt.Fprintf(&b, " body=%s", truncate(string(f.body), 200))
	}
	return b.String()
}

// Sort orders fingerprints by key, in place.
func Sort(fps []Fingerprint) {
	sort.Slice(fps, func(i, j int) bool {
		return fps[i].Key() < fps[j].Key()
	})
}

// truncate cuts s to at most maxLen bytes without splitting a UTF-8 rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
