// Package fingerprint defines the request fingerprint used as the lookup key
// for expectations.
//
// A Fingerprint is built from the request method, the exact path, a
// header-name to value mapping and an optional body. There is no wildcard,
// template or partial matching: two fingerprints match only when every
// field is equal.
//
// Header names are case-insensitive (they are stored in canonical MIME
// form), header values are case-sensitive, and header insertion order is
// irrelevant.
//
//	a := fingerprint.New(fingerprint.MethodPost, "/items",
//	    map[string]string{"content-type": "application/json"}, []byte(`{"n":1}`))
//	b := fingerprint.New(fingerprint.MethodPost, "/items",
//	    map[string]string{"Content-Type": "application/json"}, []byte(`{"n":1}`))
//	a.Equal(b) // true
package fingerprint
