// Package testing provides a testing SDK for using expectd in Go tests.
//
// A MockServer registers the requests a test expects, serves canned
// responses for them over HTTP, and when the test ends verifies that
// exactly those requests arrived, no more and no fewer.
//
// # Basic Usage
//
//	func TestClient(t *testing.T) {
//	    mock := expecttesting.New(t)
//
//	    mock.Expect("GET", "/users/1").
//	        RespondWith(200, "application/json", `{"id":1}`)
//	    mock.ExpectWithBody("POST", "/items", "application/json", `{"n":1}`).
//	        RespondCreated(map[string]int{"id": 7})
//
//	    client := NewClient(mock.Start())
//	    // ... exercise the client ...
//	}
//
// When the test finishes the server is stopped and the expectations are
// verified. A failure lists every missing and unexpected request, with a
// diff against the closest expectation:
//
//	verification failed: 0 missing, 1 unexpected
//
//	unexpected (received but never expected):
//	  - POST /items [Content-Type: application/json] body={"n":2}
//
// # Matching
//
// Matching is exact: method, path, body, and the headers selected with
// WithMatchHeaders (Content-Type by default) must all be equal. Requests
// that match nothing get a 404 (see WithNoMatchStatus) and fail
// verification.
//
// # Assertions
//
// Besides verification, the request history is available for assertions:
//
//	mock.AssertCalledTimes(t, "GET", "/users/1", 2)
//	for _, req := range mock.Requests() {
//	    req.AssertMatched(t)
//	}
package testing
