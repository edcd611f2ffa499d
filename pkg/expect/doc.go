// Package expect implements the expectation registry and verification engine
// behind the mock HTTP server.
//
// A test registers expected requests and their canned responses on a
// Provider, the mock server calls Resolve for every live request, and at
// teardown the test calls Verify to confirm that exactly the expected
// requests occurred, no more and no fewer.
//
// # Matching
//
// Requests are matched by fingerprint equality only (method, path, headers
// and body; see package fingerprint). There is no partial matching.
//
// # Policies
//
//   - Registering the same fingerprint twice keeps the last response.
//   - RespondWith without a pending Expect, or Expect while the previous
//     declaration still lacks a response, is recorded as a setup error. The
//     first such error is returned by Err and makes Verify fail.
//   - Resolve records every request, matched or not. Repeats collapse to a
//     single receipt.
//   - Resolve after Verify is allowed but makes the earlier result stale;
//     State reports StateActive until Verify runs again.
//
// # Verification
//
// Verify returns *UnsatisfiedExpectationError carrying every missing and
// every unexpected request:
//
//	if err := p.Verify(); err != nil {
//	    var ue *expect.UnsatisfiedExpectationError
//	    if errors.As(err, &ue) {
//	        for _, f := range ue.Missing {
//	            t.Logf("never received: %s", f)
//	        }
//	    }
//	    t.Fatal(err)
//	}
package expect
