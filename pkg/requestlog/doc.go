// Package requestlog records the history of requests presented to an
// expectation provider, for inspection and debugging.
//
// The provider's receipt ledger is a set: a request received twice counts
// once for verification. The request log is the complementary view. It keeps
// every request in arrival order with a timestamp and whether it matched.
//
//	store := requestlog.NewMemoryStore(500)
//	p := expect.NewProvider(expect.WithRequestLog(store))
//	// ... serve traffic ...
//	for _, e := range store.List(nil) {
//	    fmt.Println(e.Method, e.Path, e.Matched)
//	}
//
// This is a leaf package with no internal dependencies.
package requestlog
