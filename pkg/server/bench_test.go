package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getmockd/expectd/pkg/expect"
	"github.com/getmockd/expectd/pkg/fingerprint"
)

func BenchmarkHandler_Match(b *testing.B) {
	p := expect.NewProvider()
	p.Expect(fingerprint.MethodGet, "/ping").RespondWithString(200, "text/plain", "pong")
	h := NewHandler(p, Config{})
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			b.Fatalf("status = %d", rec.Code)
		}
	}
}
