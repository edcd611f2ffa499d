package fingerprint

import "testing"

func BenchmarkNew(b *testing.B) {
	headers := map[string]string{"content-type": "application/json", "x-request-id": "abc"}
	body := []byte(`{"name":"alice","roles":["admin","dev"]}`)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = New(MethodPost, "/users", headers, body)
	}
}

func BenchmarkKey(b *testing.B) {
	f := New(MethodPost, "/users", map[string]string{"Content-Type": "application/json"}, []byte(`{"n":1}`))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = f.Key()
	}
}
