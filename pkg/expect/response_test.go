package expect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponse_BodyIsCopied(t *testing.T) {
	body := []byte("hello")
	r := NewResponse(200, "text/plain", body)
	body[0] = 'j'
	assert.Equal(t, "hello", string(r.Body()))

	got := r.Body()
	got[0] = 'y'
	assert.Equal(t, "hello", string(r.Body()))
}

func TestResponse_Equal(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Response
		equal bool
	}{
		{"same", NewResponse(200, "a", []byte("x")), NewResponse(200, "a", []byte("x")), true},
		{"status", NewResponse(200, "", nil), NewResponse(201, "", nil), false},
		{"content type", NewResponse(200, "a", nil), NewResponse(200, "b", nil), false},
		{"body", NewResponse(200, "", []byte("x")), NewResponse(200, "", []byte("y")), false},
		{"absent versus empty", NewResponse(200, "", nil), NewResponse(200, "", []byte{}), false},
		{"both absent", NewResponse(200, "", nil), NewResponse(200, "", nil), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, tt.a.Equal(tt.b))
		})
	}
}

func TestResponse_ContentType(t *testing.T) {
	assert.False(t, NewResponse(200, "", nil).HasContentType())
	r := NewResponse(200, "application/json", nil)
	assert.True(t, r.HasContentType())
	assert.Equal(t, "application/json", r.ContentType())
}
