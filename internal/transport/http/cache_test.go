package httptransport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewVerifyCacheWithoutRedisIsDisabled(t *testing.T) {
	cache := NewVerifyCache(nil, time.Minute)
	assert.Nil(t, cache)

	// Every method must be a no-op on the disabled cache.
	ctx := context.Background()
	body, ok := cache.Get(ctx, "CERT-001", "abc123")
	assert.Nil(t, body)
	assert.False(t, ok)
	cache.Set(ctx, "CERT-001", "abc123", []byte(`{}`))
	cache.Invalidate(ctx, "CERT-001")
}

func TestVerifyCacheKeys(t *testing.T) {
	cache := &VerifyCache{}

	assert.Equal(t, "verify:CERT-001:abc123", cache.key("CERT-001", "abc123"))
	assert.Equal(t, "verify:CERT-001:*", cache.pattern("CERT-001"))
}

func TestVerifyCachePatternEscapesGlobCharacters(t *testing.T) {
	cache := &VerifyCache{}

	cases := []struct {
		name string
		id   string
		want string
	}{
		{"asterisk", "CERT-*", `verify:CERT-\*:*`},
		{"question mark", "CERT-?", `verify:CERT-\?:*`},
		{"brackets", "CERT-[01]", `verify:CERT-\[01\]:*`},
		{"backslash", `CERT-\1`, `verify:CERT-\\1:*`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, cache.pattern(tc.id))
		})
	}
}
