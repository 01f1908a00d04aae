package contenthash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestIsStable(t *testing.T) {
	doc := []byte("transcript v1")
	first := Digest(doc)
	second := Digest(doc)

	require.Len(t, first, 64)
	assert.Equal(t, first, second)
	assert.NotEqual(t, first, Digest([]byte("transcript v2")))
}

func TestMatchesIsCaseInsensitive(t *testing.T) {
	doc := []byte("diploma.pdf contents")
	digest := Digest(doc)

	assert.True(t, Matches(doc, digest))
	assert.True(t, Matches(doc, toUpper(digest)))
	assert.False(t, Matches([]byte("tampered"), digest))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(Digest([]byte("x"))))
	assert.False(t, Valid("short"))
	assert.False(t, Valid("zz"+Digest([]byte("x"))[2:]))
}

func toUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'f' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
