package identifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMint_Deterministic(t *testing.T) {
	doi := Mint("10.5555", EntityDocumentVersion, 12, 3)
	assert.Equal(t, "10.5555/lsd.document_version.12.3", doi)
	assert.Equal(t, doi, Mint("10.5555", EntityDocumentVersion, 12, 3))
	assert.True(t, Valid(doi))
}

func TestMint_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "10.1234/lsd.document_version.1.1", Mint("", EntityDocumentVersion, 1, 1))
}

func TestMint_RandomWithoutContext(t *testing.T) {
	a := Mint("10.5555", "", 0, 0)
	b := Mint("10.5555", EntityDocumentVersion, 0, 1)

	assert.True(t, strings.HasPrefix(a, "10.5555/lsd."))
	assert.Len(t, strings.TrimPrefix(a, "10.5555/lsd."), 8)
	assert.True(t, Valid(a))
	assert.NotEqual(t, a, b)
}

func TestValid(t *testing.T) {
	cases := map[string]bool{
		"10.1234/abc":       true,
		"":                  false,
		"11.1234/abc":       false,
		"10.1234":           false,
		"10.1234/abc/def":   false,
		"10./abc":           false,
		"10.1234/":          false,
		"10.1234/lsd.x.1.2": true,
	}
	for doi, want := range cases {
		assert.Equal(t, want, Valid(doi), doi)
	}
}

func TestResolverURL(t *testing.T) {
	assert.Equal(t, "https://doi.org/10.1/x", ResolverURL("", "10.1/x"))
	assert.Equal(t, "http://resolver.test/10.1/x", ResolverURL("http://resolver.test/", "10.1/x"))
}

func TestIdempotencyKeys(t *testing.T) {
	key := IdempotencyKey(OpPublish, 4, 2)
	assert.Equal(t, "publish-4-2", key)
	assert.Equal(t, "publish-4-2:findable", StepKey(key, "findable"))

	a := ContentKey("sync-metadata-4-2", []byte(`{"title":"a"}`))
	b := ContentKey("sync-metadata-4-2", []byte(`{"title":"a"}`))
	c := ContentKey("sync-metadata-4-2", []byte(`{"title":"b"}`))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "sync-metadata-4-2@"))
}
