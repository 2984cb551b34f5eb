package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences_Variants(t *testing.T) {
	want := `{"headline":"X merges"}`
	cases := map[string]string{
		"bare":        `{"headline":"X merges"}`,
		"plain fence": "```\n{\"headline\":\"X merges\"}\n```",
		"json fence":  "```json\n{\"headline\":\"X merges\"}\n```",
		"padded":      "\n\n```json\n{\"headline\":\"X merges\"}\n```\n\n",
		"nested":      "```json\n```json\n{\"headline\":\"X merges\"}\n```\n```",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want, StripFences(in))
		})
	}
}

func TestStripFences_Idempotent(t *testing.T) {
	in := "```json\n{\"a\":1}\n```"
	once := StripFences(in)
	assert.Equal(t, once, StripFences(once))
}

func TestStripFences_LeavesNonFenceAlone(t *testing.T) {
	assert.Equal(t, "no fences here", StripFences("  no fences here\n"))
	// A go fence is not a structured-data fence.
	in := "```go\npackage main\n```"
	assert.Equal(t, in, StripFences(in))
}

func TestDecodeObject_SameMappingForAllFencings(t *testing.T) {
	variants := []string{
		`{"headline":"X merges","n":2}`,
		"```json\n{\"headline\":\"X merges\",\"n\":2}\n```",
		"```\n{\"headline\":\"X merges\",\"n\":2}\n```",
	}
	for _, v := range variants {
		m, err := DecodeObject(v)
		require.NoError(t, err)
		assert.Equal(t, "X merges", m["headline"])
		assert.Equal(t, float64(2), m["n"])
	}
}

func TestDecodeObject_RefusesNonJSON(t *testing.T) {
	_, err := DecodeObject("Sorry, I can't help")
	require.Error(t, err)
}

func TestDecodeObject_RefusesNonObject(t *testing.T) {
	_, err := DecodeObject(`[1,2,3]`)
	require.ErrorIs(t, err, ErrNotObject)
}

func TestNormalizeUnicode_DoubleEscaped(t *testing.T) {
	norm, err := NormalizeUnicode([]byte(`{"cmp":"a \\u003e b"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"cmp":"a > b"}`, string(norm))
}

func TestSerialize_NoHTMLEscape(t *testing.T) {
	out := Serialize(map[string]any{"cmp": "a > b"})
	assert.Equal(t, `{"cmp":"a > b"}`, out)
}

func TestNormalizeUnicode_QuotedPayload(t *testing.T) {
	norm, err := NormalizeUnicode([]byte(`"{\"a\":1}"`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(norm))
}
