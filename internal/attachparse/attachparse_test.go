package attachparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse_PlainTextPassthrough(t *testing.T) {
	p := New()
	got := p.Parse(Attachment{Name: "notes.txt", Data: []byte("plain content")})
	assert.Equal(t, "plain content", got)
}

func TestParse_UnknownExtensionIsRawText(t *testing.T) {
	p := New()
	got := p.Parse(Attachment{Name: "data.csv", Data: []byte("a,b,c")})
	assert.Equal(t, "a,b,c", got)
}

func TestParse_MalformedPDFDegradesToMarker(t *testing.T) {
	p := New()
	got := p.Parse(Attachment{Name: "Broken.PDF", Data: []byte("not a pdf")})
	assert.Contains(t, got, "[error PDF:")
}

func TestParse_MalformedDOCXDegradesToMarker(t *testing.T) {
	p := New()
	got := p.Parse(Attachment{Name: "broken.docx", Data: []byte("not a zip")})
	assert.Contains(t, got, "[error DOCX:")
}

func TestParse_CachesByNameAndContent(t *testing.T) {
	p := New()
	a := Attachment{Name: "a.txt", Data: []byte("same")}
	assert.Equal(t, p.Parse(a), p.Parse(a))

	// Same content under a different name is a distinct entry.
	k1 := cacheKey(a)
	k2 := cacheKey(Attachment{Name: "b.txt", Data: []byte("same")})
	assert.NotEqual(t, k1, k2)
}

func TestCombine_FramesEachAttachment(t *testing.T) {
	p := New()
	got := p.Combine([]Attachment{
		{Name: "first.txt", Data: []byte("one")},
		{Name: "second.txt", Data: []byte("two")},
	})
	assert.Contains(t, got, "--- ATTACHMENT: first.txt ---\none\n")
	assert.Contains(t, got, "--- ATTACHMENT: second.txt ---\ntwo\n")
	assert.Less(t, strings.Index(got, "first.txt"), strings.Index(got, "second.txt"))
}

func TestCombine_EmptyInputIsEmpty(t *testing.T) {
	assert.Empty(t, New().Combine(nil))
}
