// Package attachparse converts uploaded documents into plain text for the
// raw pipeline context. Malformed files never abort a run; they degrade to
// an inline error marker in place of their content.
package attachparse

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	docx "github.com/fumiama/go-docx"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ledongthuc/pdf"
)

// Attachment is one uploaded file, held fully in memory.
type Attachment struct {
	Name string
	Data []byte
}

// Parser extracts text from PDF, DOCX and plain-text attachments. Parsed
// text is cached by content hash: the same uploads tend to be re-submitted
// across successive runs in a session.
type Parser struct {
	cache *lru.Cache[string, string]
}

func New() *Parser {
	cache, err := lru.New[string, string](128)
	if err != nil {
		// Only possible with a non-positive size.
		panic(err)
	}
	return &Parser{cache: cache}
}

// Combine renders all attachments into one context block, each framed with
// its filename so the model can attribute content to its source document.
func (p *Parser) Combine(files []Attachment) string {
	if len(files) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, f := range files {
		sb.WriteString(fmt.Sprintf("\n--- ATTACHMENT: %s ---\n", f.Name))
		sb.WriteString(p.Parse(f))
		sb.WriteString("\n")
	}
	return sb.String()
}

// Parse extracts one attachment's text, dispatching on file extension.
func (p *Parser) Parse(f Attachment) string {
	key := cacheKey(f)
	if text, ok := p.cache.Get(key); ok {
		return text
	}
	var text string
	switch {
	case strings.HasSuffix(strings.ToLower(f.Name), ".pdf"):
		text = parsePDF(f.Data)
	case strings.HasSuffix(strings.ToLower(f.Name), ".docx"):
		text = parseDOCX(f.Data)
	default:
		text = string(f.Data)
	}
	p.cache.Add(key, text)
	return text
}

func cacheKey(f Attachment) string {
	h := sha256.New()
	h.Write([]byte(f.Name))
	h.Write([]byte{0})
	h.Write(f.Data)
	return hex.EncodeToString(h.Sum(nil))
}

func parsePDF(data []byte) string {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Sprintf("[error PDF: %v]", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return fmt.Sprintf("[error PDF: %v]", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return fmt.Sprintf("[error PDF: %v]", err)
	}
	return buf.String()
}

func parseDOCX(data []byte) string {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Sprintf("[error DOCX: %v]", err)
	}
	var sb strings.Builder
	for _, it := range doc.Document.Body.Items {
		switch o := it.(type) {
		case *docx.Paragraph:
			sb.WriteString(o.String())
			sb.WriteString("\n")
		case *docx.Table:
			sb.WriteString(o.String())
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
