package extract

import (
	"io"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"

	"github.com/lotas/mailvox/internal/types"
)

// Selector candidates per field, in priority order. Gmail's class names are
// obfuscated but stable across years; the later entries are looser fallbacks
// for partially rendered views. The first candidate whose trimmed text is
// non-empty wins — list order, not DOM position, breaks ties.
var (
	subjectSelectors = []string{
		"h2.hP",
		".ha h2",
		"[data-thread-perm-id] h2",
		"[data-legacy-thread-id] h2",
	}
	senderSelectors = []string{
		"span.gD",
		".gE span.gD",
		"span[email]",
		".go",
	}
	bodySelectors = []string{
		"div.a3s.aiL",
		"div.a3s",
		".ii.gt div",
		".ii.gt",
		"[data-message-id] .a3s",
	}
)

var sanitizer = bluemonday.UGCPolicy()

// Document is a parsed message view. It holds both the query tree and the
// raw markup so the readability fallback can re-parse it.
type Document struct {
	doc *goquery.Document
	raw string
}

// Parse reads an HTML document from r.
func Parse(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseString(string(data))
}

// ParseString parses HTML markup of a message view.
func ParseString(html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return &Document{doc: doc, raw: html}, nil
}

// Detect reports whether a message appears to be open: true iff at least one
// subject- or body-indicating selector resolves. Intentionally more
// permissive than "message fully loaded".
func (d *Document) Detect() bool {
	for _, sel := range subjectSelectors {
		if d.doc.Find(sel).Length() > 0 {
			return true
		}
	}
	for _, sel := range bodySelectors {
		if d.doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}

// Extract scrapes subject, sender, and body from the document. It never
// fails: missing fields yield empty strings, and an all-empty result is the
// caller's signal to skip the pipeline.
func (d *Document) Extract() types.ExtractedMessage {
	msg := types.ExtractedMessage{
		Subject: d.firstText(subjectSelectors),
		Sender:  d.sender(),
		Body:    d.firstText(bodySelectors),
	}
	// Readability fallback only applies to pages that look like an open
	// message; otherwise an inbox list would gain a phantom body.
	if msg.Body == "" && d.Detect() {
		msg.Body = d.readableBody()
	}
	return msg
}

// firstText returns the normalized text of the first selector candidate that
// resolves to non-empty text.
func (d *Document) firstText(selectors []string) string {
	for _, sel := range selectors {
		node := d.doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if text := Normalize(node.Text()); text != "" {
			return text
		}
	}
	return ""
}

// sender resolves the sender element. Gmail stores the display name and
// address as attributes on the same span; looser candidates only carry text.
func (d *Document) sender() types.Sender {
	for _, sel := range senderSelectors {
		node := d.doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		name := Normalize(node.AttrOr("name", ""))
		email := Normalize(node.AttrOr("email", ""))
		if name == "" {
			name = Normalize(node.Text())
		}
		if name != "" || email != "" {
			return types.Sender{Name: name, Email: email}
		}
	}
	return types.Sender{}
}

// readableBody is the last-resort body extraction: sanitize the markup and
// let readability pull the main text content. An empty result is still a
// valid empty body.
func (d *Document) readableBody() string {
	clean := sanitizer.Sanitize(d.raw)
	article, err := readability.FromReader(strings.NewReader(clean), nil)
	if err != nil {
		return ""
	}
	return Normalize(article.TextContent)
}

// Normalize strips C0/C1 control characters and zero-width/format
// characters, folds non-breaking spaces into regular spaces, collapses
// whitespace runs to one space, and trims the ends. All fields share this.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for _, r := range s {
		switch {
		case r == '\u00a0' || unicode.IsSpace(r):
			pending = true
		case r < 0x20 || (r >= 0x7f && r <= 0x9f):
			// C0/C1 controls that aren't whitespace.
		case unicode.Is(unicode.Cf, r):
			// Zero-width and other format characters.
		default:
			if pending && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pending = false
			b.WriteRune(r)
		}
	}
	return b.String()
}
