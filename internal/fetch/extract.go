package fetch

import (
	"bytes"
	"io"
	"mime"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/text/encoding/htmlindex"
)

// invisibleSelector matches subtrees whose text is never rendered.
const invisibleSelector = "script, style, noscript, template"

// ExtractText flattens every visible text node of body, one node per line,
// and normalizes the result. It does not depend on the document's structure,
// so plain text and malformed markup work too. Anything that cannot be parsed
// yields empty content rather than an error.
func ExtractText(body []byte, contentType string) string {
	if len(body) == 0 {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(decodeCharset(body, contentType))
	if err != nil {
		zap.L().Debug("fetch: parse body failed, returning empty content", zap.Error(err))
		return ""
	}
	doc.Find(invisibleSelector).Remove()

	var parts []string
	for _, n := range doc.Nodes {
		collectText(n, &parts)
	}
	return Normalize(strings.Join(parts, "\n"))
}

func collectText(n *html.Node, parts *[]string) {
	switch n.Type {
	case html.TextNode:
		*parts = append(*parts, n.Data)
		return
	case html.CommentNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

// Normalize collapses every run of whitespace, newlines included, to a single
// space and trims both ends.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// decodeCharset converts a non-UTF-8 body to UTF-8 using the charset named in
// the Content-Type header. Unknown charsets are passed through untouched.
func decodeCharset(body []byte, contentType string) io.Reader {
	r := bytes.NewReader(body)
	if contentType == "" {
		return r
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return r
	}
	cs := params["charset"]
	if cs == "" || strings.EqualFold(cs, "utf-8") || strings.EqualFold(cs, "utf8") {
		return r
	}
	enc, err := htmlindex.Get(cs)
	if err != nil {
		return r
	}
	return enc.NewDecoder().Reader(r)
}
