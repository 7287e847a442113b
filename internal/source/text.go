package source

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MaxChunkChars bounds the text handed to the mention extractor in one request.
const MaxChunkChars = 6000

const minBlockChars = 3

var (
	hiddenStyle = regexp.MustCompile(`(?i)display\s*:\s*none|visibility\s*:\s*hidden`)
	textTags    = "h1, h2, h3, h4, h5, h6, p, li, blockquote, td"
)

// VisibleTextBlocks returns the readable text of a page as a list of blocks, one per heading, paragraph, list item,
// quote or table cell. Hidden elements and non-content tags are dropped first.
func VisibleTextBlocks(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	doc.Find("script, style, noscript, svg, meta, link").Remove()
	doc.Find(`[aria-hidden="true"], [hidden]`).Remove()
	doc.Find("[style]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		style, _ := s.Attr("style")
		return hiddenStyle.MatchString(style)
	}).Remove()

	seen := make(map[string]bool)
	var blocks []string
	doc.Find(textTags).Each(func(_ int, s *goquery.Selection) {
		text := collapseSpace(s.Text())
		if len(text) < minBlockChars || seen[text] {
			return
		}
		seen[text] = true
		blocks = append(blocks, text)
	})
	return blocks, nil
}

// ChunkBlocks joins blocks with newlines into chunks of at most maxChars bytes. A single block longer than maxChars
// becomes a chunk of its own.
func ChunkBlocks(blocks []string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = MaxChunkChars
	}

	var chunks []string
	var current strings.Builder
	for _, block := range blocks {
		if current.Len() > 0 && current.Len()+len(block)+1 > maxChars {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(block)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
