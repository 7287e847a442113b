package source

import (
	"bytes"
	"html"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DefaultTitle names a playlist whose post has no usable title.
const DefaultTitle = "New playlist"

const idPattern = `([A-Za-z0-9_-]{11})`

var (
	// each pattern captures the video ID in group 1
	videoPatterns = []*regexp.Regexp{
		regexp.MustCompile(`id\s*=\s*"youtube2-` + idPattern + `"`),
		regexp.MustCompile(`(?i)<iframe[^>]+src\s*=\s*"[^"]*youtube(?:-nocookie)?\.com/embed/` + idPattern),
		regexp.MustCompile(`content\s*=\s*"[^"]*/image/youtube/` + idPattern + `"`),
		regexp.MustCompile(`youtube\.com/watch\?[^"\s>]*v=` + idPattern),
		regexp.MustCompile(`youtu\.be/` + idPattern),
		regexp.MustCompile(`youtube\.com/shorts/` + idPattern),
	}

	dataAttrsPattern = regexp.MustCompile(`data-attrs\s*=\s*"(.*?)"`)
	dataVideoPattern = regexp.MustCompile(`"videoId"\s*:\s*"` + idPattern + `"`)

	// idTail rejects a match whose 11 characters are the prefix of a longer token
	idTail = regexp.MustCompile(`^[A-Za-z0-9_-]`)
)

type match struct {
	pos int
	id  string
}

// ExtractVideoIDs returns the YouTube video IDs embedded in a post body, deduplicated in order of first appearance.
//
// It recognises Substack embed containers, their data-attrs JSON, embed iframes, preview images, and plain watch,
// youtu.be and shorts links. A link whose ID is not exactly 11 characters is ignored.
func ExtractVideoIDs(body []byte) []string {
	doc := string(body)
	var found []match

	for _, re := range videoPatterns {
		for _, loc := range re.FindAllStringSubmatchIndex(doc, -1) {
			start, end := loc[2], loc[3]
			if idTail.MatchString(doc[end:]) {
				continue
			}
			found = append(found, match{pos: start, id: doc[start:end]})
		}
	}

	for _, loc := range dataAttrsPattern.FindAllStringSubmatchIndex(doc, -1) {
		attrs := html.UnescapeString(doc[loc[2]:loc[3]])
		if m := dataVideoPattern.FindStringSubmatch(attrs); m != nil {
			found = append(found, match{pos: loc[0], id: m[1]})
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })

	seen := make(map[string]bool, len(found))
	ids := make([]string, 0, len(found))
	for _, m := range found {
		if seen[m.id] {
			continue
		}
		seen[m.id] = true
		ids = append(ids, m.id)
	}
	return ids
}

// Page is what the playlist workflow needs from one post.
type Page struct {
	Title       string
	PublishedAt *time.Time
	VideoIDs    []string
}

// ParsePage extracts the title, publish date and video IDs from a post body.
func ParsePage(body []byte) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Page{}, err
	}
	return Page{
		Title:       extractTitle(doc),
		PublishedAt: extractPublishedAt(doc),
		VideoIDs:    ExtractVideoIDs(body),
	}, nil
}

// ExtractTitle returns the post heading, falling back to the document title and then to [DefaultTitle].
func ExtractTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return DefaultTitle
	}
	return extractTitle(doc)
}

func extractTitle(doc *goquery.Document) string {
	if h := strings.TrimSpace(doc.Find(`h1[class*="post-title"]`).First().Text()); h != "" {
		return collapseSpace(h)
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return collapseSpace(html.UnescapeString(t))
	}
	return DefaultTitle
}

// ExtractPublishedAt reads the article:published_time meta tag, else the first <time datetime> element.
func ExtractPublishedAt(body []byte) *time.Time {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	return extractPublishedAt(doc)
}

func extractPublishedAt(doc *goquery.Document) *time.Time {
	if v, ok := doc.Find(`meta[property="article:published_time"]`).First().Attr("content"); ok {
		if t := ParseDate(v); t != nil {
			return t
		}
	}
	if v, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		return ParseDate(v)
	}
	return nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
