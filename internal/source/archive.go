package source

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Post is one entry of a blog archive listing.
type Post struct {
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// archiveItem covers the field variants seen across Substack archive responses.
type archiveItem struct {
	CanonicalURL string `json:"canonical_url"`
	Slug         string `json:"slug"`
	URL          string `json:"url"`
	Title        string `json:"title"`
	Headline     string `json:"headline"`
	PostDate     string `json:"post_date"`
	PublishedAt  string `json:"published_at"`
	CreatedAt    string `json:"created_at"`
	Date         string `json:"date"`
}

// ArchiveRoot strips the "/archive" suffix (and anything after it) from an archive URL.
func ArchiveRoot(archiveURL string) string {
	root, _, _ := strings.Cut(strings.TrimSpace(archiveURL), "/archive")
	return strings.TrimRight(root, "/")
}

// ListArchive walks the archive JSON API newest first.
//
// It stops at an empty page, at a page that contributes no unseen URLs, after the configured page limit, or once
// limit posts are collected (0 means no limit).
func (c *Client) ListArchive(ctx context.Context, archiveURL string, limit int) ([]Post, error) {
	root := ArchiveRoot(archiveURL)
	seen := make(map[string]bool)
	var posts []Post

	offset := 0
	for page := 0; page < c.maxPages; page++ {
		if page > 0 {
			if err := c.sleep(ctx, c.pageDelay); err != nil {
				return posts, err
			}
		}

		q := url.Values{}
		q.Set("sort", "new")
		q.Set("search", "")
		q.Set("offset", strconv.Itoa(offset))
		q.Set("limit", strconv.Itoa(c.pageSize))

		body, err := c.Get(ctx, root+"/api/v1/archive?"+q.Encode())
		if err != nil {
			return posts, err
		}

		items, err := decodeArchivePage(body)
		if err != nil {
			return posts, fmt.Errorf("decode archive page at offset %d: %w", offset, err)
		}
		if len(items) == 0 {
			c.logger.Debug("archive exhausted", "offset", offset)
			break
		}

		added := 0
		for _, it := range items {
			post, ok := it.post(root)
			if !ok || seen[post.URL] {
				continue
			}
			seen[post.URL] = true
			posts = append(posts, post)
			added++

			if limit > 0 && len(posts) >= limit {
				return posts, nil
			}
		}

		c.logger.Info("archive page", "offset", offset, "items", len(items), "new", added, "total", len(posts))
		if added == 0 {
			break
		}
		offset += len(items)
	}

	return posts, nil
}

// decodeArchivePage accepts either a bare list or an object with "posts" or "items".
func decodeArchivePage(body []byte) ([]archiveItem, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var items []archiveItem
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var wrapped struct {
		Posts []archiveItem `json:"posts"`
		Items []archiveItem `json:"items"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	if len(wrapped.Posts) > 0 {
		return wrapped.Posts, nil
	}
	return wrapped.Items, nil
}

func (it archiveItem) post(root string) (Post, bool) {
	u := it.CanonicalURL
	if u == "" && it.Slug != "" {
		u = root + "/p/" + it.Slug
	}
	if u == "" {
		u = it.URL
	}
	if u == "" {
		return Post{}, false
	}
	u = strings.TrimSuffix(u, "/comments")

	title := it.Title
	if title == "" {
		title = it.Headline
	}

	return Post{
		URL:         u,
		Title:       strings.TrimSpace(html.UnescapeString(title)),
		PublishedAt: ParseDate(firstNonEmpty(it.PostDate, it.PublishedAt, it.CreatedAt, it.Date)),
	}, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// ParseDate parses the timestamp formats found in archive JSON, feeds and HTML meta tags. It returns nil for empty or
// unrecognised input.
func ParseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if strings.HasSuffix(value, "Z") && !strings.Contains(value, "T") {
		value = strings.TrimSuffix(value, "Z")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
