package source

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// FeedURL returns the RSS feed location for an archive URL.
func FeedURL(archiveURL string) string {
	return ArchiveRoot(archiveURL) + "/feed"
}

// ListFeed reads the publication's RSS feed. The feed only carries the most recent posts, so it is a quick alternative
// to [Client.ListArchive] rather than a replacement.
func (c *Client) ListFeed(ctx context.Context, feedURL string, limit int) ([]Post, error) {
	body, err := c.Get(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	seen := make(map[string]bool)
	var posts []Post
	for _, item := range feed.Items {
		post, ok := feedPost(item)
		if !ok || seen[post.URL] {
			continue
		}
		seen[post.URL] = true
		posts = append(posts, post)
		if limit > 0 && len(posts) >= limit {
			break
		}
	}

	c.logger.Info("feed parsed", "url", feedURL, "items", len(feed.Items), "posts", len(posts))
	return posts, nil
}

func feedPost(item *gofeed.Item) (Post, bool) {
	link := item.Link
	if link == "" {
		link = item.GUID
	}
	if link == "" {
		return Post{}, false
	}

	var published *time.Time
	switch {
	case item.PublishedParsed != nil:
		t := item.PublishedParsed.UTC()
		published = &t
	case item.UpdatedParsed != nil:
		t := item.UpdatedParsed.UTC()
		published = &t
	}

	return Post{
		URL:         strings.TrimSuffix(link, "/comments"),
		Title:       strings.TrimSpace(html.UnescapeString(item.Title)),
		PublishedAt: published,
	}, true
}
