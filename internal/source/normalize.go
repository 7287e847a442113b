package source

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	videoIDOnly    = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	playlistIDOnly = regexp.MustCompile(`^[A-Za-z0-9_-]{10,}$`)
	splitList      = regexp.MustCompile(`[\s,]+`)
)

// NormalizeVideoID accepts a bare ID, a watch URL, a youtu.be link or a shorts link and returns the 11 character ID.
// The second result is false when no ID can be recovered.
func NormalizeVideoID(input string) (string, bool) {
	input = strings.TrimSpace(input)
	if videoIDOnly.MatchString(input) {
		return input, true
	}

	u, err := url.Parse(input)
	if err != nil || u.Host == "" {
		return "", false
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	var candidate string
	switch {
	case host == "youtu.be":
		candidate = strings.Trim(u.Path, "/")
	case strings.HasSuffix(host, "youtube.com") || strings.HasSuffix(host, "youtube-nocookie.com"):
		if v := u.Query().Get("v"); v != "" {
			candidate = v
		} else if rest, ok := cutAny(u.Path, "/shorts/", "/embed/", "/live/"); ok {
			candidate = rest
		}
	}

	candidate, _, _ = strings.Cut(candidate, "/")
	if videoIDOnly.MatchString(candidate) {
		return candidate, true
	}
	return "", false
}

// NormalizePlaylistID accepts a bare playlist ID or any URL with a list parameter.
func NormalizePlaylistID(input string) (string, bool) {
	input = strings.TrimSpace(input)
	if u, err := url.Parse(input); err == nil && u.Host != "" {
		input = u.Query().Get("list")
	}
	if playlistIDOnly.MatchString(input) {
		return input, true
	}
	return "", false
}

// ParseVideoList splits comma or whitespace separated IDs and URLs, returning the normalized IDs in order without
// duplicates and the tokens that could not be parsed.
func ParseVideoList(input string) (ids []string, invalid []string) {
	seen := make(map[string]bool)
	for _, token := range splitList.Split(strings.TrimSpace(input), -1) {
		if token == "" {
			continue
		}
		id, ok := NormalizeVideoID(token)
		if !ok {
			invalid = append(invalid, token)
			continue
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, invalid
}

func cutAny(s string, prefixes ...string) (string, bool) {
	for _, p := range prefixes {
		if _, after, ok := strings.Cut(s, p); ok {
			return after, true
		}
	}
	return "", false
}
