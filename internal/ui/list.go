package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/prism/internal/models"
)

var _ list.Item = entryItem{}

// entryItem wraps [models.Entry] as seen by one user to implement [list.Item].
type entryItem struct {
	entry  *models.Entry
	rating models.Rating
	rated  bool
	genre  string
}

func newEntryItem(e *models.Entry, u *models.User) entryItem {
	r, rated := e.RatingFor(u)
	return entryItem{entry: e, rating: r, rated: rated, genre: e.EffectiveGenre(u)}
}

func (i entryItem) FilterValue() string {
	return strings.Join([]string{i.entry.Artist, i.entry.Track, i.entry.Title, i.genre}, " ")
}

func (i entryItem) Title() string { return entryLabel(i.entry) }

func (i entryItem) Description() string {
	parts := []string{i.genre}
	if i.rated {
		parts = append(parts, "music "+stars(i.rating.RatingMusic), "video "+stars(i.rating.RatingVideo))
	} else {
		parts = append(parts, "unrated")
	}
	if i.rating.Favorite {
		parts = append(parts, "fav")
	}
	if i.rating.Rejected {
		parts = append(parts, "rejected")
	}
	return strings.Join(parts, " • ")
}

// entryLabel is "artist - track", or the video title when either is unknown.
func entryLabel(e *models.Entry) string {
	if e.Artist == "" || e.Track == "" {
		if e.Title != "" {
			return e.Title
		}
		return e.VideoID
	}
	return e.Artist + " - " + e.Track
}

func stars(score int) string {
	score = min(max(score, 0), models.MaxScore)
	return strings.Repeat("★", score) + strings.Repeat("☆", models.MaxScore-score)
}
