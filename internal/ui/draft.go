package ui

import (
	"slices"

	"github.com/desertthunder/prism/internal/models"
)

type field int

const (
	musicField field = iota
	videoField
)

// draft is the unsaved rating being edited in [RateView].
type draft struct {
	entry    *models.Entry
	music    int
	video    int
	favorite bool
	rejected bool
	genre    int // index into models.Genres, -1 while the entry has no known genre
	focus    field
}

func newDraft(e *models.Entry, u *models.User) draft {
	r, _ := e.RatingFor(u)
	return draft{
		entry:    e,
		music:    r.RatingMusic,
		video:    r.RatingVideo,
		favorite: r.Favorite,
		rejected: r.Rejected,
		genre:    slices.Index(models.Genres, e.EffectiveGenre(u)),
	}
}

func (d *draft) focused() *int {
	if d.focus == videoField {
		return &d.video
	}
	return &d.music
}

func (d *draft) toggleFocus() {
	if d.focus == musicField {
		d.focus = videoField
	} else {
		d.focus = musicField
	}
}

func (d *draft) adjust(delta int) {
	s := d.focused()
	*s = min(max(*s+delta, models.MinScore), models.MaxScore)
}

func (d *draft) set(score int) {
	*d.focused() = models.ClampScore(score)
}

func (d *draft) cycleGenre(step int) {
	n := len(models.Genres)
	if d.genre < 0 {
		if step > 0 {
			d.genre = 0
		} else {
			d.genre = n - 1
		}
		return
	}
	d.genre = ((d.genre+step)%n + n) % n
}

func (d draft) genreName() string {
	if d.genre < 0 {
		return models.GenreUnknown
	}
	return models.Genres[d.genre]
}

// input converts the draft for saving. An untouched unknown genre is sent empty so any stored override survives.
func (d draft) input() models.RatingInput {
	in := models.RatingInput{Music: d.music, Video: d.video, Favorite: d.favorite, Rejected: d.rejected}
	if d.genre >= 0 {
		in.Genre = models.Genres[d.genre]
	}
	return in
}
