package models

import (
	"cmp"
	"slices"
	"strings"
)

// GenreAll disables genre filtering.
const GenreAll = "All"

// Filter selects entries by one user's ratings.
type Filter struct {
	MinRatingMusic  int
	MinRatingVideo  int
	Genre           string
	FavoriteOnly    bool
	IncludeUnrated  bool
	ExcludeRejected bool
}

// DefaultFilter mirrors what a listener usually wants: rated entries scoring at least 3, rejected ones hidden.
func DefaultFilter() Filter {
	return Filter{
		MinRatingMusic:  DefaultScore,
		MinRatingVideo:  DefaultScore,
		Genre:           GenreAll,
		ExcludeRejected: true,
	}
}

// Match reports whether e passes f for user u.
//
// Rated entries must meet both score minimums. Unrated entries pass only when IncludeUnrated is set.
func (f Filter) Match(e *Entry, u *User) bool {
	r, rated := e.RatingFor(u)

	if f.ExcludeRejected && r.Rejected {
		return false
	}
	if f.FavoriteOnly && !r.Favorite {
		return false
	}
	if f.Genre != "" && f.Genre != GenreAll && e.EffectiveGenre(u) != f.Genre {
		return false
	}
	if !rated {
		return f.IncludeUnrated
	}
	return r.RatingMusic >= f.MinRatingMusic && r.RatingVideo >= f.MinRatingVideo
}

// FilterEntries returns the entries matching f, sorted by artist then track ignoring case.
func FilterEntries(entries []*Entry, f Filter, u *User) []*Entry {
	out := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if f.Match(e, u) {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b *Entry) int {
		return cmp.Or(
			cmp.Compare(strings.ToLower(a.Artist), strings.ToLower(b.Artist)),
			cmp.Compare(strings.ToLower(a.Track), strings.ToLower(b.Track)),
		)
	})
	return out
}

// Unrated returns the entries u has not rated yet, in input order.
func Unrated(entries []*Entry, u *User) []*Entry {
	var out []*Entry
	for _, e := range entries {
		if _, rated := e.RatingFor(u); !rated {
			out = append(out, e)
		}
	}
	return out
}

// GenreCount is one row of [Stats.Genres].
type GenreCount struct {
	Genre string  `json:"genre"`
	Count int     `json:"count"`
	Pct   float64 `json:"pct"`
}

// Stats summarizes a catalog from one user's point of view.
type Stats struct {
	Total       int          `json:"total"`
	Rated       int          `json:"rated"`
	Favorites   int          `json:"favorites"`
	Rejected    int          `json:"rejected"`
	RatedPct    float64      `json:"rated_pct"`
	FavoritePct float64      `json:"favorite_pct"`
	RejectedPct float64      `json:"rejected_pct"`
	Genres      []GenreCount `json:"genres"`
}

// Summarize counts ratings and effective genres, with genres ordered by descending count.
func Summarize(entries []*Entry, u *User) Stats {
	s := Stats{Total: len(entries)}
	counts := make(map[string]int)
	for _, e := range entries {
		r, rated := e.RatingFor(u)
		if rated {
			s.Rated++
		}
		if rated && r.Favorite {
			s.Favorites++
		}
		if rated && r.Rejected {
			s.Rejected++
		}
		counts[e.EffectiveGenre(u)]++
	}

	s.RatedPct = pct(s.Rated, s.Total)
	s.FavoritePct = pct(s.Favorites, s.Total)
	s.RejectedPct = pct(s.Rejected, s.Total)
	for g, c := range counts {
		s.Genres = append(s.Genres, GenreCount{Genre: g, Count: c, Pct: pct(c, s.Total)})
	}
	slices.SortFunc(s.Genres, func(a, b GenreCount) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.Genre, b.Genre))
	})
	return s
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(int(float64(n)/float64(total)*1000+0.5)) / 10
}
