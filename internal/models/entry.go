package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// GenreUnknown is recorded whenever no classification is available.
const GenreUnknown = "Unknown"

const (
	MinScore     = 1
	MaxScore     = 5
	DefaultScore = 3
)

// Genres lists the classifier's allowed genres, in display order.
var Genres = []string{
	"Avant-garde & experimental",
	"Blues",
	"Classical",
	"Country",
	"Easy listening",
	"Electronic",
	"Folk",
	"Hip hop",
	"Jazz",
	"Pop",
	"R&B & soul",
	"Rock",
	"Metal",
	"Punk",
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// IsVideoID reports whether s has the shape of a YouTube video ID.
func IsVideoID(s string) bool { return videoIDPattern.MatchString(s) }

// NormalizeGenre maps s onto one of [Genres] ignoring case, or [GenreUnknown].
func NormalizeGenre(s string) string {
	s = strings.TrimSpace(s)
	for _, g := range Genres {
		if strings.EqualFold(g, s) {
			return g
		}
	}
	return GenreUnknown
}

// Entry is one catalogued video.
//
// Top-level legacy rating fields are kept through the embedded [LegacyRating] so JSON dumps of older catalogs round
// trip unchanged.
type Entry struct {
	VideoID         string            `json:"video_id"`
	Title           string            `json:"title"`
	Source          string            `json:"source"`
	Genre           string            `json:"genre"`
	GenreAIFidelity int               `json:"genre_ai_fidelity"`
	GenreAIRemarks  string            `json:"genre_ai_remarks"`
	AIModel         string            `json:"ai_model"`
	Artist          string            `json:"artist"`
	Track           string            `json:"track"`
	Rand            *float64          `json:"rand,omitempty"`
	DateYouTube     *time.Time        `json:"date_youtube,omitempty"`
	DateSubstack    *time.Time        `json:"date_substack,omitempty"`
	DatePrism       time.Time         `json:"date_prism"`
	Ratings         map[string]Rating `json:"ratings,omitempty"`
	*LegacyRating
	Modified time.Time `json:"-"`
}

func (e *Entry) ID() string { return e.VideoID }
func (e *Entry) CreatedAt() time.Time { return e.DatePrism }
func (e *Entry) UpdatedAt() time.Time { return e.Modified }

// Validate checks the video ID shape and fidelity range.
func (e *Entry) Validate() error {
	if !IsVideoID(e.VideoID) {
		return fmt.Errorf("invalid video id %q", e.VideoID)
	}
	if e.GenreAIFidelity < 0 || e.GenreAIFidelity > 100 {
		return fmt.Errorf("genre_ai_fidelity must be within 0-100, got %d", e.GenreAIFidelity)
	}
	return nil
}

// HasLegacyRating reports whether the entry carries a rating from before per-user ratings existed.
func (e *Entry) HasLegacyRating() bool {
	return e.LegacyRating != nil && e.LegacyRating.DateRated != nil
}

// RatingFor returns the rating u sees for this entry.
//
// Admins without their own rating see the legacy rating, if any. The second return value is false when the entry is
// unrated for u.
func (e *Entry) RatingFor(u *User) (Rating, bool) {
	if r, ok := e.Ratings[u.RatingKey()]; ok {
		return r.normalized(), true
	}
	if u.IsAdmin() && e.HasLegacyRating() {
		return e.LegacyRating.AsRating(e.Genre), true
	}
	return Rating{RatingMusic: DefaultScore, RatingVideo: DefaultScore}, false
}

// EffectiveGenre is the user's genre override, else the classified genre.
func (e *Entry) EffectiveGenre(u *User) string {
	if r, ok := e.RatingFor(u); ok && r.GenreOverride != "" {
		return r.GenreOverride
	}
	if e.Genre == "" {
		return GenreUnknown
	}
	return e.Genre
}

// RatingInput is a rating submitted by a user.
type RatingInput struct {
	Music    int
	Video    int
	Favorite bool
	Rejected bool
	// Genre is the genre the user believes applies. Empty keeps any existing override.
	Genre string
}

// Rate records u's rating on the entry and returns it.
//
// Scores are clamped to 1-5 and rated_at is carried over from any earlier rating u could see.
func (e *Entry) Rate(u *User, in RatingInput, now time.Time) Rating {
	existing, rated := e.RatingFor(u)

	r := Rating{
		RatingMusic: ClampScore(in.Music),
		RatingVideo: ClampScore(in.Video),
		Favorite:    in.Favorite,
		Rejected:    in.Rejected,
		RatedAt:     now,
		UpdatedAt:   now,
	}
	if rated && !existing.RatedAt.IsZero() {
		r.RatedAt = existing.RatedAt
	}

	submitted := strings.TrimSpace(in.Genre)
	base := strings.TrimSpace(e.Genre)
	switch {
	case submitted == "":
		if rated {
			r.GenreOverride = existing.GenreOverride
		}
	case base == "" || !strings.EqualFold(submitted, base):
		r.GenreOverride = submitted
	}

	if e.Ratings == nil {
		e.Ratings = make(map[string]Rating)
	}
	e.Ratings[u.RatingKey()] = r
	return r
}

// ClampScore bounds v to 1-5. Zero means "not given" and maps to the default score.
func ClampScore(v int) int {
	switch {
	case v == 0:
		return DefaultScore
	case v < MinScore:
		return MinScore
	case v > MaxScore:
		return MaxScore
	}
	return v
}

// Rating is one user's opinion of an entry.
type Rating struct {
	RatingMusic   int       `json:"rating_music"`
	RatingVideo   int       `json:"rating_video"`
	Favorite      bool      `json:"favorite"`
	Rejected      bool      `json:"rejected"`
	RatedAt       time.Time `json:"rated_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	GenreOverride string    `json:"genre_override,omitempty"`
}

func (r Rating) normalized() Rating {
	r.RatingMusic = ClampScore(r.RatingMusic)
	r.RatingVideo = ClampScore(r.RatingVideo)
	return r
}

// LegacyRating holds the single, ownerless rating older catalogs stored at the top level of each entry.
type LegacyRating struct {
	RatingMusic int        `json:"rating_music,omitempty"`
	RatingVideo int        `json:"rating_video,omitempty"`
	Favorite    bool       `json:"favorite,omitempty"`
	Rejected    bool       `json:"rejected,omitempty"`
	DateRated   *time.Time `json:"date_rated,omitempty"`
}

// AsRating converts the legacy fields to a [Rating]. In those catalogs the entry genre was edited by hand, so it becomes
// the override.
func (l *LegacyRating) AsRating(genre string) Rating {
	r := Rating{
		RatingMusic:   ClampScore(l.RatingMusic),
		RatingVideo:   ClampScore(l.RatingVideo),
		Favorite:      l.Favorite,
		Rejected:      l.Rejected,
		GenreOverride: genre,
	}
	if l.DateRated != nil {
		r.RatedAt = *l.DateRated
		r.UpdatedAt = *l.DateRated
	}
	return r
}
