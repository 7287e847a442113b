package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/desertthunder/prism/internal/classify"
	"github.com/desertthunder/prism/internal/models"
	"github.com/desertthunder/prism/internal/retry"
	"github.com/desertthunder/prism/internal/services"
	"github.com/desertthunder/prism/internal/shared"
	"github.com/desertthunder/prism/internal/source"
)

const DefaultGenreUpdateDelay = time.Second

// GenreChange is a proposed re-classification shown to the confirm callback of [Catalog.UpdateGenres].
// Entry is a snapshot taken before the change is applied.
type GenreChange struct {
	Entry    models.Entry
	Previous string
	Result   classify.Result
}

// SameGenre reports whether the new classification keeps the stored genre.
func (g GenreChange) SameGenre() bool { return g.Previous == g.Result.Genre }

// ConfirmFunc decides whether a proposed change is saved. A nil ConfirmFunc accepts everything.
type ConfirmFunc func(GenreChange) (bool, error)

// GenreUpdateOptions configures [Catalog.UpdateGenres].
type GenreUpdateOptions struct {
	Confirm ConfirmFunc
	Delay   time.Duration
	Sleep   func(context.Context, time.Duration) error
}

// GenreUpdateResult counts the entries UpdateGenres looked at.
type GenreUpdateResult struct {
	Checked     int `json:"checked"`
	Updated     int `json:"updated"`
	Declined    int `json:"declined"`
	Unavailable int `json:"unavailable"`
	Failed      int `json:"failed"`
}

// UpdateGenres re-classifies every entry whose ai_model differs from the classifier's model, using fresh metadata
// from host. Entries whose video has disappeared and failed classifications are left untouched.
func (c *Catalog) UpdateGenres(ctx context.Context, progress chan<- ProgressUpdate, host services.VideoHost, classifier classify.Classifier, opts GenreUpdateOptions) (*GenreUpdateResult, error) {
	model := classifier.Model()
	if model == "" {
		return nil, fmt.Errorf("%w: genre updates need a configured AI model", shared.ErrMissingCredentials)
	}
	if opts.Sleep == nil {
		opts.Sleep = retry.Sleep
	}

	entries, err := c.entries.List(map[string]any{"ai_model_not": model})
	if err != nil {
		return nil, err
	}

	res := &GenreUpdateResult{}
	for i, e := range entries {
		if i > 0 {
			if err := opts.Sleep(ctx, opts.Delay); err != nil {
				return res, err
			}
		}
		res.Checked++

		meta, err := host.VideoMetadata(ctx, e.VideoID)
		if errors.Is(err, shared.ErrVideoUnavailable) {
			res.Unavailable++
			sendProgress(progress, entryUpdate(UpdateGenres, i+1, len(entries), e.VideoID, "unavailable"))
			continue
		}
		if err != nil {
			return res, fmt.Errorf("metadata %s: %w", e.VideoID, err)
		}

		result, err := classifier.Classify(ctx, *meta)
		if err != nil {
			res.Failed++
			c.logger.Warn("classification failed", "video", e.VideoID, "err", err)
			sendProgress(progress, entryUpdate(UpdateGenres, i+1, len(entries), e.VideoID, "classification failed"))
			continue
		}
		result.Genre = models.NormalizeGenre(result.Genre)
		result.Fidelity = min(max(result.Fidelity, 0), 100)

		change := GenreChange{Entry: *e, Previous: e.Genre, Result: result}
		if opts.Confirm != nil {
			ok, err := opts.Confirm(change)
			if err != nil {
				return res, err
			}
			if !ok {
				res.Declined++
				continue
			}
		}

		e.Genre = result.Genre
		e.GenreAIRemarks = result.Remarks
		e.GenreAIFidelity = result.Fidelity
		e.AIModel = model
		e.Artist = result.Artist
		e.Track = result.Track
		if err := c.entries.Update(e); err != nil {
			return res, err
		}
		res.Updated++
		sendProgress(progress, entryUpdate(UpdateGenres, i+1, len(entries), e.VideoID, "genre "+e.Genre))
		c.logger.Info("entry re-classified", "video", e.VideoID, "genre", e.Genre, "model", model)
	}

	return res, nil
}

// BackfillResult counts [Catalog.Backfill] outcomes.
type BackfillResult struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
}

// Backfill fills entries missing ai_model, artist or track. The model name is written as-is; artist and track come
// from identifier and are only written when the identifier knew them.
func (c *Catalog) Backfill(ctx context.Context, progress chan<- ProgressUpdate, identifier classify.TrackIdentifier, model string) (*BackfillResult, error) {
	entries, err := c.entries.List(map[string]any{"incomplete": true})
	if err != nil {
		return nil, err
	}

	res := &BackfillResult{}
	for i, e := range entries {
		res.Checked++
		changed := false

		if e.AIModel == "" && model != "" {
			e.AIModel = model
			changed = true
		}
		if (e.Artist == "" || e.Track == "") && identifier != nil {
			artist, track, err := identifier.IdentifyTrack(ctx, e.VideoID, e.Title)
			switch {
			case ctx.Err() != nil:
				return res, ctx.Err()
			case err != nil:
				c.logger.Warn("track identification failed", "video", e.VideoID, "err", err)
			default:
				if e.Artist == "" && artist != "" {
					e.Artist = artist
					changed = true
				}
				if e.Track == "" && track != "" {
					e.Track = track
					changed = true
				}
			}
		}

		if !changed {
			sendProgress(progress, entryUpdate(BackfillEntries, i+1, len(entries), e.VideoID, "nothing to fill"))
			continue
		}
		if err := c.entries.Update(e); err != nil {
			return res, err
		}
		res.Updated++
		sendProgress(progress, entryUpdate(BackfillEntries, i+1, len(entries), e.VideoID, e.Artist+" - "+e.Track))
	}
	return res, nil
}

// MigrateOptions configures [Catalog.MigrateRatings].
type MigrateOptions struct {
	AdminID      string
	AuthProvider string
	RemoveLegacy bool
	AddRand      bool
	DryRun       bool
}

// MigrateResult counts [Catalog.MigrateRatings] outcomes. Dry runs count what would have changed.
type MigrateResult struct {
	RatingKey     string `json:"rating_key"`
	Migrated      int    `json:"migrated"`
	Skipped       int    `json:"skipped"`
	RandUpdated   int    `json:"rand_updated"`
	LegacyRemoved int    `json:"legacy_removed"`
}

// MigrateRatings moves legacy top-level ratings into the admin user's rating slot.
//
// The admin user is created or promoted first. Entries where the admin already has a rating are skipped, though a
// missing rand is still filled when AddRand is set.
func (c *Catalog) MigrateRatings(opts MigrateOptions) (*MigrateResult, error) {
	if opts.AdminID == "" {
		return nil, fmt.Errorf("%w: admin user", shared.ErrMissingArgument)
	}

	admin, err := c.EnsureUser(UserSpec{
		ID:           opts.AdminID,
		AuthProvider: opts.AuthProvider,
		Role:         models.RoleAdmin,
		Status:       models.StatusActive,
		ForceRole:    true,
	})
	if err != nil {
		return nil, err
	}
	key := admin.RatingKey()

	entries, err := c.entries.List(nil)
	if err != nil {
		return nil, err
	}

	res := &MigrateResult{RatingKey: key}
	for _, e := range entries {
		changed := false
		if opts.AddRand && e.Rand == nil {
			r := c.rand()
			e.Rand = &r
			res.RandUpdated++
			changed = true
		}

		if _, ok := e.Ratings[key]; ok {
			res.Skipped++
		} else if e.HasLegacyRating() {
			r := e.LegacyRating.AsRating(e.Genre)
			r.UpdatedAt = c.now().UTC()
			if e.Ratings == nil {
				e.Ratings = make(map[string]models.Rating)
			}
			e.Ratings[key] = r
			res.Migrated++
			changed = true

			if opts.RemoveLegacy {
				e.LegacyRating = nil
				res.LegacyRemoved++
			}
		} else {
			res.Skipped++
		}

		if !changed {
			continue
		}
		if opts.DryRun {
			c.logger.Info("dry run, entry not updated", "video", e.VideoID)
			continue
		}
		if err := c.entries.Update(e); err != nil {
			return res, err
		}
	}
	return res, nil
}

// LoadResult counts [Catalog.Load] outcomes.
type LoadResult struct {
	Loaded  int `json:"loaded"`
	Exists  int `json:"exists"`
	Invalid int `json:"invalid"`
}

// Load imports a JSON array of catalog documents, as exported from an older catalog. Existing video IDs are left
// alone, as are documents without a valid video ID.
func (c *Catalog) Load(r io.Reader) (*LoadResult, error) {
	var docs []map[string]any
	if err := json.NewDecoder(r).Decode(&docs); err != nil {
		return nil, fmt.Errorf("%w: dump must be a JSON array of documents: %v", shared.ErrInvalidInput, err)
	}

	res := &LoadResult{}
	for _, doc := range docs {
		e, err := entryFromDocument(doc)
		if err != nil {
			res.Invalid++
			c.logger.Warn("skipping document", "err", err)
			continue
		}

		exists, err := c.entries.Exists(e.VideoID)
		if err != nil {
			return res, err
		}
		if exists {
			res.Exists++
			continue
		}
		if e.DatePrism.IsZero() {
			e.DatePrism = c.now().UTC()
		}
		if err := c.entries.Create(e); err != nil {
			return res, err
		}
		res.Loaded++
	}
	return res, nil
}

// entryFromDocument converts one dumped document. Dates may be any format [source.ParseDate] accepts.
func entryFromDocument(doc map[string]any) (*models.Entry, error) {
	str := func(key string) string {
		switch v := doc[key].(type) {
		case string:
			return strings.TrimSpace(v)
		case float64:
			return fmt.Sprint(v)
		}
		return ""
	}
	num := func(key string) (float64, bool) {
		v, ok := doc[key].(float64)
		return v, ok
	}
	date := func(key string) *time.Time { return source.ParseDate(str(key)) }

	e := &models.Entry{
		VideoID:        firstNonEmpty(str("video_id"), str("id")),
		Title:          str("title"),
		Source:         str("source"),
		Genre:          str("genre"),
		GenreAIRemarks: str("genre_ai_remarks"),
		AIModel:        str("ai_model"),
		Artist:         str("artist"),
		Track:          str("track"),
		DateYouTube:    date("date_youtube"),
		DateSubstack:   date("date_substack"),
	}
	if !models.IsVideoID(e.VideoID) {
		return nil, fmt.Errorf("invalid video id %q", e.VideoID)
	}
	if f, ok := num("genre_ai_fidelity"); ok {
		e.GenreAIFidelity = min(max(int(f), 0), 100)
	}
	if f, ok := num("rand"); ok {
		e.Rand = &f
	}
	if t := date("date_prism"); t != nil {
		e.DatePrism = *t
	}

	if rated := date("date_rated"); rated != nil {
		legacy := &models.LegacyRating{DateRated: rated}
		if f, ok := num("rating_music"); ok {
			legacy.RatingMusic = int(f)
		}
		if f, ok := num("rating_video"); ok {
			legacy.RatingVideo = int(f)
		}
		legacy.Favorite, _ = doc["favorite"].(bool)
		legacy.Rejected, _ = doc["rejected"].(bool)
		e.LegacyRating = legacy
	}

	if raw, ok := doc["ratings"]; ok {
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &e.Ratings); err != nil {
			return nil, fmt.Errorf("ratings of %s: %w", e.VideoID, err)
		}
	}
	return e, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
