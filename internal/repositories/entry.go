package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/prism/internal/models"
	"github.com/desertthunder/prism/internal/shared"
)

const entryColumns = `video_id, title, source, genre, genre_ai_fidelity, genre_ai_remarks, ai_model, artist, track, rand,
	date_youtube, date_substack, date_prism, legacy_rating_music, legacy_rating_video, legacy_favorite, legacy_rejected,
	legacy_date_rated, updated_at`

// EntryRepository implements [models.EntryStore] for catalog [models.Entry] persistence.
//
// Ratings live in their own table keyed by (video_id, rating_key) and are loaded alongside each entry.
type EntryRepository struct {
	db *sql.DB
}

// NewEntryRepository creates a new [EntryRepository] with the given database connection
func NewEntryRepository(db *sql.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

// Create inserts a new entry and its ratings.
//
// A soft-deleted entry with the same video ID is revived; a live one yields [shared.ErrAlreadyExists].
func (r *EntryRepository) Create(entry *models.Entry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	if entry.DatePrism.IsZero() {
		entry.DatePrism = now
	}
	entry.Modified = now

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO entries (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			title = excluded.title, source = excluded.source, genre = excluded.genre,
			genre_ai_fidelity = excluded.genre_ai_fidelity, genre_ai_remarks = excluded.genre_ai_remarks,
			ai_model = excluded.ai_model, artist = excluded.artist, track = excluded.track, rand = excluded.rand,
			date_youtube = excluded.date_youtube, date_substack = excluded.date_substack, date_prism = excluded.date_prism,
			legacy_rating_music = excluded.legacy_rating_music, legacy_rating_video = excluded.legacy_rating_video,
			legacy_favorite = excluded.legacy_favorite, legacy_rejected = excluded.legacy_rejected,
			legacy_date_rated = excluded.legacy_date_rated, updated_at = excluded.updated_at, deleted_at = NULL
		WHERE entries.deleted_at IS NOT NULL
	`

	result, err := tx.Exec(query, entryArgs(entry)...)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: entry %s", shared.ErrAlreadyExists, entry.VideoID)
	}

	if err := replaceRatings(tx, entry); err != nil {
		return err
	}

	return tx.Commit()
}

// Get retrieves an entry by video ID, excluding soft-deleted entries
func (r *EntryRepository) Get(id string) (*models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE video_id = ? AND deleted_at IS NULL`

	entry, err := scanEntry(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: entry %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query entry: %w", err)
	}

	ratings, err := r.ratings("WHERE video_id = ?", id)
	if err != nil {
		return nil, err
	}
	entry.Ratings = ratings[id]

	return entry, nil
}

// Exists reports whether a live entry with the video ID is stored.
func (r *EntryRepository) Exists(videoID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow("SELECT EXISTS(SELECT 1 FROM entries WHERE video_id = ? AND deleted_at IS NULL)", videoID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check entry: %w", err)
	}
	return exists, nil
}

// Update writes every entry field and replaces its ratings with entry.Ratings.
//
// Setting entry.LegacyRating to nil clears the legacy rating columns.
func (r *EntryRepository) Update(entry *models.Entry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	entry.Modified = time.Now()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE entries
		SET title = ?, source = ?, genre = ?, genre_ai_fidelity = ?, genre_ai_remarks = ?, ai_model = ?, artist = ?,
			track = ?, rand = ?, date_youtube = ?, date_substack = ?, date_prism = ?, legacy_rating_music = ?,
			legacy_rating_video = ?, legacy_favorite = ?, legacy_rejected = ?, legacy_date_rated = ?, updated_at = ?
		WHERE video_id = ? AND deleted_at IS NULL
	`

	args := entryArgs(entry)
	result, err := tx.Exec(query, append(args[1:], entry.VideoID)...)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: entry %s", shared.ErrNotFound, entry.VideoID)
	}

	if _, err := tx.Exec("DELETE FROM ratings WHERE video_id = ?", entry.VideoID); err != nil {
		return fmt.Errorf("failed to clear ratings: %w", err)
	}
	if err := replaceRatings(tx, entry); err != nil {
		return err
	}

	return tx.Commit()
}

// SetRating upserts a single rating without touching the rest of the entry.
func (r *EntryRepository) SetRating(videoID, ratingKey string, rating models.Rating) error {
	exists, err := r.Exists(videoID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: entry %s", shared.ErrNotFound, videoID)
	}

	if _, err := r.db.Exec(upsertRatingQuery, ratingArgs(videoID, ratingKey, rating)...); err != nil {
		return fmt.Errorf("failed to save rating: %w", err)
	}
	return nil
}

// RemoveRatings deletes every rating stored under ratingKey.
func (r *EntryRepository) RemoveRatings(ratingKey string) (int, error) {
	result, err := r.db.Exec("DELETE FROM ratings WHERE rating_key = ?", ratingKey)
	if err != nil {
		return 0, fmt.Errorf("failed to delete ratings: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(rows), nil
}

// Delete soft-deletes an entry by video ID
func (r *EntryRepository) Delete(id string) error {
	result, err := r.db.Exec("UPDATE entries SET deleted_at = ? WHERE video_id = ? AND deleted_at IS NULL", time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: entry %s", shared.ErrNotFound, id)
	}

	return nil
}

// List retrieves all live entries matching criteria, oldest first, with their ratings attached.
func (r *EntryRepository) List(criteria map[string]any) ([]*models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE deleted_at IS NULL`
	args := []any{}

	if model, ok := criteria["ai_model_not"].(string); ok {
		query += " AND ai_model != ?"
		args = append(args, model)
	}
	if incomplete, ok := criteria["incomplete"].(bool); ok && incomplete {
		query += " AND (artist = '' OR track = '' OR ai_model = '')"
	}
	if missing, ok := criteria["missing_rand"].(bool); ok && missing {
		query += " AND rand IS NULL"
	}
	if source, ok := criteria["source"].(string); ok && source != "" {
		query += " AND source = ?"
		args = append(args, source)
	}

	query += " ORDER BY date_prism ASC, video_id ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	ratings, err := r.ratings("")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		e.Ratings = ratings[e.VideoID]
	}

	return entries, nil
}

// ratings loads ratings grouped by video ID.
func (r *EntryRepository) ratings(where string, args ...any) (map[string]map[string]models.Rating, error) {
	query := `
		SELECT video_id, rating_key, rating_music, rating_video, favorite, rejected, genre_override, rated_at, updated_at
		FROM ratings ` + where

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[string]models.Rating)
	for rows.Next() {
		var (
			videoID, key string
			rating       models.Rating
		)
		err := rows.Scan(&videoID, &key, &rating.RatingMusic, &rating.RatingVideo, &rating.Favorite, &rating.Rejected,
			&rating.GenreOverride, &rating.RatedAt, &rating.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		if out[videoID] == nil {
			out[videoID] = make(map[string]models.Rating)
		}
		out[videoID][key] = rating
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

const upsertRatingQuery = `
	INSERT INTO ratings (video_id, rating_key, rating_music, rating_video, favorite, rejected, genre_override, rated_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(video_id, rating_key) DO UPDATE SET
		rating_music = excluded.rating_music, rating_video = excluded.rating_video, favorite = excluded.favorite,
		rejected = excluded.rejected, genre_override = excluded.genre_override, rated_at = excluded.rated_at,
		updated_at = excluded.updated_at
`

func replaceRatings(tx *sql.Tx, entry *models.Entry) error {
	for key, rating := range entry.Ratings {
		if _, err := tx.Exec(upsertRatingQuery, ratingArgs(entry.VideoID, key, rating)...); err != nil {
			return fmt.Errorf("failed to save rating %s: %w", key, err)
		}
	}
	return nil
}

func ratingArgs(videoID, key string, r models.Rating) []any {
	ratedAt := r.RatedAt
	if ratedAt.IsZero() {
		ratedAt = time.Now()
	}
	updatedAt := r.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = ratedAt
	}
	return []any{videoID, key, models.ClampScore(r.RatingMusic), models.ClampScore(r.RatingVideo), r.Favorite, r.Rejected,
		strings.TrimSpace(r.GenreOverride), ratedAt, updatedAt}
}

// entryArgs returns the values for [entryColumns] in order.
func entryArgs(e *models.Entry) []any {
	var (
		legacyMusic, legacyVideo sql.NullInt64
		legacyFavorite           bool
		legacyRejected           bool
		legacyDate               sql.NullTime
	)
	if l := e.LegacyRating; l != nil {
		legacyMusic = sql.NullInt64{Int64: int64(l.RatingMusic), Valid: l.RatingMusic != 0}
		legacyVideo = sql.NullInt64{Int64: int64(l.RatingVideo), Valid: l.RatingVideo != 0}
		legacyFavorite, legacyRejected = l.Favorite, l.Rejected
		if l.DateRated != nil {
			legacyDate = sql.NullTime{Time: *l.DateRated, Valid: true}
		}
	}

	genre := e.Genre
	if genre == "" {
		genre = models.GenreUnknown
	}

	return []any{
		e.VideoID, e.Title, e.Source, genre, e.GenreAIFidelity, e.GenreAIRemarks, e.AIModel, e.Artist, e.Track,
		nullFloat(e.Rand), nullTime(e.DateYouTube), nullTime(e.DateSubstack), e.DatePrism,
		legacyMusic, legacyVideo, legacyFavorite, legacyRejected, legacyDate, e.Modified,
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*models.Entry, error) {
	var (
		e                         models.Entry
		rnd                       sql.NullFloat64
		dateYouTube, dateSubstack sql.NullTime
		legacyMusic, legacyVideo  sql.NullInt64
		legacyFavorite            bool
		legacyRejected            bool
		legacyDate                sql.NullTime
	)

	err := row.Scan(&e.VideoID, &e.Title, &e.Source, &e.Genre, &e.GenreAIFidelity, &e.GenreAIRemarks, &e.AIModel,
		&e.Artist, &e.Track, &rnd, &dateYouTube, &dateSubstack, &e.DatePrism, &legacyMusic, &legacyVideo,
		&legacyFavorite, &legacyRejected, &legacyDate, &e.Modified)
	if err != nil {
		return nil, err
	}

	if rnd.Valid {
		e.Rand = &rnd.Float64
	}
	if dateYouTube.Valid {
		e.DateYouTube = &dateYouTube.Time
	}
	if dateSubstack.Valid {
		e.DateSubstack = &dateSubstack.Time
	}
	if legacyMusic.Valid || legacyVideo.Valid || legacyFavorite || legacyRejected || legacyDate.Valid {
		e.LegacyRating = &models.LegacyRating{
			RatingMusic: int(legacyMusic.Int64),
			RatingVideo: int(legacyVideo.Int64),
			Favorite:    legacyFavorite,
			Rejected:    legacyRejected,
		}
		if legacyDate.Valid {
			e.LegacyRating.DateRated = &legacyDate.Time
		}
	}

	return &e, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
