package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/prism/internal/retry"
	"github.com/desertthunder/prism/internal/services"
	"github.com/desertthunder/prism/internal/shared"
)

// DefaultDescription is set on every playlist prism creates. Playlist cleanup matches on it.
const DefaultDescription = "Automatically created from Substack"

const (
	DefaultPrivacy     = "private"
	DefaultInsertDelay = 200 * time.Millisecond
	MaxTitleLength     = 100
)

// WriterOptions configures a [PlaylistWriter].
type WriterOptions struct {
	Privacy        string
	Description    string
	Delay          time.Duration // minimum spacing between API calls
	MaxTitleLength int           // rune limit applied when YouTube rejects a title
	DryRun         bool
	Retry          retry.Config // backoff for transient insert failures
}

func DefaultWriterOptions() WriterOptions {
	return WriterOptions{
		Privacy:        DefaultPrivacy,
		Description:    DefaultDescription,
		Delay:          DefaultInsertDelay,
		MaxTitleLength: MaxTitleLength,
		Retry:          retry.DefaultConfig(),
	}
}

// WriterOptionsFromConfig overlays the [playlist] config section on [DefaultWriterOptions].
func WriterOptionsFromConfig(cfg shared.PlaylistConfig) WriterOptions {
	opts := DefaultWriterOptions()
	if cfg.Privacy != "" {
		opts.Privacy = cfg.Privacy
	}
	if cfg.Description != "" {
		opts.Description = cfg.Description
	}
	if cfg.Sleep >= 0 {
		opts.Delay = shared.Seconds(cfg.Sleep)
	}
	if cfg.MaxTitleLength > 0 {
		opts.MaxTitleLength = cfg.MaxTitleLength
	}
	if cfg.InsertRetries > 0 {
		opts.Retry.MaxAttempts = cfg.InsertRetries
	}
	if cfg.RetryBase > 0 {
		opts.Retry.BaseDelay = shared.Seconds(cfg.RetryBase)
	}
	if cfg.RetryJitter >= 0 {
		opts.Retry.MaxJitter = shared.Seconds(cfg.RetryJitter)
	}
	return opts
}

// SkipError reports a video that was left out of a playlist without stopping the run.
type SkipError struct {
	VideoID string
	Reason  string
	Err     error
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("skipped %s (%s): %v", e.VideoID, e.Reason, e.Err)
}

func (e *SkipError) Unwrap() error { return e.Err }

// SkippedVideo is one entry of [WriteResult.Skipped].
type SkippedVideo struct {
	VideoID string `json:"video_id"`
	Reason  string `json:"reason"`
}

// WriteResult describes one playlist written (or previewed) by [PlaylistWriter.Write].
type WriteResult struct {
	Title      string         `json:"title"`
	PlaylistID string         `json:"playlist_id,omitempty"`
	VideoIDs   []string       `json:"video_ids"`
	Added      []string       `json:"added,omitempty"`
	Skipped    []SkippedVideo `json:"skipped,omitempty"`
	DryRun     bool           `json:"dry_run"`
}

// URL links to the created playlist, or is empty when none exists.
func (r *WriteResult) URL() string {
	if r.PlaylistID == "" {
		return ""
	}
	return services.PlaylistURL(r.PlaylistID)
}

// PlaylistWriter creates playlists and fills them one video at a time.
//
// Per-video failures are sorted into three groups:
//   - not found, duplicate and failed precondition are skipped without retrying
//   - transient failures (409, 5xx, backend errors) are retried with exponential backoff and skipped once retries run out
//   - quota exhaustion, revoked credentials, a missing playlist and cancellation abort the playlist, which is then deleted
type PlaylistWriter struct {
	host    services.VideoHost
	opts    WriterOptions
	limiter *rate.Limiter
	logger  *log.Logger
}

func NewPlaylistWriter(host services.VideoHost, opts WriterOptions, logger *log.Logger) *PlaylistWriter {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	if opts.Description == "" {
		opts.Description = DefaultDescription
	}
	if opts.Privacy == "" {
		opts.Privacy = DefaultPrivacy
	}
	if opts.MaxTitleLength <= 0 {
		opts.MaxTitleLength = MaxTitleLength
	}

	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}
	return &PlaylistWriter{
		host:    host,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

func (w *PlaylistWriter) DryRun() bool { return w.opts.DryRun }

// Write creates a playlist titled title and inserts videoIDs in order.
//
// In dry-run mode no remote call is made and the result only previews the playlist. When the run aborts after the
// playlist was created, the playlist is deleted and the returned result has no PlaylistID.
func (w *PlaylistWriter) Write(ctx context.Context, title string, videoIDs []string) (*WriteResult, error) {
	res := &WriteResult{Title: title, VideoIDs: videoIDs, DryRun: w.opts.DryRun}
	if w.opts.DryRun {
		w.logger.Info("dry run, playlist not created", "title", title, "videos", len(videoIDs))
		return res, nil
	}

	id, err := w.CreatePlaylist(ctx, title)
	if err != nil {
		return res, err
	}
	res.PlaylistID = id
	w.logger.Info("playlist created", "id", id, "title", title)

	for i, videoID := range videoIDs {
		err := w.InsertVideo(ctx, id, videoID)

		var skip *SkipError
		switch {
		case err == nil:
			res.Added = append(res.Added, videoID)
			w.logger.Info("video added", "video", videoID, "n", i+1, "of", len(videoIDs))
		case errors.As(err, &skip):
			res.Skipped = append(res.Skipped, SkippedVideo{VideoID: videoID, Reason: skip.Reason})
			w.logger.Warn("video skipped", "video", videoID, "reason", skip.Reason, "err", skip.Err)
		default:
			w.discard(ctx, id)
			res.PlaylistID = ""
			return res, fmt.Errorf("insert %s into %s: %w", videoID, id, err)
		}
	}

	return res, nil
}

// CreatePlaylist creates an empty playlist and returns its ID.
//
// When YouTube rejects the snippet, the title is cut to the configured rune limit, the description reset to
// [DefaultDescription], and creation retried exactly once.
func (w *PlaylistWriter) CreatePlaylist(ctx context.Context, title string) (string, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return "", err
	}
	id, err := w.host.CreatePlaylist(ctx, title, w.opts.Description, w.opts.Privacy)
	if err == nil {
		return id, nil
	}
	if services.KindOf(err) != services.KindInvalidSnippet {
		return "", fmt.Errorf("create playlist %q: %w", title, err)
	}

	short := shared.Truncate(title, w.opts.MaxTitleLength)
	w.logger.Warn("playlist snippet rejected, retrying with shortened title", "title", short, "err", err)

	if err := w.limiter.Wait(ctx); err != nil {
		return "", err
	}
	id, err = w.host.CreatePlaylist(ctx, short, DefaultDescription, w.opts.Privacy)
	if err != nil {
		return "", fmt.Errorf("create playlist %q after shortening: %w", short, err)
	}
	return id, nil
}

// InsertVideo adds one video to a playlist.
//
// It returns nil on success and a [*SkipError] for failures that should not stop the run. Any other error is fatal
// for the playlist.
func (w *PlaylistWriter) InsertVideo(ctx context.Context, playlistID, videoID string) error {
	cfg := w.opts.Retry
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		w.logger.Warn("insert failed, retrying",
			"video", videoID, "attempt", attempt, "of", cfg.MaxAttempts, "wait", delay.Round(time.Millisecond), "err", err)
	}

	err := retry.Do(ctx, cfg, isTransient, func(ctx context.Context) error {
		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}
		return w.host.InsertPlaylistItem(ctx, playlistID, videoID)
	})
	if err == nil {
		return nil
	}

	if services.IsPlaylistGone(err) {
		return fmt.Errorf("playlist %s no longer exists: %w", playlistID, err)
	}

	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		return &SkipError{VideoID: videoID, Reason: "retries exhausted", Err: err}
	}

	switch kind := services.KindOf(err); kind {
	case services.KindNotFound, services.KindDuplicate, services.KindPrecondition:
		return &SkipError{VideoID: videoID, Reason: kind.String(), Err: err}
	case services.KindQuota, services.KindAuth:
		return err
	case services.KindUnknown:
		var apiErr *services.APIError
		if errors.As(err, &apiErr) {
			return &SkipError{VideoID: videoID, Reason: "rejected", Err: err}
		}
		return err
	default:
		return &SkipError{VideoID: videoID, Reason: kind.String(), Err: err}
	}
}

// discard deletes a half-filled playlist. Failure is logged; the caller is already returning an error.
func (w *PlaylistWriter) discard(ctx context.Context, playlistID string) {
	ctx = context.WithoutCancel(ctx)
	if err := w.host.DeletePlaylist(ctx, playlistID); err != nil {
		w.logger.Error("could not delete unfinished playlist", "id", playlistID, "err", err)
		return
	}
	w.logger.Warn("deleted unfinished playlist", "id", playlistID)
}

func isTransient(err error) bool {
	return services.KindOf(err) == services.KindTransient
}
