package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/prism/internal/classify"
	"github.com/desertthunder/prism/internal/models"
	"github.com/desertthunder/prism/internal/retry"
	"github.com/desertthunder/prism/internal/services"
	"github.com/desertthunder/prism/internal/shared"
	"github.com/desertthunder/prism/internal/source"
)

// ErrTooManyErrors aborts a batch after a run of consecutive failures.
var ErrTooManyErrors = errors.New("too many consecutive ingestion errors")

const (
	DefaultIngestDelay          = 500 * time.Millisecond
	DefaultMaxConsecutiveErrors = 3
)

// IngestStatus is the outcome of ingesting one video.
type IngestStatus string

const (
	StatusAdded       IngestStatus = "added"
	StatusExists      IngestStatus = "exists"
	StatusUnavailable IngestStatus = "unavailable"
	StatusError       IngestStatus = "error"
)

// Extras are fields copied onto new entries in addition to what the video host reports.
type Extras struct {
	DateSubstack *time.Time
}

// IngestOptions configures an [Ingester].
type IngestOptions struct {
	Delay                time.Duration // pause after every video of a batch
	MaxConsecutiveErrors int
}

// IngestOptionsFromConfig overlays the [ingest] config section on the defaults.
func IngestOptionsFromConfig(cfg shared.IngestConfig) IngestOptions {
	opts := IngestOptions{Delay: DefaultIngestDelay, MaxConsecutiveErrors: DefaultMaxConsecutiveErrors}
	if cfg.Sleep >= 0 {
		opts.Delay = shared.Seconds(cfg.Sleep)
	}
	if cfg.MaxConsecutiveErrors > 0 {
		opts.MaxConsecutiveErrors = cfg.MaxConsecutiveErrors
	}
	return opts
}

// Ingester adds videos to the catalog: metadata from the video host, genre from the classifier.
type Ingester struct {
	entries    models.EntryStore
	host       services.VideoHost
	classifier classify.Classifier
	opts       IngestOptions
	logger     *log.Logger

	now   func() time.Time
	rand  func() float64
	sleep func(context.Context, time.Duration) error
}

func NewIngester(entries models.EntryStore, host services.VideoHost, classifier classify.Classifier, opts IngestOptions, logger *log.Logger) *Ingester {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	if classifier == nil {
		classifier = classify.Unknown{}
	}
	if opts.MaxConsecutiveErrors <= 0 {
		opts.MaxConsecutiveErrors = DefaultMaxConsecutiveErrors
	}
	return &Ingester{
		entries:    entries,
		host:       host,
		classifier: classifier,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
		rand:       rand.Float64,
		sleep:      retry.Sleep,
	}
}

// SetSleep replaces the pause between batch items; tests use it to avoid waiting.
func (in *Ingester) SetSleep(sleep func(context.Context, time.Duration) error) { in.sleep = sleep }

// Host returns the video host the ingester reads metadata from.
func (in *Ingester) Host() services.VideoHost { return in.host }

// Classifier returns the configured classifier.
func (in *Ingester) Classifier() classify.Classifier { return in.classifier }

// IngestVideo stores videoID unless it is already catalogued or unavailable.
//
// The returned error is non-nil only for [StatusError]. Classification never fails ingestion; a failed classifier call
// is stored as genre "Unknown".
func (in *Ingester) IngestVideo(ctx context.Context, videoID, src string, extras Extras) (IngestStatus, error) {
	exists, err := in.entries.Exists(videoID)
	if err != nil {
		return StatusError, fmt.Errorf("catalog lookup %s: %w", videoID, err)
	}
	if exists {
		return StatusExists, nil
	}

	meta, err := in.host.VideoMetadata(ctx, videoID)
	if errors.Is(err, shared.ErrVideoUnavailable) {
		return StatusUnavailable, nil
	}
	if err != nil {
		return StatusError, fmt.Errorf("metadata %s: %w", videoID, err)
	}

	res := classify.ClassifyOrUnknown(ctx, in.classifier, *meta)
	r := in.rand()
	entry := &models.Entry{
		VideoID:         videoID,
		Title:           meta.Title,
		Source:          src,
		Genre:           res.Genre,
		GenreAIFidelity: res.Fidelity,
		GenreAIRemarks:  res.Remarks,
		AIModel:         res.Model,
		Artist:          res.Artist,
		Track:           res.Track,
		Rand:            &r,
		DateYouTube:     meta.PublishedAt,
		DateSubstack:    extras.DateSubstack,
		DatePrism:       in.now().UTC(),
	}
	if err := in.entries.Create(entry); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return StatusExists, nil
		}
		return StatusError, fmt.Errorf("write %s: %w", videoID, err)
	}
	return StatusAdded, nil
}

// BatchResult counts the outcomes of [Ingester.IngestBatch].
type BatchResult struct {
	Added       int      `json:"added"`
	Exists      int      `json:"exists"`
	Unavailable int      `json:"unavailable"`
	Errors      int      `json:"errors"`
	Aborted     bool     `json:"aborted"`
	AddedIDs    []string `json:"added_ids,omitempty"`
}

func (b *BatchResult) merge(o BatchResult) {
	b.Added += o.Added
	b.Exists += o.Exists
	b.Unavailable += o.Unavailable
	b.Errors += o.Errors
	b.Aborted = b.Aborted || o.Aborted
	b.AddedIDs = append(b.AddedIDs, o.AddedIDs...)
}

// IngestBatch ingests videoIDs sequentially, pausing between videos.
//
// maxNew stops the batch once that many entries were added (0 means no limit). The batch aborts on quota exhaustion,
// on revoked credentials, or after MaxConsecutiveErrors errors in a row; the abort cause is returned alongside the
// counts so far.
func (in *Ingester) IngestBatch(ctx context.Context, progress chan<- ProgressUpdate, videoIDs []string, src string, extras Extras, maxNew int) (BatchResult, error) {
	return in.ingestBatch(ctx, progress, videoIDs, func(string) string { return src }, extras, maxNew)
}

func (in *Ingester) ingestBatch(ctx context.Context, progress chan<- ProgressUpdate, videoIDs []string, sourceOf func(string) string, extras Extras, maxNew int) (BatchResult, error) {
	var res BatchResult
	consecutive := 0
	total := len(videoIDs)

	for i, videoID := range videoIDs {
		if maxNew > 0 && res.Added >= maxNew {
			in.logger.Info("new entry limit reached", "limit", maxNew)
			break
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		status, err := in.IngestVideo(ctx, videoID, sourceOf(videoID), extras)
		sendProgress(progress, ingestVideoUpdate(i+1, total, videoID, status))

		switch status {
		case StatusAdded:
			res.Added++
			res.AddedIDs = append(res.AddedIDs, videoID)
			consecutive = 0
			in.logger.Info("entry added", "video", videoID, "n", i+1, "of", total)
		case StatusExists:
			res.Exists++
			consecutive = 0
			in.logger.Debug("entry exists", "video", videoID)
		case StatusUnavailable:
			res.Unavailable++
			consecutive = 0
			in.logger.Warn("video unavailable", "video", videoID)
		default:
			res.Errors++
			consecutive++
			in.logger.Error("ingestion failed", "video", videoID, "err", err)

			if errors.Is(err, shared.ErrQuotaExceeded) || errors.Is(err, shared.ErrReauthRequired) {
				res.Aborted = true
				return res, err
			}
			if errors.Is(err, context.Canceled) {
				return res, err
			}
			if consecutive >= in.opts.MaxConsecutiveErrors {
				res.Aborted = true
				return res, fmt.Errorf("%w: %d in a row, last: %v", ErrTooManyErrors, consecutive, err)
			}
		}

		if i < total-1 {
			if err := in.sleep(ctx, in.opts.Delay); err != nil {
				return res, err
			}
		}
	}

	return res, nil
}

// ScrapeOptions configures [Ingester.Scrape].
type ScrapeOptions struct {
	MaxPosts int // 0 means every listed post
	MaxNew   int // global cap on new entries, 0 means no cap
	DryRun   bool
}

// ScrapeResult aggregates a scrape across posts.
type ScrapeResult struct {
	BatchResult
	Posts    int           `json:"posts"`
	Videos   int           `json:"videos"`
	Previews []PostPreview `json:"previews,omitempty"`
}

// PostPreview lists the videos a dry-run scrape found in one post.
type PostPreview struct {
	URL      string   `json:"url"`
	Title    string   `json:"title"`
	VideoIDs []string `json:"video_ids"`
}

// Scrape ingests the videos of every post, in listing order.
//
// A post's publish date comes from the listing, falling back to the date in its HTML. Scraping stops when the global
// new-entry cap is reached or a batch aborts.
func (in *Ingester) Scrape(ctx context.Context, progress chan<- ProgressUpdate, fetcher Fetcher, posts []source.Post, opts ScrapeOptions) (*ScrapeResult, error) {
	if opts.MaxPosts > 0 && len(posts) > opts.MaxPosts {
		posts = posts[:opts.MaxPosts]
	}

	res := &ScrapeResult{}
	for i, p := range posts {
		if opts.MaxNew > 0 && res.Added >= opts.MaxNew {
			in.logger.Info("new entry limit reached", "limit", opts.MaxNew)
			break
		}

		sendProgress(progress, fetchPostUpdate(i+1, len(posts), p.URL))
		body, err := fetcher.Get(ctx, p.URL)
		if err != nil {
			return res, fmt.Errorf("fetch post %s: %w", p.URL, err)
		}
		res.Posts++

		page, err := source.ParsePage(body)
		if err != nil {
			return res, fmt.Errorf("parse post %s: %w", p.URL, err)
		}
		if len(page.VideoIDs) == 0 {
			continue
		}
		res.Videos += len(page.VideoIDs)
		in.logger.Info("post loaded", "post", p.URL, "videos", len(page.VideoIDs))

		if opts.DryRun {
			res.Previews = append(res.Previews, PostPreview{URL: p.URL, Title: page.Title, VideoIDs: page.VideoIDs})
			continue
		}

		extras := Extras{DateSubstack: p.PublishedAt}
		if extras.DateSubstack == nil {
			extras.DateSubstack = page.PublishedAt
		}

		remaining := 0
		if opts.MaxNew > 0 {
			remaining = opts.MaxNew - res.Added
		}

		batch, err := in.IngestBatch(ctx, progress, page.VideoIDs, p.URL, extras, remaining)
		res.merge(batch)
		if err != nil {
			return res, err
		}
	}

	return res, nil
}

// ImportPlaylist ingests every public video of a playlist, using the playlist URL as the entries' source.
func (in *Ingester) ImportPlaylist(ctx context.Context, progress chan<- ProgressUpdate, playlistID string, limit int) (BatchResult, error) {
	items, err := in.host.PlaylistItems(ctx, playlistID, limit)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list playlist %s: %w", playlistID, err)
	}

	var ids []string
	seen := make(map[string]bool)
	for _, it := range items {
		if it.Private || it.VideoID == "" || seen[it.VideoID] {
			continue
		}
		seen[it.VideoID] = true
		ids = append(ids, it.VideoID)
	}
	in.logger.Info("playlist loaded", "playlist", playlistID, "videos", len(ids), "private", len(items)-len(ids))

	return in.IngestBatch(ctx, progress, ids, services.PlaylistURL(playlistID), Extras{}, 0)
}

// ImportVideos ingests explicitly listed video IDs. Each entry's source is its own watch URL.
func (in *Ingester) ImportVideos(ctx context.Context, progress chan<- ProgressUpdate, videoIDs []string) (BatchResult, error) {
	return in.ingestBatch(ctx, progress, videoIDs, services.VideoURL, Extras{}, 0)
}
