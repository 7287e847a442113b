package tasks

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/prism/internal/progress"
	"github.com/desertthunder/prism/internal/shared"
	"github.com/desertthunder/prism/internal/source"
)

// Fetcher loads a post body. [source.Client] implements it.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// PostStatus is the outcome of one post in a playlist run.
type PostStatus string

const (
	PostCreated   PostStatus = "created"
	PostProcessed PostStatus = "already_processed"
	PostEmpty     PostStatus = "empty"
	PostPreviewed PostStatus = "dry_run"
)

// PostResult is the outcome for one post.
type PostResult struct {
	URL        string       `json:"url"`
	Title      string       `json:"title"`
	Status     PostStatus   `json:"status"`
	PlaylistID string       `json:"playlist_id,omitempty"`
	Write      *WriteResult `json:"write,omitempty"`
}

// RunResult collects every post handled by [PlaylistEngine.Run].
type RunResult struct {
	Posts     []PostResult `json:"posts"`
	Created   int          `json:"created"`
	Processed int          `json:"already_processed"`
	Empty     int          `json:"empty"`
	Previewed int          `json:"previewed"`
}

// NewRunResult tallies posts handled outside [PlaylistEngine.Run], e.g. by [PlaylistEngine.ProcessPage].
func NewRunResult(posts ...PostResult) *RunResult {
	r := &RunResult{}
	for _, p := range posts {
		r.add(p)
	}
	return r
}

func (r *RunResult) add(p PostResult) {
	r.Posts = append(r.Posts, p)
	switch p.Status {
	case PostCreated:
		r.Created++
	case PostProcessed:
		r.Processed++
	case PostEmpty:
		r.Empty++
	case PostPreviewed:
		r.Previewed++
	}
}

// PlaylistEngine turns posts into playlists, one post at a time.
//
// The progress tracker is consulted before a post is fetched and updated as soon as its playlist is complete, so an
// aborted run never repeats finished posts and never records a half-built one.
type PlaylistEngine struct {
	writer   *PlaylistWriter
	fetcher  Fetcher
	progress *progress.Tracker
	logger   *log.Logger
}

func NewPlaylistEngine(writer *PlaylistWriter, fetcher Fetcher, tracker *progress.Tracker, logger *log.Logger) *PlaylistEngine {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &PlaylistEngine{writer: writer, fetcher: fetcher, progress: tracker, logger: logger}
}

// Run processes posts in order and stops at the first fatal error.
//
// A quota error is returned wrapped so errors.Is(err, [shared.ErrQuotaExceeded]) holds; the current post is neither
// recorded nor left behind as a partial playlist. Posts finished before the error keep their progress entries.
func (e *PlaylistEngine) Run(ctx context.Context, progress chan<- ProgressUpdate, posts []source.Post) (*RunResult, error) {
	if e.fetcher == nil {
		return nil, fmt.Errorf("%w: no post fetcher configured", shared.ErrServiceUnavailable)
	}

	result := &RunResult{}
	total := len(posts)

	done := 0
	for _, p := range posts {
		if _, ok := e.progress.Lookup(p.URL); ok {
			done++
		}
	}
	sendProgress(progress, postsSummaryUpdate(done, total))
	e.logger.Info("playlist run starting", "posts", total, "processed", done, "open", total-done)

	for i, p := range posts {
		step := i + 1
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if id, ok := e.progress.Lookup(p.URL); ok {
			sendProgress(progress, alreadyProcessedUpdate(step, total, p.URL, id))
			result.add(PostResult{URL: p.URL, Title: p.Title, Status: PostProcessed, PlaylistID: id})
			continue
		}

		sendProgress(progress, fetchPostUpdate(step, total, p.URL))
		body, err := e.fetcher.Get(ctx, p.URL)
		if err != nil {
			return result, fmt.Errorf("fetch post %s: %w", p.URL, err)
		}

		post, err := e.process(ctx, progress, step, total, p.URL, body)
		result.add(post)
		if err != nil {
			return result, err
		}
	}

	return result, nil
}

// ProcessPage handles a single already-loaded page, such as a local HTML file. key identifies the page in the
// progress record.
func (e *PlaylistEngine) ProcessPage(ctx context.Context, progress chan<- ProgressUpdate, key string, body []byte) (PostResult, error) {
	if id, ok := e.progress.Lookup(key); ok {
		sendProgress(progress, alreadyProcessedUpdate(1, 1, key, id))
		return PostResult{URL: key, Status: PostProcessed, PlaylistID: id}, nil
	}
	return e.process(ctx, progress, 1, 1, key, body)
}

func (e *PlaylistEngine) process(ctx context.Context, progress chan<- ProgressUpdate, step, total int, key string, body []byte) (PostResult, error) {
	page, err := source.ParsePage(body)
	if err != nil {
		return PostResult{URL: key}, fmt.Errorf("parse post %s: %w", key, err)
	}

	post := PostResult{URL: key, Title: page.Title}
	if len(page.VideoIDs) == 0 {
		post.Status = PostEmpty
		sendFinalProgress(ctx, progress, emptyPostUpdate(step, total, page.Title))
		e.logger.Warn("no videos found", "post", key, "title", page.Title)
		return post, nil
	}

	sendProgress(progress, createPlaylistUpdate(step, total, page.Title, len(page.VideoIDs)))
	res, err := e.writer.Write(ctx, page.Title, page.VideoIDs)
	post.Write = res
	if err != nil {
		return post, fmt.Errorf("post %s: %w", key, err)
	}
	sendFinalProgress(ctx, progress, playlistDoneUpdate(step, total, res))

	if res.DryRun {
		post.Status = PostPreviewed
		return post, nil
	}

	post.Status = PostCreated
	post.PlaylistID = res.PlaylistID
	if err := e.progress.Record(key, res.PlaylistID); err != nil {
		return post, err
	}
	return post, nil
}
