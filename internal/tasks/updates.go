package tasks

import (
	"context"
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchPosts Phase = iota
	FetchPost
	CreatePlaylist
	InsertVideos
	SkipPost
	IngestVideos
	ScanPage
	SearchMentions
	UpdateGenres
	BackfillEntries
	MigrateRatings
	ExportCatalog
	CleanPlaylists
)

func (p Phase) String() string {
	switch p {
	case FetchPosts:
		return "fetch_posts"
	case FetchPost:
		return "fetch_post"
	case CreatePlaylist:
		return "create_playlist"
	case InsertVideos:
		return "insert_videos"
	case SkipPost:
		return "skip_post"
	case IngestVideos:
		return "ingest_videos"
	case ScanPage:
		return "scan_page"
	case SearchMentions:
		return "search_mentions"
	case UpdateGenres:
		return "update_genres"
	case BackfillEntries:
		return "backfill_entries"
	case MigrateRatings:
		return "migrate_ratings"
	case ExportCatalog:
		return "export_catalog"
	case CleanPlaylists:
		return "clean_playlists"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// sendFinalProgress delivers an update that closes out a step, waiting for the reader unless ctx ends first.
func sendFinalProgress(ctx context.Context, progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	case <-ctx.Done():
	}
}

func postsSummaryUpdate(done, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPosts,
		Step:    done,
		Total:   total,
		Message: fmt.Sprintf("Progress: %d/%d processed (%d open)", done, total, total-done),
	}
}

func fetchPostUpdate(step, total int, url string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPost,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Loading post: %s", step, total, url),
	}
}

func alreadyProcessedUpdate(step, total int, url, playlistID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SkipPost,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Already processed (playlist %s), skipping %s", step, total, playlistID, url),
	}
}

func emptyPostUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SkipPost,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] No videos found in %q", step, total, title),
	}
}

func createPlaylistUpdate(step, total int, title string, videos int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Creating playlist: %s (%d videos)", step, total, title, videos),
	}
}

func playlistDoneUpdate(step, total int, res *WriteResult) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] Done: %s (%d added, %d skipped)", step, total, res.URL(), len(res.Added), len(res.Skipped))
	if res.DryRun {
		msg = fmt.Sprintf("[%d/%d] [dry-run] %s → %d videos", step, total, res.Title, len(res.VideoIDs))
	}
	return ProgressUpdate{
		Phase:   InsertVideos,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    res,
	}
}

func ingestVideoUpdate(step, total int, videoID string, status IngestStatus) ProgressUpdate {
	return ProgressUpdate{
		Phase:   IngestVideos,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %s", step, total, videoID, status),
	}
}

func scanPageUpdate(url string, direct, blocks, chunks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanPage,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Scanned %s: %d direct IDs, %d text blocks in %d chunks", url, direct, blocks, chunks),
	}
}

func searchMentionUpdate(step, total int, m MentionMatch) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] %s - %s: no strong match", step, total, m.Mention.Artist, m.Mention.Track)
	if m.Accepted {
		msg = fmt.Sprintf("[%d/%d] %s - %s: %s (score %.2f)", step, total, m.Mention.Artist, m.Mention.Track, m.Best.VideoID, m.Best.Score)
	}
	return ProgressUpdate{
		Phase:   SearchMentions,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    m,
	}
}

func entryUpdate(phase Phase, step, total int, videoID, detail string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %s", step, total, videoID, detail),
	}
}
