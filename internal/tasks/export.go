package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/prism/internal/models"
	"github.com/desertthunder/prism/internal/shared"
	"github.com/desertthunder/prism/internal/source"
)

// ExportTarget picks the playlist [PlaylistWriter.Export] fills: an existing one by ID or URL, or a new one by title.
type ExportTarget struct {
	Playlist string
	NewTitle string
}

// ExportResult reports a catalog export. Stopped is set when the run ended early on quota exhaustion.
type ExportResult struct {
	PlaylistID string         `json:"playlist_id,omitempty"`
	Created    bool           `json:"created"`
	Added      []string       `json:"added,omitempty"`
	Present    []string       `json:"present,omitempty"`
	Skipped    []SkippedVideo `json:"skipped,omitempty"`
	Stopped    bool           `json:"stopped"`
	DryRun     bool           `json:"dry_run"`
}

// Export inserts the given entries into the target playlist, leaving out videos the playlist already holds.
//
// Unlike [PlaylistWriter.Write], an interrupted export keeps its playlist: rerunning it resumes where it stopped
// because present videos are not inserted again.
func (w *PlaylistWriter) Export(ctx context.Context, progress chan<- ProgressUpdate, entries []*models.Entry, target ExportTarget) (*ExportResult, error) {
	res := &ExportResult{DryRun: w.opts.DryRun}

	present := make(map[string]bool)
	switch {
	case target.Playlist != "":
		id, ok := source.NormalizePlaylistID(target.Playlist)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a playlist ID or URL", shared.ErrInvalidInput, target.Playlist)
		}
		items, err := w.host.PlaylistItems(ctx, id, 0)
		if err != nil {
			return nil, fmt.Errorf("list playlist %s: %w", id, err)
		}
		for _, it := range items {
			present[it.VideoID] = true
		}
		res.PlaylistID = id
	case target.NewTitle != "":
		if !w.opts.DryRun {
			id, err := w.CreatePlaylist(ctx, target.NewTitle)
			if err != nil {
				return nil, err
			}
			res.PlaylistID, res.Created = id, true
			w.logger.Info("playlist created", "id", id, "title", target.NewTitle)
		}
	default:
		return nil, fmt.Errorf("%w: playlist or new playlist title", shared.ErrMissingArgument)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.VideoID)
	}
	ids = dedupe(ids)

	for i, videoID := range ids {
		if present[videoID] {
			res.Present = append(res.Present, videoID)
			continue
		}
		if w.opts.DryRun {
			res.Added = append(res.Added, videoID)
			continue
		}

		err := w.InsertVideo(ctx, res.PlaylistID, videoID)
		var skip *SkipError
		switch {
		case err == nil:
			res.Added = append(res.Added, videoID)
			sendProgress(progress, entryUpdate(ExportCatalog, i+1, len(ids), videoID, "added"))
		case errors.As(err, &skip):
			res.Skipped = append(res.Skipped, SkippedVideo{VideoID: videoID, Reason: skip.Reason})
			sendProgress(progress, entryUpdate(ExportCatalog, i+1, len(ids), videoID, "skipped: "+skip.Reason))
			w.logger.Warn("video skipped", "video", videoID, "reason", skip.Reason, "err", skip.Err)
		case errors.Is(err, shared.ErrQuotaExceeded):
			res.Stopped = true
			w.logger.Warn("quota exhausted, export stopped", "added", len(res.Added), "remaining", len(ids)-i)
			return res, err
		default:
			return res, fmt.Errorf("insert %s into %s: %w", videoID, res.PlaylistID, err)
		}
	}

	w.logger.Info("export finished", "playlist", res.PlaylistID, "added", len(res.Added), "present", len(res.Present), "skipped", len(res.Skipped))
	return res, nil
}
