package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/prism/internal/services"
)

// CleanResult lists the playlists [PlaylistWriter.Clean] matched, and which of them it deleted.
type CleanResult struct {
	Matched []services.Playlist `json:"matched"`
	Deleted []string            `json:"deleted,omitempty"`
	DryRun  bool                `json:"dry_run"`
}

// Clean deletes every playlist of the authenticated user whose description contains marker. An empty marker means
// [DefaultDescription]. In dry-run mode the matches are only listed.
func (w *PlaylistWriter) Clean(ctx context.Context, progress chan<- ProgressUpdate, marker string) (*CleanResult, error) {
	if marker == "" {
		marker = DefaultDescription
	}

	playlists, err := w.host.MyPlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}

	res := &CleanResult{DryRun: w.opts.DryRun}
	for _, pl := range playlists {
		if strings.Contains(pl.Description, marker) {
			res.Matched = append(res.Matched, pl)
		}
	}
	w.logger.Info("playlists matched", "marker", marker, "matched", len(res.Matched), "of", len(playlists))
	if w.opts.DryRun {
		return res, nil
	}

	for i, pl := range res.Matched {
		if err := w.limiter.Wait(ctx); err != nil {
			return res, err
		}
		if err := w.host.DeletePlaylist(ctx, pl.ID); err != nil {
			return res, fmt.Errorf("delete playlist %s: %w", pl.ID, err)
		}
		res.Deleted = append(res.Deleted, pl.ID)
		sendProgress(progress, entryUpdate(CleanPlaylists, i+1, len(res.Matched), pl.ID, pl.Title))
		w.logger.Info("playlist deleted", "id", pl.ID, "title", pl.Title)
	}
	return res, nil
}
