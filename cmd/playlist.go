package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/prism/internal/progress"
	"github.com/desertthunder/prism/internal/services"
	"github.com/desertthunder/prism/internal/shared"
	"github.com/desertthunder/prism/internal/source"
	"github.com/desertthunder/prism/internal/tasks"
)

// writerOptions overlays --privacy, --sleep and --dry-run on the [playlist] config section.
func (r *Runner) writerOptions(cmd *cli.Command) (tasks.WriterOptions, error) {
	opts := tasks.WriterOptionsFromConfig(r.config.Playlist)
	if privacy := cmd.String("privacy"); privacy != "" {
		if !slices.Contains(shared.PrivacyLevels, privacy) {
			return opts, fmt.Errorf("%w: --privacy must be one of %v", shared.ErrInvalidFlag, shared.PrivacyLevels)
		}
		opts.Privacy = privacy
	}
	if cmd.IsSet("sleep") && cmd.Float("sleep") >= 0 {
		opts.Delay = shared.Seconds(cmd.Float("sleep"))
	}
	opts.DryRun = cmd.Bool("dry-run")
	return opts, nil
}

// openProgress opens the progress file named by --progress or the config. Dry runs never lock or write it.
func (r *Runner) openProgress(cmd *cli.Command, dryRun bool) (*progress.Tracker, error) {
	path := cmd.String("progress")
	if path == "" {
		path = r.config.Playlist.ProgressFile
	}
	if dryRun {
		return progress.OpenReadOnly(path)
	}
	return progress.Open(path)
}

// runPlaylists builds the writer and engine for one playlist command and hands them to fn. Dry runs never touch
// YouTube, so no credentials are needed for them.
func (r *Runner) runPlaylists(ctx context.Context, cmd *cli.Command, fn func(*tasks.PlaylistEngine) error) error {
	opts, err := r.writerOptions(cmd)
	if err != nil {
		return err
	}

	tracker, err := r.openProgress(cmd, opts.DryRun)
	if err != nil {
		return err
	}
	defer tracker.Close()

	logger := shared.WithLogger(r.logger, "component", "playlist")
	run := func(host services.VideoHost) error {
		writer := tasks.NewPlaylistWriter(host, opts, logger)
		return fn(tasks.NewPlaylistEngine(writer, r.Source(), tracker, logger))
	}
	if opts.DryRun {
		return run(nil)
	}
	return r.withHost(ctx, run)
}

// PlaylistHTML creates a playlist from a saved post page.
func (r *Runner) PlaylistHTML(ctx context.Context, cmd *cli.Command) error {
	file := cmd.StringArg("file")
	if file == "" {
		return fmt.Errorf("%w: HTML file", shared.ErrMissingArgument)
	}
	body, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	key := file
	if abs, err := filepath.Abs(file); err == nil {
		key = "file://" + abs
	}

	var result *tasks.RunResult
	err = r.runPlaylists(ctx, cmd, func(engine *tasks.PlaylistEngine) error {
		progressCh, stop := r.reportProgress()
		post, err := engine.ProcessPage(ctx, progressCh, key, body)
		stop()
		result = tasks.NewRunResult(post)
		return err
	})
	return r.finishPlaylistRun(cmd, result, err)
}

// PlaylistSubstack creates one playlist per archive post, skipping posts recorded in the progress file.
func (r *Runner) PlaylistSubstack(ctx context.Context, cmd *cli.Command) error {
	posts, err := r.listPosts(ctx, cmd, cmd.Int("limit"))
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		return fmt.Errorf("%w: the archive listed no posts", shared.ErrNoVideos)
	}

	var result *tasks.RunResult
	err = r.runPlaylists(ctx, cmd, func(engine *tasks.PlaylistEngine) error {
		progressCh, stop := r.reportProgress()
		res, err := engine.Run(ctx, progressCh, posts)
		stop()
		result = res
		return err
	})
	return r.finishPlaylistRun(cmd, result, err)
}

// listPosts reads the archive named by --archive (or the config), through the RSS feed when --feed is set.
func (r *Runner) listPosts(ctx context.Context, cmd *cli.Command, limit int) ([]source.Post, error) {
	archive := cmd.String("archive")
	if archive == "" {
		archive = r.config.Source.ArchiveURL
	}
	if archive == "" {
		return nil, fmt.Errorf("%w: --archive or source.archive_url", shared.ErrMissingArgument)
	}

	if cmd.Bool("feed") {
		r.logger.Info("reading feed", "url", source.FeedURL(archive))
		return r.Source().ListFeed(ctx, source.FeedURL(archive), limit)
	}
	r.logger.Info("reading archive", "url", archive)
	return r.Source().ListArchive(ctx, archive, limit)
}

// finishPlaylistRun prints what a run did, including a partial run that stopped with runErr.
func (r *Runner) finishPlaylistRun(cmd *cli.Command, result *tasks.RunResult, runErr error) error {
	if result == nil {
		return runErr
	}
	if cmd.Bool("json") {
		if err := r.writeJSON(result, true); err != nil {
			return err
		}
		return runErr
	}

	r.writePlain("\n")
	for _, post := range result.Posts {
		label := post.Title
		if label == "" {
			label = post.URL
		}
		switch post.Status {
		case tasks.PostCreated:
			r.writePlain("✓ %s\n  %s (%d added, %d skipped)\n", label, services.PlaylistURL(post.PlaylistID), len(post.Write.Added), len(post.Write.Skipped))
			for _, s := range post.Write.Skipped {
				r.writePlain("    - %s: %s\n", s.VideoID, s.Reason)
			}
		case tasks.PostPreviewed:
			r.writePlain("• %s (dry run, %d videos)\n", label, len(post.Write.VideoIDs))
			for _, id := range post.Write.VideoIDs {
				r.writePlain("    %s\n", services.VideoURL(id))
			}
		case tasks.PostProcessed:
			r.writePlain("= %s (already processed: %s)\n", label, post.PlaylistID)
		case tasks.PostEmpty:
			r.writePlain("∅ %s (no videos)\n", label)
		default:
			r.writePlain("✗ %s\n", label)
		}
	}

	r.writePlainHeader("Playlist run")
	r.writePlain("Created: %d  Already processed: %d  Empty: %d  Previewed: %d\n",
		result.Created, result.Processed, result.Empty, result.Previewed)

	if errors.Is(runErr, shared.ErrQuotaExceeded) {
		r.writePlainln("Stopped: YouTube quota exhausted. The unfinished playlist was removed; rerun after the daily reset to continue.")
	}
	return runErr
}

// PlaylistClean deletes (or with --dry-run lists) playlists carrying the generated-playlist marker.
func (r *Runner) PlaylistClean(ctx context.Context, cmd *cli.Command) error {
	opts, err := r.writerOptions(cmd)
	if err != nil {
		return err
	}
	marker := cmd.String("marker")
	if marker == "" {
		marker = r.config.Playlist.CleanupMarker
	}

	var result *tasks.CleanResult
	err = r.withHost(ctx, func(host services.VideoHost) error {
		writer := tasks.NewPlaylistWriter(host, opts, shared.WithLogger(r.logger, "component", "playlist"))
		progressCh, stop := r.reportProgress()
		res, err := writer.Clean(ctx, progressCh, marker)
		stop()
		result = res
		return err
	})
	if result == nil {
		return err
	}

	verb := "Deleted"
	if result.DryRun {
		verb = "Would delete"
	}
	for _, pl := range result.Matched {
		r.writePlain("  %s  %s\n", pl.ID, pl.Title)
	}
	count := len(result.Deleted)
	if result.DryRun {
		count = len(result.Matched)
	}
	r.writePlain("%s %d of %d matching playlists\n", verb, count, len(result.Matched))
	return err
}
