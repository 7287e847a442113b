package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/prism/internal/classify"
	"github.com/desertthunder/prism/internal/formatter"
	"github.com/desertthunder/prism/internal/models"
	"github.com/desertthunder/prism/internal/services"
	"github.com/desertthunder/prism/internal/shared"
	"github.com/desertthunder/prism/internal/source"
	"github.com/desertthunder/prism/internal/tasks"
)

// userOrAdmin is --user, falling back to the configured admin.
func (r *Runner) userOrAdmin(cmd *cli.Command) string {
	if u := strings.TrimSpace(cmd.String("user")); u != "" {
		return u
	}
	return r.config.Admin.User
}

func filterFromFlags(cmd *cli.Command) models.Filter {
	return models.Filter{
		MinRatingMusic:  int(cmd.Int("min-music")),
		MinRatingVideo:  int(cmd.Int("min-video")),
		Genre:           cmd.String("genre"),
		FavoriteOnly:    cmd.Bool("favorites"),
		IncludeUnrated:  cmd.Bool("include-unrated"),
		ExcludeRejected: cmd.Bool("exclude-rejected"),
	}
}

// ingest opens the catalog and runs fn with an ingester bound to YouTube, re-authorizing once if needed.
func (r *Runner) ingest(ctx context.Context, fn func(*tasks.Ingester) error) error {
	catalog, err := r.Catalog()
	if err != nil {
		return err
	}
	return r.withHost(ctx, func(host services.VideoHost) error {
		return fn(r.ingester(host, catalog))
	})
}

func (r *Runner) printBatch(label string, b tasks.BatchResult) {
	r.writePlainHeader(label)
	r.writePlain("Added: %d  Exists: %d  Unavailable: %d  Errors: %d\n", b.Added, b.Exists, b.Unavailable, b.Errors)
	if b.Aborted {
		r.writePlain("Aborted before the batch finished.\n")
	}
}

// CatalogScrape ingests every video embedded in the archive's posts.
func (r *Runner) CatalogScrape(ctx context.Context, cmd *cli.Command) error {
	posts, err := r.listPosts(ctx, cmd, cmd.Int("limit-posts"))
	if err != nil {
		return err
	}
	opts := tasks.ScrapeOptions{
		MaxPosts: int(cmd.Int("limit-posts")),
		MaxNew:   int(cmd.Int("limit-new-entries")),
		DryRun:   cmd.Bool("dry-run"),
	}

	var result *tasks.ScrapeResult
	scrape := func(in *tasks.Ingester) error {
		progressCh, stop := r.reportProgress()
		res, err := in.Scrape(ctx, progressCh, r.Source(), posts, opts)
		stop()
		result = res
		return err
	}

	if opts.DryRun {
		catalog, cerr := r.Catalog()
		if cerr != nil {
			return cerr
		}
		err = scrape(r.ingester(nil, catalog))
	} else {
		err = r.ingest(ctx, scrape)
	}
	if result == nil {
		return err
	}

	if cmd.Bool("json") {
		if jerr := r.writeJSON(result, true); jerr != nil {
			return jerr
		}
		return err
	}

	for _, p := range result.Previews {
		r.writePlain("• %s (%d videos)\n", p.Title, len(p.VideoIDs))
		for _, id := range p.VideoIDs {
			r.writePlain("    %s\n", services.VideoURL(id))
		}
	}
	r.printBatch(fmt.Sprintf("Scraped %d posts, %d videos", result.Posts, result.Videos), result.BatchResult)
	return err
}

// CatalogScan ingests videos embedded in or mentioned by an arbitrary web page.
func (r *Runner) CatalogScan(ctx context.Context, cmd *cli.Command) error {
	pageURL := cmd.StringArg("url")
	if pageURL == "" {
		return fmt.Errorf("%w: page URL", shared.ErrMissingArgument)
	}

	opts := tasks.ScanOptionsFromConfig(r.config.Ingest)
	opts.MaxMentions = int(cmd.Int("max-mentions"))
	opts.DryRun = cmd.Bool("dry-run")
	if n := cmd.Int("max-search-results"); n > 0 {
		opts.MaxSearchResults = int(n)
	}
	if t := cmd.Float("match-threshold"); t > 0 {
		if t > 1 {
			return fmt.Errorf("%w: --match-threshold must be between 0 and 1", shared.ErrInvalidFlag)
		}
		opts.MatchThreshold = t
	}

	var result *tasks.ScanResult
	err := r.ingest(ctx, func(in *tasks.Ingester) error {
		progressCh, stop := r.reportProgress()
		res, err := in.Scan(ctx, progressCh, r.Source(), pageURL, opts)
		stop()
		result = res
		return err
	})
	if result == nil {
		return err
	}

	if cmd.Bool("json") {
		if jerr := r.writeJSON(result, true); jerr != nil {
			return jerr
		}
		return err
	}

	r.writePlainHeader(result.Title)
	r.writePlain("Embedded videos: %d  Text blocks: %d  Chunks: %d\n", len(result.DirectIDs), result.Blocks, result.Chunks)
	for _, m := range result.Mentions {
		mark := "✗"
		if m.Accepted {
			mark = "✓"
		}
		line := fmt.Sprintf("%s %s", mark, m.Query)
		switch {
		case m.Error != "":
			line += " (search failed: " + m.Error + ")"
		case m.Found:
			line += fmt.Sprintf(" → %s %q (%.2f)", m.Best.VideoID, m.Best.Title, m.Best.Score)
		}
		r.writePlain("%s\n", line)
	}
	r.writePlain("Videos found: %d\n", len(result.VideoIDs))
	if result.Batch != nil {
		r.printBatch("Ingested", *result.Batch)
	}
	return err
}

// CatalogImportPlaylist ingests the videos of an existing YouTube playlist.
func (r *Runner) CatalogImportPlaylist(ctx context.Context, cmd *cli.Command) error {
	id, ok := source.NormalizePlaylistID(cmd.StringArg("playlist"))
	if !ok {
		return fmt.Errorf("%w: %q is not a playlist ID or URL", shared.ErrInvalidInput, cmd.StringArg("playlist"))
	}

	var result tasks.BatchResult
	err := r.ingest(ctx, func(in *tasks.Ingester) error {
		progressCh, stop := r.reportProgress()
		res, err := in.ImportPlaylist(ctx, progressCh, id, int(cmd.Int("limit")))
		stop()
		result = res
		return err
	})
	r.printBatch("Imported "+id, result)
	return err
}

// CatalogImportVideos ingests the listed video IDs or URLs.
func (r *Runner) CatalogImportVideos(ctx context.Context, cmd *cli.Command) error {
	ids, invalid := source.ParseVideoList(strings.Join(cmd.Args().Slice(), " "))
	for _, token := range invalid {
		r.logger.Warn("not a video ID or URL", "input", token)
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one video ID or URL", shared.ErrMissingArgument)
	}

	var result tasks.BatchResult
	err := r.ingest(ctx, func(in *tasks.Ingester) error {
		progressCh, stop := r.reportProgress()
		res, err := in.ImportVideos(ctx, progressCh, ids)
		stop()
		result = res
		return err
	})
	r.printBatch(fmt.Sprintf("Imported %d videos", len(ids)), result)
	return err
}

// CatalogList prints the entries matching the filter flags, as the chosen user sees them.
func (r *Runner) CatalogList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}
	catalog, err := r.Catalog()
	if err != nil {
		return err
	}

	entries, user, err := catalog.List(r.userOrAdmin(cmd), filterFromFlags(cmd))
	if err != nil {
		return err
	}
	return formatter.WriteEntries(r.output, format, entries, user)
}

// CatalogExport adds the matching entries to an existing or new playlist.
func (r *Runner) CatalogExport(ctx context.Context, cmd *cli.Command) error {
	target := tasks.ExportTarget{Playlist: cmd.String("playlist"), NewTitle: cmd.String("new-playlist")}
	if target.Playlist != "" && target.NewTitle != "" {
		return fmt.Errorf("%w: --playlist and --new-playlist are mutually exclusive", shared.ErrInvalidFlag)
	}
	if target.Playlist == "" && target.NewTitle == "" {
		return fmt.Errorf("%w: --playlist or --new-playlist", shared.ErrMissingArgument)
	}

	opts, err := r.writerOptions(cmd)
	if err != nil {
		return err
	}
	catalog, err := r.Catalog()
	if err != nil {
		return err
	}
	entries, _, err := catalog.List(r.userOrAdmin(cmd), filterFromFlags(cmd))
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: no entries match the filter", shared.ErrNoVideos)
	}

	var result *tasks.ExportResult
	err = r.withHost(ctx, func(host services.VideoHost) error {
		writer := tasks.NewPlaylistWriter(host, opts, shared.WithLogger(r.logger, "component", "playlist"))
		progressCh, stop := r.reportProgress()
		res, err := writer.Export(ctx, progressCh, entries, target)
		stop()
		result = res
		return err
	})
	if result == nil {
		return err
	}

	if result.DryRun {
		r.writePlainHeader(fmt.Sprintf("Dry run: %d entries would be added", len(result.Added)))
		for _, id := range result.Added {
			r.writePlain("  %s\n", services.VideoURL(id))
		}
		return err
	}

	r.writePlainHeader("Export " + services.PlaylistURL(result.PlaylistID))
	r.writePlain("Added: %d  Already present: %d  Skipped: %d\n", len(result.Added), len(result.Present), len(result.Skipped))
	for _, s := range result.Skipped {
		r.writePlain("  - %s: %s\n", s.VideoID, s.Reason)
	}
	if result.Stopped {
		r.writePlainln("Stopped: YouTube quota exhausted. The playlist was kept; rerun with --playlist %s after the daily reset to add the rest.", result.PlaylistID)
	}
	return err
}

// CatalogRate stores a user's rating of one entry.
func (r *Runner) CatalogRate(ctx context.Context, cmd *cli.Command) error {
	videoID, ok := source.NormalizeVideoID(cmd.StringArg("video"))
	if !ok {
		return fmt.Errorf("%w: %q is not a video ID or URL", shared.ErrInvalidInput, cmd.StringArg("video"))
	}
	user := r.userOrAdmin(cmd)
	if user == "" {
		return fmt.Errorf("%w: --user or admin.user", shared.ErrMissingArgument)
	}
	catalog, err := r.Catalog()
	if err != nil {
		return err
	}

	rating, err := catalog.Rate(videoID, user, models.RatingInput{
		Music:    int(cmd.Int("music")),
		Video:    int(cmd.Int("video")),
		Favorite: cmd.Bool("favorite"),
		Rejected: cmd.Bool("rejected"),
		Genre:    cmd.String("genre"),
	})
	if err != nil {
		return err
	}
	r.writePlain("✓ Rated %s for %s: music %d/5, video %d/5", videoID, user, rating.RatingMusic, rating.RatingVideo)
	if rating.GenreOverride != "" {
		r.writePlain(", genre %s", rating.GenreOverride)
	}
	r.writePlain("\n")
	return nil
}

// CatalogStats prints catalog totals and the genre distribution.
func (r *Runner) CatalogStats(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}
	catalog, err := r.Catalog()
	if err != nil {
		return err
	}
	stats, err := catalog.Stats(r.userOrAdmin(cmd))
	if err != nil {
		return err
	}
	return formatter.WriteStats(r.output, format, stats)
}

// CatalogUpdateGenre re-classifies entries classified by a different model, asking before each change unless --yes.
func (r *Runner) CatalogUpdateGenre(ctx context.Context, cmd *cli.Command) error {
	catalog, err := r.Catalog()
	if err != nil {
		return err
	}

	opts := tasks.GenreUpdateOptions{Delay: tasks.DefaultGenreUpdateDelay}
	if !cmd.Bool("yes") {
		opts.Confirm = func(change tasks.GenreChange) (bool, error) {
			r.writePlain("\n%s  %s\n", change.Entry.VideoID, change.Entry.Title)
			r.writePlain("  %s → %s (fidelity %d)\n", change.Previous, change.Result.Genre, change.Result.Fidelity)
			if change.Result.Remarks != "" {
				r.writePlain("  %s\n", change.Result.Remarks)
			}
			if change.SameGenre() {
				return r.confirm("Genre unchanged. Store the new model anyway?")
			}
			return r.confirm("Apply?")
		}
	}

	var result *tasks.GenreUpdateResult
	err = r.withHost(ctx, func(host services.VideoHost) error {
		progressCh, stop := r.reportProgress()
		res, err := catalog.UpdateGenres(ctx, progressCh, host, r.Classifier(), opts)
		stop()
		result = res
		return err
	})
	if result != nil {
		r.writePlainHeader("Genre update")
		r.writePlain("Checked: %d  Updated: %d  Declined: %d  Unavailable: %d  Failed: %d\n",
			result.Checked, result.Updated, result.Declined, result.Unavailable, result.Failed)
	}
	return err
}

// CatalogBackfill fills missing ai_model, artist and track fields.
func (r *Runner) CatalogBackfill(ctx context.Context, cmd *cli.Command) error {
	catalog, err := r.Catalog()
	if err != nil {
		return err
	}

	classifier := r.Classifier()
	identifier, ok := classifier.(classify.TrackIdentifier)
	if !ok {
		r.logger.Warn("classifier cannot identify tracks, only the model name is filled")
	}

	progressCh, stop := r.reportProgress()
	result, err := catalog.Backfill(ctx, progressCh, identifier, classifier.Model())
	stop()
	if result != nil {
		r.writePlain("Backfilled %d of %d incomplete entries\n", result.Updated, result.Checked)
	}
	return err
}

// CatalogMigrateRatings moves legacy ratings into the admin user's slot.
func (r *Runner) CatalogMigrateRatings(ctx context.Context, cmd *cli.Command) error {
	admin := r.userOrAdmin(cmd)
	if admin == "" {
		return fmt.Errorf("%w: --user or admin.user", shared.ErrMissingArgument)
	}
	catalog, err := r.Catalog()
	if err != nil {
		return err
	}

	result, err := catalog.MigrateRatings(tasks.MigrateOptions{
		AdminID:      admin,
		AuthProvider: r.config.Admin.AuthProvider,
		RemoveLegacy: cmd.Bool("remove-legacy"),
		AddRand:      cmd.Bool("add-rand"),
		DryRun:       cmd.Bool("dry-run"),
	})
	if err != nil {
		return err
	}

	title := "Rating migration to " + result.RatingKey
	if cmd.Bool("dry-run") {
		title += " (dry run)"
	}
	r.writePlainHeader(title)
	r.writePlain("Migrated: %d  Skipped: %d  Rand filled: %d  Legacy removed: %d\n",
		result.Migrated, result.Skipped, result.RandUpdated, result.LegacyRemoved)
	return nil
}

// CatalogLoad imports a JSON dump of catalog documents.
func (r *Runner) CatalogLoad(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("file")
	if path == "" {
		return fmt.Errorf("%w: dump file", shared.ErrMissingArgument)
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s does not exist", shared.ErrInvalidInput, path)
		}
		return err
	}
	defer f.Close()

	catalog, err := r.Catalog()
	if err != nil {
		return err
	}
	result, err := catalog.Load(f)
	if err != nil {
		return err
	}
	r.writePlain("✓ Loaded %d entries (%d already present, %d invalid)\n", result.Loaded, result.Exists, result.Invalid)
	return nil
}
