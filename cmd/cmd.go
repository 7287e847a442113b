// submodule cmd contains command definitions
package main

import (
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/prism/internal/models"
)

func dryRunFlag(usage string) cli.Flag {
	return &cli.BoolFlag{Name: "dry-run", Usage: usage}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: table, json, csv or markdown",
		Value:   "table",
	}
}

func userFlag(usage string) cli.Flag {
	return &cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: usage}
}

// filterFlags select entries by the --user's ratings.
func filterFlags() []cli.Flag {
	return []cli.Flag{
		userFlag("User whose ratings apply (defaults to admin.user)"),
		&cli.StringFlag{Name: "genre", Usage: "Only this genre, or All", Value: models.GenreAll},
		&cli.IntFlag{Name: "min-music", Usage: "Minimum music rating", Value: models.DefaultScore},
		&cli.IntFlag{Name: "min-video", Usage: "Minimum video rating", Value: models.DefaultScore},
		&cli.BoolFlag{Name: "favorites", Usage: "Only favorites"},
		&cli.BoolFlag{Name: "include-unrated", Usage: "Include entries the user has not rated"},
		&cli.BoolFlag{Name: "exclude-rejected", Usage: "Hide rejected entries", Value: true},
	}
}

// setupCommand handles setup operations for the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the config file if missing and run database migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write the default config file, or print the effective configuration",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "show", Usage: "Print the effective configuration instead of writing it"},
				},
				Action: r.SetupConfig,
			},
			{
				Name:   "migrations",
				Usage:  "List database migrations and whether they are applied",
				Action: r.SetupMigrations,
			},
		},
	}
}

// authCommand handles YouTube authorization.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage YouTube authorization",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authorize prism in the browser and cache the token",
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the state of the cached token",
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Delete the cached token",
				Action: r.AuthLogout,
			},
		},
	}
}

// playlistCommand builds playlists from posts.
func playlistCommand(r *Runner) *cli.Command {
	writeFlags := []cli.Flag{
		&cli.StringFlag{Name: "privacy", Usage: "Playlist privacy: public, unlisted or private"},
		&cli.FloatFlag{Name: "sleep", Usage: "Seconds between YouTube calls", Value: -1},
		&cli.StringFlag{Name: "progress", Usage: "Progress file (defaults to playlist.progress_file)"},
		dryRunFlag("Print the playlists that would be created without calling YouTube"),
		&cli.BoolFlag{Name: "json", Usage: "Output the run result as JSON"},
	}

	return &cli.Command{
		Name:    "playlist",
		Aliases: []string{"pl"},
		Usage:   "Create YouTube playlists from posts",
		Commands: []*cli.Command{
			{
				Name:      "html",
				Usage:     "Create a playlist from a saved HTML page",
				Arguments: []cli.Argument{&cli.StringArg{Name: "file"}},
				Flags:     writeFlags,
				Action:    r.PlaylistHTML,
			},
			{
				Name:  "substack",
				Usage: "Create one playlist per post of a Substack archive",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "archive", Usage: "Archive URL (defaults to source.archive_url)"},
					&cli.BoolFlag{Name: "feed", Usage: "List posts from the RSS feed instead of the archive API"},
					&cli.IntFlag{Name: "limit", Usage: "Only the newest N posts (0 for all)"},
				}, writeFlags...),
				Action: r.PlaylistSubstack,
			},
			{
				Name:  "clean",
				Usage: "Delete playlists prism created",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "marker", Usage: "Description text identifying generated playlists"},
					dryRunFlag("List matching playlists without deleting them"),
				},
				Action: r.PlaylistClean,
			},
		},
	}
}

// catalogCommand manages catalog entries and ratings.
func catalogCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "catalog",
		Aliases: []string{"cat"},
		Usage:   "Build, rate and export the video catalog",
		Commands: []*cli.Command{
			{
				Name:  "scrape",
				Usage: "Add the videos of every archive post to the catalog",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "archive", Usage: "Archive URL (defaults to source.archive_url)"},
					&cli.BoolFlag{Name: "feed", Usage: "List posts from the RSS feed instead of the archive API"},
					&cli.IntFlag{Name: "limit-posts", Usage: "Only the newest N posts (0 for all)"},
					&cli.IntFlag{Name: "limit-new-entries", Usage: "Stop after adding N entries (0 for no limit)"},
					dryRunFlag("List the videos of each post without adding them"),
					&cli.BoolFlag{Name: "json", Usage: "Output the result as JSON"},
				},
				Action: r.CatalogScrape,
			},
			{
				Name:      "scan",
				Usage:     "Add embedded and mentioned songs of any web page",
				Arguments: []cli.Argument{&cli.StringArg{Name: "url"}},
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "max-mentions", Usage: "Resolve at most N mentions (0 for all)"},
					&cli.IntFlag{Name: "max-search-results", Usage: "Search results considered per mention"},
					&cli.FloatFlag{Name: "match-threshold", Usage: "Minimum match score between 0 and 1"},
					dryRunFlag("Show matches without adding them"),
					&cli.BoolFlag{Name: "json", Usage: "Output the result as JSON"},
				},
				Action: r.CatalogScan,
			},
			{
				Name:      "import-playlist",
				Usage:     "Add the videos of a YouTube playlist",
				Arguments: []cli.Argument{&cli.StringArg{Name: "playlist"}},
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Only the first N items (0 for all)"},
				},
				Action: r.CatalogImportPlaylist,
			},
			{
				Name:      "import-videos",
				Usage:     "Add videos by ID or URL, separated by commas or whitespace",
				ArgsUsage: "<video>...",
				Action:    r.CatalogImportVideos,
			},
			{
				Name:   "list",
				Usage:  "List entries matching the filters",
				Flags:  append(filterFlags(), formatFlag()),
				Action: r.CatalogList,
			},
			{
				Name:  "export",
				Usage: "Add entries matching the filters to a YouTube playlist",
				Flags: append(filterFlags(),
					&cli.StringFlag{Name: "playlist", Usage: "Existing playlist ID or URL"},
					&cli.StringFlag{Name: "new-playlist", Usage: "Title of a playlist to create"},
					&cli.StringFlag{Name: "privacy", Usage: "Privacy of a created playlist"},
					dryRunFlag("Show what would be added"),
				),
				Action: r.CatalogExport,
			},
			{
				Name:      "rate",
				Usage:     "Rate an entry",
				Arguments: []cli.Argument{&cli.StringArg{Name: "video"}},
				Flags: []cli.Flag{
					userFlag("Rating user (defaults to admin.user)"),
					&cli.IntFlag{Name: "music", Usage: "Music score 1-5", Value: models.DefaultScore},
					&cli.IntFlag{Name: "video", Usage: "Video score 1-5", Value: models.DefaultScore},
					&cli.BoolFlag{Name: "favorite", Usage: "Mark as favorite"},
					&cli.BoolFlag{Name: "rejected", Usage: "Mark as rejected"},
					&cli.StringFlag{Name: "genre", Usage: "Genre you believe applies"},
				},
				Action: r.CatalogRate,
			},
			{
				Name:  "stats",
				Usage: "Summarize ratings and genres",
				Flags: []cli.Flag{
					userFlag("User whose ratings apply (defaults to admin.user)"),
					formatFlag(),
				},
				Action: r.CatalogStats,
			},
			{
				Name:  "update-genre",
				Usage: "Re-classify entries classified by another model",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Apply every change without asking"},
				},
				Action: r.CatalogUpdateGenre,
			},
			{
				Name:   "backfill",
				Usage:  "Fill missing artist, track and model fields",
				Action: r.CatalogBackfill,
			},
			{
				Name:  "migrate-ratings",
				Usage: "Move legacy ratings to the admin user",
				Flags: []cli.Flag{
					userFlag("Admin user (defaults to admin.user)"),
					&cli.BoolFlag{Name: "remove-legacy", Usage: "Clear the legacy rating fields"},
					&cli.BoolFlag{Name: "add-rand", Usage: "Fill missing rand values"},
					dryRunFlag("Count changes without writing them"),
				},
				Action: r.CatalogMigrateRatings,
			},
			{
				Name:      "load",
				Usage:     "Import a JSON dump of an older catalog",
				Arguments: []cli.Argument{&cli.StringArg{Name: "file"}},
				Action:    r.CatalogLoad,
			},
		},
	}
}

// usersCommand manages the users who rate entries.
func usersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Manage rating users",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List users",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "role", Usage: "Only this role"},
					&cli.StringFlag{Name: "status", Usage: "Only this status"},
					formatFlag(),
				},
				Action: r.UsersList,
			},
			{
				Name:      "add",
				Usage:     "Create a user or update an existing one",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "role", Usage: "user or admin"},
					&cli.StringFlag{Name: "provider", Usage: "Auth provider: basic or google", Value: models.ProviderBasic},
				},
				Action: r.UsersAdd,
			},
			{
				Name:      "disable",
				Usage:     "Disable a user, keeping their ratings",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.UsersDisable,
			},
			{
				Name:      "delete",
				Usage:     "Delete a user and all of their ratings",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "as", Usage: "The user running the command, who cannot delete themselves"},
				},
				Action: r.UsersDelete,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive rating.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Rate catalog entries interactively",
		Flags:   append(filterFlags(), &cli.StringFlag{Name: "log-file", Usage: "Where logs go while the TUI runs"}),
		Action:  r.TUI,
	}
}
