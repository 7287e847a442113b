package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/prism/internal/services"
	"github.com/desertthunder/prism/internal/shared"
	tu "github.com/desertthunder/prism/internal/testing"
)

// testWriterOptions disables pacing and records backoff delays instead of sleeping.
func testWriterOptions(delays *[]time.Duration) WriterOptions {
	opts := DefaultWriterOptions()
	opts.Delay = 0
	opts.Retry.MaxJitter = 0
	opts.Retry.Sleep = func(ctx context.Context, d time.Duration) error {
		if delays != nil {
			*delays = append(*delays, d)
		}
		return nil
	}
	return opts
}

func TestPlaylistWriter_Write(t *testing.T) {
	t.Run("creates playlist and inserts in order", func(t *testing.T) {
		host := tu.NewFakeHost()
		w := NewPlaylistWriter(host, testWriterOptions(nil), nil)

		res, err := w.Write(context.Background(), "Weekly picks", []string{"aaaaaaaaaaa", "bbbbbbbbbbb"})
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if res.PlaylistID != "PL1" {
			t.Errorf("PlaylistID = %q, want PL1", res.PlaylistID)
		}
		if got := host.VideoIDs("PL1"); !slices.Equal(got, []string{"aaaaaaaaaaa", "bbbbbbbbbbb"}) {
			t.Errorf("playlist items = %v", got)
		}
		if res.URL() != services.PlaylistURL("PL1") {
			t.Errorf("URL() = %q", res.URL())
		}
		pl := host.Playlists["PL1"]
		if pl.Description != DefaultDescription || pl.Privacy != DefaultPrivacy {
			t.Errorf("playlist created with description %q privacy %q", pl.Description, pl.Privacy)
		}
	})

	t.Run("dry run makes no calls", func(t *testing.T) {
		host := tu.NewFakeHost()
		opts := testWriterOptions(nil)
		opts.DryRun = true
		w := NewPlaylistWriter(host, opts, nil)

		res, err := w.Write(context.Background(), "Preview", []string{"aaaaaaaaaaa"})
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if !res.DryRun || res.PlaylistID != "" {
			t.Errorf("dry-run result = %+v", res)
		}
		if len(host.Calls) != 0 {
			t.Errorf("expected no host calls, got %v", host.Calls)
		}
	})

	t.Run("duplicate, not found and precondition are skipped without retry", func(t *testing.T) {
		host := tu.NewFakeHost()
		host.InsertErrs["dupdupdupdu"] = []error{tu.DuplicateError("playlistItems.insert")}
		host.InsertErrs["gonegonegon"] = []error{tu.NotFoundError("playlistItems.insert")}
		host.InsertErrs["precondxxxx"] = []error{tu.PreconditionError("playlistItems.insert")}
		var delays []time.Duration
		w := NewPlaylistWriter(host, testWriterOptions(&delays), nil)

		ids := []string{"dupdupdupdu", "okokokokoko", "gonegonegon", "precondxxxx"}
		res, err := w.Write(context.Background(), "Skips", ids)
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if len(res.Skipped) != 3 {
			t.Fatalf("Skipped = %v, want 3 entries", res.Skipped)
		}
		if !slices.Equal(res.Added, []string{"okokokokoko"}) {
			t.Errorf("Added = %v", res.Added)
		}
		if got := len(host.CallsWithPrefix("insert:")); got != len(ids) {
			t.Errorf("insert calls = %d, want %d", got, len(ids))
		}
		if len(delays) != 0 {
			t.Errorf("expected no backoff, got %v", delays)
		}
	})

	t.Run("transient errors are retried with growing delays then skipped", func(t *testing.T) {
		host := tu.NewFakeHost()
		for range 5 {
			host.InsertErrs["flakyflakyf"] = append(host.InsertErrs["flakyflakyf"], tu.TransientError("playlistItems.insert", http.StatusServiceUnavailable))
		}
		var delays []time.Duration
		w := NewPlaylistWriter(host, testWriterOptions(&delays), nil)

		res, err := w.Write(context.Background(), "Flaky", []string{"flakyflakyf", "steadyvideo"})
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if len(res.Skipped) != 1 || res.Skipped[0].Reason != "retries exhausted" {
			t.Errorf("Skipped = %+v", res.Skipped)
		}
		want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
		if !slices.Equal(delays, want) {
			t.Errorf("delays = %v, want %v", delays, want)
		}
		if got := len(host.CallsWithPrefix("insert:PL1:flakyflakyf")); got != 5 {
			t.Errorf("flaky insert attempts = %d, want 5", got)
		}
	})

	t.Run("transient error recovers", func(t *testing.T) {
		host := tu.NewFakeHost()
		host.InsertErrs["flakyflakyf"] = []error{tu.TransientError("playlistItems.insert", http.StatusConflict)}
		w := NewPlaylistWriter(host, testWriterOptions(nil), nil)

		res, err := w.Write(context.Background(), "Flaky", []string{"flakyflakyf"})
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if len(res.Added) != 1 || len(res.Skipped) != 0 {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("quota aborts and deletes the playlist", func(t *testing.T) {
		host := tu.NewFakeHost()
		host.InsertErrs["cccccccccc3"] = []error{tu.QuotaError("playlistItems.insert")}
		w := NewPlaylistWriter(host, testWriterOptions(nil), nil)

		res, err := w.Write(context.Background(), "Quota", []string{"aaaaaaaaaa1", "bbbbbbbbbb2", "cccccccccc3", "dddddddddd4"})
		if !errors.Is(err, shared.ErrQuotaExceeded) {
			t.Fatalf("Write() error = %v, want quota", err)
		}
		if res.PlaylistID != "" {
			t.Errorf("PlaylistID = %q, want empty after abort", res.PlaylistID)
		}
		if got := host.CallsWithPrefix("delete:"); !slices.Equal(got, []string{"delete:PL1"}) {
			t.Errorf("delete calls = %v", got)
		}
		if len(host.CallsWithPrefix("insert:PL1:dddddddddd4")) != 0 {
			t.Error("insert attempted after quota error")
		}
	})

	t.Run("missing playlist aborts instead of skipping", func(t *testing.T) {
		host := tu.NewFakeHost()
		host.InsertErrs["aaaaaaaaaa1"] = []error{tu.PlaylistNotFoundError("playlistItems.insert")}
		w := NewPlaylistWriter(host, testWriterOptions(nil), nil)

		res, err := w.Write(context.Background(), "Gone", []string{"aaaaaaaaaa1", "bbbbbbbbbb2"})
		if !errors.Is(err, shared.ErrNotFound) || !services.IsPlaylistGone(err) {
			t.Fatalf("Write() error = %v, want missing playlist", err)
		}
		if res.PlaylistID != "" || len(res.Skipped) != 0 {
			t.Errorf("result = %+v", res)
		}
		if len(host.CallsWithPrefix("insert:PL1:bbbbbbbbbb2")) != 0 {
			t.Error("insert attempted after the playlist went missing")
		}
	})

	t.Run("auth error aborts", func(t *testing.T) {
		host := tu.NewFakeHost()
		host.InsertErrs["aaaaaaaaaa1"] = []error{tu.AuthError("playlistItems.insert")}
		w := NewPlaylistWriter(host, testWriterOptions(nil), nil)

		_, err := w.Write(context.Background(), "Auth", []string{"aaaaaaaaaa1"})
		if !errors.Is(err, shared.ErrReauthRequired) {
			t.Fatalf("Write() error = %v, want reauth", err)
		}
		if len(host.CallsWithPrefix("delete:")) != 1 {
			t.Error("expected the playlist to be deleted")
		}
	})

	t.Run("create failure is returned", func(t *testing.T) {
		host := tu.NewFakeHost()
		host.CreateErrs = []error{tu.QuotaError("playlists.insert")}
		w := NewPlaylistWriter(host, testWriterOptions(nil), nil)

		_, err := w.Write(context.Background(), "Nope", []string{"aaaaaaaaaa1"})
		if !errors.Is(err, shared.ErrQuotaExceeded) {
			t.Fatalf("Write() error = %v, want quota", err)
		}
		if len(host.CallsWithPrefix("insert:")) != 0 {
			t.Error("insert attempted without a playlist")
		}
	})
}

func TestPlaylistWriter_CreatePlaylist(t *testing.T) {
	t.Run("invalid snippet retries once with shortened title", func(t *testing.T) {
		host := tu.NewFakeHost()
		host.CreateErrs = []error{tu.InvalidSnippetError("playlists.insert")}
		opts := testWriterOptions(nil)
		opts.Description = "custom"
		w := NewPlaylistWriter(host, opts, nil)

		long := strings.Repeat("é", 150)
		id, err := w.CreatePlaylist(context.Background(), long)
		if err != nil {
			t.Fatalf("CreatePlaylist() error = %v", err)
		}
		pl := host.Playlists[id]
		if n := len([]rune(pl.Title)); n > MaxTitleLength {
			t.Errorf("title has %d runes, want at most %d", n, MaxTitleLength)
		}
		if pl.Description != DefaultDescription {
			t.Errorf("description = %q, want default", pl.Description)
		}
		if got := len(host.CallsWithPrefix("create:")); got != 2 {
			t.Errorf("create calls = %d, want 2", got)
		}
	})

	t.Run("second rejection is returned", func(t *testing.T) {
		host := tu.NewFakeHost()
		host.CreateErrs = []error{tu.InvalidSnippetError("playlists.insert"), tu.InvalidSnippetError("playlists.insert")}
		w := NewPlaylistWriter(host, testWriterOptions(nil), nil)

		if _, err := w.CreatePlaylist(context.Background(), "bad"); err == nil {
			t.Fatal("expected error")
		}
		if got := len(host.CallsWithPrefix("create:")); got != 2 {
			t.Errorf("create calls = %d, want 2", got)
		}
	})
}

func TestPlaylistWriter_InsertVideo(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantSkip string
		wantErr  error
	}{
		{name: "success"},
		{name: "duplicate", err: tu.DuplicateError("insert"), wantSkip: services.KindDuplicate.String()},
		{name: "not found", err: tu.NotFoundError("insert"), wantSkip: services.KindNotFound.String()},
		{name: "unknown api error", err: &services.APIError{Op: "insert", Status: http.StatusBadRequest, Err: errors.New("odd")}, wantSkip: "rejected"},
		{name: "quota", err: tu.QuotaError("insert"), wantErr: shared.ErrQuotaExceeded},
		{name: "network", err: fmt.Errorf("dial: %w", context.DeadlineExceeded), wantErr: context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := tu.NewFakeHost()
			host.AddPlaylist(services.Playlist{ID: "PLx"})
			host.InsertErrs["vvvvvvvvvvv"] = []error{tt.err}
			w := NewPlaylistWriter(host, testWriterOptions(nil), nil)

			err := w.InsertVideo(context.Background(), "PLx", "vvvvvvvvvvv")

			var skip *SkipError
			switch {
			case tt.wantSkip != "":
				if !errors.As(err, &skip) || skip.Reason != tt.wantSkip {
					t.Errorf("InsertVideo() error = %v, want skip %q", err, tt.wantSkip)
				}
			case tt.wantErr != nil:
				if errors.As(err, &skip) || !errors.Is(err, tt.wantErr) {
					t.Errorf("InsertVideo() error = %v, want %v", err, tt.wantErr)
				}
			default:
				if err != nil {
					t.Errorf("InsertVideo() error = %v", err)
				}
			}
		})
	}
}

func TestWriterOptionsFromConfig(t *testing.T) {
	cfg := shared.DefaultConfig().Playlist
	cfg.Sleep = 0.5
	cfg.InsertRetries = 3
	cfg.RetryBase = 2
	cfg.RetryJitter = 0
	cfg.Privacy = "unlisted"

	opts := WriterOptionsFromConfig(cfg)
	if opts.Delay != 500*time.Millisecond {
		t.Errorf("Delay = %v", opts.Delay)
	}
	if opts.Retry.MaxAttempts != 3 || opts.Retry.BaseDelay != 2*time.Second || opts.Retry.MaxJitter != 0 {
		t.Errorf("Retry = %+v", opts.Retry)
	}
	if opts.Privacy != "unlisted" {
		t.Errorf("Privacy = %q", opts.Privacy)
	}
}
