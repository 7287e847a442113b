package tasks

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/desertthunder/prism/internal/models"
	"github.com/desertthunder/prism/internal/services"
	"github.com/desertthunder/prism/internal/shared"
	tu "github.com/desertthunder/prism/internal/testing"
)

func entriesFor(ids ...string) []*models.Entry {
	out := make([]*models.Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, &models.Entry{VideoID: id})
	}
	return out
}

func TestPlaylistWriter_Export(t *testing.T) {
	t.Run("existing playlist skips present videos", func(t *testing.T) {
		host := tu.NewFakeHost()
		host.AddPlaylist(services.Playlist{ID: "PLexisting"}, "aaaaaaaaaa1")
		w := NewPlaylistWriter(host, testWriterOptions(nil), nil)

		target := ExportTarget{Playlist: services.PlaylistURL("PLexisting")}
		res, err := w.Export(context.Background(), nil, entriesFor("aaaaaaaaaa1", "aaaaaaaaaa2", "aaaaaaaaaa2"), target)
		if err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		if res.PlaylistID != "PLexisting" || res.Created {
			t.Errorf("result = %+v", res)
		}
		if !slices.Equal(res.Added, []string{"aaaaaaaaaa2"}) || !slices.Equal(res.Present, []string{"aaaaaaaaaa1"}) {
			t.Errorf("Added = %v, Present = %v", res.Added, res.Present)
		}
		if got := host.VideoIDs("PLexisting"); !slices.Equal(got, []string{"aaaaaaaaaa1", "aaaaaaaaaa2"}) {
			t.Errorf("playlist = %v", got)
		}
	})

	t.Run("new playlist", func(t *testing.T) {
		host := tu.NewFakeHost()
		host.InsertErrs["gonegonegon"] = []error{tu.NotFoundError("playlistItems.insert")}
		w := NewPlaylistWriter(host, testWriterOptions(nil), nil)

		res, err := w.Export(context.Background(), nil, entriesFor("aaaaaaaaaa1", "gonegonegon"), ExportTarget{NewTitle: "Favourites"})
		if err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		if !res.Created || res.PlaylistID != "PL1" {
			t.Errorf("result = %+v", res)
		}
		if len(res.Added) != 1 || len(res.Skipped) != 1 {
			t.Errorf("Added = %v, Skipped = %v", res.Added, res.Skipped)
		}
	})

	t.Run("quota stops and keeps the playlist", func(t *testing.T) {
		host := tu.NewFakeHost()
		host.AddPlaylist(services.Playlist{ID: "PLexisting"})
		host.InsertErrs["aaaaaaaaaa2"] = []error{tu.QuotaError("playlistItems.insert")}
		w := NewPlaylistWriter(host, testWriterOptions(nil), nil)

		res, err := w.Export(context.Background(), nil, entriesFor("aaaaaaaaaa1", "aaaaaaaaaa2", "aaaaaaaaaa3"), ExportTarget{Playlist: "PLexisting"})
		if !errors.Is(err, shared.ErrQuotaExceeded) || !res.Stopped {
			t.Fatalf("Export() = %+v, %v", res, err)
		}
		if len(host.CallsWithPrefix("delete:")) != 0 {
			t.Error("export deleted its playlist")
		}
		if !slices.Equal(res.Added, []string{"aaaaaaaaaa1"}) {
			t.Errorf("Added = %v", res.Added)
		}
	})

	t.Run("dry run", func(t *testing.T) {
		host := tu.NewFakeHost()
		opts := testWriterOptions(nil)
		opts.DryRun = true
		w := NewPlaylistWriter(host, opts, nil)

		res, err := w.Export(context.Background(), nil, entriesFor("aaaaaaaaaa1"), ExportTarget{NewTitle: "Preview"})
		if err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		if host.WriteCalls() != 0 || len(res.Added) != 1 {
			t.Errorf("write calls = %d, result = %+v", host.WriteCalls(), res)
		}
	})

	t.Run("needs a target", func(t *testing.T) {
		w := NewPlaylistWriter(tu.NewFakeHost(), testWriterOptions(nil), nil)
		if _, err := w.Export(context.Background(), nil, nil, ExportTarget{}); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("Export() error = %v", err)
		}
		if _, err := w.Export(context.Background(), nil, nil, ExportTarget{Playlist: "https://example.com/nope"}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("Export() error = %v", err)
		}
	})
}

func TestPlaylistWriter_Clean(t *testing.T) {
	setup := func() *tu.FakeHost {
		host := tu.NewFakeHost()
		host.AddPlaylist(services.Playlist{ID: "PLauto1", Title: "Post one", Description: DefaultDescription})
		host.AddPlaylist(services.Playlist{ID: "PLauto2", Title: "Post two", Description: "Intro. " + DefaultDescription})
		host.AddPlaylist(services.Playlist{ID: "PLmine", Title: "Handmade", Description: "my own"})
		return host
	}

	t.Run("deletes matching playlists", func(t *testing.T) {
		host := setup()
		w := NewPlaylistWriter(host, testWriterOptions(nil), nil)

		res, err := w.Clean(context.Background(), nil, "")
		if err != nil {
			t.Fatalf("Clean() error = %v", err)
		}
		if !slices.Equal(res.Deleted, []string{"PLauto1", "PLauto2"}) {
			t.Errorf("Deleted = %v", res.Deleted)
		}
		if _, ok := host.Playlists["PLmine"]; !ok {
			t.Error("unrelated playlist deleted")
		}
	})

	t.Run("custom marker", func(t *testing.T) {
		host := setup()
		w := NewPlaylistWriter(host, testWriterOptions(nil), nil)

		res, err := w.Clean(context.Background(), nil, "my own")
		if err != nil {
			t.Fatalf("Clean() error = %v", err)
		}
		if !slices.Equal(res.Deleted, []string{"PLmine"}) {
			t.Errorf("Deleted = %v", res.Deleted)
		}
	})

	t.Run("dry run lists only", func(t *testing.T) {
		host := setup()
		opts := testWriterOptions(nil)
		opts.DryRun = true
		w := NewPlaylistWriter(host, opts, nil)

		res, err := w.Clean(context.Background(), nil, "")
		if err != nil {
			t.Fatalf("Clean() error = %v", err)
		}
		if len(res.Matched) != 2 || len(res.Deleted) != 0 || host.WriteCalls() != 0 {
			t.Errorf("result = %+v, calls = %v", res, host.Calls)
		}
	})
}
