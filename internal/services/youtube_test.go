package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/prism/internal/shared"
)

func newTestYouTube(t *testing.T, handler http.HandlerFunc) *YouTubeService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := NewYouTubeService(context.Background(), srv.Client(), srv.URL+"/", nil)
	if err != nil {
		t.Fatalf("NewYouTubeService failed: %v", err)
	}
	return svc
}

func writeAPIError(w http.ResponseWriter, status int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"code":%d,"message":"%s happened","errors":[{"reason":"%s","domain":"youtube"}]}}`, status, reason, reason)
}

func TestYouTubeService(t *testing.T) {
	ctx := context.Background()

	t.Run("CreatePlaylist", func(t *testing.T) {
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/playlists") {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			var body struct {
				Snippet struct{ Title, Description string }
				Status  struct {
					PrivacyStatus string `json:"privacyStatus"`
				}
			}
			data, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(data, &body); err != nil {
				t.Fatalf("bad body: %v", err)
			}
			if body.Snippet.Title != "Mix" || body.Status.PrivacyStatus != "unlisted" {
				t.Errorf("unexpected body %s", data)
			}
			fmt.Fprint(w, `{"id":"PL123"}`)
		})

		id, err := svc.CreatePlaylist(ctx, "Mix", "desc", "unlisted")
		if err != nil {
			t.Fatalf("CreatePlaylist failed: %v", err)
		}
		if id != "PL123" {
			t.Errorf("expected PL123, got %s", id)
		}
	})

	t.Run("quota error is classified", func(t *testing.T) {
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			writeAPIError(w, http.StatusForbidden, "quotaExceeded")
		})

		err := svc.InsertPlaylistItem(ctx, "PL1", "dQw4w9WgXcQ")
		if !IsQuota(err) {
			t.Fatalf("expected quota error, got %v", err)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Op != "playlistItems.insert" || apiErr.Status != 403 {
			t.Errorf("unexpected API error %+v", apiErr)
		}
	})

	t.Run("PlaylistItems pages and flags private videos", func(t *testing.T) {
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("playlistId") != "PL1" {
				t.Errorf("missing playlistId in %s", r.URL.RawQuery)
			}
			if r.URL.Query().Get("pageToken") == "" {
				fmt.Fprint(w, `{"nextPageToken":"p2","items":[
					{"snippet":{"title":"A","resourceId":{"videoId":"AAAAAAAAAAA"}},"status":{"privacyStatus":"public"}},
					{"snippet":{"title":"Private video","resourceId":{"videoId":"BBBBBBBBBBB"}},"status":{"privacyStatus":"private"}}]}`)
				return
			}
			fmt.Fprint(w, `{"items":[{"snippet":{"title":"C","resourceId":{"videoId":"CCCCCCCCCCC"}}}]}`)
		})

		items, err := svc.PlaylistItems(ctx, "PL1", 0)
		if err != nil {
			t.Fatalf("PlaylistItems failed: %v", err)
		}
		if len(items) != 3 || !items[1].Private || items[2].VideoID != "CCCCCCCCCCC" {
			t.Errorf("unexpected items %+v", items)
		}

		limited, err := svc.PlaylistItems(ctx, "PL1", 1)
		if err != nil || len(limited) != 1 {
			t.Errorf("expected 1 item with limit, got %v %v", limited, err)
		}
	})

	t.Run("VideoMetadata", func(t *testing.T) {
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Query().Get("id") {
			case "AAAAAAAAAAA":
				fmt.Fprint(w, `{"items":[{"id":"AAAAAAAAAAA","snippet":{"title":"Artist - Song","description":"d","channelTitle":"ArtistVEVO","publishedAt":"2020-05-01T12:00:00Z"},"status":{"privacyStatus":"public"}}]}`)
			case "BBBBBBBBBBB":
				fmt.Fprint(w, `{"items":[{"id":"BBBBBBBBBBB","snippet":{"title":"x"},"status":{"privacyStatus":"private"}}]}`)
			default:
				fmt.Fprint(w, `{"items":[]}`)
			}
		})

		meta, err := svc.VideoMetadata(ctx, "AAAAAAAAAAA")
		if err != nil {
			t.Fatalf("VideoMetadata failed: %v", err)
		}
		if meta.Title != "Artist - Song" || meta.PublishedAt == nil || meta.PublishedAt.Year() != 2020 {
			t.Errorf("unexpected metadata %+v", meta)
		}

		for _, id := range []string{"BBBBBBBBBBB", "CCCCCCCCCCC"} {
			if _, err := svc.VideoMetadata(ctx, id); !errors.Is(err, shared.ErrVideoUnavailable) {
				t.Errorf("%s: expected ErrVideoUnavailable, got %v", id, err)
			}
		}
	})

	t.Run("SearchVideos", func(t *testing.T) {
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("type") != "video" || q.Get("videoCategoryId") != MusicCategoryID || q.Get("maxResults") != "3" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			fmt.Fprint(w, `{"items":[
				{"id":{"kind":"youtube#video","videoId":"AAAAAAAAAAA"},"snippet":{"title":"Simon &amp; Garfunkel - Mrs. Robinson","channelTitle":"SimonGarfunkelVEVO"}},
				{"id":{"kind":"youtube#channel","channelId":"UC1"},"snippet":{"title":"channel"}}]}`)
		})

		results, err := svc.SearchVideos(ctx, "simon garfunkel mrs robinson official music video", 3)
		if err != nil {
			t.Fatalf("SearchVideos failed: %v", err)
		}
		if len(results) != 1 || results[0].Title != "Simon & Garfunkel - Mrs. Robinson" {
			t.Errorf("unexpected results %+v", results)
		}
	})

	t.Run("MyPlaylists", func(t *testing.T) {
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("mine") != "true" {
				t.Errorf("expected mine=true")
			}
			fmt.Fprint(w, `{"items":[{"id":"PL1","snippet":{"title":"Weekly","description":"Automatically created from Substack"},"status":{"privacyStatus":"private"},"contentDetails":{"itemCount":12}}]}`)
		})

		playlists, err := svc.MyPlaylists(ctx)
		if err != nil {
			t.Fatalf("MyPlaylists failed: %v", err)
		}
		if len(playlists) != 1 || playlists[0].ItemCount != 12 || playlists[0].Privacy != "private" {
			t.Errorf("unexpected playlists %+v", playlists)
		}
	})

	t.Run("DeletePlaylist not found", func(t *testing.T) {
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				t.Errorf("expected DELETE, got %s", r.Method)
			}
			writeAPIError(w, http.StatusNotFound, "playlistNotFound")
		})

		err := svc.DeletePlaylist(ctx, "PLgone")
		if KindOf(err) != KindNotFound || !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})
}

func TestPlaylistURL(t *testing.T) {
	if got := PlaylistURL("PL1"); got != "https://www.youtube.com/playlist?list=PL1" {
		t.Errorf("unexpected URL %s", got)
	}
	if got := VideoURL("AAAAAAAAAAA"); got != "https://www.youtube.com/watch?v=AAAAAAAAAAA" {
		t.Errorf("unexpected URL %s", got)
	}
}
