// YouTube Data API v3 implementation of [VideoHost]
package services

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/desertthunder/prism/internal/shared"
)

const (
	// MusicCategoryID is the YouTube video category for music.
	MusicCategoryID = "10"
	pageSize        = 50
)

// YouTubeService implements [VideoHost] on top of the generated youtube/v3 client.
//
// Every error returned by a method has passed through [Classify].
type YouTubeService struct {
	service *youtube.Service
	logger  *log.Logger
}

// NewYouTubeService builds a client that authenticates through httpClient, usually one built by [CredentialProvider.Client].
//
// A non-empty endpoint overrides the API base URL, which tests use to point at an httptest server.
func NewYouTubeService(ctx context.Context, httpClient *http.Client, endpoint string, logger *log.Logger) (*YouTubeService, error) {
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &YouTubeService{service: svc, logger: logger}, nil
}

// CreatePlaylist inserts a playlist with the given privacy status.
func (s *YouTubeService) CreatePlaylist(ctx context.Context, title, description, privacy string) (string, error) {
	pl := &youtube.Playlist{
		Snippet: &youtube.PlaylistSnippet{Title: title, Description: description},
		Status:  &youtube.PlaylistStatus{PrivacyStatus: privacy},
	}

	resp, err := s.service.Playlists.Insert([]string{"snippet", "status"}, pl).Context(ctx).Do()
	if err != nil {
		return "", Classify("playlists.insert", err)
	}
	s.logger.Debug("playlist created", "id", resp.Id, "title", title)
	return resp.Id, nil
}

// DeletePlaylist deletes a playlist by ID.
func (s *YouTubeService) DeletePlaylist(ctx context.Context, playlistID string) error {
	if err := s.service.Playlists.Delete(playlistID).Context(ctx).Do(); err != nil {
		return Classify("playlists.delete", err)
	}
	return nil
}

// InsertPlaylistItem appends a video to the end of a playlist.
func (s *YouTubeService) InsertPlaylistItem(ctx context.Context, playlistID, videoID string) error {
	item := &youtube.PlaylistItem{
		Snippet: &youtube.PlaylistItemSnippet{
			PlaylistId: playlistID,
			ResourceId: &youtube.ResourceId{Kind: "youtube#video", VideoId: videoID},
		},
	}
	if _, err := s.service.PlaylistItems.Insert([]string{"snippet"}, item).Context(ctx).Do(); err != nil {
		return Classify("playlistItems.insert", err)
	}
	return nil
}

// PlaylistItems pages through a playlist, 50 items at a time.
func (s *YouTubeService) PlaylistItems(ctx context.Context, playlistID string, limit int) ([]PlaylistItem, error) {
	var items []PlaylistItem
	token := ""
	for {
		call := s.service.PlaylistItems.List([]string{"snippet", "status"}).
			PlaylistId(playlistID).
			MaxResults(pageSize).
			Context(ctx)
		if token != "" {
			call = call.PageToken(token)
		}

		resp, err := call.Do()
		if err != nil {
			return items, Classify("playlistItems.list", err)
		}

		for _, it := range resp.Items {
			if it.Snippet == nil || it.Snippet.ResourceId == nil {
				continue
			}
			private := it.Status != nil && it.Status.PrivacyStatus == "private"
			items = append(items, PlaylistItem{
				VideoID: it.Snippet.ResourceId.VideoId,
				Title:   it.Snippet.Title,
				Private: private,
			})
			if limit > 0 && len(items) >= limit {
				return items, nil
			}
		}

		if resp.NextPageToken == "" {
			return items, nil
		}
		token = resp.NextPageToken
	}
}

// VideoMetadata reads snippet and status for one video.
func (s *YouTubeService) VideoMetadata(ctx context.Context, videoID string) (*VideoMetadata, error) {
	resp, err := s.service.Videos.List([]string{"snippet", "status"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return nil, Classify("videos.list", err)
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("%w: %s not found", shared.ErrVideoUnavailable, videoID)
	}

	v := resp.Items[0]
	if v.Status != nil && v.Status.PrivacyStatus == "private" {
		return nil, fmt.Errorf("%w: %s is private", shared.ErrVideoUnavailable, videoID)
	}

	meta := &VideoMetadata{ID: videoID}
	if v.Snippet != nil {
		meta.Title = v.Snippet.Title
		meta.Description = v.Snippet.Description
		meta.ChannelTitle = v.Snippet.ChannelTitle
		if t, err := time.Parse(time.RFC3339, v.Snippet.PublishedAt); err == nil {
			t = t.UTC()
			meta.PublishedAt = &t
		}
	}
	return meta, nil
}

// SearchVideos searches the music category. Titles come back HTML-escaped from the API and are unescaped here.
func (s *YouTubeService) SearchVideos(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	resp, err := s.service.Search.List([]string{"snippet"}).
		Q(query).
		Type("video").
		VideoCategoryId(MusicCategoryID).
		MaxResults(int64(maxResults)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, Classify("search.list", err)
	}

	results := make([]SearchResult, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.Id == nil || it.Id.VideoId == "" {
			continue
		}
		r := SearchResult{VideoID: it.Id.VideoId}
		if it.Snippet != nil {
			r.Title = html.UnescapeString(it.Snippet.Title)
			r.ChannelTitle = html.UnescapeString(it.Snippet.ChannelTitle)
		}
		results = append(results, r)
	}
	return results, nil
}

// MyPlaylists pages through the authenticated user's playlists.
func (s *YouTubeService) MyPlaylists(ctx context.Context) ([]Playlist, error) {
	var playlists []Playlist
	token := ""
	for {
		call := s.service.Playlists.List([]string{"snippet", "status", "contentDetails"}).
			Mine(true).
			MaxResults(pageSize).
			Context(ctx)
		if token != "" {
			call = call.PageToken(token)
		}

		resp, err := call.Do()
		if err != nil {
			return playlists, Classify("playlists.list", err)
		}

		for _, it := range resp.Items {
			pl := Playlist{ID: it.Id}
			if it.Snippet != nil {
				pl.Title = it.Snippet.Title
				pl.Description = it.Snippet.Description
			}
			if it.Status != nil {
				pl.Privacy = it.Status.PrivacyStatus
			}
			if it.ContentDetails != nil {
				pl.ItemCount = it.ContentDetails.ItemCount
			}
			playlists = append(playlists, pl)
		}

		if resp.NextPageToken == "" {
			return playlists, nil
		}
		token = resp.NextPageToken
	}
}
