package services

import (
	"context"
	"time"
)

// VideoHost is the subset of the YouTube Data API the catalog and playlist workflows use.
type VideoHost interface {
	// CreatePlaylist creates a playlist and returns its ID.
	CreatePlaylist(ctx context.Context, title, description, privacy string) (string, error)

	// DeletePlaylist removes a playlist owned by the authenticated user.
	DeletePlaylist(ctx context.Context, playlistID string) error

	// InsertPlaylistItem appends one video to a playlist.
	InsertPlaylistItem(ctx context.Context, playlistID, videoID string) error

	// PlaylistItems lists the videos of a playlist in playlist order. A limit of 0 reads every page.
	PlaylistItems(ctx context.Context, playlistID string, limit int) ([]PlaylistItem, error)

	// VideoMetadata returns title, description and upload date, or [shared.ErrVideoUnavailable] when the video is
	// missing or private.
	VideoMetadata(ctx context.Context, videoID string) (*VideoMetadata, error)

	// SearchVideos runs a music-category video search.
	SearchVideos(ctx context.Context, query string, maxResults int) ([]SearchResult, error)

	// MyPlaylists lists every playlist of the authenticated user.
	MyPlaylists(ctx context.Context) ([]Playlist, error)
}

// Playlist is a playlist owned by the authenticated user.
type Playlist struct {
	ID          string
	Title       string
	Description string
	Privacy     string
	ItemCount   int64
}

// PlaylistItem is one entry of a playlist.
type PlaylistItem struct {
	VideoID string
	Title   string
	Private bool
}

// VideoMetadata describes a public video.
type VideoMetadata struct {
	ID           string
	Title        string
	Description  string
	ChannelTitle string
	PublishedAt  *time.Time
}

// SearchResult is a search hit for a video.
type SearchResult struct {
	VideoID      string
	Title        string
	ChannelTitle string
}

// PlaylistURL is the public link to a playlist.
func PlaylistURL(id string) string {
	return "https://www.youtube.com/playlist?list=" + id
}

// VideoURL is the public watch link for a video.
func VideoURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}
