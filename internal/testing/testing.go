// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/prism/internal/classify"
	"github.com/desertthunder/prism/internal/models"
	"github.com/desertthunder/prism/internal/repositories"
	"github.com/desertthunder/prism/internal/services"
	"github.com/desertthunder/prism/internal/shared"
)

// FakeHost is an in-memory [services.VideoHost] that records every call.
//
// Errors are scripted per call: CreateErrs is consumed one error per CreatePlaylist, InsertErrs one error per insert of
// the keyed video. A nil element means that call succeeds.
type FakeHost struct {
	mu sync.Mutex

	Calls      []string
	Playlists  map[string]*FakePlaylist
	Videos     map[string]services.VideoMetadata
	Search     map[string][]services.SearchResult
	CreateErrs []error
	InsertErrs map[string][]error
	DeleteErr  error
	ListErr    error
	SearchErr  error
	VideoErrs  map[string]error

	nextID int
}

// FakePlaylist is the state FakeHost keeps for one playlist.
type FakePlaylist struct {
	services.Playlist
	Items []services.PlaylistItem
}

func NewFakeHost() *FakeHost {
	return &FakeHost{
		Playlists:  make(map[string]*FakePlaylist),
		Videos:     make(map[string]services.VideoMetadata),
		Search:     make(map[string][]services.SearchResult),
		InsertErrs: make(map[string][]error),
		VideoErrs:  make(map[string]error),
	}
}

// AddVideo registers a public video titled title.
func (h *FakeHost) AddVideo(id, title string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	published := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	h.Videos[id] = services.VideoMetadata{ID: id, Title: title, ChannelTitle: "Channel", PublishedAt: &published}
}

// AddPlaylist registers an existing playlist holding videoIDs.
func (h *FakeHost) AddPlaylist(pl services.Playlist, videoIDs ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fp := &FakePlaylist{Playlist: pl}
	for _, id := range videoIDs {
		fp.Items = append(fp.Items, services.PlaylistItem{VideoID: id})
	}
	h.Playlists[pl.ID] = fp
}

func (h *FakeHost) record(format string, args ...any) {
	h.Calls = append(h.Calls, fmt.Sprintf(format, args...))
}

func (h *FakeHost) CreatePlaylist(ctx context.Context, title, description, privacy string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("create:%s", title)

	if len(h.CreateErrs) > 0 {
		err := h.CreateErrs[0]
		h.CreateErrs = h.CreateErrs[1:]
		if err != nil {
			return "", err
		}
	}

	h.nextID++
	id := fmt.Sprintf("PL%d", h.nextID)
	h.Playlists[id] = &FakePlaylist{Playlist: services.Playlist{ID: id, Title: title, Description: description, Privacy: privacy}}
	return id, nil
}

func (h *FakeHost) DeletePlaylist(ctx context.Context, playlistID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("delete:%s", playlistID)
	if h.DeleteErr != nil {
		return h.DeleteErr
	}
	delete(h.Playlists, playlistID)
	return nil
}

func (h *FakeHost) InsertPlaylistItem(ctx context.Context, playlistID, videoID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("insert:%s:%s", playlistID, videoID)

	if errs := h.InsertErrs[videoID]; len(errs) > 0 {
		err := errs[0]
		h.InsertErrs[videoID] = errs[1:]
		if err != nil {
			return err
		}
	}

	pl, ok := h.Playlists[playlistID]
	if !ok {
		return NotFoundError("playlistItems.insert")
	}
	pl.Items = append(pl.Items, services.PlaylistItem{VideoID: videoID})
	pl.ItemCount = int64(len(pl.Items))
	return nil
}

func (h *FakeHost) PlaylistItems(ctx context.Context, playlistID string, limit int) ([]services.PlaylistItem, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("items:%s", playlistID)
	if h.ListErr != nil {
		return nil, h.ListErr
	}

	pl, ok := h.Playlists[playlistID]
	if !ok {
		return nil, NotFoundError("playlistItems.list")
	}
	items := slices.Clone(pl.Items)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (h *FakeHost) VideoMetadata(ctx context.Context, videoID string) (*services.VideoMetadata, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("video:%s", videoID)
	if err := h.VideoErrs[videoID]; err != nil {
		return nil, err
	}

	v, ok := h.Videos[videoID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrVideoUnavailable, videoID)
	}
	return &v, nil
}

func (h *FakeHost) SearchVideos(ctx context.Context, query string, maxResults int) ([]services.SearchResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("search:%s", query)
	if h.SearchErr != nil {
		return nil, h.SearchErr
	}

	results := h.Search[query]
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

func (h *FakeHost) MyPlaylists(ctx context.Context) ([]services.Playlist, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("playlists")
	if h.ListErr != nil {
		return nil, h.ListErr
	}

	var out []services.Playlist
	for _, id := range slices.Sorted(maps.Keys(h.Playlists)) {
		out = append(out, h.Playlists[id].Playlist)
	}
	return out, nil
}

// CallsWithPrefix returns the recorded calls starting with prefix, e.g. "create:".
func (h *FakeHost) CallsWithPrefix(prefix string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, c := range h.Calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// WriteCalls counts calls that change remote state.
func (h *FakeHost) WriteCalls() int {
	return len(h.CallsWithPrefix("create:")) + len(h.CallsWithPrefix("insert:")) + len(h.CallsWithPrefix("delete:"))
}

// VideoIDs returns the video IDs stored in a playlist.
func (h *FakeHost) VideoIDs(playlistID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	pl, ok := h.Playlists[playlistID]
	if !ok {
		return nil
	}
	var ids []string
	for _, it := range pl.Items {
		ids = append(ids, it.VideoID)
	}
	return ids
}

func apiError(op string, status int, reason string, kind services.ErrorKind) error {
	return &services.APIError{Op: op, Status: status, Reason: reason, Kind: kind, Err: errors.New(reason)}
}

func QuotaError(op string) error {
	return apiError(op, http.StatusForbidden, "quotaExceeded", services.KindQuota)
}

func TransientError(op string, status int) error {
	return apiError(op, status, "backendError", services.KindTransient)
}

func DuplicateError(op string) error {
	return apiError(op, http.StatusConflict, "videoAlreadyInPlaylist", services.KindDuplicate)
}

func NotFoundError(op string) error {
	return apiError(op, http.StatusNotFound, "videoNotFound", services.KindNotFound)
}

func PlaylistNotFoundError(op string) error {
	return apiError(op, http.StatusNotFound, "playlistNotFound", services.KindNotFound)
}

func PreconditionError(op string) error {
	return apiError(op, http.StatusPreconditionFailed, "failedPrecondition", services.KindPrecondition)
}

func InvalidSnippetError(op string) error {
	return apiError(op, http.StatusBadRequest, "invalidPlaylistSnippet", services.KindInvalidSnippet)
}

func AuthError(op string) error {
	return apiError(op, http.StatusUnauthorized, "authError", services.KindAuth)
}

// FakeClassifier is a [classify.Classifier] that also identifies tracks and extracts mentions.
type FakeClassifier struct {
	Results  map[string]classify.Result
	Err      error
	Tracks   map[string][2]string
	Mentions []classify.Mention
	Calls    []string
}

func (f *FakeClassifier) Model() string { return "fake-model" }

func (f *FakeClassifier) Classify(ctx context.Context, video services.VideoMetadata) (classify.Result, error) {
	f.Calls = append(f.Calls, "classify:"+video.ID)
	if f.Err != nil {
		return classify.Result{}, f.Err
	}
	if res, ok := f.Results[video.ID]; ok {
		return res, nil
	}
	return classify.Result{Genre: "Rock", Fidelity: 70, Remarks: "guitars"}, nil
}

func (f *FakeClassifier) IdentifyTrack(ctx context.Context, videoID, title string) (string, string, error) {
	f.Calls = append(f.Calls, "identify:"+videoID)
	if f.Err != nil {
		return "", "", f.Err
	}
	t := f.Tracks[videoID]
	return t[0], t[1], nil
}

func (f *FakeClassifier) ExtractMentions(ctx context.Context, text string, limit int) ([]classify.Mention, error) {
	f.Calls = append(f.Calls, "mentions")
	if f.Err != nil {
		return nil, f.Err
	}
	if limit > 0 && len(f.Mentions) > limit {
		return f.Mentions[:limit], nil
	}
	return f.Mentions, nil
}

// NewTestDB opens an in-memory catalog with migrations applied.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// NewTestStores returns entry and user repositories over a fresh in-memory catalog.
func NewTestStores(t *testing.T) (*repositories.EntryRepository, *repositories.UserRepository) {
	t.Helper()
	db := NewTestDB(t)
	return repositories.NewEntryRepository(db), repositories.NewUserRepository(db)
}

// MustCreateEntry stores e or fails the test.
func MustCreateEntry(t *testing.T, store models.EntryStore, e *models.Entry) {
	t.Helper()
	if err := store.Create(e); err != nil {
		t.Fatalf("failed to create entry %s: %v", e.VideoID, err)
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
