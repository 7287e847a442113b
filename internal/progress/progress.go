// Package progress persists which source posts already have a playlist, so reruns never create duplicates.
//
// The record is a JSON document of the form {"processed_playlists": {"<post url>": "<playlist id>"}}. It is loaded once,
// rewritten atomically after every completed post, and guarded by an advisory lock file next to it so a second
// concurrent run fails fast instead of clobbering state.
package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/gofrs/flock"

	"github.com/desertthunder/prism/internal/shared"
)

// DefaultPath is used when no progress file is configured.
const DefaultPath = "progress.json"

type document struct {
	ProcessedPlaylists map[string]string `json:"processed_playlists"`
}

// Tracker maps post URLs to the playlist created for them.
//
// A Tracker is not safe for concurrent use; the playlist workflow is sequential.
type Tracker struct {
	path     string
	lock     *flock.Flock
	doc      document
	readOnly bool
}

// Open loads the progress file at path, creating nothing until the first [Tracker.Record].
//
// It takes the lock at path + ".lock" and returns [shared.ErrLocked] when another process holds it.
func Open(path string) (*Tracker, error) {
	if path == "" {
		path = DefaultPath
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire progress lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s.lock", shared.ErrLocked, path)
	}

	t := &Tracker{path: path, lock: lock}
	if err := t.load(); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return t, nil
}

// OpenReadOnly loads the progress file without locking it. Records made through the returned tracker stay in memory,
// which is what dry runs need.
func OpenReadOnly(path string) (*Tracker, error) {
	if path == "" {
		path = DefaultPath
	}

	t := &Tracker{path: path, readOnly: true}
	if err := t.load(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tracker) load() error {
	t.doc = document{ProcessedPlaylists: make(map[string]string)}

	data, err := os.ReadFile(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read progress file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse progress file %s: %w", t.path, err)
	}
	if doc.ProcessedPlaylists != nil {
		t.doc.ProcessedPlaylists = doc.ProcessedPlaylists
	}
	return nil
}

// Path returns the progress file location.
func (t *Tracker) Path() string { return t.path }

// Lookup returns the playlist recorded for postURL.
func (t *Tracker) Lookup(postURL string) (string, bool) {
	id, ok := t.doc.ProcessedPlaylists[postURL]
	return id, ok
}

// Len reports how many posts are recorded.
func (t *Tracker) Len() int { return len(t.doc.ProcessedPlaylists) }

// URLs returns the recorded post URLs in sorted order.
func (t *Tracker) URLs() []string {
	return slices.Sorted(maps.Keys(t.doc.ProcessedPlaylists))
}

// Record stores playlistID for postURL and rewrites the file atomically.
func (t *Tracker) Record(postURL, playlistID string) error {
	t.doc.ProcessedPlaylists[postURL] = playlistID
	if t.readOnly {
		return nil
	}

	data, err := json.MarshalIndent(t.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if err := shared.WriteFileAtomic(t.path, data, 0644); err != nil {
		return fmt.Errorf("write progress file: %w", err)
	}
	return nil
}

// Close releases the lock. The lock file itself is left in place.
func (t *Tracker) Close() error {
	if t.lock == nil {
		return nil
	}
	return t.lock.Unlock()
}
