package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/prism/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgEntriesLoaded MsgKind = iota
	MsgRatingSaved
)

type entriesLoaded struct {
	entries []*models.Entry
	user    *models.User
	err     error
}

type ratingSaved struct {
	videoID string
	rating  models.Rating
	err     error
}

// entriesLoadedMsg is the constructor for [MsgEntriesLoaded]
func entriesLoadedMsg(entries []*models.Entry, user *models.User, err error) Msg {
	return Msg{kind: MsgEntriesLoaded, data: entriesLoaded{entries, user, err}}
}

// ratingSavedMsg is the constructor for [MsgRatingSaved]
func ratingSavedMsg(videoID string, rating models.Rating, err error) Msg {
	return Msg{kind: MsgRatingSaved, data: ratingSaved{videoID, rating, err}}
}
