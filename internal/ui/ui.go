package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/prism/internal/models"
	"github.com/desertthunder/prism/internal/services"
	"github.com/desertthunder/prism/internal/shared"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ListView ViewState = iota
	RateView
)

// Catalog is the part of the catalog the TUI reads and writes.
type Catalog interface {
	List(userID string, f models.Filter) ([]*models.Entry, *models.User, error)
	Rate(videoID, userID string, in models.RatingInput) (models.Rating, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	view    ViewState
	catalog Catalog
	userID  string
	filter  models.Filter
	user    *models.User
	width   int
	height  int
	entries list.Model
	draft   draft
	status  string
	err     error
	help    help.Model
	keys    keyMap
	open    func(string) error
}

// NewModel creates a TUI that rates the entries matching filter as userID.
func NewModel(ctx context.Context, catalog Catalog, userID string, filter models.Filter) *Model {
	entries := list.New(nil, list.NewDefaultDelegate(), 80, 20)
	entries.Title = "prism catalog"
	return &Model{
		ctx:     ctx,
		view:    ListView,
		catalog: catalog,
		userID:  userID,
		filter:  filter,
		entries: entries,
		help:    help.New(),
		keys:    newKeyMap(),
		open:    shared.OpenBrowser,
	}
}

// Err returns the error that stopped the TUI, if any.
func (m *Model) Err() error { return m.err }

// Init loads the filtered catalog.
func (m *Model) Init() tea.Cmd {
	return m.loadEntries()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.entries.SetSize(max(msg.Width-4, 20), max(msg.Height-6, 5))
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case ListView:
			return m.handleListKeys(msg)
		case RateView:
			return m.handleRateKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	m.entries, cmd = m.entries.Update(msg)
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgEntriesLoaded:
		data := msg.data.(entriesLoaded)
		if data.err != nil {
			m.err = data.err
			return m, tea.Quit
		}
		m.user = data.user
		items := make([]list.Item, len(data.entries))
		for i, e := range data.entries {
			items[i] = newEntryItem(e, data.user)
		}
		index := m.entries.Index()
		cmd := m.entries.SetItems(items)
		if len(items) > 0 {
			m.entries.Select(min(index, len(items)-1))
		}
		m.entries.Title = fmt.Sprintf("prism catalog (%d entries)", len(items))
		return m, cmd

	case MsgRatingSaved:
		data := msg.data.(ratingSaved)
		if data.err != nil {
			m.status = styles.err.Render("Save failed: " + data.err.Error())
			return m, nil
		}
		m.status = styles.ok.Render(fmt.Sprintf("✓ Saved %s: music %d/5, video %d/5", data.videoID, data.rating.RatingMusic, data.rating.RatingVideo))
		m.view = ListView
		return m, m.loadEntries()
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case ListView:
		return m.renderList()
	case RateView:
		return m.renderRate()
	default:
		return ""
	}
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.entries.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.entries, cmd = m.entries.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.rate):
		if item, ok := m.entries.SelectedItem().(entryItem); ok {
			m.draft = newDraft(item.entry, m.user)
			m.status = ""
			m.view = RateView
		}
		return m, nil
	case key.Matches(msg, m.keys.open):
		if item, ok := m.entries.SelectedItem().(entryItem); ok && m.open != nil {
			if err := m.open(services.VideoURL(item.entry.VideoID)); err != nil {
				m.status = styles.warn.Render("Could not open browser: " + err.Error())
			}
		}
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.status = ""
		return m, m.loadEntries()
	}

	var cmd tea.Cmd
	m.entries, cmd = m.entries.Update(msg)
	return m, cmd
}

func (m *Model) handleRateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = ListView
		m.status = ""
	case key.Matches(msg, m.keys.save):
		return m, m.saveRating()
	case key.Matches(msg, m.keys.next):
		m.draft.toggleFocus()
	case key.Matches(msg, m.keys.less):
		m.draft.adjust(-1)
	case key.Matches(msg, m.keys.more):
		m.draft.adjust(1)
	case key.Matches(msg, m.keys.score):
		m.draft.set(int(msg.String()[0] - '0'))
	case key.Matches(msg, m.keys.favorite):
		m.draft.favorite = !m.draft.favorite
	case key.Matches(msg, m.keys.reject):
		m.draft.rejected = !m.draft.rejected
	case key.Matches(msg, m.keys.genre):
		m.draft.cycleGenre(1)
	case key.Matches(msg, m.keys.genreRev):
		m.draft.cycleGenre(-1)
	}
	return m, nil
}

func (m *Model) loadEntries() tea.Cmd {
	return func() tea.Msg {
		entries, user, err := m.catalog.List(m.userID, m.filter)
		return entriesLoadedMsg(entries, user, err)
	}
}

func (m *Model) saveRating() tea.Cmd {
	videoID, in := m.draft.entry.VideoID, m.draft.input()
	return func() tea.Msg {
		if err := m.ctx.Err(); err != nil {
			return ratingSavedMsg(videoID, models.Rating{}, err)
		}
		r, err := m.catalog.Rate(videoID, m.userID, in)
		return ratingSavedMsg(videoID, r, err)
	}
}

func (m *Model) renderList() string {
	var b strings.Builder
	b.WriteString(m.entries.View())
	if m.status != "" {
		b.WriteString("\n" + m.status)
	}
	b.WriteString("\n\n" + m.help.ShortHelpView(m.keys.listKeys()))
	return b.String()
}

func (m *Model) renderRate() string {
	d := m.draft
	var b strings.Builder
	b.WriteString(styles.title.Render("Rate " + entryLabel(d.entry)))
	b.WriteString("\n")

	score := func(label string, f field, value int) {
		cursor := "  "
		line := fmt.Sprintf("%-9s %s", label, stars(value))
		if d.focus == f {
			cursor = "> "
			line = styles.focus.Render(line)
		}
		b.WriteString(cursor + line + "\n")
	}
	check := func(on bool) string {
		if on {
			return "[x]"
		}
		return "[ ]"
	}

	score("Music", musicField, d.music)
	score("Video", videoField, d.video)
	fmt.Fprintf(&b, "  %-9s %s\n", "Favorite", check(d.favorite))
	fmt.Fprintf(&b, "  %-9s %s\n", "Rejected", check(d.rejected))
	fmt.Fprintf(&b, "  %-9s %s", "Genre", d.genreName())
	if d.entry.Genre != "" && d.entry.Genre != d.genreName() {
		b.WriteString(styles.help.Render(" (classified as " + d.entry.Genre + ")"))
	}
	b.WriteString("\n\n")
	b.WriteString(styles.help.Render(services.VideoURL(d.entry.VideoID)))
	if m.status != "" {
		b.WriteString("\n" + m.status)
	}
	b.WriteString("\n\n" + m.help.ShortHelpView(m.keys.rateKeys()))
	return b.String()
}
