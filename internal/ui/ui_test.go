package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/prism/internal/models"
)

type rateCall struct {
	videoID string
	userID  string
	input   models.RatingInput
}

type fakeCatalog struct {
	entries []*models.Entry
	user    *models.User
	listErr error
	rateErr error
	lists   int
	rated   []rateCall
}

func (f *fakeCatalog) List(userID string, _ models.Filter) ([]*models.Entry, *models.User, error) {
	f.lists++
	return f.entries, f.user, f.listErr
}

func (f *fakeCatalog) Rate(videoID, userID string, in models.RatingInput) (models.Rating, error) {
	f.rated = append(f.rated, rateCall{videoID, userID, in})
	if f.rateErr != nil {
		return models.Rating{}, f.rateErr
	}
	return models.Rating{RatingMusic: models.ClampScore(in.Music), RatingVideo: models.ClampScore(in.Video)}, nil
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(t *testing.T) (*Model, *fakeCatalog) {
	t.Helper()
	user := models.NewUser("listener@example.com", models.ProviderGoogle)
	rated := &models.Entry{VideoID: "dQw4w9WgXcQ", Artist: "Rick Astley", Track: "Never Gonna Give You Up", Genre: "Pop"}
	rated.Rate(user, models.RatingInput{Music: 4, Video: 2, Favorite: true}, time.Now())
	unrated := &models.Entry{VideoID: "kXYiU_JCYtU", Title: "Numb (Official Video)"}

	fake := &fakeCatalog{entries: []*models.Entry{rated, unrated}, user: user}
	m := NewModel(context.Background(), fake, user.ID(), models.Filter{IncludeUnrated: true})
	m.open = func(string) error { return nil }
	m.Update(m.Init()())
	return m, fake
}

func send(m *Model, msgs ...tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	for _, msg := range msgs {
		_, cmd = m.Update(msg)
	}
	return cmd
}

func TestDraft(t *testing.T) {
	t.Run("scores stay within range", func(t *testing.T) {
		d := draft{music: 5, video: 1, genre: -1}
		d.adjust(1)
		d.toggleFocus()
		d.adjust(-1)
		if d.music != 5 || d.video != 1 {
			t.Errorf("expected clamped scores 5/1, got %d/%d", d.music, d.video)
		}
		d.set(9)
		if d.video != models.MaxScore {
			t.Errorf("expected video %d, got %d", models.MaxScore, d.video)
		}
	})

	t.Run("genre cycling wraps", func(t *testing.T) {
		d := draft{genre: -1}
		d.cycleGenre(-1)
		if d.genreName() != models.Genres[len(models.Genres)-1] {
			t.Errorf("expected last genre, got %s", d.genreName())
		}
		d.cycleGenre(1)
		if d.genreName() != models.Genres[0] {
			t.Errorf("expected first genre, got %s", d.genreName())
		}
	})

	t.Run("unknown genre keeps override", func(t *testing.T) {
		d := draft{music: 3, video: 3, genre: -1}
		if in := d.input(); in.Genre != "" {
			t.Errorf("expected empty genre, got %q", in.Genre)
		}
		d.genre = 0
		if in := d.input(); in.Genre != models.Genres[0] {
			t.Errorf("expected %s, got %q", models.Genres[0], in.Genre)
		}
	})
}

func TestModel(t *testing.T) {
	t.Run("loads filtered entries", func(t *testing.T) {
		m, fake := newTestModel(t)
		if fake.lists != 1 {
			t.Errorf("expected one list call, got %d", fake.lists)
		}
		items := m.entries.Items()
		if len(items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(items))
		}
		first := items[0].(entryItem)
		if first.Title() != "Rick Astley - Never Gonna Give You Up" {
			t.Errorf("unexpected title %q", first.Title())
		}
		if !strings.Contains(first.Description(), "★★★★☆") || !strings.Contains(first.Description(), "fav") {
			t.Errorf("unexpected description %q", first.Description())
		}
		if second := items[1].(entryItem); !strings.Contains(second.Description(), "unrated") || second.Title() != "Numb (Official Video)" {
			t.Errorf("unexpected unrated item %q / %q", second.Title(), second.Description())
		}
	})

	t.Run("rates selected entry", func(t *testing.T) {
		m, fake := newTestModel(t)
		send(m, tea.KeyMsg{Type: tea.KeyEnter})
		if m.view != RateView {
			t.Fatalf("expected rate view, got %v", m.view)
		}
		if m.draft.music != 4 || m.draft.video != 2 || !m.draft.favorite {
			t.Errorf("draft should start from stored rating, got %+v", m.draft)
		}

		cmd := send(m, runes("5"), tea.KeyMsg{Type: tea.KeyTab}, tea.KeyMsg{Type: tea.KeyRight}, runes("f"), runes("x"), runes("g"), tea.KeyMsg{Type: tea.KeyEnter})
		if cmd == nil {
			t.Fatal("expected save command")
		}
		send(m, cmd())

		if len(fake.rated) != 1 {
			t.Fatalf("expected one rate call, got %d", len(fake.rated))
		}
		call := fake.rated[0]
		if call.videoID != "dQw4w9WgXcQ" || call.userID != "listener@example.com" {
			t.Errorf("unexpected call %+v", call)
		}
		if call.input.Music != 5 || call.input.Video != 3 || call.input.Favorite || !call.input.Rejected {
			t.Errorf("unexpected input %+v", call.input)
		}
		if call.input.Genre != models.Genres[indexOf("Pop")+1] {
			t.Errorf("expected genre after Pop, got %q", call.input.Genre)
		}
		if m.view != ListView || !strings.Contains(m.status, "Saved dQw4w9WgXcQ") {
			t.Errorf("expected list view with saved status, got %v %q", m.view, m.status)
		}
	})

	t.Run("save failure stays in rate view", func(t *testing.T) {
		m, fake := newTestModel(t)
		fake.rateErr = errors.New("user disabled")
		send(m, tea.KeyMsg{Type: tea.KeyEnter})
		cmd := send(m, runes("s"))
		send(m, cmd())

		if m.view != RateView {
			t.Errorf("expected rate view, got %v", m.view)
		}
		if !strings.Contains(m.View(), "user disabled") {
			t.Errorf("expected error in view, got %q", m.View())
		}
	})

	t.Run("escape discards draft", func(t *testing.T) {
		m, fake := newTestModel(t)
		send(m, tea.KeyMsg{Type: tea.KeyEnter}, runes("1"), tea.KeyMsg{Type: tea.KeyEsc})
		if m.view != ListView || len(fake.rated) != 0 {
			t.Errorf("expected list view and no save, got %v with %d saves", m.view, len(fake.rated))
		}
	})

	t.Run("opens video", func(t *testing.T) {
		m, _ := newTestModel(t)
		var opened string
		m.open = func(u string) error {
			opened = u
			return nil
		}
		send(m, runes("o"))
		if opened != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
			t.Errorf("unexpected url %q", opened)
		}
	})

	t.Run("load error quits", func(t *testing.T) {
		fake := &fakeCatalog{listErr: errors.New("database locked")}
		m := NewModel(context.Background(), fake, "someone", models.DefaultFilter())
		_, cmd := m.Update(m.Init()())
		if m.Err() == nil {
			t.Fatal("expected error")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected quit")
		}
	})

	t.Run("quit key", func(t *testing.T) {
		m, _ := newTestModel(t)
		cmd := send(m, runes("q"))
		if cmd == nil {
			t.Fatal("expected command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected quit")
		}
	})
}

func indexOf(genre string) int {
	for i, g := range models.Genres {
		if g == genre {
			return i
		}
	}
	return -1
}
