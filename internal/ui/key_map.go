package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	rate     key.Binding
	open     key.Binding
	reload   key.Binding
	back     key.Binding
	save     key.Binding
	next     key.Binding
	less     key.Binding
	more     key.Binding
	score    key.Binding
	favorite key.Binding
	reject   key.Binding
	genre    key.Binding
	genreRev key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		rate:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "rate")),
		open:     key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open video")),
		reload:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		save:     key.NewBinding(key.WithKeys("enter", "s"), key.WithHelp("enter", "save")),
		next:     key.NewBinding(key.WithKeys("tab", "up", "down", "j", "k"), key.WithHelp("tab", "music/video")),
		less:     key.NewBinding(key.WithKeys("left", "h", "-"), key.WithHelp("←/h", "less")),
		more:     key.NewBinding(key.WithKeys("right", "l", "+"), key.WithHelp("→/l", "more")),
		score:    key.NewBinding(key.WithKeys("1", "2", "3", "4", "5"), key.WithHelp("1-5", "score")),
		favorite: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "favorite")),
		reject:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "reject")),
		genre:    key.NewBinding(key.WithKeys("g"), key.WithHelp("g/G", "genre")),
		genreRev: key.NewBinding(key.WithKeys("G")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) listKeys() []key.Binding {
	return []key.Binding{k.rate, k.open, k.reload, k.quit}
}

func (k keyMap) rateKeys() []key.Binding {
	return []key.Binding{k.next, k.less, k.more, k.score, k.favorite, k.reject, k.genre, k.save, k.back}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.listKeys(), k.rateKeys()}
}
