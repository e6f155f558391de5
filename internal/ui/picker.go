// Package ui holds the interactive pickers used when remeta runs on a
// terminal: a full-screen filterable item browser and a plain numbered
// prompt.
package ui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

var ErrCanceled = errors.New("selection canceled")

// Entry is one selectable row in the item browser.
type Entry struct {
	ID    string
	Name  string
	Type  string
	Extra string
}

// PickEntry shows a filterable list and returns the chosen entry. Typing `/`
// filters, Enter selects, q or ctrl+c cancels.
func PickEntry(title string, entries []Entry) (*Entry, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("nothing to select")
	}

	rows := make([]list.Item, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, entryRow{entry: e})
	}

	lst := list.New(rows, list.NewDefaultDelegate(), 0, 0)
	lst.Title = title
	lst.SetShowHelp(true)

	program := tea.NewProgram(pickerModel{list: lst})
	result, err := program.Run()
	if err != nil {
		return nil, err
	}
	m, ok := result.(pickerModel)
	if !ok || m.selected == nil {
		return nil, ErrCanceled
	}
	return m.selected, nil
}

type pickerModel struct {
	list     list.Model
	selected *Entry
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "enter":
			if row, ok := m.list.SelectedItem().(entryRow); ok {
				selected := row.entry
				m.selected = &selected
				return m, tea.Quit
			}
			return m, nil
		}
	case tea.WindowSizeMsg:
		height := msg.Height - 2
		if height < 4 {
			height = 4
		}
		width := msg.Width - 2
		if width < 20 {
			width = 20
		}
		m.list.SetSize(width, height)
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m pickerModel) View() string {
	return m.list.View()
}

type entryRow struct {
	entry Entry
}

func (r entryRow) Title() string { return r.entry.Name }

func (r entryRow) Description() string {
	if r.entry.Extra != "" {
		return r.entry.Extra
	}
	return r.entry.Type
}

func (r entryRow) FilterValue() string { return r.entry.Name }
