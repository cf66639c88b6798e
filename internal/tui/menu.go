package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/barakshechter/clockadoodledoo/internal/tray"
)

type level struct {
	title  string
	items  []tray.MenuItem
	cursor int
}

type menuModel struct {
	title  string
	stack  []level
	prompt *promptModel
	errMsg string
}

func newMenuModel() *menuModel {
	return &menuModel{stack: []level{{}}}
}

func (m *menuModel) current() *level {
	return &m.stack[len(m.stack)-1]
}

func (m *menuModel) Init() tea.Cmd {
	return nil
}

func (m *menuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case setTitleMsg:
		m.title = string(msg)
		return m, nil
	case setMenuMsg:
		m.setMenu([]tray.MenuItem(msg))
		return m, nil
	case showErrorMsg:
		m.errMsg = msg.title + ": " + msg.message
		if msg.detail != "" {
			m.errMsg += "\n" + msg.detail
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.prompt != nil {
		var cmd tea.Cmd
		*m.prompt, cmd = m.prompt.Update(msg)
		return m, cmd
	}
	return m, nil
}

// setMenu swaps in a freshly rebuilt tree, re-descending into the submenus
// the user had open so a periodic refresh doesn't yank them back to the root.
func (m *menuModel) setMenu(items []tray.MenuItem) {
	open := make([]string, 0, len(m.stack)-1)
	for _, lv := range m.stack[1:] {
		open = append(open, lv.title)
	}

	m.stack = []level{{items: items, cursor: firstSelectable(items)}}
	for _, label := range open {
		found := false
		for _, it := range m.current().items {
			if it.Kind == tray.ItemSubmenu && it.Label == label {
				m.stack = append(m.stack, level{title: label, items: it.Items, cursor: firstSelectable(it.Items)})
				found = true
				break
			}
		}
		if !found {
			break
		}
	}
}

func (m *menuModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.errMsg != "" {
		m.errMsg = ""
		return m, nil
	}

	if m.prompt != nil {
		switch msg.String() {
		case "esc":
			m.prompt = nil
			return m, nil
		case "enter":
			action := m.prompt.action
			value := m.prompt.Value()
			m.prompt = nil
			action.Submit(value)
			return m, nil
		}
		var cmd tea.Cmd
		*m.prompt, cmd = m.prompt.Update(msg)
		return m, cmd
	}

	lv := m.current()
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		lv.cursor = prevSelectable(lv.items, lv.cursor)
	case "down", "j":
		lv.cursor = nextSelectable(lv.items, lv.cursor)
	case "esc", "left", "h":
		if len(m.stack) > 1 {
			m.stack = m.stack[:len(m.stack)-1]
		}
	case "right", "l":
		if it, ok := m.selected(); ok && it.Kind == tray.ItemSubmenu {
			m.descend(it)
		}
	case "enter":
		m.activate()
	}
	return m, nil
}

func (m *menuModel) selected() (tray.MenuItem, bool) {
	lv := m.current()
	if lv.cursor < 0 || lv.cursor >= len(lv.items) {
		return tray.MenuItem{}, false
	}
	it := lv.items[lv.cursor]
	return it, selectable(it)
}

func (m *menuModel) descend(it tray.MenuItem) {
	m.stack = append(m.stack, level{title: it.Label, items: it.Items, cursor: firstSelectable(it.Items)})
}

func (m *menuModel) activate() {
	it, ok := m.selected()
	if !ok {
		return
	}
	switch {
	case it.Kind == tray.ItemSubmenu:
		m.descend(it)
	case it.Edit != nil:
		p := newPromptModel(it.Edit)
		m.prompt = &p
	case it.Click != nil:
		it.Click()
	}
}

func (m *menuModel) View() string {
	var b strings.Builder

	header := "clockadoodledoo"
	if m.title != "" {
		// The title carries its own leading space and separator.
		header += m.title
	}
	b.WriteString(titleStyle.Render(header) + "\n")

	if m.errMsg != "" {
		b.WriteString(errorStyle.Render(m.errMsg) + "\n")
		b.WriteString(helpStyle.Render("Press any key to dismiss"))
		return b.String()
	}

	if m.prompt != nil {
		b.WriteString(m.prompt.View())
		return b.String()
	}

	lv := m.current()
	if len(m.stack) > 1 {
		b.WriteString(subtitleStyle.Render(lv.title) + "\n")
	}
	for i, it := range lv.items {
		b.WriteString(renderItem(it, i == lv.cursor) + "\n")
	}
	b.WriteString(helpStyle.Render("↑/↓: move • Enter: select • Esc: back • q: quit"))
	return b.String()
}

func renderItem(it tray.MenuItem, selected bool) string {
	switch it.Kind {
	case tray.ItemSeparator:
		return dimStyle.Render("  ────────────────")
	case tray.ItemLabel:
		return dimStyle.Render("  " + it.Label)
	}

	label := it.Label
	if it.Kind == tray.ItemSubmenu {
		label += " ▸"
	}
	if it.Radio {
		mark := "( ) "
		if it.Checked {
			mark = "(•) "
		}
		label = mark + label
	}
	if selected {
		return selectedStyle.Render("> " + label)
	}
	return "  " + label
}

func selectable(it tray.MenuItem) bool {
	return it.Enabled && (it.Kind == tray.ItemAction || it.Kind == tray.ItemSubmenu)
}

func firstSelectable(items []tray.MenuItem) int {
	for i, it := range items {
		if selectable(it) {
			return i
		}
	}
	return 0
}

func nextSelectable(items []tray.MenuItem, from int) int {
	for i := from + 1; i < len(items); i++ {
		if selectable(items[i]) {
			return i
		}
	}
	return from
}

func prevSelectable(items []tray.MenuItem, from int) int {
	for i := from - 1; i >= 0; i-- {
		if selectable(items[i]) {
			return i
		}
	}
	return from
}
