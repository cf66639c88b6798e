package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/barakshechter/clockadoodledoo/internal/tray"
)

type promptModel struct {
	input  textinput.Model
	action *tray.EditAction
}

func newPromptModel(action *tray.EditAction) promptModel {
	ti := textinput.New()
	ti.SetValue(action.Initial)
	ti.Focus()
	ti.CharLimit = 200
	ti.Width = 50

	return promptModel{
		input:  ti,
		action: action,
	}
}

func (m promptModel) Update(msg tea.Msg) (promptModel, tea.Cmd) {
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m promptModel) Value() string {
	return m.input.Value()
}

func (m promptModel) View() string {
	header := subtitleStyle.Render(m.action.Title)
	help := helpStyle.Render("Enter: submit • Esc: cancel")
	return header + "\n" + m.input.View() + "\n" + help
}
