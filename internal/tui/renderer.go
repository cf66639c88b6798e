// Package tui renders the controller's menu tree and title in the terminal,
// standing in for an OS tray widget. All mutation happens inside the
// bubbletea event loop; the controller talks to it only through messages.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/barakshechter/clockadoodledoo/internal/tray"
)

type setTitleMsg string

type setMenuMsg []tray.MenuItem

type showErrorMsg struct {
	title   string
	message string
	detail  string
}

// Renderer satisfies tray.Renderer.
type Renderer struct {
	program *tea.Program
}

func NewRenderer() *Renderer {
	return &Renderer{
		program: tea.NewProgram(newMenuModel(), tea.WithAltScreen()),
	}
}

// Run blocks until the user exits.
func (r *Renderer) Run() error {
	_, err := r.program.Run()
	return err
}

func (r *Renderer) Quit() {
	r.program.Quit()
}

func (r *Renderer) SetTitle(title string) {
	r.program.Send(setTitleMsg(title))
}

func (r *Renderer) SetMenu(items []tray.MenuItem) {
	r.program.Send(setMenuMsg(items))
}

func (r *Renderer) ShowError(title, message, detail string) {
	r.program.Send(showErrorMsg{title: title, message: message, detail: detail})
}
