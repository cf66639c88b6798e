package tray

import (
	"fmt"
	"time"

	"github.com/barakshechter/clockadoodledoo/internal/clockify"
)

// ItemKind discriminates menu item variants.
type ItemKind int

const (
	ItemLabel ItemKind = iota
	ItemSeparator
	ItemAction
	ItemSubmenu
)

// MenuItem is one node of the rendered menu tree. The renderer treats the
// tree as data: Click fires for plain action leaves, Edit marks leaves that
// first need a line of text from the user.
type MenuItem struct {
	Kind    ItemKind
	Label   string
	Enabled bool
	Radio   bool
	Checked bool
	Tooltip string
	Click   func()
	Edit    *EditAction
	Items   []MenuItem
}

// EditAction is an action leaf that submits user-entered text.
type EditAction struct {
	Title   string
	Initial string
	Submit  func(value string)
}

// Snapshot is the remote state one menu rebuild works from. It is fetched
// wholesale and never patched in place.
type Snapshot struct {
	Workspaces []clockify.Workspace
	Projects   []clockify.Project
	Active     *clockify.TimeEntry
	Recent     []clockify.TimeEntry
}

// groupProjectsByClient groups projects under their client name, preserving
// the order in which each client first appears.
func groupProjectsByClient(projects []clockify.Project) ([]string, map[string][]clockify.Project) {
	var order []string
	groups := make(map[string][]clockify.Project)
	for _, p := range projects {
		if _, ok := groups[p.ClientName]; !ok {
			order = append(order, p.ClientName)
		}
		groups[p.ClientName] = append(groups[p.ClientName], p)
	}
	return order, groups
}

// recentProjects returns up to limit most-recently-used distinct projects,
// excluding excludeID (the active entry's project) and any project id not
// present in projects.
func recentProjects(entries []clockify.TimeEntry, projects []clockify.Project, excludeID string, limit int) []clockify.Project {
	byID := make(map[string]clockify.Project, len(projects))
	for _, p := range projects {
		byID[p.ID] = p
	}

	seen := make(map[string]bool)
	var result []clockify.Project
	for _, e := range entries {
		if e.ProjectID == "" || e.ProjectID == excludeID || seen[e.ProjectID] {
			continue
		}
		seen[e.ProjectID] = true
		p, ok := byID[e.ProjectID]
		if !ok {
			continue
		}
		result = append(result, p)
		if len(result) == limit {
			break
		}
	}
	return result
}

// recentDescriptions collects the deduplicated non-blank descriptions among
// the 10 most recent entries on projectID, most recent first, excluding
// current.
func recentDescriptions(entries []clockify.TimeEntry, projectID, current string) []string {
	seen := make(map[string]bool)
	var result []string
	considered := 0
	for _, e := range entries {
		if e.ProjectID != projectID {
			continue
		}
		considered++
		if considered > 10 {
			break
		}
		if e.Description == "" || e.Description == current || seen[e.Description] {
			continue
		}
		seen[e.Description] = true
		result = append(result, e.Description)
	}
	return result
}

// findPredecessor locates the entry whose end lies within one second of
// start, i.e. the entry the active one was chained onto.
func findPredecessor(entries []clockify.TimeEntry, start time.Time) *clockify.TimeEntry {
	for i := range entries {
		e := &entries[i]
		if e.TimeInterval.End == nil {
			continue
		}
		gap := start.Sub(*e.TimeInterval.End)
		if gap < 0 {
			gap = -gap
		}
		if gap <= time.Second {
			return e
		}
	}
	return nil
}

// startAdjustments returns the four canned targets for the adjust-start
// submenu: 15 and 30 minutes back, the nearest 30-minute boundary, and the
// boundary before that.
func startAdjustments(start time.Time) [4]time.Time {
	nearest := start.Round(30 * time.Minute)
	return [4]time.Time{
		start.Add(-15 * time.Minute),
		start.Add(-30 * time.Minute),
		nearest,
		nearest.Add(-30 * time.Minute),
	}
}

// buildMenu assembles the whole menu tree from a snapshot. The view model is
// rebuilt wholesale on every refresh.
func (c *Controller) buildMenu(snap Snapshot, now time.Time) []MenuItem {
	var items []MenuItem

	workspaceID := c.settings.WorkspaceID()
	if workspaceID != "" {
		items = append(items, c.projectItems(snap, now)...)
	}

	items = append(items,
		MenuItem{Kind: ItemSeparator},
		MenuItem{Kind: ItemSubmenu, Label: "Workspaces", Enabled: true, Items: c.workspaceItems(snap.Workspaces, workspaceID)},
		MenuItem{Kind: ItemSeparator},
		MenuItem{Kind: ItemAction, Label: "Exit", Enabled: true, Click: c.quit},
	)
	return items
}

func (c *Controller) projectItems(snap Snapshot, now time.Time) []MenuItem {
	var items []MenuItem

	activeProjectID := ""
	if snap.Active != nil {
		activeProjectID = snap.Active.ProjectID
		items = append(items, c.activeEntryItems(snap, now)...)
	}

	items = append(items, MenuItem{Kind: ItemSeparator})
	header := "Start"
	if snap.Active != nil {
		header = "Switch to"
	}
	items = append(items, MenuItem{Kind: ItemLabel, Label: header})

	for _, p := range recentProjects(snap.Recent, snap.Projects, activeProjectID, 10) {
		p := p
		items = append(items, MenuItem{
			Kind:    ItemAction,
			Label:   fmt.Sprintf("%s (%s)", p.Name, p.ClientName),
			Enabled: true,
			Click:   func() { c.StartProject(p.ID) },
		})
	}

	items = append(items,
		MenuItem{Kind: ItemSeparator},
		MenuItem{Kind: ItemSubmenu, Label: "All Projects", Enabled: true, Items: c.allProjectItems(snap.Projects)},
	)
	return items
}

func (c *Controller) activeEntryItems(snap Snapshot, now time.Time) []MenuItem {
	entry := snap.Active

	var project clockify.Project
	for _, p := range snap.Projects {
		if p.ID == entry.ProjectID {
			project = p
			break
		}
	}

	// Clock time for recent starts, full date once the entry is half a day old.
	started := entry.TimeInterval.Start.Local()
	startedLabel := started.Format("15:04:05")
	if now.Sub(entry.TimeInterval.Start) > 12*time.Hour {
		startedLabel = started.Format("2006-01-02 15:04:05")
	}

	items := []MenuItem{{
		Kind:    ItemLabel,
		Label:   fmt.Sprintf("%s (%s) - Started at %s", project.Name, project.ClientName, startedLabel),
		Tooltip: entry.Description,
	}}

	if entry.Description != "" {
		items = append(items, MenuItem{Kind: ItemLabel, Label: entry.Description})
	}

	promptLabel := "Add description"
	if entry.Description != "" {
		promptLabel = "Update description"
	}
	items = append(items, MenuItem{
		Kind:    ItemAction,
		Label:   promptLabel,
		Enabled: true,
		Edit: &EditAction{
			Title:   "Update Description",
			Initial: entry.Description,
			Submit:  c.UpdateDescription,
		},
	})

	if descriptions := recentDescriptions(snap.Recent, entry.ProjectID, entry.Description); len(descriptions) > 0 {
		sub := make([]MenuItem, 0, len(descriptions))
		for _, d := range descriptions {
			d := d
			sub = append(sub, MenuItem{
				Kind:    ItemAction,
				Label:   d,
				Enabled: true,
				Click:   func() { c.UpdateDescription(d) },
			})
		}
		items = append(items, MenuItem{Kind: ItemSubmenu, Label: "Set Description", Enabled: true, Items: sub})
	}

	items = append(items, MenuItem{Kind: ItemAction, Label: "Stop Timer", Enabled: true, Click: c.StopTimer})

	targets := startAdjustments(entry.TimeInterval.Start)
	adjust := make([]MenuItem, 0, 5)
	for i, target := range targets {
		target := target
		label := ""
		switch i {
		case 0:
			label = "by -15m"
		case 1:
			label = "by -30m"
		default:
			label = "to " + target.Local().Format("15:04:05")
		}
		adjust = append(adjust, MenuItem{
			Kind:    ItemAction,
			Label:   label,
			Enabled: true,
			Click:   func() { c.AdjustStartTime(target) },
		})
	}
	adjust = append(adjust, MenuItem{
		Kind:    ItemAction,
		Label:   "Custom...",
		Enabled: true,
		Edit: &EditAction{
			Title:  "Adjust Start Time",
			Submit: c.AdjustStartTimeText,
		},
	})
	items = append(items, MenuItem{Kind: ItemSubmenu, Label: "Adjust Start Time", Enabled: true, Items: adjust})

	return items
}

func (c *Controller) allProjectItems(projects []clockify.Project) []MenuItem {
	order, groups := groupProjectsByClient(projects)
	items := make([]MenuItem, 0, len(order))
	for _, client := range order {
		sub := make([]MenuItem, 0, len(groups[client]))
		for _, p := range groups[client] {
			p := p
			sub = append(sub, MenuItem{
				Kind:    ItemAction,
				Label:   p.Name,
				Enabled: true,
				Click:   func() { c.StartProject(p.ID) },
			})
		}
		items = append(items, MenuItem{Kind: ItemSubmenu, Label: client, Enabled: true, Items: sub})
	}
	return items
}

func (c *Controller) workspaceItems(workspaces []clockify.Workspace, selectedID string) []MenuItem {
	items := make([]MenuItem, 0, len(workspaces))
	for _, ws := range workspaces {
		ws := ws
		items = append(items, MenuItem{
			Kind:    ItemAction,
			Label:   ws.Name,
			Enabled: true,
			Radio:   true,
			Checked: ws.ID == selectedID,
			Click:   func() { c.SelectWorkspace(ws.ID, ws.Name) },
		})
	}
	return items
}
