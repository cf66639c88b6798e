package tray

import (
	"fmt"
	"time"

	"github.com/barakshechter/clockadoodledoo/internal/clockify"
)

// formatDuration renders d as H:MM:SS, prefixed with a day count once the
// duration reaches 24 hours ("1 1:00:00" = one day, one hour).
func formatDuration(d time.Duration) string {
	// A remote-issued start can sit a few seconds ahead of the local clock.
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	s := secs % 60
	m := (secs / 60) % 60
	h := (secs / 3600) % 24
	days := secs / 86400
	if days > 0 {
		return fmt.Sprintf("%d %d:%02d:%02d", days, h, m, s)
	}
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// buildTitle renders the tray title for the active entry, or "" when nothing
// is running.
func buildTitle(active *clockify.TimeEntry, projects []clockify.Project, now time.Time) string {
	if active == nil {
		return ""
	}
	clientName := ""
	for _, p := range projects {
		if p.ID == active.ProjectID {
			clientName = p.ClientName
			break
		}
	}
	return " " + formatDuration(now.Sub(active.TimeInterval.Start)) + " - " + clientName
}
