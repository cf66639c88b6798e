package clockify

import "time"

type User struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	ActiveWorkspace  string `json:"activeWorkspace"`
	DefaultWorkspace string `json:"defaultWorkspace"`
}

type Workspace struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Project struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Archived   bool   `json:"archived"`
	Color      string `json:"color"`
	ClientID   string `json:"clientId"`
	ClientName string `json:"clientName"`
}

type TimeInterval struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end"`
}

type TimeEntry struct {
	ID           string       `json:"id"`
	Description  string       `json:"description"`
	ProjectID    string       `json:"projectId"`
	TaskID       string       `json:"taskId,omitempty"`
	TagIDs       []string     `json:"tagIds,omitempty"`
	Billable     bool         `json:"billable"`
	TimeInterval TimeInterval `json:"timeInterval"`
}

// Running reports whether the entry has no end timestamp yet.
func (e *TimeEntry) Running() bool {
	return e.TimeInterval.End == nil
}

// EntryPatch carries the caller-supplied fields of an active-entry update.
// Nil fields keep the entry's current values.
type EntryPatch struct {
	Description *string
	Start       *time.Time
}

type startEntryRequest struct {
	Start       string `json:"start"`
	ProjectID   string `json:"projectId"`
	Description string `json:"description,omitempty"`
}

type stopEntryRequest struct {
	End string `json:"end"`
}

type updateEntryRequest struct {
	Start       string   `json:"start"`
	End         string   `json:"end,omitempty"`
	ProjectID   string   `json:"projectId,omitempty"`
	TaskID      string   `json:"taskId,omitempty"`
	TagIDs      []string `json:"tagIds,omitempty"`
	Billable    bool     `json:"billable"`
	Description string   `json:"description"`
}
