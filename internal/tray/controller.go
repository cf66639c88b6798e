// Package tray reconciles the live menu and title against remote Clockify
// state. A single owning goroutine runs both periodic refreshes and user
// actions, so a tick and an action never interleave; actions additionally
// suspend background refresh until they finish with a forced rebuild.
package tray

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	naturaldate "github.com/tj/go-naturaldate"
	"golang.org/x/sync/errgroup"

	"github.com/barakshechter/clockadoodledoo/internal/clockify"
)

// API is the slice of the Clockify client the controller uses.
type API interface {
	Workspaces(ctx context.Context) ([]clockify.Workspace, error)
	Projects(ctx context.Context, workspaceID string) ([]clockify.Project, error)
	RecentEntries(ctx context.Context, workspaceID, userID, projectID string) ([]clockify.TimeEntry, error)
	ActiveEntry(ctx context.Context, workspaceID, userID string, bypass bool) (*clockify.TimeEntry, error)
	StopCurrentEntry(ctx context.Context, workspaceID, userID string) (*clockify.TimeEntry, error)
	StartEntry(ctx context.Context, workspaceID, userID, projectID string) (*clockify.TimeEntry, error)
	UpdateActiveEntry(ctx context.Context, workspaceID, userID string, patch clockify.EntryPatch) (*clockify.TimeEntry, error)
	UpdateEntry(ctx context.Context, workspaceID string, entry clockify.TimeEntry, end time.Time) error
}

// Settings is the persisted workspace/user selection the controller reads on
// every refresh and writes when the user picks a workspace.
type Settings interface {
	WorkspaceID() string
	UserID() string
	SetWorkspace(id, name string) error
}

// Renderer is the write-only UI sink.
type Renderer interface {
	SetTitle(title string)
	SetMenu(items []MenuItem)
	ShowError(title, message, detail string)
}

// History records completed intervals locally. Optional.
type History interface {
	RecordInterval(entry clockify.TimeEntry, projectName string, end time.Time) error
}

// Options configure a Controller.
type Options struct {
	// MenuInterval is the full menu rebuild cadence; defaults to 5s.
	MenuInterval time.Duration
	// TitleInterval is the title-only refresh cadence; defaults to 1s.
	TitleInterval time.Duration
	History       History
	// Notify posts a desktop notification after a successful start/stop.
	Notify func(title, message string)
	// Quit is invoked by the menu's Exit item.
	Quit   func()
	Logger *slog.Logger
}

// minAdjustment guards against accidental micro-adjustments of the start time.
const minAdjustment = time.Minute

type Controller struct {
	client   API
	settings Settings
	renderer Renderer
	history  History
	notify   func(title, message string)
	quitFn   func()
	logger   *slog.Logger

	menuInterval  time.Duration
	titleInterval time.Duration

	actions chan func(context.Context)
	stop    chan struct{}
	stopped chan struct{}
	started bool

	// suspended pauses background ticks while a user action is in flight.
	// Only the run loop touches it.
	suspended bool
}

func New(client API, settings Settings, renderer Renderer, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	menuInterval := opts.MenuInterval
	if menuInterval <= 0 {
		menuInterval = 5 * time.Second
	}
	titleInterval := opts.TitleInterval
	if titleInterval <= 0 {
		titleInterval = time.Second
	}
	return &Controller{
		client:        client,
		settings:      settings,
		renderer:      renderer,
		history:       opts.History,
		notify:        opts.Notify,
		quitFn:        opts.Quit,
		logger:        logger,
		menuInterval:  menuInterval,
		titleInterval: titleInterval,
		actions:       make(chan func(context.Context), 16),
	}
}

// Start transitions the controller to running: one immediate refresh, then
// both tickers. Calling Start on a running controller is a no-op, so a user
// action's temporary stopped state can never double-arm the timers.
// Start and Stop must be called from the same goroutine.
func (c *Controller) Start(ctx context.Context) error {
	if c.started {
		return nil
	}
	c.started = true
	c.stop = make(chan struct{})
	c.stopped = make(chan struct{})
	go c.run(ctx)
	return nil
}

// Stop disarms both tickers and ends the run loop. Idempotent.
func (c *Controller) Stop() {
	if !c.started {
		return
	}
	c.started = false
	close(c.stop)
	<-c.stopped
}

// Running reports whether the controller's run loop is live.
func (c *Controller) Running() bool {
	return c.started
}

func (c *Controller) run(ctx context.Context) {
	defer close(c.stopped)

	titleTicker := time.NewTicker(c.titleInterval)
	defer titleTicker.Stop()
	menuTicker := time.NewTicker(c.menuInterval)
	defer menuTicker.Stop()

	c.refreshMenu(ctx, true)
	c.refreshTitle(ctx, true)

	for {
		select {
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		case fn := <-c.actions:
			fn(ctx)
		case <-titleTicker.C:
			c.refreshTitle(ctx, false)
		case <-menuTicker.C:
			c.refreshMenu(ctx, false)
		}
	}
}

// refreshTitle recomputes only the title string from the cached active entry
// and project list. Failures are logged and the next tick retries naturally.
func (c *Controller) refreshTitle(ctx context.Context, force bool) {
	if c.suspended && !force {
		return
	}

	workspaceID := c.settings.WorkspaceID()
	userID := c.settings.UserID()
	if workspaceID == "" || userID == "" {
		c.renderer.SetTitle("")
		return
	}

	entry, err := c.client.ActiveEntry(ctx, workspaceID, userID, false)
	if err != nil {
		c.logger.Warn("title refresh failed", "error", err)
		return
	}
	if entry == nil {
		c.renderer.SetTitle("")
		return
	}

	projects, err := c.client.Projects(ctx, workspaceID)
	if err != nil {
		c.logger.Warn("title refresh failed", "error", err)
		return
	}
	c.renderer.SetTitle(buildTitle(entry, projects, time.Now()))
}

// refreshMenu rebuilds the whole view model and re-renders the menu.
func (c *Controller) refreshMenu(ctx context.Context, force bool) {
	if c.suspended && !force {
		return
	}
	c.suspended = false

	snap, err := c.snapshot(ctx)
	if err != nil {
		c.logger.Warn("menu refresh failed", "error", err)
		return
	}
	c.renderer.SetMenu(c.buildMenu(snap, time.Now()))
}

func (c *Controller) snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		workspaces, err := c.client.Workspaces(ctx)
		if err != nil {
			return err
		}
		snap.Workspaces = workspaces
		return nil
	})

	workspaceID := c.settings.WorkspaceID()
	userID := c.settings.UserID()
	if workspaceID != "" {
		g.Go(func() error {
			projects, err := c.client.Projects(ctx, workspaceID)
			if err != nil {
				return err
			}
			snap.Projects = projects
			return nil
		})
		if userID != "" {
			g.Go(func() error {
				entry, err := c.client.ActiveEntry(ctx, workspaceID, userID, false)
				if err != nil {
					return err
				}
				snap.Active = entry
				return nil
			})
			g.Go(func() error {
				recent, err := c.client.RecentEntries(ctx, workspaceID, userID, "")
				if err != nil {
					return err
				}
				snap.Recent = recent
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// dispatch hands fn to the run loop. Never blocks the caller (typically the
// renderer's event loop); if the queue is full the action is dropped.
func (c *Controller) dispatch(fn func(context.Context)) {
	select {
	case c.actions <- fn:
	default:
		c.logger.Warn("user action dropped, controller busy")
	}
}

// action runs a user mutation with background refresh suspended, surfaces
// any failure as a user-visible error, and always resumes with a forced
// refresh of both the menu and the title regardless of the outcome.
func (c *Controller) action(errTitle string, fn func(context.Context) error) {
	c.dispatch(func(ctx context.Context) {
		c.suspended = true
		if err := fn(ctx); err != nil {
			c.logger.Error("user action failed", "action", errTitle, "error", err)
			c.renderer.ShowError(errTitle, err.Error(), errorDetail(err))
		}
		c.refreshMenu(ctx, true)
		c.refreshTitle(ctx, true)
	})
}

func errorDetail(err error) string {
	var apiErr *clockify.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Body
	}
	return ""
}

// StopTimer stops the running entry.
func (c *Controller) StopTimer() {
	c.action("Error stopping timer", c.stopTimer)
}

func (c *Controller) stopTimer(ctx context.Context) error {
	workspaceID := c.settings.WorkspaceID()
	userID := c.settings.UserID()

	prev, err := c.client.ActiveEntry(ctx, workspaceID, userID, false)
	if err != nil {
		return err
	}
	end := time.Now()

	if _, err := c.client.StopCurrentEntry(ctx, workspaceID, userID); err != nil {
		return err
	}

	if prev != nil {
		c.recordInterval(ctx, *prev, end)
		c.sendNotification("Timer stopped", prev.Description)
	}
	return nil
}

// StartProject stops any running entry and starts one on the given project.
func (c *Controller) StartProject(projectID string) {
	c.action("Error starting new time entry", func(ctx context.Context) error {
		return c.startProject(ctx, projectID)
	})
}

func (c *Controller) startProject(ctx context.Context, projectID string) error {
	workspaceID := c.settings.WorkspaceID()
	userID := c.settings.UserID()

	prev, err := c.client.ActiveEntry(ctx, workspaceID, userID, false)
	if err != nil {
		return err
	}
	end := time.Now()

	if _, err := c.client.StartEntry(ctx, workspaceID, userID, projectID); err != nil {
		return err
	}

	if prev != nil {
		c.recordInterval(ctx, *prev, end)
	}

	c.sendNotification("Timer started", c.projectName(ctx, projectID))
	return nil
}

// projectName resolves a project id through the cached project list, falling
// back to the id itself.
func (c *Controller) projectName(ctx context.Context, projectID string) string {
	projects, err := c.client.Projects(ctx, c.settings.WorkspaceID())
	if err != nil {
		return projectID
	}
	for _, p := range projects {
		if p.ID == projectID {
			return p.Name
		}
	}
	return projectID
}

// UpdateDescription sets the running entry's description.
func (c *Controller) UpdateDescription(description string) {
	c.action("Error updating time entry", func(ctx context.Context) error {
		_, err := c.client.UpdateActiveEntry(ctx, c.settings.WorkspaceID(), c.settings.UserID(),
			clockify.EntryPatch{Description: &description})
		return err
	})
}

// AdjustStartTime moves the running entry's start to newStart and extends
// the chained predecessor's end to match, keeping the timeline gap-free.
// Adjustments smaller than a minute are silently ignored.
func (c *Controller) AdjustStartTime(newStart time.Time) {
	c.action("Error adjusting start time", func(ctx context.Context) error {
		return c.adjustStartTime(ctx, newStart)
	})
}

func (c *Controller) adjustStartTime(ctx context.Context, newStart time.Time) error {
	workspaceID := c.settings.WorkspaceID()
	userID := c.settings.UserID()

	entry, err := c.client.ActiveEntry(ctx, workspaceID, userID, true)
	if err != nil {
		return err
	}
	if entry == nil {
		return clockify.ErrNoActiveEntry
	}

	delta := entry.TimeInterval.Start.Sub(newStart)
	if delta < 0 {
		delta = -delta
	}
	if delta < minAdjustment {
		c.logger.Debug("start adjustment below threshold, ignoring", "delta", delta)
		return nil
	}

	recent, err := c.client.RecentEntries(ctx, workspaceID, userID, "")
	if err != nil {
		return err
	}
	if prev := findPredecessor(recent, entry.TimeInterval.Start); prev != nil {
		if err := c.client.UpdateEntry(ctx, workspaceID, *prev, newStart); err != nil {
			return err
		}
	}

	start := newStart
	_, err = c.client.UpdateActiveEntry(ctx, workspaceID, userID, clockify.EntryPatch{Start: &start})
	return err
}

// AdjustStartTimeText parses free-form input like "10 minutes ago" or
// "9:30am" and adjusts the start to the parsed time.
func (c *Controller) AdjustStartTimeText(value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	parsed, err := naturaldate.Parse(value, time.Now(), naturaldate.WithDirection(naturaldate.Past))
	if err != nil {
		c.renderer.ShowError("Adjust Start Time", fmt.Sprintf("could not parse %q", value), err.Error())
		return
	}
	c.AdjustStartTime(parsed)
}

// SelectWorkspace persists the workspace selection and rebuilds the menu.
func (c *Controller) SelectWorkspace(id, name string) {
	c.action("Error selecting workspace", func(ctx context.Context) error {
		return c.settings.SetWorkspace(id, name)
	})
}

func (c *Controller) quit() {
	if c.quitFn != nil {
		c.quitFn()
	}
}

func (c *Controller) sendNotification(title, message string) {
	if c.notify != nil {
		c.notify(title, message)
	}
}

func (c *Controller) recordInterval(ctx context.Context, entry clockify.TimeEntry, end time.Time) {
	if c.history == nil {
		return
	}
	if err := c.history.RecordInterval(entry, c.projectName(ctx, entry.ProjectID), end); err != nil {
		c.logger.Warn("recording interval failed", "entry", entry.ID, "error", err)
	}
}
