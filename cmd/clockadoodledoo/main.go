package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/spf13/cobra"

	"github.com/barakshechter/clockadoodledoo/internal/cache"
	"github.com/barakshechter/clockadoodledoo/internal/clockify"
	"github.com/barakshechter/clockadoodledoo/internal/config"
	"github.com/barakshechter/clockadoodledoo/internal/settings"
	"github.com/barakshechter/clockadoodledoo/internal/store"
	"github.com/barakshechter/clockadoodledoo/internal/tray"
	"github.com/barakshechter/clockadoodledoo/internal/tui"
)

var debug bool

var rootCmd = &cobra.Command{
	Use:   "clockadoodledoo",
	Short: "Clockify timer in your terminal",
	Long:  "clockadoodledoo mirrors your Clockify timer into a live menu: start, stop, switch projects and adjust start times without opening a browser.",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the timer menu",
	RunE:  runRun,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show today's tracked intervals",
	RunE:  runStatus,
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List Clockify projects in the selected workspace",
	RunE:  runProjects,
}

var recentCount int

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List your most recent Clockify time entries",
	RunE:  runRecent,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Open config file in your editor",
	RunE:  runConfig,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	recentCmd.Flags().IntVarP(&recentCount, "count", "n", 10, "Number of entries to list")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(recentCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.Clockify.APIKey == "" {
		return nil, fmt.Errorf("clockify API key not configured — run 'clockadoodledoo config' or set CLOCKIFY_API_KEY")
	}
	return cfg, nil
}

// newLogger logs to a file inside the config dir so slog output doesn't fight
// the terminal UI for the screen.
func newLogger() (*slog.Logger, func(), error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, "clockadoodledoo.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return logger, func() { f.Close() }, nil
}

// historyRecorder adapts the sqlite store to the controller's History hook.
type historyRecorder struct {
	db *store.DB
}

func (h historyRecorder) RecordInterval(entry clockify.TimeEntry, projectName string, end time.Time) error {
	_, err := h.db.InsertInterval(&store.Interval{
		ClockifyID:  entry.ID,
		ProjectID:   entry.ProjectID,
		ProjectName: projectName,
		Description: entry.Description,
		StartTime:   entry.TimeInterval.Start,
		EndTime:     end,
		Minutes:     int(end.Sub(entry.TimeInterval.Start).Minutes()),
	})
	return err
}

func openSettings() (*settings.Store, error) {
	path, err := settings.DefaultPath()
	if err != nil {
		return nil, err
	}
	return settings.Open(path)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	sel, err := openSettings()
	if err != nil {
		return fmt.Errorf("opening settings: %w", err)
	}

	db, err := store.Open()
	if err != nil {
		return fmt.Errorf("opening history database: %w", err)
	}
	defer db.Close()

	memo := cache.New(30 * time.Second)
	defer memo.Close()
	client := clockify.NewClient(cfg.Clockify.APIKey, cfg.Clockify.BaseURL, memo, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Selections belong to the key's owner; a new key means a fresh start.
	user, err := client.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("getting user info: %w", err)
	}
	if sel.UserID() != user.ID {
		if err := sel.Reset(); err != nil {
			return fmt.Errorf("resetting settings: %w", err)
		}
		if err := sel.SetUser(user.ID, user.Name); err != nil {
			return fmt.Errorf("saving user: %w", err)
		}
	}

	renderer := tui.NewRenderer()

	var notify func(title, message string)
	if cfg.Notifications.Enabled {
		notify = func(title, message string) {
			if err := beeep.Notify(title, message, ""); err != nil {
				logger.Warn("notification failed", "error", err)
			}
		}
	}

	controller := tray.New(client, sel, renderer, tray.Options{
		MenuInterval:  time.Duration(cfg.Refresh.MenuIntervalSeconds) * time.Second,
		TitleInterval: time.Duration(cfg.Refresh.TitleIntervalSeconds) * time.Second,
		History:       historyRecorder{db: db},
		Notify:        notify,
		Quit:          renderer.Quit,
		Logger:        logger,
	})

	if err := controller.Start(ctx); err != nil {
		return err
	}
	defer controller.Stop()

	go func() {
		<-ctx.Done()
		renderer.Quit()
	}()

	if err := renderer.Run(); err != nil {
		return fmt.Errorf("running terminal UI: %w", err)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	db, err := store.Open()
	if err != nil {
		return fmt.Errorf("opening history database: %w", err)
	}
	defer db.Close()

	intervals, err := db.GetTodayIntervals()
	if err != nil {
		return fmt.Errorf("fetching today's intervals: %w", err)
	}

	if len(intervals) == 0 {
		fmt.Println("No intervals tracked today.")
		return nil
	}

	totalMinutes := 0
	fmt.Println("Today's intervals:")
	fmt.Println()
	for _, iv := range intervals {
		fmt.Printf("  %s–%s  %dmin  %-20s  %s\n",
			iv.StartTime.Local().Format("15:04"),
			iv.EndTime.Local().Format("15:04"),
			iv.Minutes,
			iv.ProjectName,
			iv.Description,
		)
		totalMinutes += iv.Minutes
	}

	fmt.Printf("\nTotal: %dh %dmin (%d intervals)\n", totalMinutes/60, totalMinutes%60, len(intervals))
	return nil
}

func runProjects(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sel, err := openSettings()
	if err != nil {
		return fmt.Errorf("opening settings: %w", err)
	}

	memo := cache.New(30 * time.Second)
	defer memo.Close()
	client := clockify.NewClient(cfg.Clockify.APIKey, cfg.Clockify.BaseURL, memo, nil)
	ctx := context.Background()

	workspaceID := sel.WorkspaceID()
	workspaceName := sel.WorkspaceName()
	if workspaceID == "" {
		user, err := client.CurrentUser(ctx)
		if err != nil {
			return fmt.Errorf("getting user info: %w", err)
		}
		workspaceID = user.DefaultWorkspace
		workspaceName = ""
	}

	projects, err := client.Projects(ctx, workspaceID)
	if err != nil {
		return fmt.Errorf("fetching projects: %w", err)
	}

	if len(projects) == 0 {
		fmt.Println("No projects found.")
		return nil
	}

	if workspaceName != "" {
		fmt.Printf("Found %d projects in %s:\n\n", len(projects), workspaceName)
	} else {
		fmt.Printf("Found %d projects:\n\n", len(projects))
	}
	for _, p := range projects {
		fmt.Printf("  %s  %s (%s)\n", p.ID, p.Name, p.ClientName)
	}

	return nil
}

func runRecent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sel, err := openSettings()
	if err != nil {
		return fmt.Errorf("opening settings: %w", err)
	}

	memo := cache.New(30 * time.Second)
	defer memo.Close()
	client := clockify.NewClient(cfg.Clockify.APIKey, cfg.Clockify.BaseURL, memo, nil)
	ctx := context.Background()

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("getting user info: %w", err)
	}
	workspaceID := sel.WorkspaceID()
	if workspaceID == "" {
		workspaceID = user.DefaultWorkspace
	}

	entries, err := client.LastEntries(ctx, workspaceID, user.ID, recentCount)
	if err != nil {
		return fmt.Errorf("fetching recent entries: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("No recent entries.")
		return nil
	}

	projects, err := client.Projects(ctx, workspaceID)
	if err != nil {
		return fmt.Errorf("fetching projects: %w", err)
	}
	names := make(map[string]string, len(projects))
	for _, p := range projects {
		names[p.ID] = p.Name
	}

	for _, e := range entries {
		end := "running"
		if e.TimeInterval.End != nil {
			end = e.TimeInterval.End.Local().Format("15:04")
		}
		fmt.Printf("  %s %s–%s  %-20s  %s\n",
			e.TimeInterval.Start.Local().Format("2006-01-02"),
			e.TimeInterval.Start.Local().Format("15:04"),
			end,
			names[e.ProjectID],
			e.Description,
		)
	}
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		data := fmt.Sprintf(`[clockify]
api_key = "%s"
base_url = "%s"

[refresh]
menu_interval_seconds = %d
title_interval_seconds = %d

[notifications]
enabled = %t
`,
			cfg.Clockify.APIKey,
			cfg.Clockify.BaseURL,
			cfg.Refresh.MenuIntervalSeconds,
			cfg.Refresh.TitleIntervalSeconds,
			cfg.Notifications.Enabled,
		)
		if err := os.WriteFile(configPath, []byte(data), 0644); err != nil {
			return fmt.Errorf("writing default config: %w", err)
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	fmt.Printf("Opening %s with %s...\n", configPath, editor)

	proc := os.ProcAttr{
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
	}
	process, err := os.StartProcess(editor, []string{editor, configPath}, &proc)
	if err != nil {
		fmt.Printf("Could not open editor. Config file is at: %s\n", configPath)
		return nil
	}
	_, err = process.Wait()
	return err
}
