package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openclaw/mission-control/internal/store"
)

// ANSI color codes.
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorWhite  = "\033[37m"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Quick status overview",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	_, projects, err := st.ListProjects("", 1, 0, "")
	if err != nil {
		return err
	}
	_, tasks, err := st.ListTasks(store.TaskFilter{}, 1, 0, "")
	if err != nil {
		return err
	}

	stories, storyTotal, err := st.ListStories(store.StoryFilter{}, 100, 0, "")
	if err != nil {
		return err
	}

	if storyTotal == 0 && projects == 0 {
		fmt.Printf("Nothing tracked yet. Run: %smission-control serve%s and create a project.\n",
			colorCyan, colorReset)
		return nil
	}

	fmt.Printf("%s%d projects · %d stories · %d tasks%s\n", colorBold, projects, storyTotal, tasks, colorReset)

	statusColors := map[store.ItemStatus]string{
		store.StatusTodo:       colorWhite,
		store.StatusInProgress: colorBlue,
		store.StatusCodeReview: colorYellow,
		store.StatusVerify:     colorCyan,
		store.StatusDone:       colorGreen,
	}
	for _, s := range store.ItemStatuses() {
		_, count, err := st.ListStories(store.StoryFilter{Status: string(s)}, 1, 0, "")
		if err != nil {
			return err
		}
		fmt.Printf("  %-14s %s%d%s\n", string(s)+":", statusColors[s], count, colorReset)
	}

	var blocked []store.Story
	for _, s := range stories {
		if s.IsBlocked {
			blocked = append(blocked, s)
		}
	}
	if len(blocked) > 0 {
		fmt.Printf("\n%s⚠  Blocked stories:%s\n", colorRed+colorBold, colorReset)
		for _, s := range blocked {
			key := s.ID
			if s.Key != nil {
				key = *s.Key
			}
			reason := ""
			if s.BlockedReason != nil {
				reason = ": " + *s.BlockedReason
			}
			fmt.Printf("  %s%s%s%s\n", colorYellow, key, colorReset, reason)
		}
	}

	metrics, requests, err := st.TelemetryCounts()
	if err != nil {
		return err
	}
	last, err := st.LatestImport()
	if err != nil {
		return err
	}
	fmt.Printf("\n%sTelemetry:%s %d daily metrics, %d requests", colorBold, colorReset, metrics, requests)
	if last != nil {
		fmt.Printf("  %slast import #%d %s%s", colorDim, last.ID, last.Status, colorReset)
	}
	fmt.Println()

	return nil
}
