package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"podscrub/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue counts and in-progress jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open queue store: %w", err)
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("queue stats: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStats(stats))

			running, err := store.ListByStatus(cmd.Context(), queue.StatusRunning)
			if err != nil {
				return fmt.Errorf("list running jobs: %w", err)
			}
			failed, err := store.ListByStatus(cmd.Context(), queue.StatusFailed)
			if err != nil {
				return fmt.Errorf("list failed jobs: %w", err)
			}
			if len(running)+len(failed) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), renderJobs(append(running, failed...)))
			}
			return nil
		},
	}
}

func renderStats(stats queue.Stats) string {
	return renderTable(
		[]tableColumn{
			{title: "Waiting", right: true},
			{title: "Active", right: true},
			{title: "Completed", right: true},
			{title: "Failed", right: true},
		},
		[][]string{{
			strconv.Itoa(stats.Waiting),
			strconv.Itoa(stats.Active),
			strconv.Itoa(stats.Completed),
			strconv.Itoa(stats.Failed),
		}},
	)
}

func renderJobs(jobs []*queue.Job) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		detail := job.ProgressMessage
		if job.Status == queue.StatusFailed {
			detail = job.LastError
		}
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			job.PodcastID,
			truncate(job.EpisodeGUID, 40),
			string(job.Status),
			fmt.Sprintf("%.0f%%", job.Progress),
			strconv.Itoa(job.Attempts),
			truncate(detail, 60),
		})
	}
	return renderTable(
		[]tableColumn{
			{title: "ID", right: true},
			{title: "Podcast"},
			{title: "Episode"},
			{title: "Status"},
			{title: "Progress", right: true},
			{title: "Attempts", right: true},
			{title: "Detail"},
		},
		rows,
	)
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 3 || len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}
