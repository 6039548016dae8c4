package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"podscrub/internal/deps"
	"podscrub/internal/logging"
	"podscrub/internal/pipeline"
	"podscrub/internal/queue"
	"podscrub/internal/scheduler"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var (
		podcastID string
		guid      string
	)

	cmd := &cobra.Command{
		Use:   "process <audio-url>",
		Short: "Process one episode synchronously",
		Long:  "Queues a manual, protected job for the episode and runs the full pipeline in the foreground, reporting the terminal state.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := deps.MissingRequired(deps.CheckBinaries(deps.ForConfig(cfg))); err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Writer: cmd.ErrOrStderr(),
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open queue store: %w", err)
			}
			defer store.Close()

			audioURL := args[0]
			if guid == "" {
				guid = audioURL
			}

			orch := pipeline.New(cfg, store, logger)
			sched := scheduler.New(cfg, store, orch, logger)
			job, err := sched.ProcessEpisode(cmd.Context(), queue.NewJob{
				EpisodeGUID: guid,
				PodcastID:   podcastID,
				AudioURL:    audioURL,
				Reason:      queue.ReasonManual,
				Protected:   true,
			})
			if err != nil {
				switch {
				case errors.Is(err, queue.ErrDuplicateActiveJob):
					return fmt.Errorf("episode %s already has an active job", guid)
				case errors.Is(err, queue.ErrClaimConflict):
					return fmt.Errorf("episode %s was claimed by a running daemon; use 'status' to follow it", guid)
				default:
					return err
				}
			}

			switch job.Status {
			case queue.StatusCompleted:
				fmt.Fprintf(cmd.OutOrStdout(), "job %d completed for %s\n", job.ID, guid)
				return nil
			case queue.StatusFailed:
				return fmt.Errorf("job %d failed: %s", job.ID, job.LastError)
			default:
				return fmt.Errorf("job %d ended in unexpected state %s", job.ID, job.Status)
			}
		},
	}

	cmd.Flags().StringVar(&podcastID, "podcast", "", "Podcast identifier the episode belongs to")
	cmd.Flags().StringVar(&guid, "guid", "", "Episode GUID (defaults to the audio URL)")
	_ = cmd.MarkFlagRequired("podcast")

	return cmd
}
