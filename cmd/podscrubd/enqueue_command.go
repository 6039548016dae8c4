package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"podscrub/internal/queue"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var (
		podcastID string
		guid      string
		priority  int
	)

	cmd := &cobra.Command{
		Use:   "enqueue <audio-url>",
		Short: "Queue one episode for processing",
		Long:  "Queues a manual, protected job for the given episode audio URL. Refused while the episode already has a pending or running job.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
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
			id, err := store.Enqueue(cmd.Context(), queue.NewJob{
				EpisodeGUID: guid,
				PodcastID:   podcastID,
				AudioURL:    audioURL,
				Priority:    priority,
				Reason:      queue.ReasonManual,
				Protected:   true,
			})
			if err != nil {
				if errors.Is(err, queue.ErrDuplicateActiveJob) {
					return fmt.Errorf("episode %s already has an active job", guid)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued job %d for %s\n", id, guid)
			return nil
		},
	}

	cmd.Flags().StringVar(&podcastID, "podcast", "", "Podcast identifier the episode belongs to")
	cmd.Flags().StringVar(&guid, "guid", "", "Episode GUID (defaults to the audio URL)")
	cmd.Flags().IntVar(&priority, "priority", 10, "Claim priority; higher runs first")
	_ = cmd.MarkFlagRequired("podcast")

	return cmd
}
