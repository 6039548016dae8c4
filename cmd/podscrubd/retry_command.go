package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"podscrub/internal/queue"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "retry [job-id]",
		Short: "Reset failed jobs to pending",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("specify either a job id or --all")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open queue store: %w", err)
			}
			defer store.Close()

			if all {
				count, err := store.RetryAllFailed(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reset %d failed job(s) to pending\n", count)
				return nil
			}

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			if err := store.ResetToPending(cmd.Context(), id); err != nil {
				switch {
				case errors.Is(err, queue.ErrJobNotFound):
					return fmt.Errorf("job %d not found", id)
				case errors.Is(err, queue.ErrNotRetryable):
					return fmt.Errorf("job %d is not failed; only failed jobs can be retried", id)
				default:
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %d reset to pending\n", id)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Reset every failed job")
	return cmd
}
