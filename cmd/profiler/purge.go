package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPurgeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete every stored profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, release, err := opts.storage()
			if err != nil {
				return err
			}
			defer release()

			if err := s.Purge(cmd.Context()); err != nil {
				return fmt.Errorf("purge: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "The profiler database was purged successfully.")
			return nil
		},
	}
}
