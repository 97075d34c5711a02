package main

import (
	"fmt"

	"github.com/quarry-vcs/quarry/pkg/repo"
	"github.com/spf13/cobra"
)

func newRepackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repack",
		Short: "Pack loose objects into a pack file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			summary, err := r.Repack()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if summary.PackedObjects == 0 {
				fmt.Fprintln(out, "nothing to pack")
				return nil
			}
			fmt.Fprintf(
				out,
				"packed %d loose object(s) into pack-%s, pruned %d\n",
				summary.PackedObjects,
				summary.PackChecksum,
				summary.PrunedLoose,
			)
			return nil
		},
	}
}
