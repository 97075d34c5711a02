package main

import (
	"fmt"

	"github.com/quarry-vcs/quarry/pkg/object"
	"github.com/quarry-vcs/quarry/pkg/repo"
	"github.com/spf13/cobra"
)

func newExistsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exists <hash>",
		Short: "Check whether an object is stored in any backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			h := object.Hash(args[0])
			if !r.DB.Contains(h) {
				return fmt.Errorf("object %s not found", h)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s exists\n", h)
			return nil
		},
	}
}
