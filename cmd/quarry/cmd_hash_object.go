package main

import (
	"fmt"

	"github.com/quarry-vcs/quarry/pkg/repo"
	"github.com/spf13/cobra"
)

func newHashObjectCmd() *cobra.Command {
	var useStdin bool

	cmd := &cobra.Command{
		Use:   "hash-object [path]",
		Short: "Store a file as a blob and print its hash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if useStdin == (len(args) == 1) {
				return fmt.Errorf("provide exactly one of a path or --stdin")
			}

			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if useStdin {
				blob, err := r.DB.CreateBlobFromStream(ctx, cmd.InOrStdin(), "stdin")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), blob.ID)
				return nil
			}

			blob, err := r.DB.CreateBlobFromPath(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), blob.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&useStdin, "stdin", false, "read the blob content from standard input")
	return cmd
}
