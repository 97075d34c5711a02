package main

import (
	"fmt"

	"github.com/quarry-vcs/quarry/pkg/object"
	"github.com/quarry-vcs/quarry/pkg/repo"
	"github.com/spf13/cobra"
)

func newCatFileCmd() *cobra.Command {
	var typeOnly bool

	cmd := &cobra.Command{
		Use:   "cat-file <hash>",
		Short: "Print a stored object's content or type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			objType, data, err := r.DB.Read(object.Hash(args[0]))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if typeOnly {
				fmt.Fprintln(out, objType)
				return nil
			}
			_, err = out.Write(data)
			return err
		},
	}

	cmd.Flags().BoolVarP(&typeOnly, "type", "t", false, "print the object type instead of its content")
	return cmd
}
