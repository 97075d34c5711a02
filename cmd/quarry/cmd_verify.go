package main

import (
	"fmt"

	"github.com/quarry-vcs/quarry/pkg/repo"
	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check every stored object against its hash and checksums",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			report, err := r.Verify()
			if err != nil {
				return err
			}
			fmt.Fprintf(
				cmd.OutOrStdout(),
				"ok: %d loose object(s), %d packed object(s) in %d pack file(s)\n",
				report.LooseObjects,
				report.PackedObjects,
				report.PackFiles,
			)
			return nil
		},
	}
}
