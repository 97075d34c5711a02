package main

import (
	"fmt"
	"time"

	"github.com/quarry-vcs/quarry/pkg/object"
	"github.com/quarry-vcs/quarry/pkg/odb"
	"github.com/quarry-vcs/quarry/pkg/repo"
	"github.com/spf13/cobra"
)

func newCommitTreeCmd() *cobra.Command {
	var (
		message    string
		parentStrs []string
		authorName string
		authorMail string
		signKey    string
		sign       bool
	)

	cmd := &cobra.Command{
		Use:   "commit-tree <tree-hash>",
		Short: "Create a commit object from an existing tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			tree, err := r.DB.LookupTree(object.Hash(args[0]))
			if err != nil {
				return err
			}

			parents := make([]*odb.Commit, 0, len(parentStrs))
			for _, p := range parentStrs {
				parent, err := r.DB.LookupCommit(object.Hash(p))
				if err != nil {
					return fmt.Errorf("parent %s: %w", p, err)
				}
				parents = append(parents, parent)
			}

			sig := object.Signature{
				Name:  authorName,
				Email: authorMail,
				When:  time.Now(),
			}

			var signer odb.CommitSigner
			if sign || signKey != "" {
				s, keyPath, err := newSSHCommitSigner(signKey)
				if err != nil {
					return err
				}
				signer = s
				fmt.Fprintf(cmd.ErrOrStderr(), "signing with %s\n", keyPath)
			}

			commit, err := r.DB.CreateCommitWithSigner(message, sig, sig, tree, parents, signer)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), commit.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringArrayVarP(&parentStrs, "parent", "p", nil, "parent commit hash (repeatable)")
	cmd.Flags().StringVar(&authorName, "author-name", "quarry", "author and committer name")
	cmd.Flags().StringVar(&authorMail, "author-email", "quarry@localhost", "author and committer email")
	cmd.Flags().BoolVarP(&sign, "sign", "s", false, "sign the commit with the default SSH key")
	cmd.Flags().StringVar(&signKey, "sign-key", "", "sign the commit with the given SSH private key")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}
