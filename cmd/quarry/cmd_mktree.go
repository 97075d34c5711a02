package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/quarry-vcs/quarry/pkg/object"
	"github.com/quarry-vcs/quarry/pkg/odb"
	"github.com/quarry-vcs/quarry/pkg/repo"
	"github.com/spf13/cobra"
)

func newMktreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mktree",
		Short: "Build a tree from '<blob-hash> <path>' lines on standard input",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			root := odb.NewTreeDefinition()
			subtrees := map[string]*odb.TreeDefinition{"": root}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			lineNo := 0
			for scanner.Scan() {
				lineNo++
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				hashStr, path, ok := strings.Cut(line, " ")
				if !ok {
					return fmt.Errorf("line %d: expected '<blob-hash> <path>'", lineNo)
				}
				path = strings.TrimSpace(path)

				def, name, err := subtreeFor(subtrees, path)
				if err != nil {
					return fmt.Errorf("line %d: %w", lineNo, err)
				}
				def.AddBlob(name, object.Hash(hashStr))
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			tree, err := r.DB.CreateTree(root)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tree.ID)
			return nil
		},
	}
}

// subtreeFor walks the directory components of path, creating nested tree
// definitions on first use, and returns the definition holding the leaf
// together with the leaf name.
func subtreeFor(subtrees map[string]*odb.TreeDefinition, path string) (*odb.TreeDefinition, string, error) {
	dir, name := "", path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		dir, name = path[:i], path[i+1:]
	}
	if name == "" {
		return nil, "", fmt.Errorf("path %q has no file name", path)
	}

	if def, ok := subtrees[dir]; ok {
		return def, name, nil
	}

	parent, dirName, err := subtreeFor(subtrees, dir)
	if err != nil {
		return nil, "", err
	}
	def := parent.AddTree(dirName)
	subtrees[dir] = def
	return def, name, nil
}
