package odb

import (
	"fmt"
	"strings"

	"github.com/quarry-vcs/quarry/pkg/object"
)

// CommitSigner signs canonical commit payload bytes and returns an encoded
// signature string persisted in the commit header.
type CommitSigner func(payload []byte) (string, error)

// composeCommit validates inputs, normalizes the message, and serializes the
// commit in fixed field order (tree, parents in given order, author,
// committer, message). Callers pass materialized entities rather than raw
// hashes so every reference has already round-tripped through a backend.
func (db *Database) composeCommit(message string, author, committer object.Signature, tree *Tree, parents []*Commit, signer CommitSigner) (object.Hash, error) {
	if message == "" {
		return "", fmt.Errorf("%w: commit message is required", ErrInvalidArgument)
	}
	if author.IsZero() {
		return "", fmt.Errorf("%w: commit author is required", ErrInvalidArgument)
	}
	if committer.IsZero() {
		return "", fmt.Errorf("%w: commit committer is required", ErrInvalidArgument)
	}
	if err := checkIdentity("author", author); err != nil {
		return "", err
	}
	if err := checkIdentity("committer", committer); err != nil {
		return "", err
	}
	if tree == nil {
		return "", fmt.Errorf("%w: commit tree is required", ErrInvalidArgument)
	}
	if parents == nil {
		return "", fmt.Errorf("%w: parents must be non-nil (a root commit passes an empty slice)", ErrInvalidArgument)
	}

	parentHashes := make([]object.Hash, 0, len(parents))
	for i, p := range parents {
		if p == nil {
			return "", fmt.Errorf("%w: parent %d is nil", ErrInvalidArgument, i)
		}
		parentHashes = append(parentHashes, p.ID)
	}

	commitObj := &object.CommitObj{
		TreeHash:  tree.ID,
		Parents:   parentHashes,
		Author:    author,
		Committer: committer,
		Message:   object.PrettifyMessage(message),
	}
	if signer != nil {
		sig, err := signer(object.CommitSigningPayload(commitObj))
		if err != nil {
			return "", fmt.Errorf("sign commit: %w", err)
		}
		commitObj.Signature = sig
	}

	return db.writeBytes(object.TypeCommit, object.MarshalCommit(commitObj))
}

// checkIdentity rejects names and emails that cannot survive the author
// line format: angle brackets delimit the email and a newline ends the
// header line, so neither may appear inside the fields.
func checkIdentity(role string, sig object.Signature) error {
	if strings.ContainsAny(sig.Name, "<>\n") {
		return fmt.Errorf("%w: %s name %q contains reserved characters", ErrInvalidArgument, role, sig.Name)
	}
	if strings.ContainsAny(sig.Email, "<>\n") {
		return fmt.Errorf("%w: %s email %q contains reserved characters", ErrInvalidArgument, role, sig.Email)
	}
	return nil
}
