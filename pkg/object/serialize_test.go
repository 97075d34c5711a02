package object

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func testSignature() Signature {
	return Signature{
		Name:  "Test User",
		Email: "test@example.com",
		When:  time.Unix(1700000000, 0).In(time.FixedZone("-0700", -7*3600)),
	}
}

func TestBlobRoundTrip(t *testing.T) {
	orig := &Blob{Data: []byte("blob content\nwith newlines")}
	got, err := UnmarshalBlob(MarshalBlob(orig))
	if err != nil {
		t.Fatalf("UnmarshalBlob: %v", err)
	}
	if !bytes.Equal(got.Data, orig.Data) {
		t.Errorf("Blob round-trip: got %q, want %q", got.Data, orig.Data)
	}
}

func TestMarshalTreeCanonicalOrder(t *testing.T) {
	tr := &TreeObj{
		Entries: []TreeEntry{
			{Name: "zeta", TargetHash: Hash(strings.Repeat("a", 64))},
			{Name: "alpha", TargetHash: Hash(strings.Repeat("b", 64))},
		},
	}
	data := MarshalTree(tr)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if !strings.HasSuffix(lines[0], " alpha") || !strings.HasSuffix(lines[1], " zeta") {
		t.Errorf("entries not sorted: %q", lines)
	}
}

func TestMarshalTreeDirPrefixTieBreak(t *testing.T) {
	// "sub" as a directory compares as "sub/", so it sorts after "sub.go"
	// and before "sub0". A plain name sort would put "sub" first.
	tr := &TreeObj{
		Entries: []TreeEntry{
			{Name: "sub0", TargetHash: Hash(strings.Repeat("a", 64))},
			{Name: "sub", IsDir: true, TargetHash: Hash(strings.Repeat("b", 64))},
			{Name: "sub.go", TargetHash: Hash(strings.Repeat("c", 64))},
		},
	}
	data := MarshalTree(tr)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	wantOrder := []string{" sub.go", " sub", " sub0"}
	for i, suffix := range wantOrder {
		if !strings.HasSuffix(lines[i], suffix) {
			t.Fatalf("line %d: got %q, want suffix %q", i, lines[i], suffix)
		}
	}
}

func TestMarshalTreeDeterministicAcrossInputOrder(t *testing.T) {
	a := &TreeObj{Entries: []TreeEntry{
		{Name: "x", TargetHash: Hash(strings.Repeat("1", 64))},
		{Name: "y", IsDir: true, TargetHash: Hash(strings.Repeat("2", 64))},
	}}
	b := &TreeObj{Entries: []TreeEntry{
		{Name: "y", IsDir: true, TargetHash: Hash(strings.Repeat("2", 64))},
		{Name: "x", TargetHash: Hash(strings.Repeat("1", 64))},
	}}
	if !bytes.Equal(MarshalTree(a), MarshalTree(b)) {
		t.Error("identical logical trees serialized differently")
	}
}

func TestTreeRoundTrip(t *testing.T) {
	orig := &TreeObj{
		Entries: []TreeEntry{
			{Name: "main.go", Mode: TreeModeFile, TargetHash: Hash(strings.Repeat("a", 64))},
			{Name: "pkg", IsDir: true, TargetHash: Hash(strings.Repeat("c", 64))},
			{Name: "run.sh", Mode: TreeModeExecutable, TargetHash: Hash(strings.Repeat("d", 64))},
		},
	}
	got, err := UnmarshalTree(MarshalTree(orig))
	if err != nil {
		t.Fatalf("UnmarshalTree: %v", err)
	}
	if len(got.Entries) != 3 {
		t.Fatalf("Entries length: got %d, want 3", len(got.Entries))
	}
	if !got.Entries[1].IsDir || got.Entries[1].Mode != TreeModeDir {
		t.Errorf("dir entry not preserved: %+v", got.Entries[1])
	}
	if got.Entries[2].Mode != TreeModeExecutable {
		t.Errorf("executable mode not preserved: %+v", got.Entries[2])
	}
}

func TestUnmarshalTreeEmpty(t *testing.T) {
	tr, err := UnmarshalTree(nil)
	if err != nil {
		t.Fatalf("UnmarshalTree(nil): %v", err)
	}
	if len(tr.Entries) != 0 {
		t.Errorf("empty tree has %d entries", len(tr.Entries))
	}
}

func TestTreeNameWithSpacesRoundTrip(t *testing.T) {
	orig := &TreeObj{
		Entries: []TreeEntry{
			{Name: "my file.txt", Mode: TreeModeFile, TargetHash: Hash(strings.Repeat("a", 64))},
			{Name: "release notes", IsDir: true, TargetHash: Hash(strings.Repeat("b", 64))},
		},
	}
	got, err := UnmarshalTree(MarshalTree(orig))
	if err != nil {
		t.Fatalf("UnmarshalTree: %v", err)
	}
	if len(got.Entries) != 2 {
		t.Fatalf("Entries length: got %d, want 2", len(got.Entries))
	}
	if got.Entries[0].Name != "my file.txt" || got.Entries[0].TargetHash != orig.Entries[0].TargetHash {
		t.Errorf("file entry not preserved: %+v", got.Entries[0])
	}
	if got.Entries[1].Name != "release notes" || !got.Entries[1].IsDir {
		t.Errorf("dir entry not preserved: %+v", got.Entries[1])
	}
}

func TestUnmarshalTreeMalformed(t *testing.T) {
	if _, err := UnmarshalTree([]byte("just-a-name\n")); err == nil {
		t.Error("malformed tree entry accepted")
	}
	if _, err := UnmarshalTree([]byte("99999 " + strings.Repeat("a", 64) + " name\n")); err == nil {
		t.Error("unknown mode accepted")
	}
	if _, err := UnmarshalTree([]byte("100644 " + strings.Repeat("a", 64) + " \n")); err == nil {
		t.Error("empty name accepted")
	}
}

func TestCommitRoundTrip(t *testing.T) {
	orig := &CommitObj{
		TreeHash:  Hash(strings.Repeat("a", 64)),
		Parents:   []Hash{Hash(strings.Repeat("b", 64)), Hash(strings.Repeat("c", 64))},
		Author:    testSignature(),
		Committer: testSignature(),
		Message:   "test commit\n\nWith details.\n",
	}
	got, err := UnmarshalCommit(MarshalCommit(orig))
	if err != nil {
		t.Fatalf("UnmarshalCommit: %v", err)
	}
	if got.TreeHash != orig.TreeHash {
		t.Errorf("TreeHash mismatch")
	}
	if len(got.Parents) != 2 || got.Parents[0] != orig.Parents[0] || got.Parents[1] != orig.Parents[1] {
		t.Errorf("Parents mismatch: %v", got.Parents)
	}
	if got.Author.Format() != orig.Author.Format() {
		t.Errorf("Author: got %q, want %q", got.Author.Format(), orig.Author.Format())
	}
	if got.Message != orig.Message {
		t.Errorf("Message: got %q, want %q", got.Message, orig.Message)
	}
}

func TestCommitRootHasNoParentLines(t *testing.T) {
	c := &CommitObj{
		TreeHash:  Hash(strings.Repeat("a", 64)),
		Author:    testSignature(),
		Committer: testSignature(),
		Message:   "root\n",
	}
	data := MarshalCommit(c)
	if strings.Contains(string(data), "parent ") {
		t.Errorf("root commit serialized a parent line: %q", data)
	}
	got, err := UnmarshalCommit(data)
	if err != nil {
		t.Fatalf("UnmarshalCommit: %v", err)
	}
	if len(got.Parents) != 0 {
		t.Errorf("root commit round-tripped with %d parents", len(got.Parents))
	}
}

func TestCommitSignatureExcludedFromSigningPayload(t *testing.T) {
	c := &CommitObj{
		TreeHash:  Hash(strings.Repeat("a", 64)),
		Author:    testSignature(),
		Committer: testSignature(),
		Message:   "signed\n",
	}
	payload := CommitSigningPayload(c)
	c.Signature = "sshsig-v1:ssh-ed25519:AAAA:BBBB"
	if !bytes.Equal(payload, CommitSigningPayload(c)) {
		t.Error("signing payload changed when signature was set")
	}
	if !strings.Contains(string(MarshalCommit(c)), "signature ") {
		t.Error("signature missing from serialized commit")
	}
}

func TestTagRoundTrip(t *testing.T) {
	orig := &TagObj{
		TargetHash: Hash(strings.Repeat("e", 64)),
		TargetType: TypeCommit,
		Name:       "v1.0.0",
		Tagger:     testSignature(),
		Message:    "release\n",
	}
	got, err := UnmarshalTag(MarshalTag(orig))
	if err != nil {
		t.Fatalf("UnmarshalTag: %v", err)
	}
	if got.TargetHash != orig.TargetHash || got.TargetType != orig.TargetType || got.Name != orig.Name {
		t.Errorf("tag header mismatch: %+v", got)
	}
	if got.Message != orig.Message {
		t.Errorf("tag message: got %q, want %q", got.Message, orig.Message)
	}
}

func TestPrettifyMessage(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   \n\t\n", ""},
		{"msg", "msg\n"},
		{"msg\n", "msg\n"},
		{"msg\n\n\n", "msg\n"},
		{"msg   \t\n", "msg\n"},
		{"subject\n\nbody\n", "subject\n\nbody\n"},
	}
	for _, c := range cases {
		if got := PrettifyMessage(c.in); got != c.want {
			t.Errorf("PrettifyMessage(%q): got %q, want %q", c.in, got, c.want)
		}
	}
}

func TestPrettifyMessageIdempotent(t *testing.T) {
	inputs := []string{"", "a", "a\n", "a\n\n", "a \t\r\n", "a\n\nb\n\n\n"}
	for _, in := range inputs {
		once := PrettifyMessage(in)
		if twice := PrettifyMessage(once); twice != once {
			t.Errorf("not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
}
