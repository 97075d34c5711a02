package memory

import (
	"bytes"
	"errors"
	"testing"

	"github.com/quarry-vcs/quarry/pkg/object"
	"github.com/quarry-vcs/quarry/pkg/odb"
)

func TestWriteReadHas(t *testing.T) {
	b := New()
	data := []byte("in memory")

	wh, err := b.NewWriter(object.TypeBlob)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if _, err := wh.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	h, err := wh.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if h != object.HashObject(object.TypeBlob, data) {
		t.Error("hash mismatch")
	}

	if ok, _ := b.Has(h); !ok {
		t.Error("Has = false after commit")
	}
	gotType, gotData, err := b.Read(h)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if gotType != object.TypeBlob || !bytes.Equal(gotData, data) {
		t.Errorf("round-trip: (%q, %q)", gotType, gotData)
	}
}

func TestUncommittedInvisible(t *testing.T) {
	b := New()
	data := []byte("pending")
	wh, err := b.NewWriter(object.TypeBlob)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if _, err := wh.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}

	h := object.HashObject(object.TypeBlob, data)
	if ok, _ := b.Has(h); ok {
		t.Error("uncommitted object visible via Has")
	}
	if err := wh.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if b.Len() != 0 {
		t.Errorf("aborted write stored %d objects", b.Len())
	}
}

func TestReadMissing(t *testing.T) {
	b := New()
	_, _, err := b.Read(object.HashBytes([]byte("missing")))
	if !errors.Is(err, odb.ErrObjectNotFound) {
		t.Errorf("got %v, want ErrObjectNotFound", err)
	}
}

func TestReadReturnsCopy(t *testing.T) {
	b := New()
	wh, _ := b.NewWriter(object.TypeBlob)
	wh.Write([]byte("immutable"))
	h, err := wh.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	_, data, err := b.Read(h)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	data[0] = 'X'

	_, again, err := b.Read(h)
	if err != nil {
		t.Fatalf("Read again: %v", err)
	}
	if string(again) != "immutable" {
		t.Error("stored object mutated through a returned slice")
	}
}
