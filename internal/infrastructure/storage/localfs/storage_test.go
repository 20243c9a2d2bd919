package localfs

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestSaveAndOpenRoundTrip(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if err := storage.Save(ctx, "item1_pedido.pdf", strings.NewReader("%PDF-1.4")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reader, err := storage.Open(ctx, "item1_pedido.pdf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(raw) != "%PDF-1.4" {
		t.Errorf("content = %q", raw)
	}
}

func TestOpenMissingKey(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := storage.Open(context.Background(), "absent"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestRejectsEscapingKeys(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	for _, key := range []string{"../outside", "a/../../b", "/etc/passwd", "."} {
		if err := storage.Save(ctx, key, strings.NewReader("x")); err == nil {
			t.Errorf("key %q must be rejected", key)
		}
		if _, err := storage.Open(ctx, key); err == nil {
			t.Errorf("key %q must be rejected on open", key)
		}
	}
}
