package dedup

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore(t *testing.T) {
	m := NewMemory(time.Hour)
	ctx := context.Background()

	seen, err := m.Seen(ctx, "g1")
	if err != nil || seen {
		t.Fatalf("fresh guid: seen=%v err=%v", seen, err)
	}
	if err := m.Mark(ctx, "g1"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	seen, err = m.Seen(ctx, "g1")
	if err != nil || !seen {
		t.Fatalf("marked guid: seen=%v err=%v", seen, err)
	}
	// Otro GUID no se ve afectado.
	if seen, _ := m.Seen(ctx, "g2"); seen {
		t.Fatal("unrelated guid reported as seen")
	}
}
