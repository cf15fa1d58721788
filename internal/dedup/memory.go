package dedup

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Mem implementa Store en memoria. Suficiente para un bridge de un solo
// proceso; se pierde en el restart, por eso el GUID determinístico importa.
type Mem struct{ c *gocache.Cache }

// NewMemory crea el store en memoria con el TTL dado.
func NewMemory(ttl time.Duration) *Mem {
	return &Mem{c: gocache.New(ttl, 10*time.Minute)}
}

func (m *Mem) Seen(ctx context.Context, guid string) (bool, error) {
	_, ok := m.c.Get(guid)
	return ok, nil
}

func (m *Mem) Mark(ctx context.Context, guid string) error {
	m.c.Set(guid, struct{}{}, gocache.DefaultExpiration)
	return nil
}

func (m *Mem) Close() error { return nil }
