// Package journal archiva cada transacción completada y el resultado de
// su envío, para auditoría y reproceso manual. Dos backends: filesystem
// (default, escrituras atómicas) y postgres.
package journal

import (
	"context"

	"github.com/dropDatabas3/posbridge/internal/domain"
)

// Result es el desenlace de un dispatch, tal como se archiva.
type Result struct {
	Sent     bool   `json:"sent"`
	Status   int    `json:"status"`
	Body     string `json:"body,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
	Kind     string `json:"kind"`
}

// Journal persiste eventos y resultados. Las implementaciones deben
// tolerar escrituras concurrentes desde los workers del pool.
type Journal interface {
	// SaveEvent archiva la transacción lógica al completarse.
	SaveEvent(ctx context.Context, tx *domain.LogicalTransaction) error
	// SaveResult archiva el payload enviado y el resultado.
	SaveResult(ctx context.Context, tx *domain.LogicalTransaction, payloadJSON []byte, res Result) error
	Close() error
}

// Nop descarta todo. Útil en tests y en el subcomando send.
type Nop struct{}

func (Nop) SaveEvent(context.Context, *domain.LogicalTransaction) error { return nil }
func (Nop) SaveResult(context.Context, *domain.LogicalTransaction, []byte, Result) error {
	return nil
}
func (Nop) Close() error { return nil }
