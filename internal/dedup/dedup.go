// Package dedup recuerda los GUIDs ya enviados con éxito. Un dispatch
// exitoso es terminal: la misma transacción nunca se envía dos veces.
package dedup

import "context"

// Store es la interfaz mínima del registro de enviados. Las entradas
// tienen TTL acotado: un GUID legítimo no puede reaparecer más tarde.
type Store interface {
	// Seen indica si el GUID ya fue enviado con éxito.
	Seen(ctx context.Context, guid string) (bool, error)
	// Mark registra el GUID como enviado.
	Mark(ctx context.Context, guid string) error
	Close() error
}
