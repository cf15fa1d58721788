package logger

import (
	"time"

	"go.uber.org/zap"
)

// Campos estándar del pipeline POS. Mantener nombres consistentes
// para poder correlacionar logs entre componentes.

// GUID crea un campo para el GUID de la transacción.
func GUID(v string) zap.Field {
	return zap.String("guid", v)
}

// Channel crea un campo para el canal de ingesta (COM3, COM4, ...).
func Channel(v string) zap.Field {
	return zap.String("channel", v)
}

// Kind crea un campo para el tipo de transacción clasificado.
func Kind(v string) zap.Field {
	return zap.String("kind", v)
}

// Seq crea un campo para el número de secuencia del POS.
func Seq(v string) zap.Field {
	return zap.String("seq", v)
}

// Endpoint crea un campo para el endpoint remoto destino.
func Endpoint(v string) zap.Field {
	return zap.String("endpoint", v)
}

// Status crea un campo para el status code HTTP remoto.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Attempt crea un campo para el número de intento de envío.
func Attempt(v int) zap.Field {
	return zap.Int("attempt", v)
}

// Duration crea un campo para duraciones.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// Err crea un campo para errores.
func Err(err error) zap.Field {
	return zap.Error(err)
}
