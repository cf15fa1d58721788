// Package alert notifica por email cuando el bridge acumula fallos de
// envío consecutivos. El Gate evita spamear: una alerta al cruzar el
// umbral, silencio hasta que un éxito resetee la racha.
package alert

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/dropDatabas3/posbridge/internal/observability/logger"
)

// Sender entrega una notificación. La implementación real es SMTP.
type Sender interface {
	Send(ctx context.Context, subject, body string) error
}

// Gate cuenta fallos terminales consecutivos y dispara el Sender al
// cruzar el umbral. Implementa dispatch.FailureGate.
type Gate struct {
	sender    Sender
	threshold int
	log       *zap.Logger

	mu       sync.Mutex
	streak   int
	notified bool
}

// NewGate crea el gate. threshold <= 0 cae a 3.
func NewGate(sender Sender, threshold int) *Gate {
	if threshold <= 0 {
		threshold = 3
	}
	return &Gate{
		sender:    sender,
		threshold: threshold,
		log:       logger.Named("alert"),
	}
}

func (g *Gate) Failure(ctx context.Context, subject, detail string) {
	g.mu.Lock()
	g.streak++
	fire := g.streak >= g.threshold && !g.notified
	if fire {
		g.notified = true
	}
	streak := g.streak
	g.mu.Unlock()

	if !fire {
		return
	}
	g.log.Warn("failure threshold crossed, alerting", zap.Int("streak", streak))
	if err := g.sender.Send(ctx, subject, detail); err != nil {
		g.log.Error("alert delivery failed", zap.Error(err))
		// Se reintentará con el próximo fallo.
		g.mu.Lock()
		g.notified = false
		g.mu.Unlock()
	}
}

func (g *Gate) Success() {
	g.mu.Lock()
	g.streak = 0
	g.notified = false
	g.mu.Unlock()
}

// Streak expone la racha actual (para /status).
func (g *Gate) Streak() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.streak
}
