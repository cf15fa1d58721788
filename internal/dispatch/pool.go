package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/dropDatabas3/posbridge/internal/classify"
	"github.com/dropDatabas3/posbridge/internal/dedup"
	"github.com/dropDatabas3/posbridge/internal/domain"
	"github.com/dropDatabas3/posbridge/internal/journal"
	"github.com/dropDatabas3/posbridge/internal/metrics"
	"github.com/dropDatabas3/posbridge/internal/observability/logger"
	"github.com/dropDatabas3/posbridge/internal/payload"
	"github.com/dropDatabas3/posbridge/internal/token"
)

// FailureGate recibe los desenlaces terminales para decidir si alertar.
// Success resetea la racha de fallos consecutivos.
type FailureGate interface {
	Failure(ctx context.Context, subject, detail string)
	Success()
}

// NopGate para tests y para correr sin alertas configuradas.
type NopGate struct{}

func (NopGate) Failure(context.Context, string, string) {}
func (NopGate) Success()                                {}

// Stats del pool, para /status.
type Stats struct {
	Sent    uint64 `json:"sent"`
	Failed  uint64 `json:"failed"`
	Skipped uint64 `json:"skipped"`
}

// Pool corre el pipeline por transacción completada: clasificar, construir
// payload, dedup, enviar, archivar. N workers fijos; la cola desacopla la
// ingesta serial del dispatch con red de por medio.
type Pool struct {
	builder *payload.Builder
	disp    *Dispatcher
	seen    dedup.Store
	jour    journal.Journal
	gate    FailureGate
	log     *zap.Logger

	queue chan *domain.LogicalTransaction
	wg    sync.WaitGroup

	sent    atomic.Uint64
	failed  atomic.Uint64
	skipped atomic.Uint64
}

func NewPool(builder *payload.Builder, disp *Dispatcher, seen dedup.Store, jour journal.Journal, gate FailureGate) *Pool {
	if gate == nil {
		gate = NopGate{}
	}
	return &Pool{
		builder: builder,
		disp:    disp,
		seen:    seen,
		jour:    jour,
		gate:    gate,
		log:     logger.Named("pool"),
		queue:   make(chan *domain.LogicalTransaction, 1024),
	}
}

// Start lanza los workers. concurrency <= 0 cae a 2.
func (p *Pool) Start(ctx context.Context, concurrency int) {
	if concurrency <= 0 {
		concurrency = 2
	}
	// Los workers despachan sobre un contexto que sobrevive la señal de
	// shutdown: lo que quede encolado al drenar todavía tiene que salir
	// al API, no morir con context canceled.
	work := context.WithoutCancel(ctx)
	for i := 0; i < concurrency; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for tx := range p.queue {
				p.process(work, tx)
			}
		}()
	}
}

// Submit encola una transacción completada. Bloquea si la cola está llena:
// preferible frenar la lectura serial a perder transacciones.
func (p *Pool) Submit(tx *domain.LogicalTransaction) {
	p.queue <- tx
}

// Drain cierra la cola y espera que los workers terminen lo encolado.
func (p *Pool) Drain() {
	close(p.queue)
	p.wg.Wait()
}

func (p *Pool) Stats() Stats {
	return Stats{
		Sent:    p.sent.Load(),
		Failed:  p.failed.Load(),
		Skipped: p.skipped.Load(),
	}
}

func (p *Pool) process(ctx context.Context, tx *domain.LogicalTransaction) {
	kind := classify.Classify(tx)
	metrics.Classified.WithLabelValues(kind.String()).Inc()
	tx.Type = kind.String()

	if err := p.jour.SaveEvent(ctx, tx); err != nil {
		p.log.Error("journal event", logger.GUID(tx.GUID), zap.Error(err))
	}

	if kind == domain.KindVoidFull {
		// Un void total deja la orden sin contenido: nada que reportar.
		p.skip(tx, "transactions", "full void")
		return
	}

	pl, err := p.builder.Build(tx, kind)
	if err != nil {
		var verr *payload.ValidationError
		if errors.As(err, &verr) {
			metrics.PayloadValidationFailures.Inc()
			p.skip(tx, "transactions", verr.Reason)
			res := journal.Result{Kind: kind.String(), Body: verr.Reason}
			if jerr := p.jour.SaveResult(ctx, tx, nil, res); jerr != nil {
				p.log.Error("journal result", logger.GUID(tx.GUID), zap.Error(jerr))
			}
			return
		}
		p.log.Error("build payload", logger.GUID(tx.GUID), zap.Error(err))
		return
	}

	name, _ := p.disp.Endpoint(kind)

	if seen, err := p.seen.Seen(ctx, pl.GUID()); err != nil {
		// El registro de dedup caído no frena el envío: preferimos un
		// posible duplicado a perder la transacción.
		p.log.Warn("dedup lookup", logger.GUID(pl.GUID()), zap.Error(err))
	} else if seen {
		p.skipped.Add(1)
		metrics.DispatchOutcomes.WithLabelValues(name, "skipped").Inc()
		p.log.Info("duplicate suppressed", logger.GUID(pl.GUID()), logger.Kind(kind.String()))
		return
	}

	res, body, err := p.disp.Send(ctx, pl)
	if jerr := p.jour.SaveResult(ctx, tx, body, res); jerr != nil {
		p.log.Error("journal result", logger.GUID(tx.GUID), zap.Error(jerr))
	}

	if err == nil {
		p.sent.Add(1)
		if merr := p.seen.Mark(ctx, pl.GUID()); merr != nil {
			p.log.Warn("dedup mark", logger.GUID(pl.GUID()), zap.Error(merr))
		}
		p.gate.Success()
		return
	}

	p.failed.Add(1)
	p.log.Error("dispatch failed",
		logger.GUID(pl.GUID()), logger.Kind(kind.String()),
		logger.Endpoint(name), logger.Status(res.Status), zap.Error(err))

	var terr *TransientError
	var rerr *RejectedError
	var aerr *token.AuthError
	switch {
	case errors.As(err, &aerr):
		p.gate.Failure(ctx, "posbridge: auth failure", aerr.Error())
	case errors.As(err, &rerr):
		p.gate.Failure(ctx, "posbridge: payload rejected", rerr.Error()+"\n"+res.Body)
	case errors.As(err, &terr):
		p.gate.Failure(ctx, "posbridge: delivery exhausted", terr.Error())
	default:
		p.gate.Failure(ctx, "posbridge: dispatch error", err.Error())
	}
}

func (p *Pool) skip(tx *domain.LogicalTransaction, endpoint, reason string) {
	p.skipped.Add(1)
	metrics.DispatchOutcomes.WithLabelValues(endpoint, "skipped").Inc()
	p.log.Info("transaction skipped",
		logger.GUID(tx.GUID), logger.Seq(tx.Seq), zap.String("reason", reason))
}
