// Package dispatch envía los payloads al Data API: selección de endpoint
// por kind, bearer cacheado, reintentos con backoff exponencial y un pool
// de workers que corre el pipeline completo por transacción.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/dropDatabas3/posbridge/internal/domain"
	"github.com/dropDatabas3/posbridge/internal/journal"
	"github.com/dropDatabas3/posbridge/internal/metrics"
	"github.com/dropDatabas3/posbridge/internal/observability/logger"
	"github.com/dropDatabas3/posbridge/internal/payload"
	"github.com/dropDatabas3/posbridge/internal/token"
)

// TransientError: el API nunca aceptó el payload por fallas recuperables
// (5xx, red) y se agotaron los intentos. El último status/body quedan para
// el journal.
type TransientError struct {
	Status   int
	Body     string
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dispatch: %d attempts exhausted: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("dispatch: %d attempts exhausted: http %d", e.Attempts, e.Status)
}

func (e *TransientError) Unwrap() error { return e.Err }

// RejectedError: el API rechazó el payload de forma definitiva (4xx fuera
// de 401). Reintentar no ayuda; el payload queda archivado como failed.
type RejectedError struct {
	Status int
	Body   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("dispatch: rejected with http %d", e.Status)
}

// Config del dispatcher. Las tres URLs apuntan al mismo Data API pero son
// rutas distintas; se configuran separadas porque UAT y prod difieren.
type Config struct {
	TransactionsURL   string
	CashOperationsURL string
	RefundsURL        string
	ExternalPartyID   string
	Timeout           time.Duration
	MaxAttempts       int
	BackoffInitial    time.Duration
	BackoffMax        time.Duration
}

// Dispatcher hace el POST con bearer del Manager. Seguro para uso
// concurrente desde los workers.
type Dispatcher struct {
	cfg    Config
	tokens *token.Manager
	http   *http.Client
	log    *zap.Logger
}

func New(cfg Config, tokens *token.Manager) *Dispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 500 * time.Millisecond
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Dispatcher{
		cfg:    cfg,
		tokens: tokens,
		http:   &http.Client{Timeout: cfg.Timeout},
		log:    logger.Named("dispatch"),
	}
}

// Endpoint resuelve la URL destino según el kind. Los drawer kinds van a
// cash operations, los refunds a su ruta propia, el resto a transactions.
func (d *Dispatcher) Endpoint(kind domain.TransactionKind) (name, url string) {
	switch {
	case kind.IsCashOperation():
		return "cashoperations", d.cfg.CashOperationsURL
	case kind == domain.KindRefund:
		return "refunds", d.cfg.RefundsURL
	default:
		return "transactions", d.cfg.TransactionsURL
	}
}

// Send serializa y envía el payload. Retorna el Result para el journal y
// el JSON enviado. Semántica de errores:
//
//   - 2xx            → Result{Sent: true}, err nil
//   - 401            → invalida el token y reintenta UNA vez con bearer nuevo;
//     si el segundo intento también da 401, *token.AuthError
//   - otros 4xx      → *RejectedError, sin reintentos
//   - 5xx / red      → reintenta con backoff hasta MaxAttempts, luego
//     *TransientError con el último status/body
func (d *Dispatcher) Send(ctx context.Context, p payload.Payload) (journal.Result, []byte, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return journal.Result{Kind: p.Kind().String()}, nil, fmt.Errorf("marshal payload: %w", err)
	}

	name, url := d.Endpoint(p.Kind())
	res := journal.Result{Kind: p.Kind().String(), Endpoint: url}

	start := time.Now()
	defer func() {
		metrics.DispatchLatency.Observe(float64(time.Since(start).Milliseconds()))
	}()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.cfg.BackoffInitial
	bo.MaxInterval = d.cfg.BackoffMax
	bo.MaxElapsedTime = 0
	bo.Reset()

	var lastStatus int
	var lastBody string
	var lastErr error
	authRetried := false

	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		status, respBody, err := d.post(ctx, url, body)
		switch {
		case err != nil:
			lastErr, lastStatus, lastBody = err, 0, ""
			d.log.Warn("dispatch attempt failed",
				logger.Endpoint(name), logger.Attempt(attempt), zap.Error(err))

		case status/100 == 2:
			res.Sent = true
			res.Status = status
			res.Body = respBody
			metrics.DispatchOutcomes.WithLabelValues(name, "sent").Inc()
			d.log.Info("payload sent",
				logger.GUID(p.GUID()), logger.Kind(p.Kind().String()),
				logger.Endpoint(name), logger.Status(status), logger.Attempt(attempt))
			return res, body, nil

		case status == http.StatusUnauthorized:
			// El bearer cacheado pudo vencer entre el check y el POST. Un
			// re-intento con token fresco; un segundo 401 es problema de
			// credenciales, no de timing.
			if authRetried {
				res.Status = status
				res.Body = respBody
				metrics.DispatchOutcomes.WithLabelValues(name, "auth").Inc()
				return res, body, &token.AuthError{Status: status, Body: respBody}
			}
			authRetried = true
			d.tokens.Invalidate()
			d.log.Warn("bearer rejected, reacquiring", logger.Endpoint(name))
			attempt-- // la re-adquisición no consume un intento
			continue

		case status/100 == 4:
			res.Status = status
			res.Body = respBody
			metrics.DispatchOutcomes.WithLabelValues(name, "rejected").Inc()
			d.log.Error("payload rejected",
				logger.GUID(p.GUID()), logger.Endpoint(name), logger.Status(status),
				zap.String("body", respBody))
			return res, body, &RejectedError{Status: status, Body: respBody}

		default: // 5xx
			lastErr, lastStatus, lastBody = nil, status, respBody
			d.log.Warn("dispatch attempt failed",
				logger.Endpoint(name), logger.Status(status), logger.Attempt(attempt))
		}

		if attempt == d.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			res.Status = lastStatus
			res.Body = lastBody
			metrics.DispatchOutcomes.WithLabelValues(name, "transient").Inc()
			return res, body, &TransientError{Status: lastStatus, Body: lastBody, Attempts: attempt, Err: ctx.Err()}
		case <-time.After(bo.NextBackOff()):
		}
	}

	res.Status = lastStatus
	res.Body = lastBody
	metrics.DispatchOutcomes.WithLabelValues(name, "transient").Inc()
	return res, body, &TransientError{Status: lastStatus, Body: lastBody, Attempts: d.cfg.MaxAttempts, Err: lastErr}
}

// post ejecuta un intento. Los errores de adquisición de token cuentan como
// fallo del intento: el identity service puede estar igual de caído que el
// Data API y se reintenta parejo.
func (d *Dispatcher) post(ctx context.Context, url string, body []byte) (int, string, error) {
	bearer, err := d.tokens.Token(ctx)
	if err != nil {
		return 0, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)
	if d.cfg.ExternalPartyID != "" {
		req.Header.Set("External-Party-ID", d.cfg.ExternalPartyID)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, string(b), nil
}
