// Package token maneja el intercambio client-credentials contra el
// identity service y cachea el bearer a nivel proceso.
package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/posbridge/internal/metrics"
	"github.com/dropDatabas3/posbridge/internal/observability/logger"
)

// DefaultExpiry se asume cuando la respuesta no trae expires_in ni el
// access token trae claim exp parseable.
const DefaultExpiry = 3600 * time.Second

// AuthError indica que el intercambio de credenciales falló o fue
// rechazado. Fatal para el intento de dispatch en curso; se recupera
// re-adquiriendo.
type AuthError struct {
	Status int
	Body   string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token exchange: %v", e.Err)
	}
	return fmt.Sprintf("token exchange: http %d: %s", e.Status, truncate(e.Body, 200))
}

func (e *AuthError) Unwrap() error { return e.Err }

// Config del Manager.
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	// SafetyMargin: buffer antes de la expiración real tras el cual el
	// cache se refresca proactivamente, para que un dispatch en vuelo
	// nunca corra con un token vencido de verdad.
	SafetyMargin time.Duration
}

// Manager es el cache de token del proceso. Los lectores ven el token
// viejo o el nuevo, nunca uno a medio actualizar; el refresh corre de a
// uno (singleflight) y los llamadores concurrentes esperan ese resultado.
type Manager struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger

	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	sf singleflight.Group

	// now es inyectable para tests.
	now func() time.Time
}

func NewManager(cfg Config) *Manager {
	if cfg.SafetyMargin <= 0 {
		cfg.SafetyMargin = 60 * time.Second
	}
	return &Manager{
		cfg:  cfg,
		http: &http.Client{Timeout: 10 * time.Second},
		log:  logger.Named("token"),
		now:  time.Now,
	}
}

// Token retorna el bearer vigente, refrescando si el cache pasó el margen
// de seguridad. Falla con *AuthError.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.RLock()
	tok := m.token
	fresh := tok != "" && m.now().Before(m.expiresAt.Add(-m.cfg.SafetyMargin))
	m.mu.RUnlock()
	if fresh {
		return tok, nil
	}

	v, err, _ := m.sf.Do("refresh", func() (any, error) {
		// Re-chequear bajo el vuelo único: otro caller pudo refrescar ya.
		m.mu.RLock()
		tok := m.token
		fresh := tok != "" && m.now().Before(m.expiresAt.Add(-m.cfg.SafetyMargin))
		m.mu.RUnlock()
		if fresh {
			return tok, nil
		}
		return m.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate descarta el token cacheado. Lo usa el dispatcher ante un 401.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.token = ""
	m.expiresAt = time.Time{}
	m.mu.Unlock()
}

// ExpiresAt expone la expiración vigente (para /status).
func (m *Manager) ExpiresAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.expiresAt
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	// El token anterior se descarta antes del intercambio: ante un fallo,
	// los callers reintentan la adquisición en vez de reusar uno malo.
	m.Invalidate()

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", m.cfg.ClientID)
	form.Set("client_secret", m.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.http.Do(req)
	if err != nil {
		return "", &AuthError{Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode/100 != 2 {
		return "", &AuthError{Status: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", &AuthError{Err: fmt.Errorf("decode token response: %w", err)}
	}
	if tr.AccessToken == "" {
		return "", &AuthError{Status: resp.StatusCode, Body: "empty access_token"}
	}

	ttl := m.expiryFor(tr)
	now := m.now()

	m.mu.Lock()
	m.token = tr.AccessToken
	m.expiresAt = now.Add(ttl)
	m.mu.Unlock()

	metrics.TokenRefreshes.Inc()
	m.log.Info("token refreshed", zap.Duration("ttl", ttl))
	return tr.AccessToken, nil
}

// expiryFor resuelve la validez: expires_in de la respuesta, sino el claim
// exp del JWT (sin verificar firma; solo importa el instante), sino 3600s.
func (m *Manager) expiryFor(tr tokenResponse) time.Duration {
	if tr.ExpiresIn > 0 {
		return time.Duration(tr.ExpiresIn) * time.Second
	}
	var claims jwtv5.RegisteredClaims
	parser := jwtv5.NewParser()
	if _, _, err := parser.ParseUnverified(tr.AccessToken, &claims); err == nil && claims.ExpiresAt != nil {
		if d := claims.ExpiresAt.Time.Sub(m.now()); d > 0 {
			return d
		}
	}
	return DefaultExpiry
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
