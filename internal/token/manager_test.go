package token

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// unsignedJWT arma un JWT sintácticamente válido con solo el claim exp.
// ParseUnverified no valida la firma, así que "sig" alcanza.
func unsignedJWT(t *testing.T, exp int64) string {
	t.Helper()
	enc := func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal jwt part: %v", err)
		}
		return base64.RawURLEncoding.EncodeToString(b)
	}
	header := enc(map[string]string{"alg": "HS256", "typ": "JWT"})
	claims := enc(map[string]int64{"exp": exp})
	return fmt.Sprintf("%s.%s.%s", header, claims, base64.RawURLEncoding.EncodeToString([]byte("sig")))
}

func newTestServer(t *testing.T, calls *int32, tok string, expiresIn int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q", got)
		}
		resp := map[string]any{"access_token": tok, "token_type": "Bearer"}
		if expiresIn > 0 {
			resp["expires_in"] = expiresIn
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newManager(url string) *Manager {
	return NewManager(Config{
		TokenURL:     url,
		ClientID:     "client",
		ClientSecret: "secret",
		SafetyMargin: 60 * time.Second,
	})
}

func TestToken_CachedWithinWindow(t *testing.T) {
	var calls int32
	srv := newTestServer(t, &calls, "tok-1", 3600)
	defer srv.Close()

	m := newManager(srv.URL)
	ctx := context.Background()

	tok, err := m.Token(ctx)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if tok != "tok-1" {
		t.Fatalf("token = %q", tok)
	}

	// Segunda adquisición dentro de la ventana: sin llamada de red.
	if _, err := m.Token(ctx); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected 1 exchange, got %d", n)
	}
}

func TestToken_RefreshAfterExpiry_SingleExchangeUnderConcurrency(t *testing.T) {
	var calls int32
	srv := newTestServer(t, &calls, "tok-2", 3600)
	defer srv.Close()

	m := newManager(srv.URL)
	ctx := context.Background()

	if _, err := m.Token(ctx); err != nil {
		t.Fatalf("seed acquire: %v", err)
	}
	atomic.StoreInt32(&calls, 0)

	// Simular expiración corriendo el reloj.
	base := time.Now().Add(2 * time.Hour)
	m.now = func() time.Time { return base }

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Token(ctx); err != nil {
				t.Errorf("concurrent acquire: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected exactly 1 exchange under concurrency, got %d", n)
	}
}

func TestToken_ExchangeFailureDiscardsCache(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, `{"error":"invalid_client"}`, http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-3", "expires_in": 3600})
	}))
	defer srv.Close()

	m := newManager(srv.URL)
	ctx := context.Background()

	if _, err := m.Token(ctx); err != nil {
		t.Fatalf("seed acquire: %v", err)
	}

	base := time.Now().Add(2 * time.Hour)
	m.now = func() time.Time { return base }
	fail.Store(true)

	_, err := m.Token(ctx)
	var aerr *AuthError
	if err == nil {
		t.Fatal("expected AuthError")
	}
	if !errors.As(err, &aerr) {
		t.Fatalf("expected *AuthError, got %T: %v", err, err)
	}
	if aerr.Status != http.StatusBadRequest {
		t.Fatalf("status = %d", aerr.Status)
	}

	// El token viejo fue descartado: no se puede reusar uno conocido-malo.
	if got := m.ExpiresAt(); !got.IsZero() {
		t.Fatalf("expected cache cleared, expiresAt = %v", got)
	}
}

func TestToken_ExpiryFromJWTClaim(t *testing.T) {
	// Token con claim exp a +30m y sin expires_in en la respuesta.
	// header/payload sin firma válida: ParseUnverified no la chequea.
	exp := time.Now().Add(30 * time.Minute).Unix()
	jwtTok := unsignedJWT(t, exp)

	var calls int32
	srv := newTestServer(t, &calls, jwtTok, 0)
	defer srv.Close()

	m := newManager(srv.URL)
	if _, err := m.Token(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	until := time.Until(m.ExpiresAt())
	if until < 25*time.Minute || until > 31*time.Minute {
		t.Fatalf("expiry not taken from JWT exp claim: %v", until)
	}
}

func TestToken_DefaultExpiryWhenOpaque(t *testing.T) {
	var calls int32
	srv := newTestServer(t, &calls, "opaque-token", 0)
	defer srv.Close()

	m := newManager(srv.URL)
	if _, err := m.Token(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	until := time.Until(m.ExpiresAt())
	if until < 59*time.Minute || until > 61*time.Minute {
		t.Fatalf("expected ~3600s default expiry, got %v", until)
	}
}
