package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config agrupa toda la configuración del bridge. Se carga desde YAML y
// se permite override por variables de entorno para los secretos.
type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
		// StoreID se fuerza en todos los payloads (UAT exige un store válido).
		StoreID string `yaml:"store_id"`
		// LocationDescription no puede quedar vacío según el API remoto.
		LocationDescription string `yaml:"location_description"`
		// Timezone local del POS, ej: America/New_York.
		Timezone string `yaml:"timezone"`
	} `yaml:"app"`

	Identity struct {
		TokenURL     string `yaml:"token_url"`
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		SafetyMargin string `yaml:"safety_margin"` // buffer antes de expiración real
	} `yaml:"identity"`

	API struct {
		TransactionsURL   string `yaml:"transactions_url"`
		CashOperationsURL string `yaml:"cash_operations_url"`
		RefundsURL        string `yaml:"refunds_url"`
		ExternalPartyID   string `yaml:"external_party_id"`
		Timeout           string `yaml:"timeout"`
	} `yaml:"api"`

	Channels []Channel `yaml:"channels"`

	Correlate struct {
		PendingWindow string `yaml:"pending_window"`
	} `yaml:"correlate"`

	Dispatch struct {
		MaxAttempts    int    `yaml:"max_attempts"`
		BackoffInitial string `yaml:"backoff_initial"`
		BackoffMax     string `yaml:"backoff_max"`
		Concurrency    int    `yaml:"concurrency"`
	} `yaml:"dispatch"`

	Dedup struct {
		Kind  string `yaml:"kind"` // memory | redis
		TTL   string `yaml:"ttl"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"dedup"`

	Journal struct {
		Driver string `yaml:"driver"` // fs | postgres
		Dir    string `yaml:"dir"`
		DSN    string `yaml:"dsn"`
	} `yaml:"journal"`

	Alerts struct {
		Enabled   bool   `yaml:"enabled"`
		To        string `yaml:"to"`
		Threshold int    `yaml:"threshold"` // fallos terminales consecutivos antes de alertar
		SMTP      struct {
			Host               string `yaml:"host"`
			Port               int    `yaml:"port"`
			Username           string `yaml:"username"`
			Password           string `yaml:"password"`
			From               string `yaml:"from"`
			TLS                string `yaml:"tls"` // auto | starttls | ssl | none
			InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
		} `yaml:"smtp"`
	} `yaml:"alerts"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
}

// Channel describe una fuente de eventos POS ya decodificada a líneas JSON.
type Channel struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// Load lee el YAML, aplica overrides de entorno, defaults y valida.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	over := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	over(&c.App.Env, "POSBRIDGE_ENV")
	over(&c.App.StoreID, "POSBRIDGE_STORE_ID")
	over(&c.Identity.TokenURL, "POSBRIDGE_TOKEN_URL")
	over(&c.Identity.ClientID, "POSBRIDGE_CLIENT_ID")
	over(&c.Identity.ClientSecret, "POSBRIDGE_CLIENT_SECRET")
	over(&c.Dedup.Redis.Addr, "POSBRIDGE_REDIS_ADDR")
	over(&c.Journal.DSN, "POSBRIDGE_JOURNAL_DSN")
	over(&c.Alerts.SMTP.Password, "POSBRIDGE_SMTP_PASSWORD")
	if v := os.Getenv("POSBRIDGE_DISPATCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Dispatch.Concurrency = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.StoreID == "" {
		c.App.StoreID = "1001"
	}
	if c.App.LocationDescription == "" {
		c.App.LocationDescription = "Store " + c.App.StoreID
	}
	if c.App.Timezone == "" {
		c.App.Timezone = "America/New_York"
	}
	if c.Identity.SafetyMargin == "" {
		c.Identity.SafetyMargin = "60s"
	}
	if c.API.Timeout == "" {
		c.API.Timeout = "10s"
	}
	if c.Correlate.PendingWindow == "" {
		c.Correlate.PendingWindow = "5s"
	}
	if c.Dispatch.MaxAttempts <= 0 {
		c.Dispatch.MaxAttempts = 4
	}
	if c.Dispatch.BackoffInitial == "" {
		c.Dispatch.BackoffInitial = "500ms"
	}
	if c.Dispatch.BackoffMax == "" {
		c.Dispatch.BackoffMax = "30s"
	}
	if c.Dispatch.Concurrency <= 0 {
		c.Dispatch.Concurrency = 4
	}
	if c.Dedup.Kind == "" {
		c.Dedup.Kind = "memory"
	}
	if c.Dedup.TTL == "" {
		c.Dedup.TTL = "24h"
	}
	if c.Journal.Driver == "" {
		c.Journal.Driver = "fs"
	}
	if c.Journal.Dir == "" {
		c.Journal.Dir = "data"
	}
	if c.Alerts.Threshold <= 0 {
		c.Alerts.Threshold = 3
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8090"
	}
}

func (c *Config) validate() error {
	var missing []string
	need := func(v, name string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	need(c.Identity.TokenURL, "identity.token_url")
	need(c.Identity.ClientID, "identity.client_id")
	need(c.Identity.ClientSecret, "identity.client_secret")
	need(c.API.TransactionsURL, "api.transactions_url")
	need(c.API.CashOperationsURL, "api.cash_operations_url")
	need(c.API.RefundsURL, "api.refunds_url")
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required fields: %s", strings.Join(missing, ", "))
	}
	if k := c.Dedup.Kind; k != "memory" && k != "redis" {
		return fmt.Errorf("config: dedup.kind must be memory or redis, got %q", k)
	}
	if d := c.Journal.Driver; d != "fs" && d != "postgres" {
		return fmt.Errorf("config: journal.driver must be fs or postgres, got %q", d)
	}
	return nil
}

// Helpers de duración: los campos viajan como string en YAML y se parsean acá.

func (c *Config) SafetyMargin() time.Duration  { return dur(c.Identity.SafetyMargin, 60*time.Second) }
func (c *Config) APITimeout() time.Duration    { return dur(c.API.Timeout, 10*time.Second) }
func (c *Config) PendingWindow() time.Duration { return dur(c.Correlate.PendingWindow, 5*time.Second) }
func (c *Config) BackoffInitial() time.Duration {
	return dur(c.Dispatch.BackoffInitial, 500*time.Millisecond)
}
func (c *Config) BackoffMax() time.Duration { return dur(c.Dispatch.BackoffMax, 30*time.Second) }
func (c *Config) DedupTTL() time.Duration   { return dur(c.Dedup.TTL, 24*time.Hour) }

func dur(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
