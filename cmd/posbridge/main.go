// posbridge corre el puente POS → Data API: lee los canales seriales,
// correlaciona los eventos en transacciones, las clasifica y despacha.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dropDatabas3/posbridge/internal/alert"
	"github.com/dropDatabas3/posbridge/internal/config"
	"github.com/dropDatabas3/posbridge/internal/correlate"
	"github.com/dropDatabas3/posbridge/internal/dedup"
	"github.com/dropDatabas3/posbridge/internal/dispatch"
	httpserver "github.com/dropDatabas3/posbridge/internal/http"
	"github.com/dropDatabas3/posbridge/internal/ingest"
	"github.com/dropDatabas3/posbridge/internal/journal"
	"github.com/dropDatabas3/posbridge/internal/metrics"
	"github.com/dropDatabas3/posbridge/internal/observability/logger"
	"github.com/dropDatabas3/posbridge/internal/payload"
	"github.com/dropDatabas3/posbridge/internal/token"
)

func main() {
	_ = godotenv.Load(".env")

	var cfgPath string

	root := &cobra.Command{
		Use:   "posbridge",
		Short: "Puente POS serial → Data API",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", envOr("POSBRIDGE_CONFIG", "config.yaml"), "path del YAML de configuración (env POSBRIDGE_CONFIG)")

	root.AddCommand(serveCmd(&cfgPath))
	root.AddCommand(tokenCmd(&cfgPath))
	root.AddCommand(sendCmd(&cfgPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Correr el bridge: ingesta, correlación y dispatch",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			initLogger(cfg)
			defer func() { _ = logger.Sync() }()
			log := logger.Named("serve")

			if err := metrics.Register(nil); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			deps, cleanup, err := wire(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			deps.pool.Start(ctx, cfg.Dispatch.Concurrency)

			sources := make([]ingest.Source, 0, len(cfg.Channels))
			for _, ch := range cfg.Channels {
				sources = append(sources, ingest.NewFileSource(ch.Name, ch.Path))
			}
			if len(sources) == 0 {
				return fmt.Errorf("no channels configured")
			}

			go func() {
				err := httpserver.Serve(ctx, cfg.Server.Addr, httpserver.NewRouter(httpserver.Deps{
					PendingCount: deps.corr.PendingCount,
					PoolStats:    deps.pool.Stats,
					TokenExpiry:  deps.tokens.ExpiresAt,
					AlertStreak:  deps.streak,
				}))
				if err != nil {
					log.Error("ops server stopped", zap.Error(err))
				}
			}()

			log.Info("posbridge up",
				zap.String("env", cfg.App.Env),
				zap.String("store", cfg.App.StoreID),
				zap.Int("channels", len(sources)))

			runErr := deps.listener.Run(ctx, sources)

			// Drenar lo encolado antes de salir; las pendientes que venzan
			// durante el drain todavía entran a la cola.
			time.Sleep(cfg.PendingWindow())
			deps.pool.Drain()

			if runErr != nil && ctx.Err() == nil {
				return runErr
			}
			log.Info("posbridge down")
			return nil
		},
	}
}

func tokenCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Probar el intercambio client-credentials y mostrar la expiración",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			initLogger(cfg)
			defer func() { _ = logger.Sync() }()

			mgr := token.NewManager(token.Config{
				TokenURL:     cfg.Identity.TokenURL,
				ClientID:     cfg.Identity.ClientID,
				ClientSecret: cfg.Identity.ClientSecret,
				SafetyMargin: cfg.SafetyMargin(),
			})
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			tok, err := mgr.Token(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("token acquired (%d bytes), expires %s\n",
				len(tok), mgr.ExpiresAt().UTC().Format(time.RFC3339))
			return nil
		},
	}
}

func sendCmd(cfgPath *string) *cobra.Command {
	var channel string
	cmd := &cobra.Command{
		Use:   "send <events.jsonl>",
		Short: "Reprocesar un archivo de eventos (una línea JSON por evento) y despachar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			initLogger(cfg)
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			deps, cleanup, err := wire(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			deps.pool.Start(ctx, cfg.Dispatch.Concurrency)
			src := ingest.NewFileSource(channel, args[0])
			if err := deps.listener.ConsumeOnce(ctx, src); err != nil {
				return err
			}
			// Dar lugar a que venzan las pendientes antes de drenar.
			time.Sleep(cfg.PendingWindow() + 100*time.Millisecond)
			deps.pool.Drain()

			st := deps.pool.Stats()
			fmt.Printf("sent=%d failed=%d skipped=%d\n", st.Sent, st.Failed, st.Skipped)
			if st.Failed > 0 {
				return fmt.Errorf("%d transactions failed", st.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "pos1", "nombre de canal a asignar a los eventos")
	return cmd
}

// deps agrupa el pipeline armado.
type deps struct {
	tokens   *token.Manager
	pool     *dispatch.Pool
	corr     *correlate.Correlator
	listener *ingest.Listener
	streak   func() int
}

// wire arma el pipeline completo a partir de la config.
func wire(ctx context.Context, cfg *config.Config) (*deps, func(), error) {
	tokens := token.NewManager(token.Config{
		TokenURL:     cfg.Identity.TokenURL,
		ClientID:     cfg.Identity.ClientID,
		ClientSecret: cfg.Identity.ClientSecret,
		SafetyMargin: cfg.SafetyMargin(),
	})

	disp := dispatch.New(dispatch.Config{
		TransactionsURL:   cfg.API.TransactionsURL,
		CashOperationsURL: cfg.API.CashOperationsURL,
		RefundsURL:        cfg.API.RefundsURL,
		ExternalPartyID:   cfg.API.ExternalPartyID,
		Timeout:           cfg.APITimeout(),
		MaxAttempts:       cfg.Dispatch.MaxAttempts,
		BackoffInitial:    cfg.BackoffInitial(),
		BackoffMax:        cfg.BackoffMax(),
	}, tokens)

	var seen dedup.Store
	var err error
	switch cfg.Dedup.Kind {
	case "redis":
		seen, err = dedup.NewRedis(cfg.Dedup.Redis.Addr, cfg.Dedup.Redis.DB, cfg.Dedup.Redis.Prefix, cfg.DedupTTL())
		if err != nil {
			return nil, nil, fmt.Errorf("dedup redis: %w", err)
		}
	default:
		seen = dedup.NewMemory(cfg.DedupTTL())
	}

	var jour journal.Journal
	switch cfg.Journal.Driver {
	case "postgres":
		jour, err = journal.NewPostgres(ctx, cfg.Journal.DSN)
		if err != nil {
			seen.Close()
			return nil, nil, fmt.Errorf("journal postgres: %w", err)
		}
	default:
		jour = journal.NewFS(cfg.Journal.Dir)
	}

	var gate dispatch.FailureGate
	streak := func() int { return 0 }
	if cfg.Alerts.Enabled {
		smtp := cfg.Alerts.SMTP
		sender := alert.NewSMTPSender(smtp.Host, smtp.Port, smtp.From, smtp.Username, smtp.Password, cfg.Alerts.To)
		sender.TLSMode = smtp.TLS
		sender.InsecureSkipVerify = smtp.InsecureSkipVerify
		g := alert.NewGate(sender, cfg.Alerts.Threshold)
		gate = g
		streak = g.Streak
	}

	builder := &payload.Builder{
		StoreID:      cfg.App.StoreID,
		LocationDesc: cfg.App.LocationDescription,
	}
	pool := dispatch.NewPool(builder, disp, seen, jour, gate)

	corr := correlate.New(correlate.Config{
		StoreID:       cfg.App.StoreID,
		LocationDesc:  cfg.App.LocationDescription,
		Timezone:      cfg.App.Timezone,
		PendingWindow: cfg.PendingWindow(),
	}, pool.Submit)

	listener := ingest.NewListener(corr, pool)

	cleanup := func() {
		_ = jour.Close()
		_ = seen.Close()
	}
	return &deps{
		tokens:   tokens,
		pool:     pool,
		corr:     corr,
		listener: listener,
		streak:   streak,
	}, cleanup, nil
}

func initLogger(cfg *config.Config) {
	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       envOr("POSBRIDGE_LOG_LEVEL", ""),
		ServiceName: "posbridge",
	})
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
