package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/posbridge/internal/domain"
)

// Postgres archiva en dos tablas append-only. Pensado para instalaciones
// con varios bridges donde el archivo local no alcanza.
type Postgres struct {
	pool *pgxpool.Pool
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS pos_events (
	id          BIGSERIAL PRIMARY KEY,
	guid        TEXT NOT NULL,
	seq         TEXT NOT NULL,
	channel     TEXT NOT NULL,
	doc         JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS pos_dispatches (
	id          BIGSERIAL PRIMARY KEY,
	guid        TEXT NOT NULL,
	seq         TEXT NOT NULL,
	kind        TEXT NOT NULL,
	endpoint    TEXT NOT NULL DEFAULT '',
	sent        BOOLEAN NOT NULL,
	status      INT NOT NULL,
	body        TEXT NOT NULL DEFAULT '',
	payload     JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS pos_dispatches_guid_idx ON pos_dispatches (guid);
`

// NewPostgres conecta y asegura el esquema.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgx pool: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure journal schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) SaveEvent(ctx context.Context, tx *domain.LogicalTransaction) error {
	doc, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO pos_events (guid, seq, channel, doc) VALUES ($1, $2, $3, $4)`,
		tx.GUID, tx.Seq, tx.Channel, doc)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (p *Postgres) SaveResult(ctx context.Context, tx *domain.LogicalTransaction, payloadJSON []byte, res Result) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO pos_dispatches (guid, seq, kind, endpoint, sent, status, body, payload)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		tx.GUID, tx.Seq, res.Kind, res.Endpoint, res.Sent, res.Status, res.Body, payloadJSON)
	if err != nil {
		return fmt.Errorf("insert dispatch: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
