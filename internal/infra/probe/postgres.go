package probe

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresProber checks the relational store with a driver-level ping
// followed by a minimal query.
type PostgresProber struct {
	name string
	db   *sqlx.DB
}

// NewPostgresProber creates a prober over an existing connection pool.
func NewPostgresProber(name string, db *sqlx.DB) *PostgresProber {
	return &PostgresProber{name: name, db: db}
}

func (p *PostgresProber) Name() string { return p.name }

func (p *PostgresProber) Probe(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	var one int
	if err := p.db.GetContext(ctx, &one, "SELECT 1"); err != nil {
		return fmt.Errorf("query: %w", err)
	}
	return nil
}
