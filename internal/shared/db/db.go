package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

func ConnectPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

// Migrate garante o schema mínimo dos serviços.
// Idempotente: seguro rodar em todo boot de qualquer serviço
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS wallets (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL,
			currency TEXT NOT NULL,
			balance_cents BIGINT NOT NULL DEFAULT 0 CHECK (balance_cents >= 0),
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, currency)
		)`,
		`CREATE TABLE IF NOT EXISTS wallet_ledger (
			id BIGSERIAL PRIMARY KEY,
			wallet_id UUID NOT NULL,
			operation_type TEXT NOT NULL,
			amount_cents BIGINT NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS rounds (
			track TEXT NOT NULL,
			round_number BIGINT NOT NULL,
			phase TEXT NOT NULL,
			phase_deadline TIMESTAMPTZ NOT NULL,
			winning_option INT,
			settled BOOLEAN NOT NULL DEFAULT FALSE,
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (track, round_number)
		)`,
		`CREATE TABLE IF NOT EXISTS bets (
			id UUID PRIMARY KEY,
			track TEXT NOT NULL,
			round_number BIGINT NOT NULL,
			user_id TEXT NOT NULL,
			option_idx INT NOT NULL,
			amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
			display_name TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bets_round ON bets (track, round_number)`,
		`CREATE INDEX IF NOT EXISTS idx_bets_user_round ON bets (track, round_number, user_id)`,
		`CREATE TABLE IF NOT EXISTS round_stakes (
			track TEXT NOT NULL,
			round_number BIGINT NOT NULL,
			option_idx INT NOT NULL,
			user_id TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			amount_cents BIGINT NOT NULL,
			PRIMARY KEY (track, round_number, option_idx, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS round_option_totals (
			track TEXT NOT NULL,
			round_number BIGINT NOT NULL,
			option_idx INT NOT NULL,
			total_cents BIGINT NOT NULL DEFAULT 0,
			player_count INT NOT NULL DEFAULT 0,
			PRIMARY KEY (track, round_number, option_idx)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			currency TEXT NOT NULL,
			amount_cents BIGINT NOT NULL,
			kind TEXT NOT NULL,
			round_number BIGINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
