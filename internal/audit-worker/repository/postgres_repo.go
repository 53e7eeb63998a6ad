package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/radieske/lucky-wheel-platform/pkg/contracts/events"
)

// PostgresRepo implementa a trilha de auditoria de transações em um banco Postgres
// DB: conexão com o banco de dados
type PostgresRepo struct {
	DB *sql.DB
}

// NewPostgresRepo retorna uma instância de repositório Postgres
func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// Append insere um registro de transação na tabela audit_transactions.
// A tabela é append-only; nenhum caminho de leitura do engine passa por aqui.
func (r *PostgresRepo) Append(ctx context.Context, e events.WalletTransaction) error {
	const q = `
		INSERT INTO audit_transactions
		  (user_id, currency, amount_cents, kind, round_number, created_at)
		VALUES
		  ($1,$2,$3,$4,$5,$6)
	`
	ts := time.UnixMilli(e.TsUnixMs)
	if e.TsUnixMs == 0 {
		ts = time.Now()
	}
	_, err := r.DB.ExecContext(ctx, q,
		e.UserID, e.Currency, e.AmountCents, e.Kind, e.RoundNumber, ts,
	)
	return err
}
