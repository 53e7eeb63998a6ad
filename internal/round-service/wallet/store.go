package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Store opera saldos por (usuário, moeda) dentro da transação do chamador.
// Débito e crédito compõem com as escritas de aposta/liquidação: nenhum
// observador vê um débito sem a aposta correspondente, ou vice-versa.
type Store struct{}

func NewStore() *Store { return &Store{} }

// debitAllowed valida o saldo disponível; o saldo nunca fica negativo
func debitAllowed(balance, amount int64) error {
	if balance < amount {
		return ErrInsufficientFunds
	}
	return nil
}

// Debit trava a linha da carteira, valida saldo e debita.
// Carteira inexistente conta como saldo zero
func (s *Store) Debit(ctx context.Context, tx *sql.Tx, userID, currency string, amount int64, description string) error {
	var walletID string
	var balance int64
	err := tx.QueryRowContext(ctx,
		`SELECT id, balance_cents FROM wallets WHERE user_id=$1 AND currency=$2 FOR UPDATE`,
		userID, currency).Scan(&walletID, &balance)
	if err == sql.ErrNoRows {
		return ErrInsufficientFunds
	}
	if err != nil {
		return fmt.Errorf("lock wallet: %w", err)
	}

	if err := debitAllowed(balance, amount); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE wallets SET balance_cents = balance_cents - $1, version = version + 1 WHERE id=$2`,
		amount, walletID); err != nil {
		return fmt.Errorf("debit wallet: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_ledger(wallet_id, operation_type, amount_cents, description) VALUES($1,'DEBIT',$2,$3)`,
		walletID, amount, description); err != nil {
		return fmt.Errorf("ledger debit: %w", err)
	}
	return nil
}

// Credit incrementa o saldo, criando a carteira se necessário
func (s *Store) Credit(ctx context.Context, tx *sql.Tx, userID, currency string, amount int64, operation, description string) error {
	var walletID string
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM wallets WHERE user_id=$1 AND currency=$2 FOR UPDATE`,
		userID, currency).Scan(&walletID)
	if err == sql.ErrNoRows {
		walletID = uuid.NewString()
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO wallets(id, user_id, currency, balance_cents, version) VALUES($1,$2,$3,0,1)`,
			walletID, userID, currency); err != nil {
			return fmt.Errorf("create wallet: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("lock wallet: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE wallets SET balance_cents = balance_cents + $1, version = version + 1 WHERE id=$2`,
		amount, walletID); err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_ledger(wallet_id, operation_type, amount_cents, description) VALUES($1,$2,$3,$4)`,
		walletID, operation, amount, description); err != nil {
		return fmt.Errorf("ledger credit: %w", err)
	}
	return nil
}
