package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/lucky-wheel-platform/internal/round-service/repo"
	"github.com/radieske/lucky-wheel-platform/internal/round-service/wallet"
	"github.com/radieske/lucky-wheel-platform/internal/round-service/wheel"
	"github.com/radieske/lucky-wheel-platform/pkg/contracts/events"
)

var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrRoundClosed         = errors.New("round closed")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Store é o caminho atômico de persistência da aposta
type Store interface {
	PlaceBet(ctx context.Context, params repo.PlaceBetParams) (*repo.Bet, *repo.OptionAggregate, error)
	BetsForUserRound(ctx context.Context, track string, number int64, userID string) ([]repo.Bet, error)
}

// Publisher registra a transação de débito na trilha de auditoria
type Publisher interface {
	PublishTransaction(ctx context.Context, e events.WalletTransaction) error
}

// Ledger aceita ou rejeita stakes contra a rodada ativa.
// Validação de opção e valor acontece antes de qualquer acesso a saldo;
// as três falhas visíveis ao usuário são os sentinelas deste pacote
// (mais wheel.ErrInvalidOption).
type Ledger struct {
	Log   *zap.Logger
	Wheel *wheel.Wheel
	Store Store
	Publ  Publisher

	Now func() time.Time // hook de teste

	OnAccepted func()              // métricas
	OnRejected func(reason string) // métricas por motivo
}

// PlaceRequest é o pedido já autenticado (userId resolvido no gateway)
type PlaceRequest struct {
	UserID      string
	Track       string
	Option      int
	AmountCents int64
	DisplayName string
}

// Place valida e persiste uma aposta, devolvendo o agregado atualizado da
// opção. Em falha não há mutação nenhuma.
func (l *Ledger) Place(ctx context.Context, req PlaceRequest) (*repo.Bet, *repo.OptionAggregate, error) {
	// validação pura primeiro: opção inválida nunca chega no saldo
	if err := l.Wheel.Validate(req.Option); err != nil {
		l.reject("invalid_option")
		return nil, nil, err
	}
	if req.AmountCents <= 0 {
		l.reject("invalid_amount")
		return nil, nil, ErrInvalidAmount
	}

	now := time.Now()
	if l.Now != nil {
		now = l.Now()
	}

	bet, agg, err := l.Store.PlaceBet(ctx, repo.PlaceBetParams{
		Track:       req.Track,
		UserID:      req.UserID,
		Option:      req.Option,
		AmountCents: req.AmountCents,
		DisplayName: req.DisplayName,
		Now:         now,
	})
	switch {
	case errors.Is(err, repo.ErrRoundClosed):
		l.reject("round_closed")
		return nil, nil, ErrRoundClosed
	case errors.Is(err, wallet.ErrInsufficientFunds):
		l.reject("insufficient_balance")
		return nil, nil, ErrInsufficientBalance
	case err != nil:
		l.reject("internal")
		return nil, nil, fmt.Errorf("place bet: %w", err)
	}

	// auditoria best-effort: o débito já está commitado com wallet_ledger
	if l.Publ != nil {
		if perr := l.Publ.PublishTransaction(ctx, events.WalletTransaction{
			UserID:      bet.UserID,
			Currency:    bet.Track,
			AmountCents: bet.AmountCents,
			Kind:        events.TxKindBet,
			RoundNumber: bet.RoundNumber,
			TsUnixMs:    now.UnixMilli(),
		}); perr != nil {
			l.Log.Warn("bet transaction publish failed",
				zap.String("betId", bet.ID), zap.Error(perr))
		}
	}

	if l.OnAccepted != nil {
		l.OnAccepted()
	}
	return bet, agg, nil
}

// UserBets retorna as apostas do próprio usuário numa rodada (resync)
func (l *Ledger) UserBets(ctx context.Context, track string, number int64, userID string) ([]repo.Bet, error) {
	return l.Store.BetsForUserRound(ctx, track, number, userID)
}

func (l *Ledger) reject(reason string) {
	if l.OnRejected != nil {
		l.OnRejected(reason)
	}
}
