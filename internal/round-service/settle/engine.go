package settle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/lucky-wheel-platform/internal/round-service/wheel"
	"github.com/radieske/lucky-wheel-platform/pkg/contracts/events"
)

// Store é o caminho transacional de liquidação (flag + créditos, atômico)
type Store interface {
	SettleRound(ctx context.Context, track string, number int64, winner int, multiplier int64) ([]Payout, bool, error)
	VoidRound(ctx context.Context, track string, number int64) ([]Payout, bool, error)
}

// Publisher envia os registros de auditoria e o evento de rodada fechada
type Publisher interface {
	PublishTransaction(ctx context.Context, e events.WalletTransaction) error
	PublishRoundSettled(ctx context.Context, e events.RoundSettled) error
}

// Ring guarda os últimos resultados pra exibição no cliente
type Ring interface {
	PushOutcome(ctx context.Context, track string, option int) error
}

// Engine converte o resultado sorteado em mutações de saldo, exatamente uma
// vez por rodada. Reinvocações (retry, restart) viram no-ops silenciosos.
type Engine struct {
	Log   *zap.Logger
	Wheel *wheel.Wheel
	Store Store
	Publ  Publisher
	Ring  Ring

	OnSettled  func() // métricas
	OnConflict func() // métricas
	OnPaid     func(cents int64)
}

// Settle credita os vencedores da rodada a partir do resultado persistido
func (e *Engine) Settle(ctx context.Context, track string, number int64, winner int) error {
	payouts, applied, err := e.Store.SettleRound(ctx, track, number, winner, e.Wheel.Multiplier(winner))
	if err != nil {
		return fmt.Errorf("settle round %s/%d: %w", track, number, err)
	}
	if !applied {
		// outra tentativa já liquidou; nunca chega ao usuário
		e.Log.Info("round already settled",
			zap.String("track", track), zap.Int64("round", number))
		if e.OnConflict != nil {
			e.OnConflict()
		}
		return nil
	}

	var total int64
	for _, po := range payouts {
		total += po.AmountCents
		e.publishTx(ctx, events.WalletTransaction{
			UserID:      po.UserID,
			Currency:    track,
			AmountCents: po.AmountCents,
			Kind:        events.TxKindWin,
			RoundNumber: number,
			TsUnixMs:    time.Now().UnixMilli(),
		})
	}

	if e.Ring != nil {
		if err := e.Ring.PushOutcome(ctx, track, winner); err != nil {
			e.Log.Warn("outcome ring push failed", zap.Error(err))
		}
	}

	if e.Publ != nil {
		if err := e.Publ.PublishRoundSettled(ctx, events.RoundSettled{
			Track:          track,
			RoundNumber:    number,
			WinningOption:  winner,
			TotalPaidCents: total,
			WinnersCount:   len(payouts),
			Ts:             time.Now(),
		}); err != nil {
			e.Log.Warn("round_settled publish failed", zap.Error(err))
		}
	}

	if e.OnSettled != nil {
		e.OnSettled()
	}
	if e.OnPaid != nil {
		e.OnPaid(total)
	}

	e.Log.Info("round settled",
		zap.String("track", track),
		zap.Int64("round", number),
		zap.Int("winner", winner),
		zap.Int("winners", len(payouts)),
		zap.Int64("paid_cents", total))
	return nil
}

// Void estorna todos os stakes de uma rodada interrompida antes do sorteio
func (e *Engine) Void(ctx context.Context, track string, number int64) error {
	refunds, applied, err := e.Store.VoidRound(ctx, track, number)
	if err != nil {
		return fmt.Errorf("void round %s/%d: %w", track, number, err)
	}
	if !applied {
		e.Log.Info("round already settled, void skipped",
			zap.String("track", track), zap.Int64("round", number))
		if e.OnConflict != nil {
			e.OnConflict()
		}
		return nil
	}

	var total int64
	for _, rf := range refunds {
		total += rf.AmountCents
		e.publishTx(ctx, events.WalletTransaction{
			UserID:      rf.UserID,
			Currency:    track,
			AmountCents: rf.AmountCents,
			Kind:        events.TxKindRefund,
			RoundNumber: number,
			TsUnixMs:    time.Now().UnixMilli(),
		})
	}

	if e.Publ != nil {
		if err := e.Publ.PublishRoundSettled(ctx, events.RoundSettled{
			Track:          track,
			RoundNumber:    number,
			WinningOption:  -1,
			Voided:         true,
			TotalPaidCents: total,
			WinnersCount:   len(refunds),
			Ts:             time.Now(),
		}); err != nil {
			e.Log.Warn("round_settled publish failed", zap.Error(err))
		}
	}

	e.Log.Warn("round voided, stakes refunded",
		zap.String("track", track),
		zap.Int64("round", number),
		zap.Int("refunds", len(refunds)),
		zap.Int64("refunded_cents", total))
	return nil
}

// publicação é best-effort: a trilha local (wallet_ledger) já foi commitada
func (e *Engine) publishTx(ctx context.Context, ev events.WalletTransaction) {
	if e.Publ == nil {
		return
	}
	if err := e.Publ.PublishTransaction(ctx, ev); err != nil {
		e.Log.Warn("transaction publish failed",
			zap.String("user", ev.UserID), zap.String("kind", ev.Kind), zap.Error(err))
	}
}
