package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/lucky-wheel-platform/internal/round-service/settle"
	"github.com/radieske/lucky-wheel-platform/internal/round-service/wallet"
)

var ErrRoundClosed = errors.New("round closed for betting")

// TopStakersLimit limita o ranking público de apostadores por opção
const TopStakersLimit = 5

// Postgres implementa a persistência de rodadas, apostas e agregados.
// Saldos são mutados só através do wallet.Store, sempre na mesma transação
// da escrita de aposta/liquidação.
type Postgres struct {
	db      *sql.DB
	wallets *wallet.Store
}

func NewPostgres(db *sql.DB, wallets *wallet.Store) *Postgres {
	return &Postgres{db: db, wallets: wallets}
}

// LatestRound retorna a rodada mais recente da trilha, ou nil se não existir
func (p *Postgres) LatestRound(ctx context.Context, track string) (*Round, error) {
	r := Round{Track: track}
	var winning sql.NullInt64
	err := p.db.QueryRowContext(ctx, `
		SELECT round_number, phase, phase_deadline, winning_option, settled, version
		FROM rounds WHERE track=$1 ORDER BY round_number DESC LIMIT 1`, track).
		Scan(&r.Number, &r.Phase, &r.PhaseDeadline, &winning, &r.Settled, &r.Version)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest round: %w", err)
	}
	if winning.Valid {
		opt := int(winning.Int64)
		r.WinningOption = &opt
	}
	return &r, nil
}

// InsertRound cria a próxima rodada em BETTING.
// ON CONFLICT: donos de relógio concorrentes colapsam numa única criação
func (p *Postgres) InsertRound(ctx context.Context, track string, number int64, deadline time.Time) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO rounds (track, round_number, phase, phase_deadline)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (track, round_number) DO NOTHING`,
		track, number, PhaseBetting, deadline)
	if err != nil {
		return fmt.Errorf("insert round: %w", err)
	}
	return nil
}

// AdvancePhase avança a fase com guard de versão. Retorna false quando o
// tick perdeu a corrida (tick duplicado ou stale): o chamador ignora
func (p *Postgres) AdvancePhase(ctx context.Context, r *Round, phase string, deadline time.Time) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE rounds SET phase=$1, phase_deadline=$2, version=version+1
		WHERE track=$3 AND round_number=$4 AND phase=$5 AND version=$6`,
		phase, deadline, r.Track, r.Number, r.Phase, r.Version)
	if err != nil {
		return false, fmt.Errorf("advance phase: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// PersistWinner grava a opção sorteada uma única vez. Se outra instância já
// gravou, devolve o resultado persistido em vez de re-sortear
func (p *Postgres) PersistWinner(ctx context.Context, track string, number int64, option int) (int, error) {
	// não mexe em version: o predicado IS NULL já é o guard do sorteio,
	// e o CAS de fase do relógio não pode ser invalidado por esta escrita
	res, err := p.db.ExecContext(ctx, `
		UPDATE rounds SET winning_option=$1
		WHERE track=$2 AND round_number=$3 AND winning_option IS NULL`,
		option, track, number)
	if err != nil {
		return 0, fmt.Errorf("persist winner: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return option, nil
	}

	var existing sql.NullInt64
	err = p.db.QueryRowContext(ctx,
		`SELECT winning_option FROM rounds WHERE track=$1 AND round_number=$2`,
		track, number).Scan(&existing)
	if err != nil {
		return 0, fmt.Errorf("read winner: %w", err)
	}
	if !existing.Valid {
		return 0, errors.New("winner lost race but none persisted")
	}
	return int(existing.Int64), nil
}

// PlaceBetParams agrupa os dados validados de um pedido de aposta
type PlaceBetParams struct {
	Track       string
	UserID      string
	Option      int
	AmountCents int64
	DisplayName string
	Now         time.Time
}

// PlaceBet executa o caminho atômico de aposta: valida a fase da rodada
// ativa, debita a carteira, insere a aposta e incrementa os agregados, tudo
// numa transação. A contenção é só na linha da carteira do usuário; apostas
// de usuários distintos não se bloqueiam.
func (p *Postgres) PlaceBet(ctx context.Context, params PlaceBetParams) (*Bet, *OptionAggregate, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	// FOR SHARE: apostas concorrentes não serializam entre si, mas o avanço
	// de fase do relógio espera as apostas em voo terminarem
	var number int64
	var phase string
	var deadline time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT round_number, phase, phase_deadline FROM rounds
		WHERE track=$1 ORDER BY round_number DESC LIMIT 1 FOR SHARE`,
		params.Track).Scan(&number, &phase, &deadline)
	if err == sql.ErrNoRows {
		return nil, nil, ErrRoundClosed
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load round: %w", err)
	}
	if !roundOpen(phase, deadline, params.Now) {
		return nil, nil, ErrRoundClosed
	}

	if err := p.wallets.Debit(ctx, tx, params.UserID, params.Track, params.AmountCents,
		fmt.Sprintf("bet:%s:%d", params.Track, number)); err != nil {
		return nil, nil, err
	}

	bet := &Bet{
		ID:          uuid.NewString(),
		Track:       params.Track,
		RoundNumber: number,
		UserID:      params.UserID,
		Option:      params.Option,
		AmountCents: params.AmountCents,
		DisplayName: params.DisplayName,
		PlacedAt:    params.Now,
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO bets (id, track, round_number, user_id, option_idx, amount_cents, display_name, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		bet.ID, bet.Track, bet.RoundNumber, bet.UserID, bet.Option, bet.AmountCents, bet.DisplayName, bet.PlacedAt); err != nil {
		return nil, nil, fmt.Errorf("insert bet: %w", err)
	}

	// Acumula stake por (opção, usuário); xmax=0 detecta primeira aposta do
	// usuário nessa opção, pra incrementar player_count sem recontagem
	var newStaker bool
	if err = tx.QueryRowContext(ctx, `
		INSERT INTO round_stakes (track, round_number, option_idx, user_id, display_name, amount_cents)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (track, round_number, option_idx, user_id)
		DO UPDATE SET amount_cents = round_stakes.amount_cents + EXCLUDED.amount_cents,
		              display_name = EXCLUDED.display_name
		RETURNING (xmax = 0)`,
		bet.Track, bet.RoundNumber, bet.Option, bet.UserID, bet.DisplayName, bet.AmountCents).
		Scan(&newStaker); err != nil {
		return nil, nil, fmt.Errorf("upsert stake: %w", err)
	}

	agg, err := bumpTotalsTx(ctx, tx, bet, newStaker)
	if err != nil {
		return nil, nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return bet, agg, nil
}

// roundOpen é o gate de aceitação de aposta: só BETTING e estritamente antes
// do deadline. No deadline exato a rodada já fechou.
func roundOpen(phase string, deadline, now time.Time) bool {
	return phase == PhaseBetting && now.Before(deadline)
}

// mergeStake aplica uma aposta aceita ao agregado da opção: o total sempre
// acumula, player_count só na primeira aposta do usuário na opção
func mergeStake(agg OptionAggregate, amount int64, newStaker bool) OptionAggregate {
	agg.TotalCents += amount
	if newStaker {
		agg.PlayerCount++
	}
	return agg
}

// bumpTotalsTx atualiza round_option_totals sob lock pessimista e devolve o
// agregado resultante. A aritmética fica em mergeStake
func bumpTotalsTx(ctx context.Context, tx *sql.Tx, b *Bet, newStaker bool) (*OptionAggregate, error) {
	// garante a linha antes do lock; corridas colapsam no DO NOTHING
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO round_option_totals (track, round_number, option_idx, total_cents, player_count)
		VALUES ($1,$2,$3,0,0)
		ON CONFLICT (track, round_number, option_idx) DO NOTHING`,
		b.Track, b.RoundNumber, b.Option); err != nil {
		return nil, fmt.Errorf("init totals: %w", err)
	}

	agg := OptionAggregate{Option: b.Option}
	if err := tx.QueryRowContext(ctx, `
		SELECT total_cents, player_count FROM round_option_totals
		WHERE track=$1 AND round_number=$2 AND option_idx=$3 FOR UPDATE`,
		b.Track, b.RoundNumber, b.Option).Scan(&agg.TotalCents, &agg.PlayerCount); err != nil {
		return nil, fmt.Errorf("lock totals: %w", err)
	}

	agg = mergeStake(agg, b.AmountCents, newStaker)
	if _, err := tx.ExecContext(ctx, `
		UPDATE round_option_totals SET total_cents=$1, player_count=$2
		WHERE track=$3 AND round_number=$4 AND option_idx=$5`,
		agg.TotalCents, agg.PlayerCount, b.Track, b.RoundNumber, b.Option); err != nil {
		return nil, fmt.Errorf("bump totals: %w", err)
	}

	stakers, err := topStakersTx(ctx, tx, b.Track, b.RoundNumber, b.Option)
	if err != nil {
		return nil, err
	}
	agg.TopStakers = stakers
	return &agg, nil
}

func topStakersTx(ctx context.Context, tx *sql.Tx, track string, number int64, option int) ([]TopStaker, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT display_name, amount_cents FROM round_stakes
		WHERE track=$1 AND round_number=$2 AND option_idx=$3
		ORDER BY amount_cents DESC, user_id LIMIT $4`,
		track, number, option, TopStakersLimit)
	if err != nil {
		return nil, fmt.Errorf("read top stakers: %w", err)
	}
	defer rows.Close()

	var out []TopStaker
	for rows.Next() {
		var s TopStaker
		if err := rows.Scan(&s.DisplayName, &s.AmountCents); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// BetsForUserRound retorna as apostas do próprio usuário em uma rodada
// (caminho de resync depois de reconectar)
func (p *Postgres) BetsForUserRound(ctx context.Context, track string, number int64, userID string) ([]Bet, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, option_idx, amount_cents, display_name, created_at
		FROM bets WHERE track=$1 AND round_number=$2 AND user_id=$3
		ORDER BY created_at`, track, number, userID)
	if err != nil {
		return nil, fmt.Errorf("user bets: %w", err)
	}
	defer rows.Close()

	var out []Bet
	for rows.Next() {
		b := Bet{Track: track, RoundNumber: number}
		if err := rows.Scan(&b.ID, &b.UserID, &b.Option, &b.AmountCents, &b.DisplayName, &b.PlacedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SettleRound aplica os créditos de uma rodada exatamente uma vez.
// O flip do flag settled e os créditos ficam na mesma transação: ou tudo
// visível, ou nada. Retorna applied=false quando outra tentativa já liquidou
func (p *Postgres) SettleRound(ctx context.Context, track string, number int64, winner int, multiplier int64) ([]settle.Payout, bool, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	applied, err := markSettledTx(ctx, tx, track, number)
	if err != nil || !applied {
		return nil, false, err
	}

	stakes, err := stakesForRoundTx(ctx, tx, track, number)
	if err != nil {
		return nil, false, err
	}

	payouts := settle.ComputePayouts(stakes, winner, multiplier)
	for _, po := range payouts {
		if err := p.wallets.Credit(ctx, tx, po.UserID, track, po.AmountCents,
			"WIN", fmt.Sprintf("win:%s:%d", track, number)); err != nil {
			return nil, false, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return payouts, true, nil
}

// VoidRound anula uma rodada interrompida antes do sorteio: devolve cada
// stake integralmente, sob o mesmo guard de liquidação única
func (p *Postgres) VoidRound(ctx context.Context, track string, number int64) ([]settle.Payout, bool, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	applied, err := markSettledTx(ctx, tx, track, number)
	if err != nil || !applied {
		return nil, false, err
	}

	stakes, err := stakesForRoundTx(ctx, tx, track, number)
	if err != nil {
		return nil, false, err
	}

	refunds := settle.ComputeRefunds(stakes)
	for _, rf := range refunds {
		if err := p.wallets.Credit(ctx, tx, rf.UserID, track, rf.AmountCents,
			"REFUND", fmt.Sprintf("void:%s:%d", track, number)); err != nil {
			return nil, false, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return refunds, true, nil
}

func markSettledTx(ctx context.Context, tx *sql.Tx, track string, number int64) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE rounds SET settled=TRUE, version=version+1
		WHERE track=$1 AND round_number=$2 AND settled=FALSE`,
		track, number)
	if err != nil {
		return false, fmt.Errorf("mark settled: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func stakesForRoundTx(ctx context.Context, tx *sql.Tx, track string, number int64) ([]settle.Stake, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT user_id, option_idx, amount_cents FROM bets
		WHERE track=$1 AND round_number=$2`, track, number)
	if err != nil {
		return nil, fmt.Errorf("round bets: %w", err)
	}
	defer rows.Close()

	var out []settle.Stake
	for rows.Next() {
		var s settle.Stake
		if err := rows.Scan(&s.UserID, &s.Option, &s.AmountCents); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RoundAggregates monta os agregados por opção de uma rodada, emitindo
// entradas zeradas pra opções sem apostas. Chamado só na reconstrução do
// snapshot do projector, nunca por poll de cliente
func (p *Postgres) RoundAggregates(ctx context.Context, track string, number int64, optionCount int) ([]OptionAggregate, int, error) {
	aggs := make([]OptionAggregate, optionCount)
	for i := range aggs {
		aggs[i].Option = i
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT option_idx, total_cents, player_count FROM round_option_totals
		WHERE track=$1 AND round_number=$2`, track, number)
	if err != nil {
		return nil, 0, fmt.Errorf("totals: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var opt int
		var total int64
		var players int
		if err := rows.Scan(&opt, &total, &players); err != nil {
			return nil, 0, err
		}
		if opt >= 0 && opt < optionCount {
			aggs[opt].TotalCents = total
			aggs[opt].PlayerCount = players
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	srows, err := p.db.QueryContext(ctx, `
		SELECT option_idx, display_name, amount_cents FROM round_stakes
		WHERE track=$1 AND round_number=$2
		ORDER BY option_idx, amount_cents DESC, user_id`, track, number)
	if err != nil {
		return nil, 0, fmt.Errorf("stakes: %w", err)
	}
	defer srows.Close()
	for srows.Next() {
		var opt int
		var s TopStaker
		if err := srows.Scan(&opt, &s.DisplayName, &s.AmountCents); err != nil {
			return nil, 0, err
		}
		if opt >= 0 && opt < optionCount && len(aggs[opt].TopStakers) < TopStakersLimit {
			aggs[opt].TopStakers = append(aggs[opt].TopStakers, s)
		}
	}
	if err := srows.Err(); err != nil {
		return nil, 0, err
	}

	var totalPlayers int
	err = p.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT user_id) FROM round_stakes
		WHERE track=$1 AND round_number=$2`, track, number).Scan(&totalPlayers)
	if err != nil {
		return nil, 0, fmt.Errorf("distinct players: %w", err)
	}

	return aggs, totalPlayers, nil
}
