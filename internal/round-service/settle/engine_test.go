package settle

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/radieske/lucky-wheel-platform/internal/round-service/wheel"
	"github.com/radieske/lucky-wheel-platform/pkg/contracts/events"
)

type fakeStore struct {
	payouts    []Payout
	applied    bool
	settleArgs []int64 // round numbers recebidos
	multiplier int64
}

func (f *fakeStore) SettleRound(_ context.Context, _ string, number int64, _ int, multiplier int64) ([]Payout, bool, error) {
	f.settleArgs = append(f.settleArgs, number)
	f.multiplier = multiplier
	return f.payouts, f.applied, nil
}

func (f *fakeStore) VoidRound(_ context.Context, _ string, number int64) ([]Payout, bool, error) {
	f.settleArgs = append(f.settleArgs, number)
	return f.payouts, f.applied, nil
}

type fakePublisher struct {
	txs     []events.WalletTransaction
	settled []events.RoundSettled
}

func (f *fakePublisher) PublishTransaction(_ context.Context, e events.WalletTransaction) error {
	f.txs = append(f.txs, e)
	return nil
}

func (f *fakePublisher) PublishRoundSettled(_ context.Context, e events.RoundSettled) error {
	f.settled = append(f.settled, e)
	return nil
}

type fakeRing struct {
	outcomes []int
}

func (f *fakeRing) PushOutcome(_ context.Context, _ string, option int) error {
	f.outcomes = append(f.outcomes, option)
	return nil
}

func newTestWheel(t *testing.T) *wheel.Wheel {
	t.Helper()
	// multiplicadores alinhados ao cenário de referência: opção 2 paga 15x,
	// opção 6 paga 45x
	w, err := wheel.New(
		[]int64{2, 3, 15, 5, 10, 25, 45, 60},
		[]int64{500, 333, 66, 200, 100, 40, 22, 16},
	)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func TestEngineSettlePublishesOnePerWinner(t *testing.T) {
	store := &fakeStore{
		payouts: []Payout{
			{UserID: "user-a", AmountCents: 1500},
			{UserID: "user-b", AmountCents: 750},
		},
		applied: true,
	}
	publ := &fakePublisher{}
	ring := &fakeRing{}
	var settled int
	eng := &Engine{
		Log:       zap.NewNop(),
		Wheel:     newTestWheel(t),
		Store:     store,
		Publ:      publ,
		Ring:      ring,
		OnSettled: func() { settled++ },
	}

	if err := eng.Settle(context.Background(), "coins", 7, 2); err != nil {
		t.Fatal(err)
	}

	if store.multiplier != 15 {
		t.Errorf("multiplier passed = %d, want 15", store.multiplier)
	}
	if len(publ.txs) != 2 {
		t.Fatalf("published %d transactions, want 2", len(publ.txs))
	}
	for _, tx := range publ.txs {
		if tx.Kind != events.TxKindWin || tx.Currency != "coins" || tx.RoundNumber != 7 {
			t.Errorf("bad transaction %+v", tx)
		}
	}
	if len(publ.settled) != 1 || publ.settled[0].TotalPaidCents != 2250 || publ.settled[0].WinnersCount != 2 {
		t.Errorf("round_settled = %+v", publ.settled)
	}
	if len(ring.outcomes) != 1 || ring.outcomes[0] != 2 {
		t.Errorf("ring outcomes = %v, want [2]", ring.outcomes)
	}
	if settled != 1 {
		t.Errorf("OnSettled fired %d times, want 1", settled)
	}
}

// Segunda tentativa de liquidação é um no-op silencioso: nada publicado,
// nada empurrado pro ring.
func TestEngineSettleConflictIsSilentNoop(t *testing.T) {
	store := &fakeStore{applied: false}
	publ := &fakePublisher{}
	ring := &fakeRing{}
	var conflicts int
	eng := &Engine{
		Log:        zap.NewNop(),
		Wheel:      newTestWheel(t),
		Store:      store,
		Publ:       publ,
		Ring:       ring,
		OnConflict: func() { conflicts++ },
	}

	if err := eng.Settle(context.Background(), "coins", 7, 2); err != nil {
		t.Fatal(err)
	}
	if len(publ.txs) != 0 || len(publ.settled) != 0 || len(ring.outcomes) != 0 {
		t.Error("conflict settlement must not publish anything")
	}
	if conflicts != 1 {
		t.Errorf("OnConflict fired %d times, want 1", conflicts)
	}
}

func TestEngineSettleZeroBettors(t *testing.T) {
	store := &fakeStore{payouts: nil, applied: true}
	publ := &fakePublisher{}
	eng := &Engine{
		Log:   zap.NewNop(),
		Wheel: newTestWheel(t),
		Store: store,
		Publ:  publ,
		Ring:  &fakeRing{},
	}

	if err := eng.Settle(context.Background(), "coins", 9, 4); err != nil {
		t.Fatal(err)
	}
	if len(publ.txs) != 0 {
		t.Errorf("published %d transactions on empty round, want 0", len(publ.txs))
	}
	if len(publ.settled) != 1 || publ.settled[0].TotalPaidCents != 0 {
		t.Errorf("round_settled = %+v, want zero paid", publ.settled)
	}
}

func TestEngineVoidPublishesRefunds(t *testing.T) {
	store := &fakeStore{
		payouts: []Payout{{UserID: "u1", AmountCents: 300}},
		applied: true,
	}
	publ := &fakePublisher{}
	eng := &Engine{
		Log:   zap.NewNop(),
		Wheel: newTestWheel(t),
		Store: store,
		Publ:  publ,
	}

	if err := eng.Void(context.Background(), "gems", 3); err != nil {
		t.Fatal(err)
	}
	if len(publ.txs) != 1 || publ.txs[0].Kind != events.TxKindRefund {
		t.Fatalf("txs = %+v, want one refund", publ.txs)
	}
	if len(publ.settled) != 1 || !publ.settled[0].Voided {
		t.Errorf("round_settled = %+v, want voided", publ.settled)
	}
}
