package projector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/lucky-wheel-platform/internal/round-service/repo"
	"github.com/radieske/lucky-wheel-platform/internal/round-service/wheel"
)

var ErrUnknownTrack = errors.New("unknown track")

// HistorySize limita o ring de resultados recentes exibidos no cliente
const HistorySize = 12

// Rounds é a fonte do estado da rodada ativa (o relógio da trilha),
// leitura em memória, nunca bloqueia em escrita em andamento
type Rounds interface {
	Current(track string) (repo.Round, bool)
}

// Aggregates lê os agregados mantidos incrementalmente pelo ledger
type Aggregates interface {
	RoundAggregates(ctx context.Context, track string, number int64, optionCount int) ([]repo.OptionAggregate, int, error)
}

// Snapshot é a projeção pública barata consumida por polling (~1 req/s por
// cliente). Sempre servida do último snapshot commitado, nunca do ledger.
type Snapshot struct {
	Track          string       `json:"track"`
	RoundNumber    int64        `json:"roundNumber"`
	Phase          string       `json:"phase"`
	TimeLeftMs     int64        `json:"timeLeftMs"`
	WinningOption  *int         `json:"winningOption"`
	RecentOutcomes []int        `json:"recentOutcomes"`
	TotalPlayers   int          `json:"totalPlayers"`
	Options        []OptionView `json:"options"`
}

type OptionView struct {
	Option      int          `json:"option"`
	Multiplier  int64        `json:"multiplier"`
	TotalCents  int64        `json:"totalCents"`
	PlayerCount int          `json:"playerCount"`
	TopStakers  []StakerView `json:"topStakers"`
}

type StakerView struct {
	DisplayName string `json:"displayName"`
	AmountCents int64  `json:"amountCents"`
}

// Projector monta e cacheia o snapshot público por trilha.
// O cache Redis com TTL curto limita a defasagem a menos de um segundo e
// mantém a latência de leitura independente da contenção de escrita.
type Projector struct {
	Log        *zap.Logger
	Rounds     Rounds
	Aggregates Aggregates
	Cache      *redis.Client
	Wheel      *wheel.Wheel
	TTL        time.Duration
	Now        func() time.Time
}

func snapshotKey(track string) string { return "round:snapshot:" + track }
func outcomesKey(track string) string { return "round:outcomes:" + track }

func (p *Projector) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Snapshot devolve o snapshot cacheado, reconstruindo no miss
func (p *Projector) Snapshot(ctx context.Context, track string) (*Snapshot, error) {
	if p.Cache != nil {
		if b, err := p.Cache.Get(ctx, snapshotKey(track)).Bytes(); err == nil {
			var snap Snapshot
			// TTL curto: timeLeft defasa no máximo uma janela de cache
			if jerr := json.Unmarshal(b, &snap); jerr == nil {
				return &snap, nil
			}
		}
	}

	return p.Rebuild(ctx, track)
}

// Rebuild monta o snapshot a partir do relógio e dos agregados mantidos
// incrementalmente, O(opções), nunca varrendo as apostas cruas, e repõe o
// cache pro restante da janela de TTL
func (p *Projector) Rebuild(ctx context.Context, track string) (*Snapshot, error) {
	round, ok := p.Rounds.Current(track)
	if !ok {
		return nil, ErrUnknownTrack
	}

	aggs, totalPlayers, err := p.Aggregates.RoundAggregates(ctx, track, round.Number, p.Wheel.Options())
	if err != nil {
		return nil, fmt.Errorf("aggregates: %w", err)
	}

	outcomes, err := p.recentOutcomes(ctx, track)
	if err != nil {
		p.Log.Warn("outcome ring read failed", zap.Error(err))
		outcomes = []int{}
	}

	snap := p.Build(round, aggs, totalPlayers, outcomes, p.now())

	if p.Cache != nil {
		if b, err := json.Marshal(snap); err == nil {
			if err := p.Cache.Set(ctx, snapshotKey(track), b, p.TTL).Err(); err != nil {
				p.Log.Warn("snapshot cache set failed", zap.Error(err))
			}
		}
	}
	return snap, nil
}

// Build é a montagem pura do snapshot, O(opções)
func (p *Projector) Build(round repo.Round, aggs []repo.OptionAggregate, totalPlayers int, outcomes []int, now time.Time) *Snapshot {
	snap := &Snapshot{
		Track:          round.Track,
		RoundNumber:    round.Number,
		Phase:          round.Phase,
		TimeLeftMs:     clampMs(round.PhaseDeadline.Sub(now)),
		WinningOption:  round.WinningOption,
		RecentOutcomes: outcomes,
		TotalPlayers:   totalPlayers,
		Options:        make([]OptionView, 0, p.Wheel.Options()),
	}
	if snap.RecentOutcomes == nil {
		snap.RecentOutcomes = []int{}
	}

	for i := 0; i < p.Wheel.Options(); i++ {
		view := OptionView{
			Option:     i,
			Multiplier: p.Wheel.Multiplier(i),
			TopStakers: []StakerView{},
		}
		if i < len(aggs) {
			view.TotalCents = aggs[i].TotalCents
			view.PlayerCount = aggs[i].PlayerCount
			for _, s := range aggs[i].TopStakers {
				view.TopStakers = append(view.TopStakers, StakerView{
					DisplayName: s.DisplayName,
					AmountCents: s.AmountCents,
				})
			}
		}
		snap.Options = append(snap.Options, view)
	}
	return snap
}

// PushOutcome registra o resultado no ring limitado e invalida o snapshot
// cacheado pra nova fase aparecer no próximo poll
func (p *Projector) PushOutcome(ctx context.Context, track string, option int) error {
	if p.Cache == nil {
		return nil
	}
	pipe := p.Cache.TxPipeline()
	pipe.LPush(ctx, outcomesKey(track), option)
	pipe.LTrim(ctx, outcomesKey(track), 0, HistorySize-1)
	pipe.Del(ctx, snapshotKey(track))
	_, err := pipe.Exec(ctx)
	return err
}

func (p *Projector) recentOutcomes(ctx context.Context, track string) ([]int, error) {
	if p.Cache == nil {
		return []int{}, nil
	}
	vals, err := p.Cache.LRange(ctx, outcomesKey(track), 0, HistorySize-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(vals))
	for _, v := range vals {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			out = append(out, n)
		}
	}
	return out, nil
}

func clampMs(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return d.Milliseconds()
}
