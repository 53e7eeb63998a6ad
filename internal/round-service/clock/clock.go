package clock

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/lucky-wheel-platform/internal/round-service/repo"
	"github.com/radieske/lucky-wheel-platform/internal/round-service/wheel"
)

// Políticas pra rodada interrompida antes do sorteio (decisão de operação)
const (
	PolicyVoid   = "void"   // estorna todos os stakes e abre rodada nova
	PolicyRedraw = "redraw" // retoma a máquina e sorteia na entrada do spin
)

// Store é o estado persistido que o relógio governa
type Store interface {
	LatestRound(ctx context.Context, track string) (*repo.Round, error)
	InsertRound(ctx context.Context, track string, number int64, deadline time.Time) error
	AdvancePhase(ctx context.Context, r *repo.Round, phase string, deadline time.Time) (bool, error)
	PersistWinner(ctx context.Context, track string, number int64, option int) (int, error)
}

// Settler liquida ou anula rodadas; sempre idempotente
type Settler interface {
	Settle(ctx context.Context, track string, number int64, winner int) error
	Void(ctx context.Context, track string, number int64) error
}

// Durations são as durações fixas de cada fase (constantes de operação)
type Durations struct {
	Betting   time.Duration
	Countdown time.Duration
	Spinning  time.Duration
	Result    time.Duration
}

// Clock é o dono lógico do ciclo de rodadas de uma trilha de moeda:
// BETTING -> COUNTDOWN -> SPINNING -> RESULT -> BETTING(rodada nova).
// Ticks duplicados ou concorrentes perdem o CAS de versão no banco e viram
// no-ops; o estado persistido é sempre a fonte de verdade.
type Clock struct {
	Log     *zap.Logger
	Track   string
	Store   Store
	Wheel   *wheel.Wheel
	Settler Settler

	Durations      Durations
	TickInterval   time.Duration // default 1s
	RecoveryPolicy string        // PolicyVoid | PolicyRedraw
	Rng            *rand.Rand
	Now            func() time.Time // hook de teste

	OnAdvance func(phase string) // métricas
	OnDrift   func()             // métricas: tick stale ignorado

	mu  sync.RWMutex
	cur *repo.Round
}

func (c *Clock) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Current devolve o snapshot em memória da rodada ativa, sem tocar no banco
// e sem nunca bloquear em liquidação em andamento
func (c *Clock) Current() (repo.Round, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cur == nil {
		return repo.Round{}, false
	}
	return *c.cur, true
}

func (c *Clock) setCurrent(r *repo.Round) {
	c.mu.Lock()
	c.cur = r
	c.mu.Unlock()
}

// Run retoma o estado persistido e entra no loop de ticks até o contexto
// encerrar. Erros transitórios (banco fora) só atrasam a transição de fase
func (c *Clock) Run(ctx context.Context) error {
	for {
		if err := c.Recover(ctx); err != nil {
			c.Log.Error("recovery failed, retrying",
				zap.String("track", c.Track), zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(2 * time.Second):
			}
			continue
		}
		break
	}

	interval := c.TickInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.Tick(ctx); err != nil {
				c.Log.Warn("tick failed",
					zap.String("track", c.Track), zap.Error(err))
			}
		}
	}
}

// Recover trata o cold start e os três estados possíveis de crash:
// rodada liquidando (resultado sorteado, settled=false) retoma do estado
// persistido; rodada vencida sem sorteio cai na política do operador;
// qualquer outra coisa só continua a máquina.
func (c *Clock) Recover(ctx context.Context) error {
	r, err := c.Store.LatestRound(ctx, c.Track)
	if err != nil {
		return err
	}
	now := c.now()

	if r == nil {
		// cold start: rodada 1 em betting
		if err := c.Store.InsertRound(ctx, c.Track, 1, now.Add(c.Durations.Betting)); err != nil {
			return err
		}
		r, err = c.Store.LatestRound(ctx, c.Track)
		if err != nil {
			return err
		}
		c.setCurrent(r)
		c.Log.Info("track initialized", zap.String("track", c.Track))
		return nil
	}

	if !r.Settled && r.WinningOption != nil {
		// sorteio persistido, liquidação pendente: retomar é seguro
		c.Log.Info("resuming settlement",
			zap.String("track", c.Track), zap.Int64("round", r.Number))
		if err := c.Settler.Settle(ctx, c.Track, r.Number, *r.WinningOption); err != nil {
			return err
		}
		r.Settled = true
	}

	if !r.Settled && r.WinningOption == nil && !now.Before(r.PhaseDeadline) {
		// interrompida antes do sorteio: semântica ambígua, decide o operador
		if c.RecoveryPolicy == PolicyRedraw {
			c.Log.Warn("resuming interrupted round, outcome drawn on spin entry",
				zap.String("track", c.Track), zap.Int64("round", r.Number))
		} else {
			c.Log.Warn("voiding interrupted round",
				zap.String("track", c.Track), zap.Int64("round", r.Number))
			if err := c.Settler.Void(ctx, c.Track, r.Number); err != nil {
				return err
			}
			if err := c.Store.InsertRound(ctx, c.Track, r.Number+1, now.Add(c.Durations.Betting)); err != nil {
				return err
			}
			r, err = c.Store.LatestRound(ctx, c.Track)
			if err != nil {
				return err
			}
		}
	}

	c.setCurrent(r)
	return nil
}

// Tick avança a fase quando o deadline venceu. Cada transição passa pelo
// guard persistido; perder a corrida só recarrega o estado
func (c *Clock) Tick(ctx context.Context) error {
	c.mu.RLock()
	cur := c.cur
	c.mu.RUnlock()

	if cur == nil {
		r, err := c.Store.LatestRound(ctx, c.Track)
		if err != nil || r == nil {
			return err
		}
		c.setCurrent(r)
		cur = r
	}

	now := c.now()
	if now.Before(cur.PhaseDeadline) {
		return nil
	}

	// rodada já liquidada só abre a próxima, em qualquer fase: cobre o
	// RESULT normal e o crash entre o void e a criação da rodada seguinte
	if cur.Settled {
		return c.openNext(ctx, cur, now)
	}

	switch cur.Phase {
	case repo.PhaseBetting:
		_, err := c.advance(ctx, cur, repo.PhaseCountdown, now.Add(c.Durations.Countdown))
		return err

	case repo.PhaseCountdown:
		next, err := c.advance(ctx, cur, repo.PhaseSpinning, now.Add(c.Durations.Spinning))
		if err != nil || next == nil {
			return err
		}
		// entrada do spin: sorteia e persiste o vencedor antes de sair da fase
		_, err = c.ensureWinner(ctx, next)
		return err

	case repo.PhaseSpinning:
		winner, err := c.ensureWinner(ctx, cur)
		if err != nil {
			return err
		}
		c.mu.RLock()
		cur = c.cur
		c.mu.RUnlock()
		next, err := c.advance(ctx, cur, repo.PhaseResult, now.Add(c.Durations.Result))
		if err != nil || next == nil {
			return err
		}
		// entrada do result: liquida a rodada
		if err := c.Settler.Settle(ctx, c.Track, next.Number, winner); err != nil {
			return err
		}
		settled := *next
		settled.Settled = true
		c.setCurrent(&settled)
		return nil

	case repo.PhaseResult:
		// liquidação falhou na entrada do result; garante antes de abrir
		// a próxima rodada (idempotente se outra tentativa completou)
		winner, err := c.ensureWinner(ctx, cur)
		if err != nil {
			return err
		}
		if err := c.Settler.Settle(ctx, c.Track, cur.Number, winner); err != nil {
			return err
		}
		return c.openNext(ctx, cur, now)
	}
	return nil
}

// openNext cria a rodada seguinte em BETTING e adota o estado persistido
func (c *Clock) openNext(ctx context.Context, cur *repo.Round, now time.Time) error {
	if err := c.Store.InsertRound(ctx, c.Track, cur.Number+1, now.Add(c.Durations.Betting)); err != nil {
		return err
	}
	r, err := c.Store.LatestRound(ctx, c.Track)
	if err != nil {
		return err
	}
	c.setCurrent(r)
	if c.OnAdvance != nil {
		c.OnAdvance(repo.PhaseBetting)
	}
	return nil
}

// advance aplica o CAS de fase. Retorna nil quando o tick perdeu a corrida
func (c *Clock) advance(ctx context.Context, cur *repo.Round, phase string, deadline time.Time) (*repo.Round, error) {
	ok, err := c.Store.AdvancePhase(ctx, cur, phase, deadline)
	if err != nil {
		return nil, err
	}
	if !ok {
		c.Log.Warn("stale tick ignored",
			zap.String("track", c.Track),
			zap.Int64("round", cur.Number),
			zap.String("phase", cur.Phase))
		if c.OnDrift != nil {
			c.OnDrift()
		}
		r, err := c.Store.LatestRound(ctx, c.Track)
		if err != nil {
			return nil, err
		}
		c.setCurrent(r)
		return nil, nil
	}

	next := *cur
	next.Phase = phase
	next.PhaseDeadline = deadline
	next.Version = cur.Version + 1
	c.setCurrent(&next)
	if c.OnAdvance != nil {
		c.OnAdvance(phase)
	}
	return &next, nil
}

// ensureWinner sorteia uma única vez; se outra instância já persistiu,
// adota o resultado existente em vez de re-sortear
func (c *Clock) ensureWinner(ctx context.Context, cur *repo.Round) (int, error) {
	if cur.WinningOption != nil {
		return *cur.WinningOption, nil
	}
	winner, err := c.Store.PersistWinner(ctx, c.Track, cur.Number, c.Wheel.Draw(c.Rng))
	if err != nil {
		return 0, err
	}
	next := *cur
	next.WinningOption = &winner
	c.setCurrent(&next)
	return winner, nil
}
