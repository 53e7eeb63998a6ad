package repo

import "time"

// Fases do ciclo de rodada. Transições só por tempo, nunca por usuário.
const (
	PhaseBetting   = "BETTING"
	PhaseCountdown = "COUNTDOWN"
	PhaseSpinning  = "SPINNING"
	PhaseResult    = "RESULT"
)

// Round é o registro persistido de uma rodada; uma ativa por trilha.
// version sustenta o guard de avanço de fase (CAS), nunca exposto ao cliente.
type Round struct {
	Track         string
	Number        int64
	Phase         string
	PhaseDeadline time.Time
	WinningOption *int
	Settled       bool
	Version       int64
}

// Bet é imutável depois de criada; múltiplas apostas do mesmo usuário na
// mesma opção viram linhas separadas e só se somam na agregação.
type Bet struct {
	ID          string
	Track       string
	RoundNumber int64
	UserID      string
	Option      int
	AmountCents int64
	DisplayName string
	PlacedAt    time.Time
}

// TopStaker é uma entrada do ranking de maiores apostadores de uma opção
type TopStaker struct {
	DisplayName string
	AmountCents int64
}

// OptionAggregate é derivado, mantido incrementalmente a cada aposta aceita
type OptionAggregate struct {
	Option      int
	TotalCents  int64
	PlayerCount int
	TopStakers  []TopStaker
}
