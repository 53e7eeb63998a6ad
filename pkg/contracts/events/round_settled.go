package events

import "time"

// Evento publicado no tópico "round_settled" após a liquidação de uma rodada.
type RoundSettled struct {
	Track          string    `json:"track"`
	RoundNumber    int64     `json:"round_number"`
	WinningOption  int       `json:"winning_option"`
	Voided         bool      `json:"voided,omitempty"` // rodada anulada: todos os stakes estornados
	TotalPaidCents int64     `json:"total_paid_cents"`
	WinnersCount   int       `json:"winners_count"`
	Ts             time.Time `json:"ts"`
}
