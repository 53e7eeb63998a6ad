package dto

import "time"

type BetView struct {
	BetID       string    `json:"betId"`
	Track       string    `json:"track"`
	RoundNumber int64     `json:"round_number"`
	Option      int       `json:"option"`
	AmountCents int64     `json:"amount_cents"`
	DisplayName string    `json:"display_name"`
	PlacedAt    time.Time `json:"placed_at"`
}

type StakerView struct {
	DisplayName string `json:"displayName"`
	AmountCents int64  `json:"amountCents"`
}

type AggregateView struct {
	Option      int          `json:"option"`
	TotalCents  int64        `json:"totalCents"`
	PlayerCount int          `json:"playerCount"`
	TopStakers  []StakerView `json:"topStakers"`
}

type PlaceBetResponse struct {
	Bet       BetView       `json:"bet"`
	Aggregate AggregateView `json:"aggregate"`
}

type UserBetsResponse struct {
	Track       string    `json:"track"`
	RoundNumber int64     `json:"round_number"`
	Bets        []BetView `json:"bets"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
