package dto

type PlaceBetRequest struct {
	UserID      string `json:"userId"`
	Track       string `json:"track"`        // moeda da trilha, ex: "coins"
	Option      int    `json:"option"`       // índice na enumeração fixa
	AmountCents int64  `json:"amount_cents"` // unidade mínima da moeda
	DisplayName string `json:"display_name"`
}
