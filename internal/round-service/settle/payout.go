package settle

import "sort"

// Stake é a visão mínima de uma aposta usada no cálculo de pagamento
type Stake struct {
	UserID      string
	Option      int
	AmountCents int64
}

// Payout é o crédito líquido de um usuário em uma rodada liquidada
type Payout struct {
	UserID      string
	AmountCents int64
}

// ComputePayouts soma os stakes vencedores por usuário e aplica o
// multiplicador fixo da opção vencedora. Um crédito por usuário, mesmo com
// várias apostas na mesma opção. Resultado ordenado por usuário pra manter
// ordem de lock estável ao creditar carteiras.
func ComputePayouts(stakes []Stake, winner int, multiplier int64) []Payout {
	byUser := make(map[string]int64)
	for _, s := range stakes {
		if s.Option != winner {
			continue
		}
		byUser[s.UserID] += s.AmountCents * multiplier
	}

	out := make([]Payout, 0, len(byUser))
	for user, amount := range byUser {
		out = append(out, Payout{UserID: user, AmountCents: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// ComputeRefunds soma todos os stakes por usuário, independente da opção.
// Usado pra anular uma rodada interrompida antes do sorteio.
func ComputeRefunds(stakes []Stake) []Payout {
	byUser := make(map[string]int64)
	for _, s := range stakes {
		byUser[s.UserID] += s.AmountCents
	}

	out := make([]Payout, 0, len(byUser))
	for user, amount := range byUser {
		out = append(out, Payout{UserID: user, AmountCents: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
