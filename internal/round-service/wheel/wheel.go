package wheel

import (
	"errors"
	"fmt"
	"math/rand"
)

var (
	ErrInvalidOption = errors.New("invalid option")
)

// Wheel descreve o layout fixo da roleta: multiplicador de pagamento e peso
// de sorteio por opção. As duas tabelas são desacopladas de propósito: o peso
// define a probabilidade de vitória, o multiplicador define o tamanho do
// prêmio (odds fixas, independentes do volume apostado em cada opção).
type Wheel struct {
	multipliers []int64
	weights     []int64
	cumulative  []int64
	total       int64
}

// New valida e constrói o layout. As tabelas precisam ter o mesmo tamanho,
// pesos estritamente positivos e multiplicadores não negativos.
func New(multipliers, weights []int64) (*Wheel, error) {
	if len(multipliers) == 0 {
		return nil, errors.New("wheel: empty layout")
	}
	if len(multipliers) != len(weights) {
		return nil, fmt.Errorf("wheel: %d multipliers vs %d weights", len(multipliers), len(weights))
	}

	w := &Wheel{
		multipliers: append([]int64(nil), multipliers...),
		weights:     append([]int64(nil), weights...),
		cumulative:  make([]int64, len(weights)),
	}
	for i, wt := range weights {
		if wt <= 0 {
			return nil, fmt.Errorf("wheel: weight %d must be positive", i)
		}
		if multipliers[i] < 0 {
			return nil, fmt.Errorf("wheel: multiplier %d must be non-negative", i)
		}
		w.total += wt
		w.cumulative[i] = w.total
	}
	return w, nil
}

// Options retorna a quantidade de opções do layout
func (w *Wheel) Options() int { return len(w.multipliers) }

// Multiplier retorna o multiplicador fixo de pagamento da opção
func (w *Wheel) Multiplier(option int) int64 { return w.multipliers[option] }

// Multipliers retorna uma cópia da tabela de multiplicadores
func (w *Wheel) Multipliers() []int64 {
	return append([]int64(nil), w.multipliers...)
}

// Validate rejeita índices fora do intervalo fixo de opções
func (w *Wheel) Validate(option int) error {
	if option < 0 || option >= len(w.multipliers) {
		return ErrInvalidOption
	}
	return nil
}

// PickAt resolve um roll em [0, TotalWeight) para a primeira opção cujo
// peso acumulado excede o valor sorteado. Função pura: o sorteio fica
// reproduzível a partir do roll persistido.
func (w *Wheel) PickAt(roll int64) int {
	for i, c := range w.cumulative {
		if roll < c {
			return i
		}
	}
	return len(w.cumulative) - 1
}

// Draw sorteia exatamente uma opção vencedora usando o rng injetado
func (w *Wheel) Draw(rng *rand.Rand) int {
	return w.PickAt(rng.Int63n(w.total))
}

// TotalWeight expõe a soma dos pesos (útil pra testes estatísticos)
func (w *Wheel) TotalWeight() int64 { return w.total }
