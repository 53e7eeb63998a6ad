package wallet

import (
	"errors"
	"testing"
)

func TestDebitAllowed(t *testing.T) {
	cases := []struct {
		name    string
		balance int64
		amount  int64
		wantErr bool
	}{
		{"exact balance", 100, 100, false},
		{"partial", 100, 30, false},
		{"overdraft by one", 100, 101, true},
		{"empty wallet", 0, 1, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := debitAllowed(tc.balance, tc.amount)
			if tc.wantErr && !errors.Is(err, ErrInsufficientFunds) {
				t.Fatalf("err = %v, want ErrInsufficientFunds", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}

// O lock pessimista da linha da carteira serializa os débitos concorrentes;
// a sequência equivalente rejeita o débito excedente e nunca deixa o saldo
// negativo.
func TestSerializedDebitsNeverOverdraw(t *testing.T) {
	balance := int64(100)
	var rejected int
	for _, amount := range []int64{60, 50, 40} {
		if err := debitAllowed(balance, amount); err != nil {
			rejected++
			continue
		}
		balance -= amount
		if balance < 0 {
			t.Fatalf("balance went negative: %d", balance)
		}
	}
	if balance != 0 || rejected != 1 {
		t.Fatalf("balance = %d, rejected = %d; want 0 and 1", balance, rejected)
	}
}
