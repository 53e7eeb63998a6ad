package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/radieske/lucky-wheel-platform/internal/wallet-service/dto"
)

type fakeRepo struct {
	balance int64
}

func (f *fakeRepo) GetOrCreateWallet(_ context.Context, _, _ string) (string, int64, error) {
	return "w1", f.balance, nil
}

func (f *fakeRepo) Deposit(_ context.Context, _, _ string, amount int64, _ string) (string, int64, error) {
	f.balance += amount
	return "w1", f.balance, nil
}

func TestGetWalletRequiresParams(t *testing.T) {
	srv := NewServer(zap.NewNop(), &fakeRepo{})
	req := httptest.NewRequest(http.MethodGet, "/wallet?userId=u1", nil)
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDeposit(t *testing.T) {
	srv := NewServer(zap.NewNop(), &fakeRepo{balance: 50})
	body := `{"userId":"u1","currency":"coins","amount_cents":100,"external_ref":"tx-1"}`
	req := httptest.NewRequest(http.MethodPost, "/wallet/deposit", strings.NewReader(body))
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var out dto.WalletResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.BalanceCents != 150 || out.Currency != "coins" {
		t.Errorf("response = %+v", out)
	}
}

func TestDepositRejectsNonPositive(t *testing.T) {
	srv := NewServer(zap.NewNop(), &fakeRepo{})
	body := `{"userId":"u1","currency":"coins","amount_cents":0}`
	req := httptest.NewRequest(http.MethodPost, "/wallet/deposit", strings.NewReader(body))
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
