package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/radieske/lucky-wheel-platform/internal/round-service/dto"
	"github.com/radieske/lucky-wheel-platform/internal/round-service/ledger"
	"github.com/radieske/lucky-wheel-platform/internal/round-service/projector"
	"github.com/radieske/lucky-wheel-platform/internal/round-service/repo"
	"github.com/radieske/lucky-wheel-platform/internal/round-service/wheel"
)

type fakeBets struct {
	err error
	bet *repo.Bet
	agg *repo.OptionAggregate
}

func (f *fakeBets) Place(_ context.Context, _ ledger.PlaceRequest) (*repo.Bet, *repo.OptionAggregate, error) {
	return f.bet, f.agg, f.err
}

func (f *fakeBets) UserBets(_ context.Context, track string, number int64, userID string) ([]repo.Bet, error) {
	return []repo.Bet{
		{ID: "b1", Track: track, RoundNumber: number, UserID: userID, Option: 2, AmountCents: 100},
	}, nil
}

type fakeSnaps struct {
	snap *projector.Snapshot
	err  error
}

func (f *fakeSnaps) Snapshot(_ context.Context, _ string) (*projector.Snapshot, error) {
	return f.snap, f.err
}

func newTestServer(bets Bets, snaps Snapshots) *Server {
	return NewServer(zap.NewNop(), []string{"coins", "gems"}, bets, snaps)
}

func TestPlaceBetErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid option", wheel.ErrInvalidOption, http.StatusBadRequest, "invalid_option"},
		{"invalid amount", ledger.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
		{"round closed", ledger.ErrRoundClosed, http.StatusConflict, "round_closed"},
		{"insufficient", ledger.ErrInsufficientBalance, http.StatusPaymentRequired, "insufficient_balance"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(&fakeBets{err: tc.err}, &fakeSnaps{})
			body := `{"userId":"u1","track":"coins","option":1,"amount_cents":100}`
			req := httptest.NewRequest(http.MethodPost, "/v1/bets", strings.NewReader(body))
			rec := httptest.NewRecorder()

			srv.Router().ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			var out dto.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
				t.Fatal(err)
			}
			if out.Error != tc.wantCode {
				t.Errorf("error = %q, want %q", out.Error, tc.wantCode)
			}
		})
	}
}

func TestPlaceBetSuccess(t *testing.T) {
	bets := &fakeBets{
		bet: &repo.Bet{ID: "b1", Track: "coins", RoundNumber: 7, UserID: "u1", Option: 2, AmountCents: 100},
		agg: &repo.OptionAggregate{Option: 2, TotalCents: 150, PlayerCount: 2},
	}
	srv := newTestServer(bets, &fakeSnaps{})
	body := `{"userId":"u1","track":"coins","option":2,"amount_cents":100,"display_name":"alice"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/bets", strings.NewReader(body))
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var out dto.PlaceBetResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Bet.BetID != "b1" || out.Aggregate.TotalCents != 150 {
		t.Errorf("response = %+v", out)
	}
}

func TestPlaceBetUnknownTrack(t *testing.T) {
	srv := newTestServer(&fakeBets{}, &fakeSnaps{})
	body := `{"userId":"u1","track":"doge","option":1,"amount_cents":100}`
	req := httptest.NewRequest(http.MethodPost, "/v1/bets", strings.NewReader(body))
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSnapshotUnknownTrack(t *testing.T) {
	srv := newTestServer(&fakeBets{}, &fakeSnaps{})
	req := httptest.NewRequest(http.MethodGet, "/v1/rounds/doge/snapshot", nil)
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestSnapshotOK(t *testing.T) {
	winner := 2
	snaps := &fakeSnaps{snap: &projector.Snapshot{
		Track: "coins", RoundNumber: 7, Phase: repo.PhaseSpinning,
		WinningOption: &winner, RecentOutcomes: []int{2, 4},
	}}
	srv := newTestServer(&fakeBets{}, snaps)
	req := httptest.NewRequest(http.MethodGet, "/v1/rounds/coins/snapshot", nil)
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out projector.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.RoundNumber != 7 || out.WinningOption == nil || *out.WinningOption != 2 {
		t.Errorf("snapshot = %+v", out)
	}
}

func TestUserBetsRequiresParams(t *testing.T) {
	srv := newTestServer(&fakeBets{}, &fakeSnaps{})
	req := httptest.NewRequest(http.MethodGet, "/v1/bets?track=coins", nil)
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUserBetsOK(t *testing.T) {
	srv := newTestServer(&fakeBets{}, &fakeSnaps{})
	req := httptest.NewRequest(http.MethodGet, "/v1/bets?userId=u1&track=coins&round=7", nil)
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var out dto.UserBetsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Bets) != 1 || out.Bets[0].BetID != "b1" || out.RoundNumber != 7 {
		t.Errorf("response = %+v", out)
	}
}
