package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/lucky-wheel-platform/internal/round-service/dto"
	"github.com/radieske/lucky-wheel-platform/internal/round-service/ledger"
	"github.com/radieske/lucky-wheel-platform/internal/round-service/projector"
	"github.com/radieske/lucky-wheel-platform/internal/round-service/repo"
	"github.com/radieske/lucky-wheel-platform/internal/round-service/wheel"
)

// Bets é o ledger de apostas visto pela API
type Bets interface {
	Place(ctx context.Context, req ledger.PlaceRequest) (*repo.Bet, *repo.OptionAggregate, error)
	UserBets(ctx context.Context, track string, number int64, userID string) ([]repo.Bet, error)
}

// Snapshots serve a projeção pública de cada trilha
type Snapshots interface {
	Snapshot(ctx context.Context, track string) (*projector.Snapshot, error)
}

// Server expõe a API pública do jogo: snapshot por polling, aposta e resync
type Server struct {
	log    *zap.Logger
	tracks map[string]struct{}
	bets   Bets
	snaps  Snapshots
}

func NewServer(log *zap.Logger, tracks []string, bets Bets, snaps Snapshots) *Server {
	ts := make(map[string]struct{}, len(tracks))
	for _, t := range tracks {
		ts[t] = struct{}{}
	}
	return &Server{log: log, tracks: ts, bets: bets, snaps: snaps}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/rounds/{track}/snapshot", s.snapshot) // polling ~1 req/s por cliente
	r.Post("/v1/bets", s.placeBet)
	r.Get("/v1/bets", s.userBets) // ?userId=&track=&round=
	return r
}

// snapshot serve o estado público da rodada; sem efeitos colaterais,
// seguro em qualquer cadência
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	track := chi.URLParam(r, "track")
	if _, ok := s.tracks[track]; !ok {
		writeError(w, http.StatusNotFound, "unknown_track")
		return
	}

	snap, err := s.snaps.Snapshot(r.Context(), track)
	if errors.Is(err, projector.ErrUnknownTrack) {
		writeError(w, http.StatusNotFound, "unknown_track")
		return
	}
	if err != nil {
		s.log.Error("snapshot failed", zap.String("track", track), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId required")
		return
	}
	if _, ok := s.tracks[req.Track]; !ok {
		writeError(w, http.StatusBadRequest, "unknown_track")
		return
	}

	bet, agg, err := s.bets.Place(r.Context(), ledger.PlaceRequest{
		UserID:      req.UserID,
		Track:       req.Track,
		Option:      req.Option,
		AmountCents: req.AmountCents,
		DisplayName: req.DisplayName,
	})
	switch {
	case errors.Is(err, wheel.ErrInvalidOption):
		writeError(w, http.StatusBadRequest, "invalid_option")
		return
	case errors.Is(err, ledger.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "invalid_amount")
		return
	case errors.Is(err, ledger.ErrRoundClosed):
		// aposta chegou depois do deadline: "perdeu essa rodada"
		writeError(w, http.StatusConflict, "round_closed")
		return
	case errors.Is(err, ledger.ErrInsufficientBalance):
		writeError(w, http.StatusPaymentRequired, "insufficient_balance")
		return
	case err != nil:
		s.log.Error("place bet failed", zap.String("userId", req.UserID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}

	writeJSON(w, http.StatusOK, dto.PlaceBetResponse{
		Bet:       betView(bet),
		Aggregate: aggregateView(agg),
	})
}

// userBets devolve as apostas do próprio chamador na rodada (caminho de
// resync pós-reconexão), nunca confia em estado cacheado no cliente
func (s *Server) userBets(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	track := r.URL.Query().Get("track")
	roundStr := r.URL.Query().Get("round")
	if userID == "" || roundStr == "" {
		writeError(w, http.StatusBadRequest, "userId and round required")
		return
	}
	if _, ok := s.tracks[track]; !ok {
		writeError(w, http.StatusBadRequest, "unknown_track")
		return
	}
	round, err := strconv.ParseInt(roundStr, 10, 64)
	if err != nil || round <= 0 {
		writeError(w, http.StatusBadRequest, "invalid round")
		return
	}

	bets, err := s.bets.UserBets(r.Context(), track, round, userID)
	if err != nil {
		s.log.Error("user bets failed", zap.String("userId", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}

	resp := dto.UserBetsResponse{Track: track, RoundNumber: round, Bets: []dto.BetView{}}
	for i := range bets {
		resp.Bets = append(resp.Bets, betView(&bets[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func betView(b *repo.Bet) dto.BetView {
	return dto.BetView{
		BetID:       b.ID,
		Track:       b.Track,
		RoundNumber: b.RoundNumber,
		Option:      b.Option,
		AmountCents: b.AmountCents,
		DisplayName: b.DisplayName,
		PlacedAt:    b.PlacedAt,
	}
}

func aggregateView(a *repo.OptionAggregate) dto.AggregateView {
	view := dto.AggregateView{
		Option:      a.Option,
		TotalCents:  a.TotalCents,
		PlayerCount: a.PlayerCount,
		TopStakers:  []dto.StakerView{},
	}
	for _, s := range a.TopStakers {
		view.TopStakers = append(view.TopStakers, dto.StakerView{
			DisplayName: s.DisplayName,
			AmountCents: s.AmountCents,
		})
	}
	return view
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, dto.ErrorResponse{Error: code})
}
