package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"paperbroker/broker"
	"paperbroker/risk"
)

type placeOrderRequest struct {
	Symbol      string  `json:"symbol" validate:"required"`
	Side        string  `json:"side" validate:"required,oneof=buy sell"`
	Type        string  `json:"type" validate:"required,oneof=market limit stop_loss stop_limit"`
	Quantity    float64 `json:"quantity" validate:"required,gt=0"`
	LimitPrice  float64 `json:"limitPrice" validate:"omitempty,gt=0"`
	StopPrice   float64 `json:"stopPrice" validate:"omitempty,gt=0"`
	TimeInForce string  `json:"timeInForce" validate:"omitempty,oneof=day gtc ioc fok"`
}

func (s *Server) PostOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.log.Error("decode order request", "error", err)
		s.writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}

	if err := s.validate.Struct(req); err != nil {
		s.log.Error("order request validation failed", "error", err)
		s.writeError(w, http.StatusBadRequest, "invalid order parameters")
		return
	}

	order, err := s.broker.SubmitOrder(r.Context(), broker.OrderRequest{
		Symbol:      strings.ToUpper(req.Symbol),
		Side:        broker.Side(req.Side),
		Type:        broker.OrderType(req.Type),
		Quantity:    req.Quantity,
		LimitPrice:  req.LimitPrice,
		StopPrice:   req.StopPrice,
		TimeInForce: broker.TimeInForce(req.TimeInForce),
	})
	if err != nil {
		// A rejection is still a well-formed order record; the caller gets
		// the order with its status and reason rather than a bare error.
		s.log.Info("order rejected", "symbol", req.Symbol, "reason", order.Reason, "error", err)
		s.writeJSON(w, http.StatusOK, order)
		return
	}

	s.log.Info("order accepted", "orderId", order.ID, "symbol", order.Symbol,
		"side", order.Side, "type", order.Type, "status", order.Status)
	s.writeJSON(w, http.StatusCreated, order)
}

func (s *Server) GetOrders(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	orders, err := s.broker.GetOrderHistory(r.Context(), limit)
	if err != nil {
		s.log.Error("get order history", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load orders")
		return
	}
	s.writeJSON(w, http.StatusOK, orders)
}

func (s *Server) GetOpenOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.broker.GetOpenOrders(r.Context())
	if err != nil {
		s.log.Error("get open orders", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load orders")
		return
	}
	s.writeJSON(w, http.StatusOK, orders)
}

func (s *Server) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	order, err := s.broker.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, broker.ErrOrderNotFound) {
			s.writeError(w, http.StatusNotFound, "order not found")
			return
		}
		s.log.Error("get order", "orderId", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load order")
		return
	}
	s.writeJSON(w, http.StatusOK, order)
}

type cancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

func (s *Server) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ok, err := s.broker.CancelOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, broker.ErrOrderNotFound) {
			s.writeError(w, http.StatusNotFound, "order not found")
			return
		}
		s.log.Error("cancel order", "orderId", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to cancel order")
		return
	}

	s.log.Info("cancel order", "orderId", id, "cancelled", ok)
	s.writeJSON(w, http.StatusOK, cancelResponse{Cancelled: ok})
}

func (s *Server) GetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.broker.GetPositions(r.Context())
	if err != nil {
		s.log.Error("get positions", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load positions")
		return
	}
	s.writeJSON(w, http.StatusOK, positions)
}

func (s *Server) GetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := s.broker.GetAccountInfo(r.Context())
	if err != nil {
		s.log.Error("get account info", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load account")
		return
	}
	s.writeJSON(w, http.StatusOK, acct)
}

func (s *Server) GetRisk(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.risk.Snapshot())
}

func (s *Server) PatchRisk(w http.ResponseWriter, r *http.Request) {
	var u risk.Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		s.log.Error("decode risk update", "error", err)
		s.writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}

	if err := s.risk.Apply(u); err != nil {
		s.log.Error("risk update rejected", "error", err)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.persistRisk()
	s.writeJSON(w, http.StatusOK, s.risk.Snapshot())
}

type toggleRequest struct {
	Active bool `json:"active"`
}

func (s *Server) PostRiskToggle(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}

	s.risk.Toggle(req.Active)
	s.persistRisk()
	s.writeJSON(w, http.StatusOK, s.risk.Snapshot())
}

func (s *Server) PostRiskTrigger(w http.ResponseWriter, r *http.Request) {
	s.risk.Trigger()
	s.log.Warn("kill switch manually triggered")
	s.writeJSON(w, http.StatusOK, s.risk.Snapshot())
}

func (s *Server) PostRiskReset(w http.ResponseWriter, r *http.Request) {
	s.risk.Reset()
	s.log.Info("kill switch reset")
	s.writeJSON(w, http.StatusOK, s.risk.Snapshot())
}

func (s *Server) persistRisk() {
	if s.store == nil {
		return
	}
	snap := s.risk.Snapshot()
	u := risk.Update{
		MaxDailyLoss:     &snap.MaxDailyLoss,
		RiskPerTrade:     &snap.RiskPerTrade,
		KillSwitchActive: &snap.KillSwitchActive,
	}
	if err := s.store.Save(keyRiskSettings, u); err != nil {
		s.log.Error("persist risk settings", "error", err)
	}
}

type watchlistRequest struct {
	Symbol string `json:"symbol" validate:"required"`
}

func (s *Server) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Watchlist())
}

func (s *Server) PostWatchlist(w http.ResponseWriter, r *http.Request) {
	var req watchlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	sym := strings.ToUpper(req.Symbol)

	s.wmu.Lock()
	found := false
	for _, existing := range s.watchlist {
		if existing == sym {
			found = true
			break
		}
	}
	if !found {
		s.watchlist = append(s.watchlist, sym)
	}
	s.wmu.Unlock()

	s.persistWatchlist()
	s.writeJSON(w, http.StatusOK, s.Watchlist())
}

func (s *Server) DeleteWatchlist(w http.ResponseWriter, r *http.Request) {
	sym := strings.ToUpper(chi.URLParam(r, "symbol"))

	s.wmu.Lock()
	kept := s.watchlist[:0]
	for _, existing := range s.watchlist {
		if existing != sym {
			kept = append(kept, existing)
		}
	}
	s.watchlist = kept
	s.wmu.Unlock()

	s.persistWatchlist()
	s.writeJSON(w, http.StatusOK, s.Watchlist())
}

func (s *Server) persistWatchlist() {
	if s.store == nil {
		return
	}
	if err := s.store.Save(keyWatchlist, s.Watchlist()); err != nil {
		s.log.Error("persist watchlist", "error", err)
	}
}
