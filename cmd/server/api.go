package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"signal-trader/internal/decision"
	"signal-trader/internal/domain"
	"signal-trader/internal/observability"
	"signal-trader/internal/pipeline"
)

// routes builds the HTTP handler for health, metrics and the operator API.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("GET /metrics", observability.Handler())

	mux.HandleFunc("GET /signals", s.handleListSignals)
	mux.HandleFunc("GET /signals/{id}", s.handleGetSignal)
	mux.HandleFunc("GET /signals/{id}/decision", s.handleSignalDecision)
	mux.HandleFunc("POST /signals/{id}/execute", s.handleExecuteSignal)
	mux.HandleFunc("POST /signals/{id}/ignore", s.handleIgnoreSignal)
	mux.HandleFunc("GET /trades", s.handleListTrades)
	mux.HandleFunc("POST /trades/{id}/close", s.handleCloseTrade)
	mux.HandleFunc("GET /outcomes", s.handleOutcomes)

	return mux
}

// SignalResponse is the JSON form of a signal.
type SignalResponse struct {
	SignalID        string    `json:"signal_id"`
	SourceMessageID string    `json:"source_message_id"`
	ChannelID       string    `json:"channel_id"`
	Author          string    `json:"author"`
	Ticker          string    `json:"ticker"`
	Direction       string    `json:"direction"`
	EntryPrice      float64   `json:"entry_price"`
	StopLossPrice   float64   `json:"stop_loss_price"`
	TargetPrices    []float64 `json:"target_prices"`
	RiskPercent     float64   `json:"risk_percent"`
	Leverage        *float64  `json:"leverage,omitempty"`
	Status          string    `json:"status"`
	DecisionReason  *string   `json:"decision_reason,omitempty"`
	CreatedAt       int64     `json:"created_at"`
	UpdatedAt       int64     `json:"updated_at"`
}

func signalResponse(sig *domain.Signal) SignalResponse {
	return SignalResponse{
		SignalID:        sig.SignalID,
		SourceMessageID: sig.SourceMessageID,
		ChannelID:       sig.ChannelID,
		Author:          sig.Author,
		Ticker:          sig.Ticker,
		Direction:       string(sig.Direction),
		EntryPrice:      sig.EntryPrice,
		StopLossPrice:   sig.StopLossPrice,
		TargetPrices:    sig.TargetPrices,
		RiskPercent:     sig.RiskPercent,
		Leverage:        sig.Leverage,
		Status:          string(sig.Status),
		DecisionReason:  sig.DecisionReason,
		CreatedAt:       sig.CreatedAt,
		UpdatedAt:       sig.UpdatedAt,
	}
}

// TradeResponse is the JSON form of a trade.
type TradeResponse struct {
	TradeID     string   `json:"trade_id"`
	SignalID    string   `json:"signal_id"`
	Ticker      string   `json:"ticker"`
	Direction   string   `json:"direction"`
	Leverage    float64  `json:"leverage"`
	EntryPrice  float64  `json:"entry_price"`
	TargetPrice float64  `json:"target_price"`
	StopPrice   float64  `json:"stop_price"`
	Amount      float64  `json:"amount"`
	Status      string   `json:"status"`
	OpenedAt    int64    `json:"opened_at"`
	OrderIDs    []string `json:"order_ids"`
	ClosedAt    *int64   `json:"closed_at,omitempty"`
	CloseReason *string  `json:"close_reason,omitempty"`
	ClosePrice  *float64 `json:"close_price,omitempty"`
	PnLAmount   *float64 `json:"pnl_amount,omitempty"`
	PnLPercent  *float64 `json:"pnl_percent,omitempty"`
}

func tradeResponse(t *domain.Trade) TradeResponse {
	resp := TradeResponse{
		TradeID:     t.TradeID,
		SignalID:    t.SignalID,
		Ticker:      t.Ticker,
		Direction:   string(t.Direction),
		Leverage:    t.Leverage,
		EntryPrice:  t.EntryPrice,
		TargetPrice: t.TargetPrice,
		StopPrice:   t.StopPrice,
		Amount:      t.Amount,
		Status:      string(t.Status),
		OpenedAt:    t.OpenedAt,
		OrderIDs:    t.OrderIDs,
		ClosedAt:    t.ClosedAt,
		ClosePrice:  t.ClosePrice,
		PnLAmount:   t.PnLAmount,
		PnLPercent:  t.PnLPercent,
	}
	if t.CloseReason != nil {
		r := string(*t.CloseReason)
		resp.CloseReason = &r
	}
	return resp
}

func (s *Server) handleListSignals(w http.ResponseWriter, r *http.Request) {
	status := domain.SignalPending
	if v := r.URL.Query().Get("status"); v != "" {
		status = domain.SignalStatus(v)
		if !status.IsValid() {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown status %q", v))
			return
		}
	}

	signals, err := s.manager.ListSignals(r.Context(), status)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := make([]SignalResponse, 0, len(signals))
	for _, sig := range signals {
		resp = append(resp, signalResponse(sig))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSignal(w http.ResponseWriter, r *http.Request) {
	sig, err := s.manager.GetSignal(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, signalResponse(sig))
}

// handleSignalDecision re-runs the risk policy for a stored signal against
// the current config and reports every check.
func (s *Server) handleSignalDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sig, err := s.manager.GetSignal(ctx, r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	open, err := s.manager.OpenTradeCount(ctx)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	d := decision.Decide(ctx, sig.Parsed(), s.cfg.Risk(), decision.Env{
		OpenTrades: open,
		MarketCap:  s.marketCap,
	})

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(pipeline.Describe(d)))
}

// handleExecuteSignal executes a pending signal with the current sizing
// policy. Operator execution bypasses the decision checks.
func (s *Server) handleExecuteSignal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sig, err := s.manager.GetSignal(ctx, r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	plan := decision.PlanFor(sig.Parsed(), s.cfg.Risk())
	trade, err := s.manager.ExecuteSignal(ctx, sig.SignalID, plan)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, tradeResponse(trade))
}

// IgnoreRequest is the body of POST /signals/{id}/ignore.
type IgnoreRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleIgnoreSignal(w http.ResponseWriter, r *http.Request) {
	var req IgnoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	if req.Reason == "" {
		req.Reason = "ignored by operator"
	}

	id := r.PathValue("id")
	if err := s.manager.IgnoreSignal(r.Context(), id, req.Reason); err != nil {
		s.writeDomainError(w, err)
		return
	}
	sig, err := s.manager.GetSignal(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, signalResponse(sig))
}

// handleListTrades lists open trades, or closed trades when status=closed.
// Closed trades are filtered by from/to in Unix milliseconds.
func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		trades []*domain.Trade
		err    error
	)
	switch q.Get("status") {
	case "", string(domain.TradeOpen):
		trades, err = s.manager.ListOpenTrades(r.Context())
	case string(domain.TradeClosed):
		from, ferr := parseMillis(q.Get("from"), 0)
		to, terr := parseMillis(q.Get("to"), time.Now().UnixMilli())
		if ferr != nil || terr != nil {
			s.writeError(w, http.StatusBadRequest, errors.New("from and to must be Unix milliseconds"))
			return
		}
		trades, err = s.manager.ListClosedTrades(r.Context(), from, to)
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown status %q", q.Get("status")))
		return
	}
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := make([]TradeResponse, 0, len(trades))
	for _, t := range trades {
		resp = append(resp, tradeResponse(t))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// CloseRequest is the body of POST /trades/{id}/close.
type CloseRequest struct {
	Reason string  `json:"reason"`
	Price  float64 `json:"price"`
}

func (s *Server) handleCloseTrade(w http.ResponseWriter, r *http.Request) {
	var req CloseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	reason := domain.CloseManual
	if req.Reason != "" {
		reason = domain.CloseReason(req.Reason)
	}
	if !reason.IsValid() {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown close reason %q", req.Reason))
		return
	}
	if req.Price <= 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("price must be positive"))
		return
	}

	trade, err := s.manager.CloseTrade(r.Context(), r.PathValue("id"), reason, req.Price)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tradeResponse(trade))
}

// OutcomeResponse is the JSON form of one per-ticker outcome summary.
type OutcomeResponse struct {
	Ticker        string  `json:"ticker"`
	Trades        uint64  `json:"trades"`
	Wins          uint64  `json:"wins"`
	Losses        uint64  `json:"losses"`
	TotalPnL      float64 `json:"total_pnl"`
	AvgPnLPercent float64 `json:"avg_pnl_percent"`
}

func (s *Server) handleOutcomes(w http.ResponseWriter, r *http.Request) {
	if s.stores.outcomes == nil {
		s.writeJSON(w, http.StatusOK, []OutcomeResponse{})
		return
	}
	summaries, err := s.stores.outcomes.Summary(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	resp := make([]OutcomeResponse, 0, len(summaries))
	for _, sm := range summaries {
		resp = append(resp, OutcomeResponse{
			Ticker:        sm.Ticker,
			Trades:        sm.TotalTrades,
			Wins:          sm.Wins,
			Losses:        sm.Losses,
			TotalPnL:      sm.TotalPnL,
			AvgPnLPercent: sm.AvgPnLPercent,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// writeDomainError maps lifecycle errors to HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrAlreadyTerminal), errors.Is(err, domain.ErrAlreadyClosed):
		s.writeError(w, http.StatusConflict, err)
	case domain.IsExecutionError(err):
		s.writeError(w, http.StatusBadGateway, err)
	default:
		s.logger.Printf("API error: %v", err)
		s.writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("Encode response: %v", err)
	}
}

func parseMillis(v string, def int64) (int64, error) {
	if v == "" {
		return def, nil
	}
	return strconv.ParseInt(v, 10, 64)
}
