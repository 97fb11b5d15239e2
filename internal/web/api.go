package web

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"

	"go.uber.org/zap"
)

type accountHandler func(w http.ResponseWriter, r *http.Request, account string)

// withAccount rejects aliases that are not configured.
func (s *Server) withAccount(h accountHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		alias := r.PathValue("alias")
		if !slices.Contains(s.Accounts, alias) {
			writeError(w, http.StatusNotFound, "unknown account")
			return
		}
		h(w, r, alias)
	}
}

func (s *Server) handleAccounts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"accounts": s.Accounts})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request, account string) {
	b, err := s.Ledger.Balance(r.Context(), account)
	if err != nil {
		s.internalError(w, "balance", err)
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "no balance yet")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request, account string) {
	positions, err := s.Ledger.Positions(r.Context(), account)
	if err != nil {
		s.internalError(w, "positions", err)
		return
	}
	writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request, account string) {
	orders, err := s.Ledger.Orders(r.Context(), account)
	if err != nil {
		s.internalError(w, "orders", err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// handleIncomes lists incomes at or after ?since= (ms epoch, default 0).
func (s *Server) handleIncomes(w http.ResponseWriter, r *http.Request, account string) {
	var since int64
	if v := r.URL.Query().Get("since"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "since must be a millisecond timestamp")
			return
		}
		since = parsed
	}

	incomes, err := s.Ledger.IncomesSince(r.Context(), account, since)
	if err != nil {
		s.internalError(w, "incomes", err)
		return
	}
	writeJSON(w, http.StatusOK, incomes)
}

func (s *Server) handleDailyBalance(w http.ResponseWriter, r *http.Request, account string) {
	series, err := s.Ledger.DailyBalances(r.Context(), account)
	if err != nil {
		s.internalError(w, "daily balance", err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request, account string) {
	ticks, err := s.Ledger.Prices(r.Context(), account)
	if err != nil {
		s.internalError(w, "prices", err)
		return
	}
	writeJSON(w, http.StatusOK, ticks)
}

func (s *Server) internalError(w http.ResponseWriter, what string, err error) {
	s.Logger.Error("failed to serve "+what, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "failed to load "+what)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
