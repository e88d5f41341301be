package handler

import (
	"net/http"

	"github.com/efreitasn/finance/internal/domain"
	"github.com/efreitasn/finance/internal/service"
	"github.com/go-chi/chi/v5"
)

// PortfolioHandler serves the read-only account views and quotes.
type PortfolioHandler struct {
	portfolioSvc *service.PortfolioService
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(portfolioSvc *service.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{portfolioSvc: portfolioSvc}
}

type positionResponse struct {
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Shares       int64   `json:"shares"`
	Price        float64 `json:"price"`
	PriceDisplay string  `json:"price_display"`
	Total        float64 `json:"total"`
	TotalDisplay string  `json:"total_display"`
}

// portfolioResponse is the JSON response for GET /portfolio.
type portfolioResponse struct {
	Cash            float64            `json:"cash"`
	CashDisplay     string             `json:"cash_display"`
	Positions       []positionResponse `json:"positions"`
	NetWorth        float64            `json:"net_worth"`
	NetWorthDisplay string             `json:"net_worth_display"`
}

type historyResponse struct {
	ID           string  `json:"id"`
	Symbol       string  `json:"symbol"`
	Shares       int64   `json:"shares"`
	Price        float64 `json:"price"`
	PriceDisplay string  `json:"price_display"`
	Type         string  `json:"type"`
	ExecutedAt   string  `json:"executed_at"`
}

type historyListResponse struct {
	History []historyResponse `json:"history"`
}

type quoteResponse struct {
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	PriceDisplay string  `json:"price_display"`
}

// GetPortfolio handles GET / and GET /portfolio.
func (h *PortfolioHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	p, err := h.portfolioSvc.GetPortfolio(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		mapError(w, err)
		return
	}

	positions := make([]positionResponse, len(p.Positions))
	for i, pos := range p.Positions {
		positions[i] = toPositionResponse(pos)
	}

	WriteJSON(w, http.StatusOK, portfolioResponse{
		Cash:            domain.CentsToDollars(p.Cash),
		CashDisplay:     domain.FormatUSD(p.Cash),
		Positions:       positions,
		NetWorth:        domain.CentsToDollars(p.NetWorth),
		NetWorthDisplay: domain.FormatUSD(p.NetWorth),
	})
}

// GetHistory handles GET /history.
func (h *PortfolioHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.portfolioSvc.GetHistory(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		mapError(w, err)
		return
	}

	history := make([]historyResponse, len(entries))
	for i, e := range entries {
		history[i] = toHistoryResponse(e)
	}
	WriteJSON(w, http.StatusOK, historyListResponse{History: history})
}

// GetQuote handles GET /quote/{symbol} and GET /quote?symbol=.
func (h *PortfolioHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	if symbol == "" {
		symbol = r.URL.Query().Get("symbol")
	}

	q, err := h.portfolioSvc.GetQuote(r.Context(), symbol)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, quoteResponse{
		Symbol:       q.Symbol,
		Name:         q.Name,
		Price:        domain.CentsToDollars(q.Price),
		PriceDisplay: domain.FormatUSD(q.Price),
	})
}

func toPositionResponse(p *domain.Position) positionResponse {
	return positionResponse{
		Symbol:       p.Symbol,
		Name:         p.Name,
		Shares:       p.Shares,
		Price:        domain.CentsToDollars(p.Price),
		PriceDisplay: domain.FormatUSD(p.Price),
		Total:        domain.CentsToDollars(p.Total),
		TotalDisplay: domain.FormatUSD(p.Total),
	}
}

func toHistoryResponse(e *domain.HistoryEntry) historyResponse {
	return historyResponse{
		ID:           e.ID,
		Symbol:       e.Symbol,
		Shares:       e.Shares,
		Price:        domain.CentsToDollars(e.Price),
		PriceDisplay: domain.FormatUSD(e.Price),
		Type:         string(e.Type),
		ExecutedAt:   formatTime(e.ExecutedAt),
	}
}
