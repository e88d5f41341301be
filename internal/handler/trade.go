package handler

import (
	"net/http"

	"github.com/efreitasn/finance/internal/domain"
	"github.com/efreitasn/finance/internal/service"
)

// TradeHandler handles HTTP requests for buying, selling and depositing.
type TradeHandler struct {
	tradeSvc *service.TradeService
}

// NewTradeHandler creates a new TradeHandler.
func NewTradeHandler(tradeSvc *service.TradeService) *TradeHandler {
	return &TradeHandler{tradeSvc: tradeSvc}
}

// tradeRequest is the JSON request body for POST /buy and POST /sell.
type tradeRequest struct {
	Symbol string `json:"symbol"`
	Shares int64  `json:"shares"`
}

// depositRequest is the JSON request body for POST /deposit.
type depositRequest struct {
	Amount float64 `json:"amount"`
}

// tradeResponse is the JSON response for a settled buy or sell.
// Position is null once the holding has been sold out.
type tradeResponse struct {
	Cash        float64           `json:"cash"`
	CashDisplay string            `json:"cash_display"`
	Position    *positionResponse `json:"position"`
	Trade       historyResponse   `json:"trade"`
}

type depositResponse struct {
	Cash        float64 `json:"cash"`
	CashDisplay string  `json:"cash_display"`
}

// Buy handles POST /buy.
func (h *TradeHandler) Buy(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", invalidBodyMessage)
		return
	}

	res, err := h.tradeSvc.Buy(r.Context(), userIDFrom(r.Context()), req.Symbol, req.Shares)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toTradeResponse(res))
}

// Sell handles POST /sell.
func (h *TradeHandler) Sell(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", invalidBodyMessage)
		return
	}

	res, err := h.tradeSvc.Sell(r.Context(), userIDFrom(r.Context()), req.Symbol, req.Shares)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toTradeResponse(res))
}

// Deposit handles POST /deposit.
func (h *TradeHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", invalidBodyMessage)
		return
	}

	cents, err := domain.DollarsToCents(req.Amount)
	if err != nil {
		mapError(w, err)
		return
	}

	cash, err := h.tradeSvc.Deposit(r.Context(), userIDFrom(r.Context()), cents)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, depositResponse{
		Cash:        domain.CentsToDollars(cash),
		CashDisplay: domain.FormatUSD(cash),
	})
}

func toTradeResponse(res *service.TradeResult) tradeResponse {
	resp := tradeResponse{
		Cash:        domain.CentsToDollars(res.Cash),
		CashDisplay: domain.FormatUSD(res.Cash),
		Trade:       toHistoryResponse(res.Entry),
	}
	if res.Position != nil {
		p := toPositionResponse(res.Position)
		resp.Position = &p
	}
	return resp
}
