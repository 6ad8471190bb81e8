package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tagdesk/tagdesk/internal/handler/dto"
	"github.com/tagdesk/tagdesk/internal/model"
	"github.com/tagdesk/tagdesk/internal/service"
)

// WalletOperations lists transactions and credits wallets.
type WalletOperations interface {
	ListTransactions(ctx context.Context, f service.TransactionFilter) ([]model.Transaction, error)
	TopUp(ctx context.Context, in service.TopUpInput) (*service.TopUpResult, error)
}

// WalletHandler serves the wallet page.
type WalletHandler struct {
	wallet WalletOperations
	logger *slog.Logger
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(wallet WalletOperations, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{wallet: wallet, logger: logger}
}

// ListTransactions handles GET /api/v1/transactions?q=&user_id=&type=
func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txns, err := h.wallet.ListTransactions(r.Context(), service.TransactionFilter{
		Query:  queryValue(r, "q"),
		UserID: queryValue(r, "user_id"),
		Type:   queryValue(r, "type"),
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewList(txns))
}

// TopUp handles POST /api/v1/wallet/top-up
func (h *WalletHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	var req dto.TopUpRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	result, err := h.wallet.TopUp(r.Context(), service.TopUpInput{
		UserID:         req.UserID,
		Amount:         req.Amount,
		Reference:      req.Reference,
		AccessPassword: req.AccessPassword,
		Actor:          actor(r),
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}
