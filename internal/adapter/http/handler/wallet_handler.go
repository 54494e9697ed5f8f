package handler

import (
	"glotrade-wallet/internal/adapter/http/dto"
	"glotrade-wallet/internal/core/domain"
	"glotrade-wallet/internal/core/ports"
	"glotrade-wallet/pkg/apperror"
	"glotrade-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles balance, entry and movement endpoints.
type WalletHandler struct {
	ledger ports.LedgerService
	recon  ports.ReconciliationService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledger ports.LedgerService, recon ports.ReconciliationService) *WalletHandler {
	return &WalletHandler{ledger: ledger, recon: recon}
}

// GetBalance handles GET /api/v1/wallets/:owner_id/:currency/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	key, ok := walletKey(c)
	if !ok {
		return
	}

	balance, err := h.ledger.GetBalance(c.Request.Context(), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewBalanceResponse(*balance))
}

// ListEntries handles GET /api/v1/wallets/:owner_id/:currency/entries.
func (h *WalletHandler) ListEntries(c *gin.Context) {
	key, ok := walletKey(c)
	if !ok {
		return
	}

	q := ports.EntryQuery{Key: key}
	if raw := c.Query("category"); raw != "" {
		cat, err := domain.ParseCategory(raw)
		if err != nil {
			response.Error(c, apperror.ErrInvalidCategory())
			return
		}
		q.Category = &cat
	}
	if q.From, ok = timeQuery(c, "from"); !ok {
		return
	}
	if q.To, ok = timeQuery(c, "to"); !ok {
		return
	}
	q.Page, q.PageSize = pagination(c)

	entries, total, err := h.ledger.ListEntries(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, entries, q.Page, q.PageSize, total)
}

// Move handles POST /api/v1/wallets/:owner_id/:currency/movements.
func (h *WalletHandler) Move(c *gin.Context) {
	key, ok := walletKey(c)
	if !ok {
		return
	}
	act, ok := actor(c)
	if !ok {
		return
	}

	var req dto.MovementRequest
	if !bindJSON(c, &req) {
		return
	}
	category, err := domain.ParseCategory(req.Category)
	if err != nil {
		response.Error(c, apperror.ErrInvalidCategory())
		return
	}
	amount, ok := minorAmount(c, req.Amount, key.Currency)
	if !ok {
		return
	}

	result, err := h.ledger.Move(c.Request.Context(), ports.MoveRequest{
		Key:             key,
		Amount:          amount,
		Category:        category,
		IdempotencyKey:  req.IdempotencyKey,
		RelatedEntityID: req.RelatedEntityID,
		Actor:           act,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Replayed {
		response.OK(c, result)
		return
	}
	response.Created(c, result)
}

// Reverse handles POST /api/v1/entries/:id/reverse.
func (h *WalletHandler) Reverse(c *gin.Context) {
	entryID, ok := uuidParam(c, "id", "entry")
	if !ok {
		return
	}
	act, ok := actor(c)
	if !ok {
		return
	}

	result, err := h.ledger.Reverse(c.Request.Context(), ports.ReverseRequest{EntryID: entryID, Actor: act})
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Replayed {
		response.OK(c, result)
		return
	}
	response.Created(c, result)
}

// Archive handles DELETE /api/v1/wallets/:owner_id/:currency.
func (h *WalletHandler) Archive(c *gin.Context) {
	key, ok := walletKey(c)
	if !ok {
		return
	}
	act, ok := actor(c)
	if !ok {
		return
	}

	if err := h.ledger.Archive(c.Request.Context(), key, act); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"owner_id": key.OwnerID, "currency": key.Currency, "archived": true})
}

// Reconcile handles GET /api/v1/wallets/:owner_id/:currency/reconciliation.
func (h *WalletHandler) Reconcile(c *gin.Context) {
	key, ok := walletKey(c)
	if !ok {
		return
	}

	report, err := h.recon.VerifyConservation(c.Request.Context(), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}
