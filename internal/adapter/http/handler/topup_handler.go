package handler

import (
	"errors"

	"glotrade-wallet/internal/adapter/http/dto"
	"glotrade-wallet/internal/adapter/provider"
	"glotrade-wallet/internal/core/ports"
	"glotrade-wallet/pkg/apperror"
	"glotrade-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Webhook events that carry a completed charge.
const (
	paystackChargeSuccess     = "charge.success"
	flutterwaveChargeComplete = "charge.completed"
)

// TopUpHandler confirms provider payments, on request or by webhook.
type TopUpHandler struct {
	topups ports.TopUpService
	log    zerolog.Logger
}

// NewTopUpHandler creates a new TopUpHandler.
func NewTopUpHandler(topups ports.TopUpService, log zerolog.Logger) *TopUpHandler {
	return &TopUpHandler{topups: topups, log: log}
}

// Confirm handles POST /api/v1/topups/confirm.
func (h *TopUpHandler) Confirm(c *gin.Context) {
	var req dto.TopUpConfirmRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.topups.Confirm(c.Request.Context(), ports.TopUpConfirmation{
		Provider:  req.Provider,
		Reference: req.Reference,
		OwnerID:   req.OwnerID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Move.Replayed {
		response.OK(c, result)
		return
	}
	response.Created(c, result)
}

// PaystackWebhook handles POST /api/v1/webhooks/paystack.
func (h *TopUpHandler) PaystackWebhook(c *gin.Context) {
	var event dto.PaystackWebhook
	if !bindJSON(c, &event) {
		return
	}
	if event.Event != paystackChargeSuccess || event.Data.Reference == "" {
		response.OK(c, dto.WebhookAck{Status: "ignored", Reference: event.Data.Reference})
		return
	}
	h.confirmFromWebhook(c, provider.NamePaystack, event.Data.Reference)
}

// FlutterwaveWebhook handles POST /api/v1/webhooks/flutterwave.
func (h *TopUpHandler) FlutterwaveWebhook(c *gin.Context) {
	var event dto.FlutterwaveWebhook
	if !bindJSON(c, &event) {
		return
	}
	if event.Event != flutterwaveChargeComplete || event.Data.TxRef == "" {
		response.OK(c, dto.WebhookAck{Status: "ignored", Reference: event.Data.TxRef})
		return
	}
	h.confirmFromWebhook(c, provider.NameFlutterwave, event.Data.TxRef)
}

// confirmFromWebhook re-verifies the reference with the provider rather
// than trusting the payload. Retryable failures answer non-2xx so the
// provider redelivers; permanent rejections are acknowledged.
func (h *TopUpHandler) confirmFromWebhook(c *gin.Context, name, reference string) {
	result, err := h.topups.Confirm(c.Request.Context(), ports.TopUpConfirmation{
		Provider:  name,
		Reference: reference,
	})
	if err != nil {
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) || appErr.Retryable {
			h.log.Warn().Err(err).Str("provider", name).Str("reference", reference).Msg("webhook confirmation deferred")
			response.Error(c, err)
			return
		}
		h.log.Info().Str("provider", name).Str("reference", reference).Str("code", appErr.Code).Msg("webhook confirmation rejected")
		response.OK(c, dto.WebhookAck{Status: "rejected", Reference: reference, ErrorCode: appErr.Code})
		return
	}

	status := "credited"
	if result.Move.Replayed {
		status = "replayed"
	}
	response.OK(c, dto.WebhookAck{Status: status, Reference: reference})
}
