package dto

import (
	"glotrade-wallet/internal/core/domain"
)

// MovementRequest is the request body for posting a funds movement.
// Amount is a signed major-unit decimal string, e.g. "-1500.50".
type MovementRequest struct {
	Amount          string `json:"amount" binding:"required,major_amount"`
	Category        string `json:"category" binding:"required,max=32"`
	IdempotencyKey  string `json:"idempotency_key" binding:"required,max=128,safe_id"`
	RelatedEntityID string `json:"related_entity_id,omitempty" binding:"omitempty,max=128,safe_id"`
}

// RepaymentRequest is the request body for a credit repayment.
type RepaymentRequest struct {
	Amount         string `json:"amount" binding:"required,major_amount"`
	FromWallet     bool   `json:"from_wallet"`
	IdempotencyKey string `json:"idempotency_key" binding:"required,max=128,safe_id"`
}

// CreditLimitRequest is the request body for changing a credit limit.
type CreditLimitRequest struct {
	Limit string `json:"limit" binding:"required,major_amount"`
}

// FreezeRequest is the request body for placing a hold.
type FreezeRequest struct {
	Amount string `json:"amount" binding:"required,major_amount"`
	Reason string `json:"reason" binding:"required,max=255"`
}

// ReleaseRequest is the request body for releasing a hold. An empty amount
// releases the whole record; a partial amount needs the wallet currency.
type ReleaseRequest struct {
	Amount   string `json:"amount,omitempty" binding:"omitempty,major_amount"`
	Currency string `json:"currency,omitempty" binding:"required_with=Amount"`
}

// TopUpConfirmRequest asks for a provider reference to be verified.
type TopUpConfirmRequest struct {
	Provider  string `json:"provider" binding:"required,max=32"`
	Reference string `json:"reference" binding:"required,max=128"`
	OwnerID   string `json:"owner_id,omitempty" binding:"omitempty,max=128,safe_id"`
}

// EnrollRequest enrolls a wallet in the distributor reward schedule.
type EnrollRequest struct {
	OwnerID  string `json:"owner_id" binding:"required,max=128,safe_id"`
	Currency string `json:"currency" binding:"required,len=3"`
}

// PaystackWebhook is the subset of a Paystack event the service reads.
type PaystackWebhook struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

// FlutterwaveWebhook is the subset of a Flutterwave event the service reads.
type FlutterwaveWebhook struct {
	Event string `json:"event"`
	Data  struct {
		TxRef string `json:"tx_ref"`
	} `json:"data"`
}

// BalanceResponse is a Balance with its amounts also rendered in major units.
type BalanceResponse struct {
	domain.Balance
	Display BalanceDisplay `json:"display"`
}

// BalanceDisplay holds major-unit renderings, e.g. "1500.50".
type BalanceDisplay struct {
	Available   string `json:"available"`
	Frozen      string `json:"frozen"`
	Total       string `json:"total"`
	CreditLimit string `json:"credit_limit"`
	CreditUsed  string `json:"credit_used"`
}

// NewBalanceResponse converts a domain balance to its response body.
func NewBalanceResponse(b domain.Balance) BalanceResponse {
	major := func(minor int64) string {
		m := domain.NewMoney(minor, b.Currency)
		return m.ToMajor().StringFixed(b.Currency.Exponent())
	}
	return BalanceResponse{
		Balance: b,
		Display: BalanceDisplay{
			Available:   major(b.Available),
			Frozen:      major(b.Frozen),
			Total:       major(b.Total),
			CreditLimit: major(b.CreditLimit),
			CreditUsed:  major(b.CreditUsed),
		},
	}
}

// WebhookAck acknowledges a provider callback.
type WebhookAck struct {
	Status    string `json:"status"` // credited, replayed, ignored, rejected
	Reference string `json:"reference,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}
