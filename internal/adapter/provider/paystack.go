package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"glotrade-wallet/internal/core/domain"
)

// Paystack verifies references through GET /transaction/verify/{reference}.
type Paystack struct {
	baseURL   string
	secretKey string
	client    HTTPClient
}

// NewPaystack creates a Paystack verifier.
func NewPaystack(baseURL, secretKey string, client HTTPClient) *Paystack {
	return &Paystack{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		client:    client,
	}
}

func (p *Paystack) Name() string { return NamePaystack }

type paystackVerifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status    string          `json:"status"`
		Reference string          `json:"reference"`
		Amount    int64           `json:"amount"` // already in minor units
		Currency  string          `json:"currency"`
		Metadata  json.RawMessage `json:"metadata"`
	} `json:"data"`
}

type paystackMetadata struct {
	OwnerID string `json:"owner_id"`
}

// Verify implements ports.PaymentVerifier.
func (p *Paystack) Verify(ctx context.Context, reference string) (*domain.VerifiedPayment, error) {
	var body paystackVerifyResponse
	endpoint := p.baseURL + "/transaction/verify/" + url.PathEscape(reference)
	status, err := getJSON(ctx, p.client, endpoint, p.secretKey, &body)
	if err != nil {
		if status == http.StatusNotFound {
			return nil, domain.ErrTopUpNotFound
		}
		return nil, fmt.Errorf("paystack verify: %w", err)
	}
	if status == http.StatusNotFound || (!body.Status && strings.Contains(strings.ToLower(body.Message), "not found")) {
		return nil, domain.ErrTopUpNotFound
	}
	if status != http.StatusOK || !body.Status {
		return nil, fmt.Errorf("paystack verify: status %d: %s", status, body.Message)
	}

	currency, err := domain.ParseCurrency(body.Data.Currency)
	if err != nil {
		return nil, fmt.Errorf("paystack verify: %w", err)
	}

	return &domain.VerifiedPayment{
		Provider:  NamePaystack,
		Reference: reference,
		Status:    paystackStatus(body.Data.Status),
		Amount:    domain.NewMoney(body.Data.Amount, currency),
		OwnerID:   paystackOwner(body.Data.Metadata),
	}, nil
}

func paystackStatus(s string) domain.PaymentStatus {
	switch strings.ToLower(s) {
	case "success":
		return domain.PaymentSuccess
	case "failed", "abandoned", "reversed":
		return domain.PaymentFailed
	default:
		// ongoing, pending, processing, queued
		return domain.PaymentPending
	}
}

// paystackOwner reads metadata.owner_id. Paystack sends metadata as an
// object, an empty string or a JSON-encoded string.
func paystackOwner(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var meta paystackMetadata
	if err := json.Unmarshal(raw, &meta); err == nil {
		return meta.OwnerID
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil && encoded != "" {
		if err := json.Unmarshal([]byte(encoded), &meta); err == nil {
			return meta.OwnerID
		}
	}
	return ""
}
