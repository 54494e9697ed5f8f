package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"glotrade-wallet/internal/core/domain"

	"github.com/shopspring/decimal"
)

// Flutterwave verifies references through
// GET /v3/transactions/verify_by_reference?tx_ref={reference}.
type Flutterwave struct {
	baseURL   string
	secretKey string
	client    HTTPClient
}

// NewFlutterwave creates a Flutterwave verifier.
func NewFlutterwave(baseURL, secretKey string, client HTTPClient) *Flutterwave {
	return &Flutterwave{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		client:    client,
	}
}

func (f *Flutterwave) Name() string { return NameFlutterwave }

type flutterwaveVerifyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    *struct {
		TxRef    string          `json:"tx_ref"`
		Status   string          `json:"status"`
		Amount   decimal.Decimal `json:"amount"` // major units
		Currency string          `json:"currency"`
		Meta     struct {
			OwnerID string `json:"owner_id"`
		} `json:"meta"`
	} `json:"data"`
}

// Verify implements ports.PaymentVerifier.
func (f *Flutterwave) Verify(ctx context.Context, reference string) (*domain.VerifiedPayment, error) {
	var body flutterwaveVerifyResponse
	endpoint := f.baseURL + "/v3/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(reference)
	status, err := getJSON(ctx, f.client, endpoint, f.secretKey, &body)
	if err != nil {
		if status == http.StatusNotFound {
			return nil, domain.ErrTopUpNotFound
		}
		return nil, fmt.Errorf("flutterwave verify: %w", err)
	}
	if status == http.StatusNotFound || (body.Status != "success" && strings.Contains(strings.ToLower(body.Message), "no transaction")) {
		return nil, domain.ErrTopUpNotFound
	}
	if status != http.StatusOK || body.Status != "success" || body.Data == nil {
		return nil, fmt.Errorf("flutterwave verify: status %d: %s", status, body.Message)
	}

	currency, err := domain.ParseCurrency(body.Data.Currency)
	if err != nil {
		return nil, fmt.Errorf("flutterwave verify: %w", err)
	}
	amount, err := domain.MoneyFromMajor(body.Data.Amount, currency)
	if err != nil {
		return nil, fmt.Errorf("flutterwave verify: %w", err)
	}

	return &domain.VerifiedPayment{
		Provider:  NameFlutterwave,
		Reference: reference,
		Status:    flutterwaveStatus(body.Data.Status),
		Amount:    amount,
		OwnerID:   body.Data.Meta.OwnerID,
	}, nil
}

func flutterwaveStatus(s string) domain.PaymentStatus {
	switch strings.ToLower(s) {
	case "successful":
		return domain.PaymentSuccess
	case "failed", "cancelled":
		return domain.PaymentFailed
	default:
		return domain.PaymentPending
	}
}
