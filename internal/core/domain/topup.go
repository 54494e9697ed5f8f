package domain

import "fmt"

// PaymentStatus is a provider's verdict on a payment reference.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

// VerifiedPayment is what a payment provider confirmed for a reference.
type VerifiedPayment struct {
	Provider  string        `json:"provider"`
	Reference string        `json:"reference"`
	Status    PaymentStatus `json:"status"`
	Amount    Money         `json:"amount"`
	OwnerID   string        `json:"owner_id"`
}

// TopUpIdempotencyKey scopes a provider reference to its provider, since
// references are only unique within one provider.
func TopUpIdempotencyKey(provider, reference string) string {
	return fmt.Sprintf("topup:%s:%s", provider, reference)
}
