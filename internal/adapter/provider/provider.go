// Package provider verifies top-up references with external payment
// providers and authenticates their webhook callbacks.
package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Provider names used in routes and as ledger related-entity ids.
const (
	NamePaystack    = "paystack"
	NameFlutterwave = "flutterwave"
)

// maxResponseBytes caps how much of a provider response is read.
const maxResponseBytes = 1 << 20

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// getJSON issues an authenticated GET and decodes the body into out. The
// status code is returned so callers can map provider-specific errors.
func getJSON(ctx context.Context, client HTTPClient, url, secret string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+secret)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request %s: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}

// VerifyPaystackSignature checks the x-paystack-signature header: the hex
// HMAC-SHA512 of the raw body under the secret key.
func VerifyPaystackSignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// VerifyFlutterwaveHash checks the verif-hash header against the hash
// configured on the Flutterwave dashboard.
func VerifyFlutterwaveHash(configured, received string) bool {
	if configured == "" || received == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(received)) == 1
}
