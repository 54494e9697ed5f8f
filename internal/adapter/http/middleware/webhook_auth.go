package middleware

import (
	"bytes"
	"io"

	"glotrade-wallet/internal/adapter/provider"
	"glotrade-wallet/pkg/apperror"
	"glotrade-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	HeaderPaystackSignature = "X-Paystack-Signature"
	HeaderFlutterwaveHash   = "Verif-Hash"
)

// PaystackSignature verifies the HMAC-SHA512 of the raw body before the
// handler binds it. The body is restored for the handler.
func PaystackSignature(secretKey string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.Error(c, apperror.Validation("cannot read request body"))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if !provider.VerifyPaystackSignature(secretKey, body, c.GetHeader(HeaderPaystackSignature)) {
			log.Warn().Str("client_ip", c.ClientIP()).Msg("paystack webhook signature rejected")
			response.Error(c, apperror.ErrInvalidSignature())
			c.Abort()
			return
		}
		c.Next()
	}
}

// FlutterwaveHash checks the verif-hash header against the configured hash.
func FlutterwaveHash(webhookHash string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !provider.VerifyFlutterwaveHash(webhookHash, c.GetHeader(HeaderFlutterwaveHash)) {
			log.Warn().Str("client_ip", c.ClientIP()).Msg("flutterwave webhook hash rejected")
			response.Error(c, apperror.ErrInvalidSignature())
			c.Abort()
			return
		}
		c.Next()
	}
}
