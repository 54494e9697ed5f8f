package handler

import (
	"errors"
	"strconv"
	"time"

	"glotrade-wallet/internal/adapter/http/middleware"
	"glotrade-wallet/internal/core/domain"
	"glotrade-wallet/pkg/apperror"
	"glotrade-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// walletKey reads the :owner_id and :currency path parameters.
func walletKey(c *gin.Context) (domain.WalletKey, bool) {
	key, err := domain.NewWalletKey(c.Param("owner_id"), c.Param("currency"))
	if err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return domain.WalletKey{}, false
	}
	return key, true
}

// actor returns the authenticated caller's ledger actor.
func actor(c *gin.Context) (domain.Actor, bool) {
	a, ok := middleware.Actor(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return domain.Actor{}, false
	}
	return a, true
}

// bindJSON binds and validates the request body.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	return true
}

// uuidParam parses a UUID path parameter.
func uuidParam(c *gin.Context, name, entity string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, apperror.ErrNotFound(entity))
		return uuid.Nil, false
	}
	return id, true
}

// minorAmount converts a validated major-unit string into minor units.
func minorAmount(c *gin.Context, major string, currency domain.Currency) (int64, bool) {
	m, err := domain.ParseMajor(major, currency)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCurrency) {
			response.Error(c, apperror.Validation(err.Error()))
		} else {
			response.Error(c, apperror.ErrInvalidAmount())
		}
		return 0, false
	}
	return m.Amount, true
}

// pagination reads page and page_size with the list defaults applied.
func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// timeQuery parses an optional RFC 3339 query parameter.
func timeQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		response.Error(c, apperror.Validation(name+" must be an RFC 3339 timestamp"))
		return nil, false
	}
	return &t, true
}
