package api

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/safar/order-engine/internal/apperr"
	"github.com/safar/order-engine/internal/store"
	"github.com/shopspring/decimal"
)

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid(fmt.Sprintf("%s must be a positive integer", name))
	}
	return id, nil
}

// pageParams reads skip and limit. limit defaults to and may not exceed
// store.MaxLimit.
func pageParams(c *gin.Context) (skip, limit int, err error) {
	skip, limit = 0, store.DefaultLimit

	if raw := c.Query("skip"); raw != "" {
		skip, err = strconv.Atoi(raw)
		if err != nil || skip < 0 {
			return 0, 0, apperr.Invalid("skip must be a non-negative integer")
		}
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > store.MaxLimit {
			return 0, 0, apperr.Invalid(fmt.Sprintf("limit must be between 1 and %d", store.MaxLimit))
		}
	}

	return skip, limit, nil
}

func decimalQuery(c *gin.Context, name string) (*decimal.Decimal, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, apperr.Invalid(fmt.Sprintf("%s must be a number", name))
	}
	return &d, nil
}

func boolQuery(c *gin.Context, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperr.Invalid(fmt.Sprintf("%s must be true or false", name))
	}
	return &b, nil
}
