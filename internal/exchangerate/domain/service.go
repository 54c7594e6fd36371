package domain

import (
	"context"
	"errors"
	"time"
)

// Rates maps an upper-case currency code to its LKR rate.
type Rates map[string]float64

type Service interface {
	Refresh(ctx context.Context) (*RefreshResult, error)
	Current(ctx context.Context) (*CurrentResponse, error)
}

// Source fetches the latest published rates.
type Source interface {
	Latest(ctx context.Context) (Rates, error)
}

// RateCache stores the last fetched rates. A miss returns ok == false.
type RateCache interface {
	Get(ctx context.Context) (Rates, bool, error)
	Set(ctx context.Context, rates Rates, ttl time.Duration) error
}

const (
	SourceLive     = "live"
	SourceFallback = "fallback"

	RefreshedMessage = "Exchange rates updated successfully."
)

type RefreshResult struct {
	Message      string  `json:"message"`
	Currency     string  `json:"currency"`
	ExchangeRate float64 `json:"exchangeRate"`
	UpdatedCount int     `json:"updatedCount"`
	Rates        Rates   `json:"rates"`
}

type CurrentResponse struct {
	Source          string `json:"source"`
	DefaultCurrency string `json:"defaultCurrency"`
	Rates           Rates  `json:"rates"`
}

var (
	ErrSourceUnavailable   = errors.New("exchange_source_unavailable")
	ErrRateCurrencyMissing = errors.New("rate_currency_missing")
	ErrRateLimited         = errors.New("rate_limited")
)
