package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/smallbiznis/importduty/internal/config"
	"github.com/smallbiznis/importduty/internal/exchangerate/domain"
	obstracing "github.com/smallbiznis/importduty/internal/observability/tracing"
)

const maxBodyBytes = 1 << 20

// HTTPSource reads a JSON rate table, either flat ({"JPY": 2.1}) or nested
// under a "rates" key.
type HTTPSource struct {
	url        string
	httpClient *http.Client
}

func NewHTTPSource(cfg config.Config) domain.Source {
	return &HTTPSource{
		url: strings.TrimSpace(cfg.Exchange.RatesURL),
		httpClient: obstracing.WrapHTTPClient(&http.Client{
			Timeout: cfg.Exchange.Timeout(),
		}),
	}
}

func (s *HTTPSource) Latest(ctx context.Context) (domain.Rates, error) {
	if s.url == "" {
		return nil, fmt.Errorf("%w: rates url not configured", domain.ErrSourceUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", domain.ErrSourceUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	rates, err := decodeRates(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	return rates, nil
}

func decodeRates(body []byte) (domain.Rates, error) {
	var nested struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.Unmarshal(body, &nested); err == nil && len(nested.Rates) > 0 {
		return normalize(nested.Rates), nil
	}

	var flat map[string]float64
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, err
	}
	rates := normalize(flat)
	if len(rates) == 0 {
		return nil, fmt.Errorf("empty rate table")
	}
	return rates, nil
}

func normalize(in map[string]float64) domain.Rates {
	out := make(domain.Rates, len(in))
	for currency, rate := range in {
		if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(currency))] = rate
	}
	return out
}
