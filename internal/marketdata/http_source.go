package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// HTTPSource talks to the external quote provider:
// GET {base}/price?symbol=SYM -> {"price": "...", "as_of": "..."}.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 3 * time.Second},
	}
}

type priceResponse struct {
	Price decimal.Decimal `json:"price"`
	AsOf  time.Time       `json:"as_of"`
}

func (s *HTTPSource) GetPrice(ctx context.Context, symbol string) (Quote, error) {
	u := s.baseURL + "/price?symbol=" + url.QueryEscape(symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Quote{}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("quote fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("quote fetch: status %d", resp.StatusCode)
	}
	var body priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Quote{}, fmt.Errorf("quote decode: %w", err)
	}
	return Quote{Symbol: symbol, Price: body.Price, AsOf: body.AsOf}, nil
}
