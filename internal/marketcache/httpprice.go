package marketcache

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/solward/flywheel/internal/numeric"
)

// HTTPPriceSource is a PriceSource backed by an HTTP endpoint returning
// {asset: usd_price} (§6).
type HTTPPriceSource struct {
	name   string
	url    string
	client *http.Client
}

// NewHTTPPriceSource builds a price source. url must accept a trailing
// "?asset=<asset>" query and respond with a JSON object keyed by asset.
func NewHTTPPriceSource(name, url string) *HTTPPriceSource {
	return &HTTPPriceSource{name: name, url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *HTTPPriceSource) Name() string { return s.name }

func (s *HTTPPriceSource) Price(ctx context.Context, asset string) (numeric.Amount, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s?asset=%s", s.url, asset), nil)
	if err != nil {
		return numeric.Zero(), err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return numeric.Zero(), err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return numeric.Zero(), fmt.Errorf("%s: unexpected status %d", s.name, resp.StatusCode)
	}

	var decoded map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return numeric.Zero(), err
	}
	price, ok := decoded[asset]
	if !ok {
		return numeric.Zero(), fmt.Errorf("%s: no price for asset %q", s.name, asset)
	}
	return numeric.FromFloat(price), nil
}
