package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jansahayak/agent/domain/repositories"
)

// DefaultEndpoint is a free IP-geolocation service; coarse, but the region
// mapping only needs a latitude band.
const DefaultEndpoint = "http://ip-api.com/json"

// HTTPLocator implements repositories.Locator against an ip-api style JSON
// endpoint.
type HTTPLocator struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

func NewHTTPLocator(endpoint string, logger *zap.Logger) *HTTPLocator {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &HTTPLocator{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

// Locate fetches approximate coordinates. The context deadline bounds the
// whole lookup; callers treat failure as "use the default region".
func (l *HTTPLocator) Locate(ctx context.Context) (repositories.Coordinates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint, nil)
	if err != nil {
		return repositories.Coordinates{}, fmt.Errorf("build location request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return repositories.Coordinates{}, fmt.Errorf("location lookup: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return repositories.Coordinates{}, fmt.Errorf("location lookup: status %d", resp.StatusCode)
	}

	var body struct {
		Status string  `json:"status"`
		Lat    float64 `json:"lat"`
		Lon    float64 `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return repositories.Coordinates{}, fmt.Errorf("decode location response: %w", err)
	}
	if body.Status != "" && body.Status != "success" {
		return repositories.Coordinates{}, fmt.Errorf("location lookup refused: %s", body.Status)
	}
	return repositories.Coordinates{Lat: body.Lat, Lng: body.Lon}, nil
}
