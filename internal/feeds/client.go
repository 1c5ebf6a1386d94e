package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/travelsafe/security-barometer/internal/model"
)

const defaultFetchTimeout = 15 * time.Second

// Feed identifies one external alert endpoint
type Feed struct {
	Name   string
	URL    string
	APIKey string
}

// feedEnvelope tolerates the two payload shapes feeds actually send:
// a bare JSON array of alerts, or an object wrapping them
type feedEnvelope struct {
	Alerts []model.UniversalAlert `json:"alerts"`
}

// Client fetches alert batches from external feeds
type Client struct {
	logger     *zap.Logger
	httpClient *http.Client
}

// NewClient creates a feed client with a bounded request timeout
func NewClient(logger *zap.Logger) *Client {
	return &Client{
		logger: logger.Named("feeds"),
		httpClient: &http.Client{
			Timeout: defaultFetchTimeout,
		},
	}
}

// FetchAlerts retrieves and decodes one batch from a feed. Alerts that
// arrive without a source get the feed's name stamped on so downstream
// scoring can still recognize authoritative feeds.
func (c *Client) FetchAlerts(ctx context.Context, feed Feed) ([]model.UniversalAlert, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if feed.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+feed.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	batch, err := decodeAlerts(json.NewDecoder(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to decode feed payload: %w", err)
	}

	for i := range batch {
		if batch[i].Source == "" {
			batch[i].Source = feed.Name
		}
	}

	c.logger.Debug("Fetched feed batch",
		zap.String("feed", feed.Name),
		zap.Int("alerts", len(batch)))
	return batch, nil
}

func decodeAlerts(dec *json.Decoder) ([]model.UniversalAlert, error) {
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	var list []model.UniversalAlert
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var envelope feedEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	return envelope.Alerts, nil
}
