// Package scores implements the final-scores feed collaborator. The
// grading sweep polls it for completed games; results are keyed by the
// same game identifiers the slate carries.
package scores

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/wagerproof/wagerproof/internal/config"
	"github.com/wagerproof/wagerproof/pkg/models"
)

// Result is one game's state from the feed.
type Result struct {
	GameID    string `json:"game_id"`
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
	Final     bool   `json:"final"`
}

// Client is the grading sweep's view of the scores feed.
type Client interface {
	// FetchResults returns results for a sport/date slate. Games not yet
	// final may be present with Final=false; callers must check.
	FetchResults(ctx context.Context, sport models.Sport, slateDate string) ([]Result, error)
}

// HTTPClient polls an HTTP scores endpoint.
type HTTPClient struct {
	cfg    config.ScoresConfig
	client *http.Client
}

// NewHTTPClient creates a scores feed client from config.
func NewHTTPClient(cfg config.ScoresConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type feedResponse struct {
	Results []Result `json:"results"`
}

func (c *HTTPClient) FetchResults(ctx context.Context, sport models.Sport, slateDate string) ([]Result, error) {
	if c.cfg.Endpoint == "" {
		return nil, fmt.Errorf("scores: endpoint not configured")
	}

	q := url.Values{}
	q.Set("sport", string(sport))
	q.Set("date", slateDate)

	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.cfg.Endpoint+"/results?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("scores: create request: %w", err)
	}
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("scores: request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("scores: status %d: %s", httpResp.StatusCode, string(respBody))
	}

	var feed feedResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("scores: decode response: %w", err)
	}
	return feed.Results, nil
}
