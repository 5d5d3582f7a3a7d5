// Package shopify implements the Shopify Admin GraphQL client and the
// paginated order and catalog sources built on it.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	shopifydomain "github.com/niaga-platform/service-commerce-analytics/internal/domain/shopify"
)

// DefaultAPIVersion is the Admin API version used when none is configured.
const DefaultAPIVersion = "2024-01"

// Client is a Shopify Admin GraphQL client with client-side throttling.
// It never retries: a failed call is returned to the caller as is.
type Client struct {
	endpoint    string
	accessToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// ClientConfig holds configuration for the Shopify client.
type ClientConfig struct {
	Shop              string
	AccessToken       string
	APIVersion        string
	RequestsPerSecond float64
	Burst             int
	RequestTimeout    time.Duration
	Logger            *zap.Logger

	// BaseURL overrides https://{Shop}; used against local test servers.
	BaseURL string
}

// NewClient creates a new Shopify Admin API client.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg.Shop == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("shopify shop domain is required")
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("shopify access token is required")
	}

	version := cfg.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}

	base := cfg.BaseURL
	if base == "" {
		base = "https://" + strings.TrimSuffix(cfg.Shop, "/")
	}

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		endpoint:    fmt.Sprintf("%s/admin/api/%s/graphql.json", strings.TrimSuffix(base, "/"), version),
		accessToken: cfg.AccessToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage              `json:"data"`
	Errors []shopifydomain.GraphQLError `json:"errors"`
}

// Do executes a GraphQL operation and decodes its "data" member into result.
func (c *Client) Do(ctx context.Context, query string, variables map[string]any, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Shopify-Access-Token", c.accessToken)

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	requestID := resp.Header.Get("X-Request-Id")
	c.logger.Debug("Shopify API request completed",
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(startTime)),
		zap.String("request_id", requestID),
		zap.String("response", truncateString(string(respBody), 500)),
	)

	if resp.StatusCode >= 400 {
		apiErr := shopifydomain.NewAPIError("", truncateString(strings.TrimSpace(string(respBody)), 200), resp.StatusCode)
		apiErr.RequestID = requestID
		c.logger.Warn("Shopify API error",
			zap.Int("status", resp.StatusCode),
			zap.String("request_id", requestID),
		)
		return apiErr
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if apiErr := shopifydomain.FromGraphQL(envelope.Errors, resp.StatusCode, requestID); apiErr != nil {
		c.logger.Warn("Shopify GraphQL error",
			zap.String("error_code", apiErr.Code.String()),
			zap.String("message", apiErr.Message),
			zap.String("request_id", requestID),
		)
		return apiErr
	}

	if result != nil {
		if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
			return fmt.Errorf("response carries no data")
		}
		if err := json.Unmarshal(envelope.Data, result); err != nil {
			return fmt.Errorf("failed to parse response data: %w", err)
		}
	}
	return nil
}

// truncateString truncates a string to the specified length.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}
