// Package mobilitydata provides a client for the Mobility Database API.
package mobilitydata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

const defaultBaseURL = "https://api.mobilitydatabase.org/v1"

// EnvAPIKey names the environment variable holding the registry refresh token.
const EnvAPIKey = "MOBILITY_API_KEY"

// Access tokens are valid for one hour; refresh five minutes early so a token
// never expires mid-request.
const (
	tokenLifetime     = time.Hour
	tokenSafetyMargin = 5 * time.Minute
)

// HTTPClient interface for making HTTP requests (allows injection for testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL sets a custom base URL (useful for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// Client is a Mobility Database API client. It exchanges the long-lived API
// key for a short-lived access token on demand and caches the token for the
// lifetime of the instance. One client owns one token lifecycle; it is not
// safe for concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPClient

	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a new registry client using the given API key.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewClientFromEnv creates a client from the MOBILITY_API_KEY environment
// variable. A missing key is a configuration error, not a recoverable one.
func NewClientFromEnv(opts ...ClientOption) (*Client, error) {
	apiKey := os.Getenv(EnvAPIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return NewClient(apiKey, opts...), nil
}

// GetFeedByID fetches a single feed of any data type.
func (c *Client) GetFeedByID(ctx context.Context, id string) (*Feed, error) {
	var feed Feed
	if err := c.get(ctx, "/feeds/"+id, nil, &feed); err != nil {
		return nil, err
	}
	return &feed, nil
}

// GetGtfsFeedByID fetches a single GTFS schedule feed.
func (c *Client) GetGtfsFeedByID(ctx context.Context, id string) (*Feed, error) {
	var feed Feed
	if err := c.get(ctx, "/gtfs_feeds/"+id, nil, &feed); err != nil {
		return nil, err
	}
	return &feed, nil
}

// GetGtfsRtFeedByID fetches a single GTFS realtime feed.
func (c *Client) GetGtfsRtFeedByID(ctx context.Context, id string) (*Feed, error) {
	var feed Feed
	if err := c.get(ctx, "/gtfs_rt_feeds/"+id, nil, &feed); err != nil {
		return nil, err
	}
	return &feed, nil
}

// GetFeeds fetches one page of feeds of any data type.
func (c *Client) GetFeeds(ctx context.Context, filter FeedFilter) ([]Feed, error) {
	var feeds []Feed
	if err := c.get(ctx, "/feeds", filter.query(), &feeds); err != nil {
		return nil, err
	}
	return feeds, nil
}

// GetGtfsFeeds fetches one page of GTFS schedule feeds. Pagination is driven
// by the caller through Limit and Offset.
func (c *Client) GetGtfsFeeds(ctx context.Context, filter GtfsFeedFilter) ([]Feed, error) {
	var feeds []Feed
	if err := c.get(ctx, "/gtfs_feeds", filter.query(), &feeds); err != nil {
		return nil, err
	}
	return feeds, nil
}

// GetGtfsRtFeeds fetches one page of GTFS realtime feeds.
func (c *Client) GetGtfsRtFeeds(ctx context.Context, filter GtfsRtFeedFilter) ([]Feed, error) {
	var feeds []Feed
	if err := c.get(ctx, "/gtfs_rt_feeds", filter.query(), &feeds); err != nil {
		return nil, err
	}
	return feeds, nil
}

// GetGtfsFeedDatasets fetches datasets harvested for a GTFS schedule feed.
func (c *Client) GetGtfsFeedDatasets(ctx context.Context, feedID string, filter DatasetFilter) ([]Dataset, error) {
	var datasets []Dataset
	if err := c.get(ctx, "/gtfs_feeds/"+feedID+"/datasets", filter.query(), &datasets); err != nil {
		return nil, err
	}
	return datasets, nil
}

// GetGtfsDatasetByID fetches a specific dataset, including its validation
// report when the validator has run against it.
func (c *Client) GetGtfsDatasetByID(ctx context.Context, datasetID string) (*Dataset, error) {
	var dataset Dataset
	if err := c.get(ctx, "/datasets/gtfs/"+datasetID, nil, &dataset); err != nil {
		return nil, err
	}
	return &dataset, nil
}

// GetGtfsFeedGtfsRtFeeds fetches the realtime feeds associated with a
// schedule feed.
func (c *Client) GetGtfsFeedGtfsRtFeeds(ctx context.Context, feedID string) ([]Feed, error) {
	var feeds []Feed
	if err := c.get(ctx, "/gtfs_feeds/"+feedID+"/gtfs_rt_feeds", nil, &feeds); err != nil {
		return nil, err
	}
	return feeds, nil
}

// SearchFeeds runs a free-text search over the registry.
func (c *Client) SearchFeeds(ctx context.Context, filter SearchFilter) (*SearchResult, error) {
	var result SearchResult
	if err := c.get(ctx, "/search", filter.query(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetLicenses fetches one page of known data licenses.
func (c *Client) GetLicenses(ctx context.Context, filter LicenseFilter) ([]License, error) {
	var licenses []License
	if err := c.get(ctx, "/licenses", filter.query(), &licenses); err != nil {
		return nil, err
	}
	return licenses, nil
}

// GetLicenseByID fetches a license together with its rules.
func (c *Client) GetLicenseByID(ctx context.Context, id string) (*LicenseDetail, error) {
	var license LicenseDetail
	if err := c.get(ctx, "/licenses/"+id, nil, &license); err != nil {
		return nil, err
	}
	return &license, nil
}

// GetMetadata fetches version information about the registry deployment.
func (c *Client) GetMetadata(ctx context.Context) (*Metadata, error) {
	var meta Metadata
	if err := c.get(ctx, "/metadata", nil, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// getAccessToken returns the cached access token, exchanging the API key for
// a fresh one when the cache is empty or expired.
func (c *Client) getAccessToken(ctx context.Context) (string, error) {
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	payload, err := json.Marshal(tokenRequest{RefreshToken: c.apiKey})
	if err != nil {
		return "", fmt.Errorf("failed to encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tokens", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to exchange token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{Status: resp.Status}
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}

	c.accessToken = token.AccessToken
	c.tokenExpiry = time.Now().Add(tokenLifetime - tokenSafetyMargin)
	return c.accessToken, nil
}

// get performs an authenticated GET against the registry and decodes the JSON
// response into v.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, v any) error {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return err
	}

	u := c.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &RequestError{Endpoint: endpoint, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", endpoint, err)
	}

	return nil
}

// Token exchange types (private - implementation detail)

type tokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}
