package alpaca

import (
	"net/http"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=alpaca_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const defaultBaseURL = "https://data.alpaca.markets"

// Client is a client for the Alpaca market-data API.
type Client struct {
	// baseURL is the base URL for the data API.
	baseURL string
	// httpClient is the HTTP httpClient.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
}

// ClientOption is a configuration option for the Alpaca client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// NewClient creates a new Alpaca market-data client. The key pair may be
// empty; requests are still issued and fail downstream with a status error,
// so a misconfigured deployment degrades instead of crashing.
func NewClient(keyID, secretKey string, options ...ClientOption) *Client {
	var client = &Client{
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
	}
	client.header.Set("Accept", "application/json")
	// https://docs.alpaca.markets/reference/authentication-1
	client.header.Set("APCA-API-KEY-ID", keyID)
	client.header.Set("APCA-API-SECRET-KEY", secretKey)
	for _, option := range options {
		option(client)
	}
	return client
}
