package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the timer server's HTTP side.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

const (
	defaultServer     = "127.0.0.1:3000"
	defaultSocketPath = "/ws"
	defaultUserAgent  = "stimer/0.1"
	requestTimeout    = 5 * time.Second
)

// HelloResponse is the body of GET /api/hello.
type HelloResponse struct {
	ClientID string `json:"clientId"`
}

// NewClient builds a Client for the given server URL or host:port.
func NewClient(serverURL string) (*Client, error) {
	base, err := parseBaseURL(serverURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
	}, nil
}

// Hello checks that the server is reachable. Callers treat failure as non-fatal.
func (c *Client) Hello(ctx context.Context) (HelloResponse, error) {
	if c == nil {
		return HelloResponse{}, fmt.Errorf("client is nil")
	}
	var payload HelloResponse
	if err := c.do(ctx, http.MethodGet, "/api/hello", &payload); err != nil {
		return HelloResponse{}, err
	}
	return payload, nil
}

// BaseURL returns the normalized server URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) do(ctx context.Context, method, path string, dest any) error {
	rel := &url.URL{Path: path}
	return c.doURL(ctx, method, rel, dest)
}

func (c *Client) doURL(ctx context.Context, method string, rel *url.URL, dest any) error {
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("api %s returned status %d", rel.String(), resp.StatusCode)
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// SocketURL derives the WebSocket endpoint for clientID from the server URL.
func SocketURL(serverURL, socketPath, clientID string) (string, error) {
	base, err := parseBaseURL(serverURL)
	if err != nil {
		return "", err
	}
	switch base.Scheme {
	case "https", "wss":
		base.Scheme = "wss"
	default:
		base.Scheme = "ws"
	}
	path := strings.TrimSpace(socketPath)
	if path == "" {
		path = defaultSocketPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	base.Path = path
	if clientID != "" {
		base.RawQuery = url.Values{"clientId": []string{clientID}}.Encode()
	}
	return base.String(), nil
}

func parseBaseURL(serverURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(serverURL)
	if trimmed == "" {
		trimmed = defaultServer
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse server_url %q: %w", serverURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse server_url %q: missing host", serverURL)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
