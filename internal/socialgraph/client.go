package socialgraph

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the local metrics gateway used in development.
const DefaultBaseURL = "http://localhost:8090"

var ErrNotFound = errors.New("socialgraph: target not found")

// Kind is the class of object a metric is read from.
type Kind string

const (
	KindCast    Kind = "casts"
	KindUser    Kind = "users"
	KindChannel Kind = "channels"
	KindStream  Kind = "streams"
	KindPoll    Kind = "polls"
)

// Metrics is a point-in-time reading of one target. ChangeRate is per hour.
type Metrics struct {
	TargetID     string    `json:"target_id"`
	Metric       string    `json:"metric"`
	CurrentValue int64     `json:"current_value"`
	StartValue   int64     `json:"start_value"`
	ChangeRate   float64   `json:"change_rate"`
	LastUpdated  time.Time `json:"last_updated"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	secret     string
}

func NewClient(baseURL, apiKey, secret string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		secret:     secret,
	}
}

// signRequest creates HMAC signature for authenticated requests
func (c *Client) signRequest(timestamp, method, path, body string) string {
	message := timestamp + method + path + body
	h := hmac.New(sha256.New, []byte(c.secret))
	h.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func (c *Client) addAuthHeaders(req *http.Request, path string) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	req.Header.Set("X-API-KEY", c.apiKey)
	if c.secret != "" {
		req.Header.Set("X-SIGNATURE", c.signRequest(timestamp, req.Method, path, ""))
		req.Header.Set("X-TIMESTAMP", timestamp)
	}
	req.Header.Set("Accept", "application/json")
}

// GetMetrics reads the current value of metric for one target. An empty
// metric selects the provider's default for the kind.
func (c *Client) GetMetrics(ctx context.Context, kind Kind, targetID, metric string) (*Metrics, error) {
	path := fmt.Sprintf("/v1/%s/%s/metrics", kind, url.PathEscape(targetID))
	if metric != "" {
		path += "?metric=" + url.QueryEscape(metric)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.addAuthHeaders(req, path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("socialgraph API error: %d - %s", resp.StatusCode, string(body))
	}

	var m Metrics
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if m.TargetID == "" {
		m.TargetID = targetID
	}
	return &m, nil
}
