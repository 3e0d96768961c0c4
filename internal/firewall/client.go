package firewall

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"golang.org/x/time/rate"
)

var apiBaseURL = "https://api.vercel.com"

const configEndpoint = "/v1/security/firewall/config"

// Pacing and retry defaults. Every remote call waits on the rate limiter, and
// retryable failures back off with doubling delays up to maxRetryDelay.
const (
	requestsPerSecond = 2.0
	defaultAttempts   = 4
	defaultRetryDelay = 500 * time.Millisecond
	defaultMaxDelay   = 8 * time.Second
)

// Client talks to the remote firewall service for a single project scope.
// Calls are paced and never issued concurrently by the reconciler, so total
// reconciliation time scales with the operation count and the pacing delay.
type Client struct {
	token     string
	projectID string
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
	clock     clock.Clock
	debug     bool

	retryAttempts int
	retryDelay    time.Duration
	retryMaxDelay time.Duration
}

func NewClient(token, projectID string, debug bool) *Client {
	return NewClientWithURL(token, projectID, apiBaseURL, debug)
}

func NewClientWithURL(token, projectID, baseURL string, debug bool) *Client {
	return &Client{
		token:     token,
		projectID: projectID,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter:       rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		clock:         clock.WallClock,
		debug:         debug,
		retryAttempts: defaultAttempts,
		retryDelay:    defaultRetryDelay,
		retryMaxDelay: defaultMaxDelay,
	}
}

func (c *Client) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// SetRetryPolicy overrides the retry bounds. Tests use short delays.
func (c *Client) SetRetryPolicy(attempts int, delay, maxDelay time.Duration) {
	c.retryAttempts = attempts
	c.retryDelay = delay
	c.retryMaxDelay = maxDelay
}

type getConfigResponse struct {
	Rules []Rule `json:"rules"`
}

type patchRequest struct {
	Action string     `json:"action"`
	ID     string     `json:"id,omitempty"`
	Value  *RuleValue `json:"value,omitempty"`
}

type patchResponse struct {
	ID string `json:"id,omitempty"`
}

// ListRules fetches the current rule collection for the project scope.
func (c *Client) ListRules(ctx context.Context) ([]Rule, error) {
	var resp getConfigResponse
	if err := c.call(ctx, http.MethodGet, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to retrieve firewall rules: %w", err)
	}
	return resp.Rules, nil
}

// InsertRule creates a new rule and returns its server-assigned id.
func (c *Client) InsertRule(ctx context.Context, value RuleValue) (string, error) {
	var resp patchResponse
	req := patchRequest{Action: "rules.insert", Value: &value}
	if err := c.call(ctx, http.MethodPatch, &req, &resp); err != nil {
		return "", fmt.Errorf("failed to insert rule %q: %w", value.Name, err)
	}
	return resp.ID, nil
}

// UpdateRule rewrites an existing rule in place, preserving its id.
func (c *Client) UpdateRule(ctx context.Context, id string, value RuleValue) error {
	req := patchRequest{Action: "rules.update", ID: id, Value: &value}
	if err := c.call(ctx, http.MethodPatch, &req, nil); err != nil {
		return fmt.Errorf("failed to update rule %s: %w", id, err)
	}
	return nil
}

// RemoveRule deletes a rule by id.
func (c *Client) RemoveRule(ctx context.Context, id string) error {
	req := patchRequest{Action: "rules.remove", ID: id}
	if err := c.call(ctx, http.MethodPatch, &req, nil); err != nil {
		return fmt.Errorf("failed to remove rule %s: %w", id, err)
	}
	return nil
}

// call issues one API request with retry-on-transient-failure. Client errors
// are fatal immediately; rate limiting, server errors, and network errors are
// retried with exponential backoff up to the configured attempt count.
func (c *Client) call(ctx context.Context, method string, body, out interface{}) error {
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			return c.doOnce(ctx, method, body, out)
		},
		IsFatalError: func(err error) bool {
			return !IsRetryable(err)
		},
		NotifyFunc: func(err error, attempt int) {
			if c.debug {
				fmt.Printf("[DEBUG] attempt %d failed: %v\n", attempt, err)
			}
		},
		Attempts:    c.retryAttempts,
		Delay:       c.retryDelay,
		MaxDelay:    c.retryMaxDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       c.clock,
		Stop:        ctx.Done(),
	})
	if retry.IsAttemptsExceeded(err) || retry.IsRetryStopped(err) {
		return retry.LastError(err)
	}
	return err
}

func (c *Client) doOnce(ctx context.Context, method string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	endpoint := fmt.Sprintf("%s%s?projectId=%s", c.baseURL, configEndpoint, url.QueryEscape(c.projectID))
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &APIError{Kind: KindNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Kind: KindNetwork, Message: err.Error()}
	}

	if c.debug {
		fmt.Printf("[DEBUG] %s %s -> %d\n", method, configEndpoint, resp.StatusCode)
	}

	if apiErr := classifyStatus(resp.StatusCode, upstreamMessage(respBody)); apiErr != nil {
		return apiErr
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to unmarshal response body: %w, body: %s", err, string(respBody))
		}
	}
	return nil
}

// upstreamMessage extracts the service's error detail from a failed response
// body, falling back to the raw body.
func upstreamMessage(body []byte) string {
	var errBody struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errBody); err == nil && errBody.Error.Message != "" {
		return errBody.Error.Message
	}
	return strings.TrimSpace(string(body))
}

// RuleAPI abstracts the remote rule operations for planning and testing.
type RuleAPI interface {
	ListRules(ctx context.Context) ([]Rule, error)
	InsertRule(ctx context.Context, value RuleValue) (string, error)
	UpdateRule(ctx context.Context, id string, value RuleValue) error
	RemoveRule(ctx context.Context, id string) error
}

// Ensure Client implements RuleAPI.
var _ RuleAPI = (*Client)(nil)
