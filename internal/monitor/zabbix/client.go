// Package zabbix implements the monitoring source over the Zabbix JSON-RPC
// API, plus a web-session downloader for server-rendered graphs.
package zabbix

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pedrodavics/PGR/internal/reporterr"
)

const (
	// defaultMaxRetries is the number of retry attempts after the first call.
	defaultMaxRetries = 3

	// defaultRetryDelay is the base delay for exponential backoff between retries.
	defaultRetryDelay = 2 * time.Second

	apiPath = "/api_jsonrpc.php"
	step    = "monitoring"
)

// Config holds the API connection settings.
type Config struct {
	URL        string
	User       string
	Password   string
	APIToken   string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Client is a JSON-RPC 2.0 client for the Zabbix API. It is safe for
// concurrent use once logged in.
type Client struct {
	http     *http.Client
	endpoint string
	cfg      Config
	logger   *zap.Logger

	nextID atomic.Int64

	mu    sync.RWMutex
	token string

	vtMu       sync.Mutex
	valueTypes map[string]int
}

// NewClient creates a client for cfg.URL. A static API token, when set,
// replaces user.login.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	endpoint, err := NormalizeURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	return &Client{
		http:       &http.Client{Timeout: cfg.Timeout},
		endpoint:   endpoint,
		cfg:        cfg,
		logger:     logger.Named("zabbix"),
		token:      cfg.APIToken,
		valueTypes: make(map[string]int),
	}, nil
}

// NormalizeURL makes sure the URL path ends in /api_jsonrpc.php.
func NormalizeURL(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("zabbix url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing zabbix url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("zabbix url %q must be absolute", raw)
	}
	if !strings.HasSuffix(u.Path, apiPath) {
		u.Path = strings.TrimRight(u.Path, "/") + apiPath
	}
	return u.String(), nil
}

// siteURL returns the frontend URL of a PHP page next to the API endpoint.
func (c *Client) siteURL(page string) string {
	return strings.TrimSuffix(c.endpoint, apiPath) + "/" + page
}

// Login authenticates with user.login unless a static API token is set.
func (c *Client) Login(ctx context.Context) error {
	if c.cfg.APIToken != "" {
		return nil
	}
	var token string
	params := map[string]string{"username": c.cfg.User, "password": c.cfg.Password}
	if err := c.call(ctx, "user.login", params, &token, false); err != nil {
		return reporterr.Connection(step, "login failed", err)
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	c.logger.Debug("logged in", zap.String("user", c.cfg.User))
	return nil
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      int64       `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCError is an error object returned by the API. It is never retried.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("zabbix api error %d: %s %s", e.Code, e.Message, e.Data)
}

// notFound reports whether the API rejected an object id.
func (e *RPCError) notFound() bool {
	text := strings.ToLower(e.Message + " " + e.Data)
	return strings.Contains(text, "does not exist") || strings.Contains(text, "no permissions")
}

// statusError is a non-2xx HTTP response.
type statusError struct {
	statusCode int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server returned %d", e.statusCode)
}

// call performs method with retry and exponential backoff on transport and
// 5xx failures, and classifies the final error.
func (c *Client) call(ctx context.Context, method string, params, out interface{}, auth bool) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * c.cfg.RetryDelay
			c.logger.Warn("retrying call",
				zap.String("method", method),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return reporterr.New(reporterr.KindConnection, step, method, ctx.Err())
			case <-time.After(delay):
			}
		}

		lastErr = c.doCall(ctx, body, out, auth)
		if lastErr == nil {
			return nil
		}

		var rpcErr *RPCError
		if errors.As(lastErr, &rpcErr) {
			if rpcErr.notFound() {
				return reporterr.New(reporterr.KindItemNotFound, step, method, rpcErr)
			}
			return reporterr.Connection(step, method, rpcErr)
		}
		if !retryable(lastErr) || ctx.Err() != nil {
			break
		}
		c.logger.Warn("call failed",
			zap.String("method", method),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
	}
	return reporterr.Connection(step, method, lastErr)
}

func (c *Client) doCall(ctx context.Context, body []byte, out interface{}, auth bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json-rpc")
	if auth {
		c.mu.RLock()
		token := c.token
		c.mu.RUnlock()
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return &statusError{statusCode: resp.StatusCode}
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

// retryable reports whether a failed attempt may succeed on retry.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.statusCode >= 500
	}
	return !errors.Is(err, context.Canceled)
}
