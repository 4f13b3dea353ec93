package intents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"anypay-escrow-go/internal/models"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/time/rate"
)

const (
	quotePath  = "/v0/quote"
	statusPath = "/v0/status"

	defaultQuoteLifetime = 10 * time.Minute
	maxErrorBodySize     = 4096
)

// APIError is a non-2xx response from the intents API.
type APIError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("intents API %s failed (%d): %s", e.Path, e.StatusCode, e.Body)
}

// IsPermanent reports whether err is an API rejection that retrying the same
// request will not fix.
func IsPermanent(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusNotFound, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

type Client struct {
	baseUrl    string
	apiKey     string
	httpClient http.Client
	limiter    *rate.Limiter
	nowFn      func() time.Time
}

func NewClient(cfg models.ListenerConfig) (*Client, error) {
	if cfg.IntentsApiBaseUrl == "" {
		return nil, fmt.Errorf("intents API base url cannot be empty")
	}
	if _, err := url.Parse(cfg.IntentsApiBaseUrl); err != nil {
		return nil, fmt.Errorf("invalid intents API base url: %w", err)
	}
	if cfg.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("requests per second must be positive, got %v", cfg.RequestsPerSecond)
	}

	httpClient, err := createCustomHttpClient(cfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	burst := int(cfg.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		baseUrl:    strings.TrimRight(cfg.IntentsApiBaseUrl, "/"),
		apiKey:     cfg.IntentsApiKey,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		nowFn:      time.Now,
	}, nil
}

func createCustomHttpClient(timeout time.Duration) (http.Client, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	tr := &http.Transport{
		ResponseHeaderTimeout: timeout,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   10 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return http.Client{}, err
	}

	return http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

// CreateFundingQuote asks for a same-asset EXACT_INPUT quote whose deposit
// address the seller pays into.
func (c *Client) CreateFundingQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	now := c.nowFn().UTC()
	body := quoteBody{
		Dry:               false,
		SwapType:          "EXACT_INPUT",
		OriginAsset:       req.AssetId,
		DestinationAsset:  req.AssetId,
		Amount:            req.Amount,
		Deadline:          now.Add(defaultQuoteLifetime).Format(time.RFC3339Nano),
		Recipient:         req.Recipient,
		RefundTo:          req.RefundTo,
		DepositType:       "ORIGIN_CHAIN",
		RecipientType:     "INTENTS",
		RefundType:        "ORIGIN_CHAIN",
		SlippageTolerance: 100,
	}

	var resp quoteResponse
	if err := c.do(ctx, http.MethodPost, quotePath, body, &resp); err != nil {
		return nil, err
	}
	if resp.CorrelationId == "" || resp.Quote.DepositAddress == "" {
		return nil, fmt.Errorf("intents API quote response is missing correlation id or deposit address")
	}

	expiresAt := parseTimestamp(resp.Quote.TimeWhenInactive)
	if expiresAt.IsZero() {
		expiresAt = parseTimestamp(resp.Quote.Deadline)
	}
	if expiresAt.IsZero() {
		expiresAt = now.Add(defaultQuoteLifetime)
	}

	zap.L().Debug("Funding quote created",
		zap.String("quote_id", resp.CorrelationId),
		zap.String("asset_id", req.AssetId),
		zap.String("amount", req.Amount),
		zap.Time("expires_at", expiresAt))

	return &Quote{
		QuoteId:        resp.CorrelationId,
		DepositAddress: resp.Quote.DepositAddress,
		DepositMemo:    resp.Quote.DepositMemo,
		ExpiresAt:      expiresAt,
		AmountIn:       NormalizeAmount(string(resp.Quote.AmountIn)),
	}, nil
}

// GetStatus looks up the swap behind a deposit address and optional memo.
func (c *Client) GetStatus(ctx context.Context, depositAddress, depositMemo string) (*StatusResponse, error) {
	params := url.Values{}
	params.Set("depositAddress", depositAddress)
	if depositMemo != "" {
		params.Set("depositMemo", depositMemo)
	}

	var resp StatusResponse
	if err := c.do(ctx, http.MethodGet, statusPath+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("unable to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseUrl+path, body)
	if err != nil {
		return fmt.Errorf("unable to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("intents API %s request failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return &APIError{Path: stripQuery(path), StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("unable to decode intents API %s response: %w", stripQuery(path), err)
	}
	return nil
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
