package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/yyupcompany/kyyupgame-sub066/internal/infra"
	"github.com/yyupcompany/kyyupgame-sub066/internal/infra/auth"
	"github.com/yyupcompany/kyyupgame-sub066/internal/journal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	maxResponseBytes = 32 << 20
	loginPath        = "/auth/login"
)

// Client реализует Requester поверх net/http.
// AI-эндпоинты идут через отдельный предохранитель с длинным таймаутом.
type Client struct {
	baseURL     string
	userAgent   string
	refreshPath string

	httpClient *http.Client
	aiClient   *http.Client
	regular    *Reliability
	ai         *Reliability

	tokens    auth.TokenStore
	journal   journal.Recorder
	metrics   *Metrics
	logger    *zap.Logger
	now       func() time.Time
	proactive bool

	refreshes singleflight.Group
}

type Option func(*Client)

func WithTokenStore(s auth.TokenStore) Option {
	return func(c *Client) { c.tokens = s }
}

func WithJournal(r journal.Recorder) Option {
	return func(c *Client) { c.journal = r }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient подменяет http.Client для обоих каналов (обычного и AI).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
		c.aiClient = hc
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithProactiveRefresh обновляет JWT заранее, если до exp осталось меньше 30s.
func WithProactiveRefresh() Option {
	return func(c *Client) { c.proactive = true }
}

func NewClient(cfg *infra.Config, opts ...Option) *Client {
	c := &Client{
		baseURL:     infra.ResolveBaseURL(cfg.API),
		userAgent:   cfg.API.UserAgent,
		refreshPath: cfg.Auth.RefreshPath,
		httpClient:  &http.Client{},
		aiClient:    &http.Client{},
		tokens:      auth.NewMemoryStore(cfg.Auth.Token, cfg.Auth.RefreshToken),
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	if c.refreshPath == "" {
		c.refreshPath = "/auth/refresh-token"
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	c.logger = c.logger.Named("transport")
	c.regular = NewReliability("kyyup-api", cfg.Reliability, cfg.API.Timeout, c.metrics)
	c.ai = NewReliability("kyyup-ai", cfg.Reliability, cfg.API.AITimeout, c.metrics)
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Tokens() auth.TokenStore { return c.tokens }

func (c *Client) Get(ctx context.Context, path string, params url.Values) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, params, nil)
}

func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, nil, body)
}

func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPut, path, nil, body)
}

func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPatch, path, nil, body)
}

func (c *Client) Del(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any) (*Response, error) {
	start := time.Now()
	isAI := IsAIRequest(path)
	rel, hc := c.regular, c.httpClient
	if isAI {
		rel, hc = c.ai, c.aiClient
	}

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: encode %s %s body: %v", ErrInvalidRequest, method, path, err)
		}
		payload = b
	}
	reqID := RequestIDFromContext(ctx)

	call := func() (*Response, int, error) {
		var resp *Response
		attempts, err := rel.Call(ctx, func(ctx context.Context) error {
			r, err := c.send(ctx, hc, method, path, params, payload, reqID, isAI)
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
		return resp, attempts, err
	}

	if c.proactive {
		c.refreshIfExpiring(ctx)
	}

	sent, _ := c.tokens.Token(ctx)
	resp, attempts, err := call()

	// 401: одна попытка обновить токен и один повтор исходного запроса
	if StatusCode(err) == http.StatusUnauthorized && path != c.refreshPath && path != loginPath {
		if _, rerr := c.refresh(ctx, sent); rerr != nil {
			err = &HTTPError{
				Method:     method,
				Path:       path,
				StatusCode: http.StatusUnauthorized,
				Message:    "token refresh failed: " + rerr.Error(),
				Cause:      ErrUnauthorized,
			}
		} else {
			var more int
			resp, more, err = call()
			attempts += more
			var hErr *HTTPError
			if errors.As(err, &hErr) && hErr.StatusCode == http.StatusUnauthorized {
				hErr.Cause = ErrUnauthorized
			}
		}
	}

	c.observe(method, path, isAI, reqID, resp, attempts, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, hc *http.Client, method, path string, params url.Values, payload []byte, reqID string, isAI bool) (*Response, error) {
	target, err := url.Parse(BuildAPIURL(c.baseURL, path))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	q := target.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	// Метка времени против кэширования GET на прокси
	if method == http.MethodGet {
		q.Set("_t", strconv.FormatInt(c.now().UnixMilli(), 10))
	}
	target.RawQuery = q.Encode()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(RequestIDHeader, reqID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		c.logger.Warn("token store unavailable, sending without auth", zap.Error(err))
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s %s response: %w", method, path, err)
	}

	if res.StatusCode >= http.StatusBadRequest {
		return nil, c.statusError(method, path, res, raw, isAI)
	}

	resp, err := Normalize(raw)
	if err != nil {
		var aErr *APIError
		if errors.As(err, &aErr) {
			aErr.Path = path
		}
		return nil, err
	}
	resp.Status = res.StatusCode
	resp.RequestID = reqID
	return resp, nil
}

func (c *Client) statusError(method, path string, res *http.Response, raw []byte, isAI bool) error {
	hErr := &HTTPError{
		Method:     method,
		Path:       path,
		StatusCode: res.StatusCode,
		Message:    errorMessage(raw),
		Body:       raw,
	}

	switch {
	case isAI && res.StatusCode == http.StatusServiceUnavailable:
		hErr.Message = AIUnavailableMessage
		hErr.Cause = ErrAIUnavailable
	case res.StatusCode == http.StatusTooManyRequests:
		return &ThrottleError{RetryAfter: parseRetryAfter(res.Header.Get("Retry-After"), c.now()), Cause: hErr}
	}
	return hErr
}

// parseRetryAfter понимает и секунды, и HTTP-дату.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}

func (c *Client) observe(method, path string, isAI bool, reqID string, resp *Response, attempts int, err error, d time.Duration) {
	route := routeLabel(path)
	status := StatusCode(err)
	if resp != nil {
		status = resp.Status
	}

	c.metrics.TotalRequests.WithLabelValues(method, route).Inc()
	c.metrics.RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())

	rec := journal.CallRecord{
		RequestID:  reqID,
		Method:     method,
		Path:       path,
		Route:      route,
		AI:         isAI,
		StatusCode: status,
		Attempts:   attempts,
		DurationMs: d.Milliseconds(),
		Timestamp:  time.Now(),
	}

	if err != nil {
		rec.Error = err.Error()
		c.metrics.ErrorTotal.WithLabelValues(errorType(err)).Inc()
		c.logger.Warn("api call failed",
			zap.String("method", method),
			zap.String("route", route),
			zap.String("request_id", reqID),
			zap.Int("status", status),
			zap.Int("attempts", attempts),
			zap.Duration("took", d),
			zap.Error(err))
	} else {
		c.logger.Debug("api call",
			zap.String("method", method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int("attempts", attempts),
			zap.Duration("took", d))
	}

	if c.journal != nil {
		c.journal.Log(rec)
	}
}
