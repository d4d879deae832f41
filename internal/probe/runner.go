package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/yyupcompany/kyyupgame-sub066/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusSuccess      Status = "success"
	StatusAuthRequired Status = "auth_required"
	StatusNotFound     Status = "not_found"
	StatusError        Status = "error"
)

// Result итог одного вызова.
type Result struct {
	Endpoint `yaml:",inline"`
	Status   Status        `yaml:"status"`
	HTTPCode int           `yaml:"httpCode,omitempty"`
	Error    string        `yaml:"error,omitempty"`
	Latency  time.Duration `yaml:"latency"`
}

type Options struct {
	// Сколько эндпоинтов опрашивать одновременно, по умолчанию 4
	Concurrency int
	// Writes включает POST/PUT/DELETE, меняющие данные
	Writes bool
	// Pause между вызовами одного воркера
	Pause time.Duration
}

type Runner struct {
	req       transport.Requester
	endpoints []Endpoint
	opts      Options
	metrics   *Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewRunner(req transport.Requester, endpoints []Endpoint, opts Options, m *Metrics, logger *zap.Logger) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if m == nil {
		m = NewMetrics(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		req:       req,
		endpoints: endpoints,
		opts:      opts,
		metrics:   m,
		logger:    logger.Named("probe"),
		now:       time.Now,
	}
}

// Selected эндпоинты, которые реально будут вызваны с текущими опциями.
func (r *Runner) Selected() []Endpoint {
	out := make([]Endpoint, 0, len(r.endpoints))
	for _, e := range r.endpoints {
		if e.Mutating() && !r.opts.Writes {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Run опрашивает эндпоинты. Порядок результатов совпадает с Selected.
// Ошибка только при отмене ctx; результаты к этому моменту заполнены частично.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	selected := r.Selected()
	results := make([]Result, len(selected))

	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)
	for i, ep := range selected {
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = Result{Endpoint: ep, Status: StatusError, Error: ctx.Err().Error()}
				return nil
			}
			results[i] = r.probe(ctx, ep)
			if r.opts.Pause > 0 {
				select {
				case <-time.After(r.opts.Pause):
				case <-ctx.Done():
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	r.metrics.LastRun.Set(float64(r.now().Unix()))
	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("probe interrupted: %w", err)
	}
	return results, nil
}

func (r *Runner) probe(ctx context.Context, ep Endpoint) Result {
	path := ep.Resolve()
	start := r.now()
	resp, err := r.call(ctx, ep.Method, path, ep.Body)
	res := classify(ep, resp, err)
	res.Latency = r.now().Sub(start)

	r.metrics.observe(res)
	if res.Status == StatusSuccess {
		r.logger.Debug("endpoint ok",
			zap.String("method", ep.Method),
			zap.String("path", path),
			zap.Duration("latency", res.Latency),
		)
	} else {
		r.logger.Warn("endpoint failed",
			zap.String("method", ep.Method),
			zap.String("path", path),
			zap.String("status", string(res.Status)),
			zap.Int("http_code", res.HTTPCode),
			zap.String("error", res.Error),
		)
	}
	return res
}

func (r *Runner) call(ctx context.Context, method, path string, body any) (*transport.Response, error) {
	switch method {
	case http.MethodGet:
		return r.req.Get(ctx, path, nil)
	case http.MethodPost:
		return r.req.Post(ctx, path, body)
	case http.MethodPut:
		return r.req.Put(ctx, path, body)
	case http.MethodPatch:
		return r.req.Patch(ctx, path, body)
	case http.MethodDelete:
		return r.req.Del(ctx, path)
	}
	return nil, fmt.Errorf("%w: method %s", transport.ErrInvalidRequest, method)
}

// classify: 401/403 -> auth_required, 404 -> not_found, прочие отказы -> error.
func classify(ep Endpoint, resp *transport.Response, err error) Result {
	res := Result{Endpoint: ep}
	if err == nil {
		res.Status = StatusSuccess
		res.HTTPCode = http.StatusOK
		if resp != nil && resp.Status != 0 {
			res.HTTPCode = resp.Status
		}
		return res
	}

	res.HTTPCode = transport.StatusCode(err)
	switch res.HTTPCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		res.Status = StatusAuthRequired
		res.Error = "需要认证"
		return res
	case http.StatusNotFound:
		res.Status = StatusNotFound
		res.Error = "接口不存在"
		return res
	}

	res.Status = StatusError
	var (
		hErr *transport.HTTPError
		aErr *transport.APIError
	)
	switch {
	case errors.As(err, &aErr) && aErr.Message != "":
		res.Error = aErr.Message
	case errors.As(err, &hErr) && hErr.Message != "":
		res.Error = hErr.Message
	case res.HTTPCode >= 500:
		res.Error = "服务器错误"
	case res.HTTPCode >= 400:
		res.Error = "客户端错误"
	default:
		res.Error = err.Error()
	}
	return res
}
