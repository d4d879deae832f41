package probe

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yyupcompany/kyyupgame-sub066/internal/infra"
	"github.com/yyupcompany/kyyupgame-sub066/internal/mockserver"
	"github.com/yyupcompany/kyyupgame-sub066/internal/transport"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"
)

func TestEndpointResolve(t *testing.T) {
	tests := map[string]string{
		"/ai/models":                             "/ai/models",
		"/ai/models/{id}/billing":                "/ai/models/1/billing",
		"/ai/memory/conversation/{conv}/{user}":  "/ai/memory/conversation/1/1",
		"/broken/{id":                            "/broken/{id",
		"/enrollment-plans/{id}/trackings?x={y}": "/enrollment-plans/1/trackings?x=1",
	}
	for in, want := range tests {
		assert.Equal(t, want, Endpoint{Path: in}.Resolve(), in)
	}
}

func TestCatalogFilterAndSelection(t *testing.T) {
	all := Catalog()
	require.NotEmpty(t, all)

	sec := Filter(all, "security", " auth")
	for _, e := range sec {
		assert.Contains(t, []string{"security", "auth"}, e.Category)
	}
	assert.Len(t, Filter(all), len(all))

	readOnly := NewRunner(nil, all, Options{}, nil, nil).Selected()
	withWrites := NewRunner(nil, all, Options{Writes: true}, nil, nil).Selected()
	assert.Len(t, withWrites, len(all))
	assert.Less(t, len(readOnly), len(withWrites))
	for _, e := range readOnly {
		assert.False(t, e.Mutating(), e.Path)
	}
}

func TestClassify(t *testing.T) {
	ep := Endpoint{Method: http.MethodGet, Path: "/x", Category: "c"}
	tests := []struct {
		name   string
		resp   *transport.Response
		err    error
		status Status
		code   int
		msg    string
	}{
		{name: "ok", resp: &transport.Response{Status: http.StatusCreated}, status: StatusSuccess, code: http.StatusCreated},
		{name: "ok without status", status: StatusSuccess, code: http.StatusOK},
		{name: "401", err: &transport.HTTPError{StatusCode: 401}, status: StatusAuthRequired, code: 401, msg: "需要认证"},
		{name: "403", err: &transport.HTTPError{StatusCode: 403}, status: StatusAuthRequired, code: 403, msg: "需要认证"},
		{name: "404", err: &transport.HTTPError{StatusCode: 404, Message: "nope"}, status: StatusNotFound, code: 404, msg: "接口不存在"},
		{name: "500 with message", err: &transport.HTTPError{StatusCode: 500, Message: "db down"}, status: StatusError, code: 500, msg: "db down"},
		{name: "500 bare", err: &transport.HTTPError{StatusCode: 502}, status: StatusError, code: 502, msg: "服务器错误"},
		{name: "422 bare", err: &transport.HTTPError{StatusCode: 422}, status: StatusError, code: 422, msg: "客户端错误"},
		{name: "envelope", err: &transport.APIError{Code: 500, Message: "参数错误"}, status: StatusError, msg: "参数错误"},
		{name: "network", err: errors.New("connection refused"), status: StatusError, msg: "connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := classify(ep, tt.resp, tt.err)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.code, res.HTTPCode)
			assert.Equal(t, tt.msg, res.Error)
		})
	}
}

func newClient(t *testing.T) (*mockserver.Server, *transport.Client) {
	t.Helper()
	srv, err := mockserver.New(mockserver.Options{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	c := transport.NewClient(&infra.Config{
		API: infra.APIConfig{BaseURL: ts.URL + "/api", Timeout: 5 * time.Second, AITimeout: 5 * time.Second},
		Reliability: infra.ReliabilityConfig{
			MaxAttempts:      2,
			Backoff:          time.Millisecond,
			CBMaxRequests:    1,
			CBTimeout:        time.Second,
			FailureThreshold: 100,
		},
	})
	require.NoError(t, c.Login(context.Background(), "admin", "admin123"))
	return srv, c
}

func TestRunnerAgainstMockServer(t *testing.T) {
	_, c := newClient(t)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	runner := NewRunner(c, Catalog(), Options{Concurrency: 8}, m, zaptest.NewLogger(t))
	results, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, len(runner.Selected()))

	for i, res := range results {
		assert.Equal(t, runner.Selected()[i].Path, res.Path)
		if res.Path == "/auth/login" {
			// учетка probe/probe не существует
			assert.Equal(t, StatusAuthRequired, res.Status)
			continue
		}
		assert.Equal(t, StatusSuccess, res.Status, "%s %s: %s", res.Method, res.Path, res.Error)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Results.WithLabelValues("auth", "auth_required")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EndpointUp.WithLabelValues("GET", "/security/overview", "security")))
	assert.Positive(t, testutil.ToFloat64(m.LastRun))

	rep := NewReport(c.BaseURL(), results, time.Now())
	assert.Equal(t, len(results)-1, rep.Success)
	assert.Empty(t, rep.Failed())
}

func TestRunnerReportsAIOutage(t *testing.T) {
	srv, c := newClient(t)
	srv.SetAIUnavailable(true)

	results, err := NewRunner(c, Filter(Catalog(), "ai"), Options{}, nil, nil).Run(context.Background())
	require.NoError(t, err)

	for _, res := range results {
		if strings.HasPrefix(res.Path, "/ai/") {
			assert.Equal(t, StatusError, res.Status, res.Path)
			assert.Equal(t, http.StatusServiceUnavailable, res.HTTPCode)
			assert.Equal(t, transport.AIUnavailableMessage, res.Error)
		} else {
			assert.Equal(t, StatusSuccess, res.Status, res.Path)
		}
	}
}

func TestRunnerCancelled(t *testing.T) {
	_, c := newClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := NewRunner(c, Filter(Catalog(), "security"), Options{Concurrency: 1}, nil, nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	for _, res := range results {
		assert.Equal(t, StatusError, res.Status)
	}
}

func sampleResults() []Result {
	return []Result{
		{Endpoint: Endpoint{Method: "GET", Path: "/activity-center/overview", Category: "activity"}, Status: StatusSuccess, HTTPCode: 200, Latency: 10 * time.Millisecond},
		{Endpoint: Endpoint{Method: "GET", Path: "/activity-center/timeline", Category: "activity"}, Status: StatusError, HTTPCode: 500, Error: "a|b", Latency: 30 * time.Millisecond},
		{Endpoint: Endpoint{Method: "GET", Path: "/security/overview", Category: "security"}, Status: StatusAuthRequired, HTTPCode: 401, Error: "需要认证", Latency: 20 * time.Millisecond},
		{Endpoint: Endpoint{Method: "GET", Path: "/security/gone", Category: "security"}, Status: StatusNotFound, HTTPCode: 404, Error: "接口不存在", Latency: 20 * time.Millisecond},
	}
}

func TestNewReport(t *testing.T) {
	rep := NewReport("http://localhost:3000/api", sampleResults(), time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC))

	assert.Equal(t, 4, rep.Total)
	assert.Equal(t, 1, rep.Success)
	assert.Equal(t, 1, rep.AuthRequired)
	assert.Equal(t, 1, rep.NotFound)
	assert.Equal(t, 1, rep.Errors)
	assert.Equal(t, 25.0, rep.SuccessRate)
	assert.Equal(t, 20*time.Millisecond, rep.AvgLatency)

	require.Len(t, rep.Categories, 2)
	assert.Equal(t, "activity", rep.Categories[0].Name)
	assert.Equal(t, 50.0, rep.Categories[0].SuccessRate)
	assert.Equal(t, 0.0, rep.Categories[1].SuccessRate)
	assert.Len(t, rep.Failed(), 2)

	empty := NewReport("", nil, time.Now())
	assert.Zero(t, empty.SuccessRate)
	assert.Zero(t, empty.AvgLatency)
}

func TestReportMarkdown(t *testing.T) {
	rep := NewReport("http://localhost:3000/api", sampleResults(), time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC))

	var buf bytes.Buffer
	require.NoError(t, rep.Write(&buf, "markdown"))
	out := buf.String()

	assert.Contains(t, out, "测试时间: 2026-10-17 09:00:00")
	assert.Contains(t, out, "| 成功响应 | 1 | 25.00% |")
	assert.Contains(t, out, "| 平均响应时间 | 20.00ms | - |")
	assert.Contains(t, out, "## activity 模块 (50.00% 成功率)")
	assert.Contains(t, out, "| /activity-center/timeline | GET | ⚠️ 错误 | 500 | 30.00ms | a\\|b |")
	assert.Contains(t, out, "## 需要修复的API")
	assert.Contains(t, out, "### GET /security/gone")
	assert.NotContains(t, out, "### GET /security/overview")
}

func TestReportYAML(t *testing.T) {
	rep := NewReport("http://localhost:3000/api", sampleResults(), time.Now())

	var buf bytes.Buffer
	require.NoError(t, rep.Write(&buf, "yaml"))

	var back struct {
		Total      int `yaml:"total"`
		Categories []struct {
			Name        string  `yaml:"name"`
			SuccessRate float64 `yaml:"successRate"`
		} `yaml:"categories"`
		Results []map[string]any `yaml:"results"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, 4, back.Total)
	assert.Equal(t, "security", back.Categories[1].Name)
	require.Len(t, back.Results, 4)
	assert.Equal(t, "/activity-center/overview", back.Results[0]["path"])
	assert.Equal(t, "10ms", back.Results[0]["latency"])

	assert.Error(t, rep.Write(&buf, "csv"))
}
