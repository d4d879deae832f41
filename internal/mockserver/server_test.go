package mockserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yyupcompany/kyyupgame-sub066/internal/api"
	"github.com/yyupcompany/kyyupgame-sub066/internal/infra"
	"github.com/yyupcompany/kyyupgame-sub066/internal/infra/auth"
	"github.com/yyupcompany/kyyupgame-sub066/internal/transport"
	"go.uber.org/zap/zaptest"
)

func newBackend(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv, err := New(Options{AccessTTL: time.Minute, Registry: prometheus.NewRegistry()}, zaptest.NewLogger(t))
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, ts
}

func clientFor(ts *httptest.Server, opts ...transport.Option) *transport.Client {
	cfg := &infra.Config{
		API: infra.APIConfig{
			BaseURL:   ts.URL + "/api",
			Timeout:   5 * time.Second,
			AITimeout: 5 * time.Second,
			UserAgent: "kyyup-test",
		},
		Auth: infra.AuthConfig{RefreshPath: "/auth/refresh-token"},
		Reliability: infra.ReliabilityConfig{
			MaxAttempts:      2,
			Backoff:          time.Millisecond,
			CBMaxRequests:    1,
			CBTimeout:        time.Second,
			FailureThreshold: 100,
		},
	}
	return transport.NewClient(cfg, opts...)
}

func loggedIn(t *testing.T, ts *httptest.Server) (*transport.Client, *api.Services) {
	t.Helper()
	c := clientFor(ts)
	require.NoError(t, c.Login(context.Background(), "admin", "admin123"))
	return c, api.New(c, zaptest.NewLogger(t))
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	_, ts := newBackend(t)
	err := clientFor(ts).Login(context.Background(), "admin", "nope")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, transport.StatusCode(err))
}

func TestRequestsWithoutTokenAreUnauthorized(t *testing.T) {
	_, ts := newBackend(t)
	_, err := api.New(clientFor(ts), nil).ActivityCenter.Overview(context.Background())
	assert.ErrorIs(t, err, transport.ErrUnauthorized)
	assert.Equal(t, http.StatusUnauthorized, transport.StatusCode(err))
}

func TestRefreshEndpointRejectsAccessToken(t *testing.T) {
	srv, ts := newBackend(t)
	pair, err := srv.Issue("admin")
	require.NoError(t, err)

	res, err := http.Post(ts.URL+"/api/auth/refresh-token", "application/json",
		strings.NewReader(`{"refreshToken":"`+pair.Token+`"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestClientRefreshesStaleAccessToken(t *testing.T) {
	srv, ts := newBackend(t)
	pair, err := srv.Issue("admin")
	require.NoError(t, err)

	store := auth.NewMemoryStore("stale-token", pair.RefreshToken)
	svc := api.New(clientFor(ts, transport.WithTokenStore(store)), nil)

	out, err := svc.ActivityCenter.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, out.TotalActivities)

	token, _ := store.Token(context.Background())
	assert.NotEqual(t, "stale-token", token)
	assert.Equal(t, 1, srv.Faults().Hits("POST", "/auth/refresh-token"))
	assert.Equal(t, 2, srv.Faults().Hits("GET", "/activity-center/overview"))
}

func TestActivityCenterEnvelopes(t *testing.T) {
	_, ts := newBackend(t)
	_, svc := loggedIn(t, ts)
	ctx := context.Background()
	ac := svc.ActivityCenter

	// rows/count
	page, err := ac.ListActivities(ctx, api.ActivityQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, "开放日", page.Items[0].CategoryLabel())

	// голый data[]
	regs, err := ac.ListRegistrations(ctx, api.RegistrationQuery{ActivityID: "1"})
	require.NoError(t, err)
	assert.Equal(t, 2, regs.Total)

	assert.Len(t, ac.Timeline(ctx, 2), 2)
	assert.Len(t, ac.Notifications(ctx), 2)
	assert.Equal(t, 2, ac.Dashboard(ctx).PendingApprovals)

	res, err := ac.BatchApproveRegistrations(ctx, []api.ID{"1", "99"}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SuccessCount)
	assert.Equal(t, 1, res.FailedCount)

	_, err = ac.Analytics(ctx, "2026-01-01", "2026-12-31")
	require.NoError(t, err)

	created, err := ac.CreateActivity(ctx, api.Activity{Title: "万圣节派对", Category: "festival", StartTime: "2026-10-31", EndTime: "2026-10-31"})
	require.NoError(t, err)
	assert.Equal(t, "draft", created.Status)
	require.NoError(t, ac.PublishActivity(ctx, created.ID))

	got, err := ac.GetActivity(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "published", got.Status)

	_, err = ac.GetActivity(ctx, "404")
	assert.Equal(t, http.StatusNotFound, transport.StatusCode(err))
}

func TestAdvertisementsCodeEnvelopeAndSortOrder(t *testing.T) {
	_, ts := newBackend(t)
	_, svc := loggedIn(t, ts)
	ctx := context.Background()
	ads := svc.Advertisements

	page, err := ads.List(ctx, api.AdvertisementQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)

	created, err := ads.Create(ctx, api.Advertisement{Title: "冬令营", Type: "banner"})
	require.NoError(t, err)
	assert.Equal(t, 4, created.SortOrder)
	assert.Equal(t, api.AdStatusDraft, created.Status)

	require.NoError(t, ads.UpdateStatus(ctx, created.ID, api.AdStatusActive))
	active := ads.Active(ctx)
	require.Len(t, active, 3)
	assert.Equal(t, 1, active[0].SortOrder)

	stats := ads.Statistics(ctx)
	assert.Equal(t, 4, stats.Total)
	assert.InDelta(t, 0.068, stats.CTR, 0.001)
}

func TestAdvertisementSortOrderSpansPages(t *testing.T) {
	_, ts := newBackend(t)
	_, svc := loggedIn(t, ts)
	ctx := context.Background()
	ads := svc.Advertisements

	// 3 из фикстур + 120 новых: больше одной страницы списка
	for i := range 120 {
		_, err := ads.Create(ctx, api.Advertisement{Title: fmt.Sprintf("ad-%d", i), Type: "banner", SortOrder: 100 + i})
		require.NoError(t, err)
	}
	first, err := ads.List(ctx, api.AdvertisementQuery{})
	require.NoError(t, err)
	require.Equal(t, 123, first.Total)
	require.Less(t, len(first.Items), first.Total)

	next, err := ads.NextSortOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, 220, next)

	created, err := ads.Create(ctx, api.Advertisement{Title: "末尾", Type: "banner"})
	require.NoError(t, err)
	assert.Equal(t, 220, created.SortOrder)
}

func TestMemoryCreateWithMinimalInput(t *testing.T) {
	_, ts := newBackend(t)
	_, svc := loggedIn(t, ts)

	mem, err := svc.Memory.Create(context.Background(), api.MemoryInput{UserID: "1", ConversationID: "conv_123", Content: "test"})
	require.NoError(t, err)
	assert.Equal(t, "test", mem.Content)
	assert.Equal(t, "short_term", mem.MemoryType)
	assert.Equal(t, 5, mem.Importance)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv, err := New(Options{Registry: reg, Gatherer: reg}, zaptest.NewLogger(t))
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	_, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "kyyup_mock_requests_total")

	// без Gatherer маршрута нет
	_, plain := newBackend(t)
	resp, err = http.Get(plain.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAIServices(t *testing.T) {
	_, ts := newBackend(t)
	_, svc := loggedIn(t, ts)
	ctx := context.Background()

	models, err := svc.AIModels.ListModels(ctx)
	require.NoError(t, err)
	assert.Len(t, models, 2)

	require.NoError(t, svc.AIModels.SetDefaultModel(ctx, "2"))
	def, err := svc.AIModels.GetDefaultModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, api.ID("2"), def.ID)

	quota, err := svc.AIModels.GetUserQuota(ctx)
	require.NoError(t, err)
	assert.Equal(t, quota.Total, quota.Used+quota.Remaining)

	assert.True(t, svc.AIModels.CheckModelCapability(ctx, "2", "vision"))
	assert.False(t, svc.AIModels.CheckModelCapability(ctx, "1", "vision"))
	assert.False(t, svc.AIModels.CheckModelCapability(ctx, "404", "vision"))

	conv, err := svc.Conversations.Create(ctx, api.ConversationInput{Title: "周报助手"})
	require.NoError(t, err)
	reply, err := svc.Conversations.SendMessage(ctx, conv.ID, api.Message{Content: "帮我写本周周报"})
	require.NoError(t, err)
	assert.Equal(t, "assistant", reply.Role)
	msgs, err := svc.Conversations.Messages(ctx, conv.ID, api.PageQuery{})
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	mem, err := svc.Memory.Create(ctx, api.MemoryInput{UserID: "1", ConversationID: conv.ID, Content: "偏好表格形式的周报", MemoryType: "semantic", Importance: 6})
	require.NoError(t, err)
	assert.NotEmpty(t, mem.ID)
	similar, err := svc.Memory.SearchSimilar(ctx, api.SimilarQuery{UserID: "1", Query: "周报"})
	require.NoError(t, err)
	require.NotEmpty(t, similar)
	assert.Greater(t, similar[0].Similarity, 0.0)
	require.NoError(t, svc.Memory.Delete(ctx, mem.ID, "1"))
	assert.Error(t, svc.Memory.Delete(ctx, mem.ID, "1"))

	session, err := svc.Chat.Start(ctx, "入园咨询")
	require.NoError(t, err)
	_, err = svc.Chat.Send(ctx, api.ChatMessage{ConversationID: session.ConversationID, Content: "几岁可以入园？"})
	require.NoError(t, err)
	assert.Len(t, svc.Chat.History(ctx, session.ConversationID), 2)
}

func TestAIUnavailableSwitch(t *testing.T) {
	srv, ts := newBackend(t)
	_, svc := loggedIn(t, ts)
	ctx := context.Background()

	srv.SetAIUnavailable(true)
	_, err := svc.AIModels.ListModels(ctx)
	assert.ErrorIs(t, err, transport.ErrAIUnavailable)
	assert.False(t, svc.AIModels.CheckModelCapability(ctx, "1", "chat"))

	// остальное работает
	assert.Equal(t, 2, svc.Security.Overview(ctx).ActiveThreats)

	srv.SetAIUnavailable(false)
	_, err = svc.AIModels.ListModels(ctx)
	assert.NoError(t, err)
}

func TestFaultInjection(t *testing.T) {
	srv, ts := newBackend(t)
	_, svc := loggedIn(t, ts)
	ctx := context.Background()

	srv.Faults().Inject("GET", "/enrollment-plans/overview", 1, Fault{Status: http.StatusBadGateway})
	_, err := svc.EnrollmentPlans.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Faults().Hits("GET", "/enrollment-plans/overview"))

	srv.Faults().Inject("GET", "/enrollment-plans/overview", 2, Fault{Status: http.StatusInternalServerError})
	_, err = svc.EnrollmentPlans.Overview(ctx)
	assert.Equal(t, http.StatusInternalServerError, transport.StatusCode(err))

	// 4xx не повторяется
	srv.Faults().Reset()
	srv.Faults().Inject("GET", "/enrollment-plans/overview", 2, Fault{Status: http.StatusBadRequest})
	_, err = svc.EnrollmentPlans.Overview(ctx)
	assert.Equal(t, http.StatusBadRequest, transport.StatusCode(err))
	assert.Equal(t, 1, srv.Faults().Hits("GET", "/enrollment-plans/overview"))

	// отказ на 200 в конверте
	srv.Faults().Inject("GET", "/enrollment-plans/all-statistics", 1, Fault{Status: http.StatusOK, Body: `{"code":500,"message":"db down"}`})
	assert.Zero(t, svc.EnrollmentPlans.AllStatistics(ctx))

	assert.Equal(t, 5.0, testutil.ToFloat64(srv.metrics.Faults))
	assert.Positive(t, testutil.CollectAndCount(srv.metrics.Requests))
}

func TestDataImportFlow(t *testing.T) {
	_, ts := newBackend(t)
	_, svc := loggedIn(t, ts)
	ctx := context.Background()
	di := svc.DataImport

	assert.True(t, di.CheckPermission(ctx, "student"))
	assert.False(t, di.CheckPermission(ctx, "alien"))

	schema, err := di.Schema(ctx, "student")
	require.NoError(t, err)
	assert.Len(t, schema.Fields, 5)

	doc, err := di.Parse(ctx, api.ParseRequest{FilePath: "/tmp/students.xlsx", ImportType: "student"})
	require.NoError(t, err)
	assert.Equal(t, "xlsx", doc.FileType)

	mapping, err := di.FieldMapping(ctx, api.FieldMappingRequest{ImportType: "student", Headers: []string{"姓名", "出生日期", "备注"}})
	require.NoError(t, err)
	assert.Equal(t, 2, mapping.Summary.MappedFields)
	assert.Equal(t, []string{"parentPhone"}, mapping.Summary.MissingFields)

	req := api.ImportRequest{
		ImportType: "student",
		Rows: []map[string]any{
			{"姓名": "王小明", "出生日期": "2022-03-01", "家长电话": "13800000001"},
			{"姓名": "李可"},
		},
		Mapping: map[string]string{"姓名": "name", "出生日期": "birthDate", "家长电话": "parentPhone"},
	}
	preview, err := di.Preview(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, preview.TotalRecords)
	assert.Equal(t, 1, preview.ValidRecords)
	assert.Len(t, preview.Errors, 2)

	result, err := di.Execute(ctx, req)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.FailedCount)
}

func TestSecurityAndEnrollment(t *testing.T) {
	_, ts := newBackend(t)
	_, svc := loggedIn(t, ts)
	ctx := context.Background()

	threats, err := svc.Security.Threats(ctx, api.ThreatQuery{Status: "active"})
	require.NoError(t, err)
	assert.Equal(t, 2, threats.Total)
	require.NoError(t, svc.Security.HandleThreat(ctx, "1", api.ThreatAction{Action: "resolve"}))
	assert.Equal(t, 1, svc.Security.Overview(ctx).ActiveThreats)
	assert.Len(t, svc.Security.Recommendations(ctx), 2)
	raw, err := svc.Security.Settings(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "passwordMinLength")

	plans := svc.EnrollmentPlans
	page, err := plans.List(ctx, api.PlanQuery{Year: 2027})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	require.NoError(t, plans.SetClasses(ctx, "1", []api.PlanClass{{ClassID: "13", Name: "中一班", Quota: 25}}))
	classes, err := plans.Classes(ctx, "1")
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, api.ID("13"), classes[0].ClassID)

	stats, err := plans.Statistics(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 30.0, stats.CompletionRate)

	cp, err := plans.Copy(ctx, "1", map[string]any{"year": 2028})
	require.NoError(t, err)
	assert.Equal(t, "draft", cp.Status)
	assert.Equal(t, 2028, cp.Year)
	require.NoError(t, plans.Complete(ctx, cp.ID))
	assert.Error(t, plans.UpdateStatus(ctx, cp.ID, "archived"))

	quotas, err := svc.EnrollmentQuotas.List(ctx, api.QuotaQuery{PlanID: "1"})
	require.NoError(t, err)
	assert.Equal(t, 2, quotas.Total)
	assert.Equal(t, 8, quotas.Items[0].Remaining())
	assert.Equal(t, 73.3, svc.EnrollmentQuotas.Usage(ctx, "1").UsageRate)
	assert.Zero(t, svc.EnrollmentQuotas.Usage(ctx, "404"))
}
