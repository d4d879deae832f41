package api

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yyupcompany/kyyupgame-sub066/internal/shape"
	"github.com/yyupcompany/kyyupgame-sub066/internal/transport"
	"github.com/yyupcompany/kyyupgame-sub066/internal/transport/transporttest"
	"github.com/yyupcompany/kyyupgame-sub066/internal/validation"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var errBackend = &transport.HTTPError{Method: "GET", Path: "/x", StatusCode: 500, Message: "boom"}

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.WarnLevel)
	return zap.New(core), logs
}

func TestActivityOverview(t *testing.T) {
	rec := transporttest.New().Reply("GET", "/activity-center/overview", map[string]any{
		"totalActivities":    12,
		"ongoingActivities":  3,
		"totalRegistrations": 240,
		"activeParticipants": 180,
		"monthlyGrowth":      map[string]any{"activities": 12.5, "registrations": 8, "participants": -2},
	})
	svc := NewActivityCenter(rec, nil)

	out, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, out.TotalActivities)
	assert.Equal(t, 12.5, out.MonthlyGrowth.Activities)
	assert.Equal(t, -2.0, out.MonthlyGrowth.Participants)

	require.Len(t, rec.Calls(), 1)
	assert.Equal(t, "GET", rec.Last().Method)
	assert.Equal(t, "/activity-center/overview", rec.Last().Path)

	obj, err := shape.FromStruct(out)
	require.NoError(t, err)
	r := shape.Merge(
		shape.RequiredFields(obj, "totalActivities", "ongoingActivities", "totalRegistrations", "activeParticipants", "monthlyGrowth"),
		shape.FieldTypes(obj, map[string]shape.Kind{"totalActivities": shape.KindNumber, "monthlyGrowth": shape.KindObject}),
	)
	assert.True(t, r.Valid, r.Errors)
}

func TestActivityOverviewPropagatesError(t *testing.T) {
	rec := transporttest.New().Fail("GET", "/activity-center/overview", errBackend)
	out, err := NewActivityCenter(rec, nil).Overview(context.Background())
	assert.Nil(t, out)
	assert.ErrorIs(t, err, errBackend)
	assert.Equal(t, 500, transport.StatusCode(err))
}

func TestActivitySwallowingOps(t *testing.T) {
	logger, logs := observedLogger()
	rec := transporttest.New().Fail("GET", "", errBackend)
	svc := NewActivityCenter(rec, logger)
	ctx := context.Background()

	dash := svc.Dashboard(ctx)
	assert.Zero(t, dash.PendingApprovals)
	assert.NotNil(t, dash.RecentActivities)
	assert.Empty(t, dash.RecentActivities)

	timeline := svc.Timeline(ctx, 5)
	assert.NotNil(t, timeline)
	assert.Empty(t, timeline)

	notes := svc.Notifications(ctx)
	assert.NotNil(t, notes)
	assert.Empty(t, notes)

	assert.Equal(t, 3, logs.Len())
	assert.Equal(t, "timeline", logs.All()[1].ContextMap()["op"])
	assert.Equal(t, "5", rec.Calls()[1].Params.Get("limit"))
}

func TestActivityTimelineShapes(t *testing.T) {
	rec := transporttest.New().ReplyRaw("GET", "/activity-center/timeline",
		`{"success":true,"data":{"timeline":[{"id":1,"title":"开放日","type":"open_day","status":"ongoing","time":"2026-10-01"}]}}`)
	items := NewActivityCenter(rec, nil).Timeline(context.Background(), 0)
	require.Len(t, items, 1)
	assert.Equal(t, ID("1"), items[0].ID)
	assert.Empty(t, rec.Last().Params)
}

func TestActivityAnalyticsValidatesDates(t *testing.T) {
	rec := transporttest.New()
	svc := NewActivityCenter(rec, nil)

	_, err := svc.Analytics(context.Background(), "2026/01/01", "")
	assert.ErrorIs(t, err, transport.ErrInvalidRequest)
	assert.Empty(t, rec.Calls())

	_, err = svc.Analytics(context.Background(), "2026-01-01", "2026-06-30")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-01", rec.Last().Params.Get("startDate"))
	assert.Equal(t, "2026-06-30", rec.Last().Params.Get("endDate"))
}

func TestActivityList(t *testing.T) {
	rec := transporttest.New().ReplyRaw("GET", "/activity-center/activities",
		`{"rows":[{"id":7,"title":"秋游","category":"outdoor","startTime":"2026-10-20","endTime":"2026-10-20"}],"count":31}`)
	page, err := NewActivityCenter(rec, nil).ListActivities(context.Background(), ActivityQuery{
		PageQuery: PageQuery{Page: 2, PageSize: 10},
		Status:    "published",
	})
	require.NoError(t, err)
	assert.Equal(t, 31, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "户外活动", page.Items[0].CategoryLabel())

	params := rec.Last().Params
	assert.Equal(t, "2", params.Get("page"))
	assert.Equal(t, "10", params.Get("pageSize"))
	assert.Equal(t, "published", params.Get("status"))
	assert.False(t, params.Has("keyword"))
}

func TestActivityCreateValidates(t *testing.T) {
	rec := transporttest.New().Reply("POST", "/activity-center/activities", map[string]any{"id": 99, "title": "亲子运动会"})
	svc := NewActivityCenter(rec, nil)

	_, err := svc.CreateActivity(context.Background(), Activity{Title: " ", StartTime: "tomorrow"})
	var vErr *validation.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.FieldMap(), "title")
	assert.Contains(t, vErr.FieldMap(), "startTime")
	assert.Empty(t, rec.Calls())

	out, err := svc.CreateActivity(context.Background(), Activity{
		Title: "亲子运动会", Category: "sports", StartTime: "2026-11-01", EndTime: "2026-11-01T17:00:00+08:00",
	})
	require.NoError(t, err)
	assert.Equal(t, ID("99"), out.ID)
	assert.Equal(t, "亲子运动会", rec.BodyJSON()["title"])
}

func TestActivityMutations(t *testing.T) {
	rec := transporttest.New()
	svc := NewActivityCenter(rec, nil)
	ctx := context.Background()

	require.NoError(t, svc.PublishActivity(ctx, "5"))
	require.NoError(t, svc.CancelActivity(ctx, "5"))
	require.NoError(t, svc.DeleteActivity(ctx, "5"))
	_, err := svc.UpdateActivity(ctx, "5", map[string]any{"capacity": 40})
	require.NoError(t, err)
	require.NoError(t, svc.ApproveRegistration(ctx, "r1", true, "ok"))
	_, err = svc.BatchApproveRegistrations(ctx, []ID{"r1", "r2"}, false)
	require.NoError(t, err)
	require.NoError(t, svc.ClearCache(ctx))

	want := []transporttest.Call{
		{Method: "PUT", Path: "/activity-center/activities/5/publish"},
		{Method: "PUT", Path: "/activity-center/activities/5/cancel"},
		{Method: "DELETE", Path: "/activity-center/activities/5"},
		{Method: "PUT", Path: "/activity-center/activities/5"},
		{Method: "POST", Path: "/activity-center/registrations/r1/approve"},
		{Method: "POST", Path: "/activity-center/registrations/batch-approve"},
		{Method: "POST", Path: "/activity-center/cache/clear"},
	}
	calls := rec.Calls()
	require.Len(t, calls, len(want))
	for i, w := range want {
		assert.Equal(t, w.Method, calls[i].Method, i)
		assert.Equal(t, w.Path, calls[i].Path, i)
	}
	assert.Equal(t, approval{Approved: true, Remark: "ok"}, calls[4].Body)
	assert.Equal(t, map[string]any{"ids": []ID{"r1", "r2"}, "approved": false}, calls[5].Body)
}

func TestActivityRegistrationsAndCache(t *testing.T) {
	rec := transporttest.New().
		ReplyRaw("GET", "/activity-center/registrations", `{"data":[{"id":1,"activityId":3,"status":"pending"}],"message":"ok"}`).
		Reply("GET", "/activity-center/cache/stats", map[string]any{"keys": 4, "hits": 30, "misses": 10, "hitRate": 0.75})
	svc := NewActivityCenter(rec, nil)

	page, err := svc.ListRegistrations(context.Background(), RegistrationQuery{ActivityID: "3"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, "3", rec.Last().Params.Get("activityId"))

	stats, err := svc.CacheStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.75, stats.HitRate)

	_, err = NewActivityCenter(transporttest.New().Fail("GET", "", errors.New("dial")), nil).CacheStats(context.Background())
	assert.Error(t, err)
}
