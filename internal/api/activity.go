package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/yyupcompany/kyyupgame-sub066/internal/transport"
	"github.com/yyupcompany/kyyupgame-sub066/internal/validation"
	"go.uber.org/zap"
)

type MonthlyGrowth struct {
	Activities    float64 `json:"activities"`
	Registrations float64 `json:"registrations"`
	Participants  float64 `json:"participants"`
}

type ActivityOverview struct {
	TotalActivities    int           `json:"totalActivities"`
	OngoingActivities  int           `json:"ongoingActivities"`
	TotalRegistrations int           `json:"totalRegistrations"`
	ActiveParticipants int           `json:"activeParticipants"`
	MonthlyGrowth      MonthlyGrowth `json:"monthlyGrowth"`
}

type ActivityDashboard struct {
	Overview           ActivityOverview `json:"overview"`
	RecentActivities   []Activity       `json:"recentActivities"`
	PendingApprovals   int              `json:"pendingApprovals"`
	UpcomingActivities int              `json:"upcomingActivities"`
}

type TimelineItem struct {
	ID          ID     `json:"id"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Time        string `json:"time"`
	Description string `json:"description,omitempty"`
	Progress    int    `json:"progress,omitempty"`
}

type ActivityAnalytics struct {
	TotalActivities     int                `json:"totalActivities"`
	TotalRegistrations  int                `json:"totalRegistrations"`
	AverageParticipants float64            `json:"averageParticipants"`
	SatisfactionRate    float64            `json:"satisfactionRate"`
	ByCategory          map[string]int     `json:"byCategory,omitempty"`
	Trend               []map[string]any   `json:"trend,omitempty"`
	Extra               map[string]float64 `json:"extra,omitempty"`
}

type Activity struct {
	ID                ID      `json:"id,omitempty"`
	Title             string  `json:"title" validate:"notblank"`
	Category          string  `json:"category,omitempty"`
	Description       string  `json:"description,omitempty"`
	Status            string  `json:"status,omitempty" validate:"omitempty,oneof=draft published ongoing completed cancelled"`
	StartTime         string  `json:"startTime" validate:"isodate"`
	EndTime           string  `json:"endTime" validate:"isodate"`
	Location          string  `json:"location,omitempty"`
	Capacity          int     `json:"capacity,omitempty" validate:"gte=0"`
	RegisteredCount   int     `json:"registeredCount,omitempty"`
	Fee               float64 `json:"fee,omitempty" validate:"gte=0"`
	NeedsApproval     bool    `json:"needsApproval,omitempty"`
	RegistrationStart string  `json:"registrationStartTime,omitempty" validate:"omitempty,isodate"`
	RegistrationEnd   string  `json:"registrationEndTime,omitempty" validate:"omitempty,isodate"`
}

// CategoryLabel подпись категории активности.
func (a Activity) CategoryLabel() string { return CategoryLabel(a.Category) }

type ActivityQuery struct {
	PageQuery
	Status   string
	Keyword  string
	Category string
}

func (q ActivityQuery) values() url.Values {
	v := q.PageQuery.values()
	setStr(v, "status", q.Status)
	setStr(v, "keyword", q.Keyword)
	setStr(v, "category", q.Category)
	return v
}

type Registration struct {
	ID           ID     `json:"id"`
	ActivityID   ID     `json:"activityId"`
	ParentName   string `json:"parentName,omitempty"`
	ChildName    string `json:"childName,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Status       string `json:"status"`
	Remark       string `json:"remark,omitempty"`
	RegisteredAt string `json:"registeredAt,omitempty"`
}

type RegistrationQuery struct {
	PageQuery
	ActivityID ID
	Status     string
}

func (q RegistrationQuery) values() url.Values {
	v := q.PageQuery.values()
	setStr(v, "activityId", string(q.ActivityID))
	setStr(v, "status", q.Status)
	return v
}

type Notification struct {
	ID        ID     `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content,omitempty"`
	Type      string `json:"type,omitempty"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type CacheStats struct {
	Keys    int     `json:"keys"`
	Hits    int     `json:"hits"`
	Misses  int     `json:"misses"`
	HitRate float64 `json:"hitRate"`
}

type ActivityCenter struct {
	base
}

func NewActivityCenter(req transport.Requester, logger *zap.Logger) *ActivityCenter {
	return &ActivityCenter{base: newBase(req, logger, "activity_center")}
}

const activityCenterPath = "/activity-center"

// Overview сводка центра активностей. Ошибка возвращается вызывающему.
func (s *ActivityCenter) Overview(ctx context.Context) (*ActivityOverview, error) {
	var out ActivityOverview
	if err := s.get(ctx, activityCenterPath+"/overview", nil, &out); err != nil {
		return nil, fmt.Errorf("activity overview: %w", err)
	}
	return &out, nil
}

func (s *ActivityCenter) Dashboard(ctx context.Context) ActivityDashboard {
	var out ActivityDashboard
	if err := s.get(ctx, activityCenterPath+"/dashboard", nil, &out); err != nil {
		s.swallow("dashboard", err)
		return ActivityDashboard{RecentActivities: []Activity{}}
	}
	if out.RecentActivities == nil {
		out.RecentActivities = []Activity{}
	}
	return out
}

func (s *ActivityCenter) Timeline(ctx context.Context, limit int) []TimelineItem {
	q := url.Values{}
	setInt(q, "limit", limit)
	items, err := fetchList[TimelineItem](ctx, s.base, activityCenterPath+"/timeline", q, "timeline")
	if err != nil {
		s.swallow("timeline", err)
		return []TimelineItem{}
	}
	return items
}

// Analytics даты в формате YYYY-MM-DD, пустые означают «за все время».
func (s *ActivityCenter) Analytics(ctx context.Context, startDate, endDate string) (*ActivityAnalytics, error) {
	for _, d := range []string{startDate, endDate} {
		if d != "" && !validation.IsDate(d) {
			return nil, fmt.Errorf("activity analytics: %w: bad date %q", transport.ErrInvalidRequest, d)
		}
	}
	q := url.Values{}
	setStr(q, "startDate", startDate)
	setStr(q, "endDate", endDate)

	var out ActivityAnalytics
	if err := s.get(ctx, activityCenterPath+"/analytics", q, &out); err != nil {
		return nil, fmt.Errorf("activity analytics: %w", err)
	}
	return &out, nil
}

func (s *ActivityCenter) ListActivities(ctx context.Context, q ActivityQuery) (*Page[Activity], error) {
	page, err := fetchPage[Activity](ctx, s.base, activityCenterPath+"/activities", q.values())
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return page, nil
}

func (s *ActivityCenter) GetActivity(ctx context.Context, id ID) (*Activity, error) {
	var out Activity
	if err := s.get(ctx, activityCenterPath+"/activities/"+esc(id), nil, &out); err != nil {
		return nil, fmt.Errorf("get activity %s: %w", id, err)
	}
	return &out, nil
}

func (s *ActivityCenter) CreateActivity(ctx context.Context, a Activity) (*Activity, error) {
	if err := validation.Struct(a); err != nil {
		return nil, fmt.Errorf("create activity: %w", err)
	}
	var out Activity
	if err := s.post(ctx, activityCenterPath+"/activities", a, &out); err != nil {
		return nil, fmt.Errorf("create activity: %w", err)
	}
	return &out, nil
}

// UpdateActivity шлет только переданные поля.
func (s *ActivityCenter) UpdateActivity(ctx context.Context, id ID, changes map[string]any) (*Activity, error) {
	var out Activity
	if err := s.put(ctx, activityCenterPath+"/activities/"+esc(id), changes, &out); err != nil {
		return nil, fmt.Errorf("update activity %s: %w", id, err)
	}
	return &out, nil
}

func (s *ActivityCenter) DeleteActivity(ctx context.Context, id ID) error {
	if err := s.del(ctx, activityCenterPath+"/activities/"+esc(id)); err != nil {
		return fmt.Errorf("delete activity %s: %w", id, err)
	}
	return nil
}

func (s *ActivityCenter) PublishActivity(ctx context.Context, id ID) error {
	if err := s.put(ctx, activityCenterPath+"/activities/"+esc(id)+"/publish", nil, nil); err != nil {
		return fmt.Errorf("publish activity %s: %w", id, err)
	}
	return nil
}

func (s *ActivityCenter) CancelActivity(ctx context.Context, id ID) error {
	if err := s.put(ctx, activityCenterPath+"/activities/"+esc(id)+"/cancel", nil, nil); err != nil {
		return fmt.Errorf("cancel activity %s: %w", id, err)
	}
	return nil
}

func (s *ActivityCenter) ListRegistrations(ctx context.Context, q RegistrationQuery) (*Page[Registration], error) {
	page, err := fetchPage[Registration](ctx, s.base, activityCenterPath+"/registrations", q.values())
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return page, nil
}

type approval struct {
	Approved bool   `json:"approved"`
	Remark   string `json:"remark,omitempty"`
}

func (s *ActivityCenter) ApproveRegistration(ctx context.Context, id ID, approved bool, remark string) error {
	err := s.post(ctx, activityCenterPath+"/registrations/"+esc(id)+"/approve", approval{Approved: approved, Remark: remark}, nil)
	if err != nil {
		return fmt.Errorf("approve registration %s: %w", id, err)
	}
	return nil
}

type BatchResult struct {
	SuccessCount int  `json:"successCount"`
	FailedCount  int  `json:"failedCount"`
	FailedIDs    []ID `json:"failedIds,omitempty"`
}

func (s *ActivityCenter) BatchApproveRegistrations(ctx context.Context, ids []ID, approved bool) (*BatchResult, error) {
	body := map[string]any{"ids": ids, "approved": approved}
	var out BatchResult
	if err := s.post(ctx, activityCenterPath+"/registrations/batch-approve", body, &out); err != nil {
		return nil, fmt.Errorf("batch approve registrations: %w", err)
	}
	return &out, nil
}

func (s *ActivityCenter) Notifications(ctx context.Context) []Notification {
	items, err := fetchList[Notification](ctx, s.base, activityCenterPath+"/notifications", nil, "notifications")
	if err != nil {
		s.swallow("notifications", err)
		return []Notification{}
	}
	return items
}

func (s *ActivityCenter) CacheStats(ctx context.Context) (*CacheStats, error) {
	var out CacheStats
	if err := s.get(ctx, activityCenterPath+"/cache/stats", nil, &out); err != nil {
		return nil, fmt.Errorf("activity cache stats: %w", err)
	}
	return &out, nil
}

func (s *ActivityCenter) ClearCache(ctx context.Context) error {
	if err := s.post(ctx, activityCenterPath+"/cache/clear", nil, nil); err != nil {
		return fmt.Errorf("clear activity cache: %w", err)
	}
	return nil
}
