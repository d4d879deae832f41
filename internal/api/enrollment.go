package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/yyupcompany/kyyupgame-sub066/internal/transport"
	"github.com/yyupcompany/kyyupgame-sub066/internal/validation"
	"go.uber.org/zap"
)

var PlanStatuses = []string{"draft", "active", "in_progress", "completed", "cancelled"}

type EnrollmentPlan struct {
	ID          ID     `json:"id,omitempty"`
	Title       string `json:"title" validate:"notblank"`
	Year        int    `json:"year" validate:"gte=2000,lte=2100"`
	Semester    string `json:"semester,omitempty" validate:"omitempty,oneof=spring autumn"`
	StartDate   string `json:"startDate" validate:"isodate"`
	EndDate     string `json:"endDate" validate:"isodate"`
	TargetCount int    `json:"targetCount" validate:"gte=0"`
	ActualCount int    `json:"actualCount,omitempty"`
	Status      string `json:"status,omitempty" validate:"omitempty,oneof=draft active in_progress completed cancelled"`
	AgeRange    string `json:"ageRange,omitempty"`
	Description string `json:"description,omitempty"`
}

type PlanQuery struct {
	PageQuery
	Status  string
	Year    int
	Keyword string
}

func (q PlanQuery) values() url.Values {
	v := q.PageQuery.values()
	setStr(v, "status", q.Status)
	setInt(v, "year", q.Year)
	setStr(v, "keyword", q.Keyword)
	return v
}

type PlanStatistics struct {
	PlanID         ID      `json:"planId,omitempty"`
	TargetCount    int     `json:"targetCount"`
	ActualCount    int     `json:"actualCount"`
	CompletionRate float64 `json:"completionRate"`
	Applications   int     `json:"applications"`
	Interviews     int     `json:"interviews"`
	Admissions     int     `json:"admissions"`
}

type PlansOverview struct {
	TotalPlans     int     `json:"totalPlans"`
	ActivePlans    int     `json:"activePlans"`
	TotalTarget    int     `json:"totalTarget"`
	TotalEnrolled  int     `json:"totalEnrolled"`
	CompletionRate float64 `json:"completionRate"`
}

type PlanClass struct {
	ClassID ID     `json:"classId"`
	Name    string `json:"name,omitempty"`
	Quota   int    `json:"quota" validate:"gte=0"`
}

type Tracking struct {
	ID          ID     `json:"id,omitempty"`
	Date        string `json:"date" validate:"isodate"`
	ActualCount int    `json:"actualCount" validate:"gte=0"`
	Remark      string `json:"remark,omitempty"`
	Source      string `json:"source,omitempty"`
}

type QuotaUsageEntry struct {
	Date      string `json:"date"`
	UsedQuota int    `json:"usedQuota"`
	Change    int    `json:"change"`
	Reason    string `json:"reason,omitempty"`
}

type EnrollmentPlans struct {
	base
}

func NewEnrollmentPlans(req transport.Requester, logger *zap.Logger) *EnrollmentPlans {
	return &EnrollmentPlans{base: newBase(req, logger, "enrollment_plans")}
}

const plansPath = "/enrollment-plans"

func planPath(id ID, suffix string) string {
	return plansPath + "/" + esc(id) + suffix
}

func (s *EnrollmentPlans) List(ctx context.Context, q PlanQuery) (*Page[EnrollmentPlan], error) {
	page, err := fetchPage[EnrollmentPlan](ctx, s.base, plansPath, q.values())
	if err != nil {
		return nil, fmt.Errorf("list enrollment plans: %w", err)
	}
	return page, nil
}

func (s *EnrollmentPlans) Get(ctx context.Context, id ID) (*EnrollmentPlan, error) {
	var out EnrollmentPlan
	if err := s.get(ctx, planPath(id, ""), nil, &out); err != nil {
		return nil, fmt.Errorf("get enrollment plan %s: %w", id, err)
	}
	return &out, nil
}

func (s *EnrollmentPlans) Create(ctx context.Context, p EnrollmentPlan) (*EnrollmentPlan, error) {
	if err := validation.Struct(p); err != nil {
		return nil, fmt.Errorf("create enrollment plan: %w", err)
	}
	var out EnrollmentPlan
	if err := s.post(ctx, plansPath, p, &out); err != nil {
		return nil, fmt.Errorf("create enrollment plan: %w", err)
	}
	return &out, nil
}

func (s *EnrollmentPlans) Update(ctx context.Context, id ID, changes map[string]any) (*EnrollmentPlan, error) {
	var out EnrollmentPlan
	if err := s.put(ctx, planPath(id, ""), changes, &out); err != nil {
		return nil, fmt.Errorf("update enrollment plan %s: %w", id, err)
	}
	return &out, nil
}

func (s *EnrollmentPlans) Delete(ctx context.Context, id ID) error {
	if err := s.del(ctx, planPath(id, "")); err != nil {
		return fmt.Errorf("delete enrollment plan %s: %w", id, err)
	}
	return nil
}

func (s *EnrollmentPlans) Publish(ctx context.Context, id ID) error {
	return s.transition(ctx, id, "publish")
}

func (s *EnrollmentPlans) Cancel(ctx context.Context, id ID) error {
	return s.transition(ctx, id, "cancel")
}

func (s *EnrollmentPlans) Complete(ctx context.Context, id ID) error {
	return s.transition(ctx, id, "complete")
}

func (s *EnrollmentPlans) transition(ctx context.Context, id ID, action string) error {
	if err := s.put(ctx, planPath(id, "/"+action), nil, nil); err != nil {
		return fmt.Errorf("%s enrollment plan %s: %w", action, id, err)
	}
	return nil
}

func (s *EnrollmentPlans) UpdateStatus(ctx context.Context, id ID, status string) error {
	if err := validation.Validate.Var(status, "oneof=draft active in_progress completed cancelled"); err != nil {
		return fmt.Errorf("update enrollment plan status: %w: %q", transport.ErrInvalidRequest, status)
	}
	if err := s.put(ctx, planPath(id, "/status"), map[string]string{"status": status}, nil); err != nil {
		return fmt.Errorf("update enrollment plan %s status: %w", id, err)
	}
	return nil
}

func (s *EnrollmentPlans) Analytics(ctx context.Context, q PlanQuery) (json.RawMessage, error) {
	resp, err := s.req.Get(ctx, plansPath+"/analytics", q.values())
	if err != nil {
		return nil, fmt.Errorf("enrollment analytics: %w", err)
	}
	return resp.Data, nil
}

func (s *EnrollmentPlans) Statistics(ctx context.Context, id ID) (*PlanStatistics, error) {
	var out PlanStatistics
	if err := s.get(ctx, planPath(id, "/statistics"), nil, &out); err != nil {
		return nil, fmt.Errorf("enrollment plan %s statistics: %w", id, err)
	}
	return &out, nil
}

func (s *EnrollmentPlans) Overview(ctx context.Context) (*PlansOverview, error) {
	var out PlansOverview
	if err := s.get(ctx, plansPath+"/overview", nil, &out); err != nil {
		return nil, fmt.Errorf("enrollment plans overview: %w", err)
	}
	return &out, nil
}

func (s *EnrollmentPlans) AllStatistics(ctx context.Context) PlansOverview {
	var out PlansOverview
	if err := s.get(ctx, plansPath+"/all-statistics", nil, &out); err != nil {
		s.swallow("all_statistics", err)
		return PlansOverview{}
	}
	return out
}

func (s *EnrollmentPlans) Classes(ctx context.Context, id ID) ([]PlanClass, error) {
	items, err := fetchList[PlanClass](ctx, s.base, planPath(id, "/classes"), nil, "classes")
	if err != nil {
		return nil, fmt.Errorf("enrollment plan %s classes: %w", id, err)
	}
	return items, nil
}

func (s *EnrollmentPlans) SetClasses(ctx context.Context, id ID, classes []PlanClass) error {
	for _, c := range classes {
		if err := validation.Struct(c); err != nil {
			return fmt.Errorf("set enrollment plan classes: %w", err)
		}
	}
	if err := s.post(ctx, planPath(id, "/classes"), map[string]any{"classes": classes}, nil); err != nil {
		return fmt.Errorf("set enrollment plan %s classes: %w", id, err)
	}
	return nil
}

func (s *EnrollmentPlans) AddAssignees(ctx context.Context, id ID, userIDs []ID) error {
	if err := s.post(ctx, planPath(id, "/assignees"), map[string]any{"assigneeIds": userIDs}, nil); err != nil {
		return fmt.Errorf("add enrollment plan %s assignees: %w", id, err)
	}
	return nil
}

func (s *EnrollmentPlans) Trackings(ctx context.Context, id ID) ([]Tracking, error) {
	items, err := fetchList[Tracking](ctx, s.base, planPath(id, "/trackings"), nil, "trackings")
	if err != nil {
		return nil, fmt.Errorf("enrollment plan %s trackings: %w", id, err)
	}
	return items, nil
}

func (s *EnrollmentPlans) AddTracking(ctx context.Context, id ID, t Tracking) (*Tracking, error) {
	if err := validation.Struct(t); err != nil {
		return nil, fmt.Errorf("add tracking: %w", err)
	}
	var out Tracking
	if err := s.post(ctx, planPath(id, "/trackings"), t, &out); err != nil {
		return nil, fmt.Errorf("add tracking to plan %s: %w", id, err)
	}
	return &out, nil
}

func (s *EnrollmentPlans) QuotaUsageHistory(ctx context.Context, id ID) ([]QuotaUsageEntry, error) {
	items, err := fetchList[QuotaUsageEntry](ctx, s.base, planPath(id, "/quota-usage-history"), nil, "history")
	if err != nil {
		return nil, fmt.Errorf("enrollment plan %s quota history: %w", id, err)
	}
	return items, nil
}

// Copy создает копию плана; overrides перекрывают поля исходного.
func (s *EnrollmentPlans) Copy(ctx context.Context, id ID, overrides map[string]any) (*EnrollmentPlan, error) {
	var out EnrollmentPlan
	if err := s.post(ctx, planPath(id, "/copy"), overrides, &out); err != nil {
		return nil, fmt.Errorf("copy enrollment plan %s: %w", id, err)
	}
	return &out, nil
}
