package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/yyupcompany/kyyupgame-sub066/internal/transport"
	"github.com/yyupcompany/kyyupgame-sub066/internal/validation"
	"go.uber.org/zap"
)

// Quota квота набора на класс. UsedQuota <= TotalQuota проверяется только тестами, клиент не навязывает.
type Quota struct {
	ID             ID     `json:"id,omitempty"`
	PlanID         ID     `json:"planId" validate:"required"`
	ClassID        ID     `json:"classId" validate:"required"`
	TotalQuota     int    `json:"totalQuota" validate:"gte=0"`
	UsedQuota      int    `json:"usedQuota" validate:"gte=0"`
	ReservedQuota  int    `json:"reservedQuota" validate:"gte=0"`
	RemainingQuota int    `json:"remainingQuota"`
	Remark         string `json:"remark,omitempty"`
}

// Remaining total-used-reserved, не меньше нуля.
func (q Quota) Remaining() int {
	return max(q.TotalQuota-q.UsedQuota-q.ReservedQuota, 0)
}

type QuotaQuery struct {
	PageQuery
	PlanID  ID
	ClassID ID
}

func (q QuotaQuery) values() url.Values {
	v := q.PageQuery.values()
	setStr(v, "planId", string(q.PlanID))
	setStr(v, "classId", string(q.ClassID))
	return v
}

type QuotaUsage struct {
	QuotaID       ID      `json:"quotaId,omitempty"`
	TotalQuota    int     `json:"totalQuota"`
	UsedQuota     int     `json:"usedQuota"`
	ReservedQuota int     `json:"reservedQuota"`
	UsageRate     float64 `json:"usageRate"`
}

type EnrollmentQuotas struct {
	base
}

func NewEnrollmentQuotas(req transport.Requester, logger *zap.Logger) *EnrollmentQuotas {
	return &EnrollmentQuotas{base: newBase(req, logger, "enrollment_quotas")}
}

const quotasPath = "/enrollment-quotas"

func (s *EnrollmentQuotas) List(ctx context.Context, q QuotaQuery) (*Page[Quota], error) {
	page, err := fetchPage[Quota](ctx, s.base, quotasPath, q.values())
	if err != nil {
		return nil, fmt.Errorf("list enrollment quotas: %w", err)
	}
	return page, nil
}

func (s *EnrollmentQuotas) Get(ctx context.Context, id ID) (*Quota, error) {
	var out Quota
	if err := s.get(ctx, quotasPath+"/"+esc(id), nil, &out); err != nil {
		return nil, fmt.Errorf("get enrollment quota %s: %w", id, err)
	}
	return &out, nil
}

func (s *EnrollmentQuotas) Create(ctx context.Context, q Quota) (*Quota, error) {
	if err := validation.Struct(q); err != nil {
		return nil, fmt.Errorf("create enrollment quota: %w", err)
	}
	var out Quota
	if err := s.post(ctx, quotasPath, q, &out); err != nil {
		return nil, fmt.Errorf("create enrollment quota: %w", err)
	}
	return &out, nil
}

func (s *EnrollmentQuotas) Update(ctx context.Context, id ID, changes map[string]any) (*Quota, error) {
	var out Quota
	if err := s.put(ctx, quotasPath+"/"+esc(id), changes, &out); err != nil {
		return nil, fmt.Errorf("update enrollment quota %s: %w", id, err)
	}
	return &out, nil
}

func (s *EnrollmentQuotas) Delete(ctx context.Context, id ID) error {
	if err := s.del(ctx, quotasPath+"/"+esc(id)); err != nil {
		return fmt.Errorf("delete enrollment quota %s: %w", id, err)
	}
	return nil
}

func (s *EnrollmentQuotas) Usage(ctx context.Context, id ID) QuotaUsage {
	var out QuotaUsage
	if err := s.get(ctx, quotasPath+"/"+esc(id)+"/usage", nil, &out); err != nil {
		s.swallow("usage", err)
		return QuotaUsage{}
	}
	return out
}
