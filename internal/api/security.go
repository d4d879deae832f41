package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/tidwall/gjson"
	"github.com/yyupcompany/kyyupgame-sub066/internal/transport"
	"github.com/yyupcompany/kyyupgame-sub066/internal/validation"
	"go.uber.org/zap"
)

type SecurityOverview struct {
	SecurityScore   int    `json:"securityScore"`
	ThreatLevel     string `json:"threatLevel"`
	ActiveThreats   int    `json:"activeThreats"`
	Vulnerabilities int    `json:"vulnerabilities"`
	RiskLevel       string `json:"riskLevel"`
	LastScanTime    string `json:"lastScanTime,omitempty"`
}

type Threat struct {
	ID          ID     `json:"id"`
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Status      string `json:"status"`
	Source      string `json:"source,omitempty"`
	Description string `json:"description,omitempty"`
	DetectedAt  string `json:"detectedAt,omitempty"`
}

type ThreatQuery struct {
	PageQuery
	Severity string
	Status   string
}

func (q ThreatQuery) values() url.Values {
	v := q.PageQuery.values()
	setStr(v, "severity", q.Severity)
	setStr(v, "status", q.Status)
	return v
}

type ThreatAction struct {
	Action string `json:"action" validate:"oneof=resolve ignore block"`
	Notes  string `json:"notes,omitempty"`
}

type Recommendation struct {
	ID          ID     `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Category    string `json:"category,omitempty"`
}

type ScanResult struct {
	ScanID  ID     `json:"scanId"`
	Message string `json:"message"`
}

type Security struct {
	base
}

func NewSecurity(req transport.Requester, logger *zap.Logger) *Security {
	return &Security{base: newBase(req, logger, "security")}
}

const securityPath = "/security"

func (s *Security) Overview(ctx context.Context) SecurityOverview {
	var out SecurityOverview
	if err := s.get(ctx, securityPath+"/overview", nil, &out); err != nil {
		s.swallow("overview", err)
		return SecurityOverview{}
	}
	return out
}

// Threats бэкенд отдает то {threats:[...]}, то список.
func (s *Security) Threats(ctx context.Context, q ThreatQuery) (*Page[Threat], error) {
	resp, err := s.req.Get(ctx, securityPath+"/threats", q.values())
	if err != nil {
		return nil, fmt.Errorf("list threats: %w", err)
	}
	items, err := listOf[Threat](resp, "threats")
	if err != nil {
		return nil, fmt.Errorf("list threats: %w", err)
	}
	total := len(items)
	if t := gjson.GetBytes(resp.Data, "total"); t.Exists() {
		total = int(t.Int())
	}
	return &Page[Threat]{Items: items, Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}

func (s *Security) HandleThreat(ctx context.Context, id ID, action ThreatAction) error {
	if err := validation.Struct(action); err != nil {
		return fmt.Errorf("handle threat %s: %w", id, err)
	}
	if err := s.post(ctx, securityPath+"/threats/"+esc(id)+"/handle", action, nil); err != nil {
		return fmt.Errorf("handle threat %s: %w", id, err)
	}
	return nil
}

func (s *Security) Recommendations(ctx context.Context) []Recommendation {
	items, err := fetchList[Recommendation](ctx, s.base, securityPath+"/recommendations", nil, "recommendations")
	if err != nil {
		s.swallow("recommendations", err)
		return []Recommendation{}
	}
	return items
}

func (s *Security) GenerateAIRecommendations(ctx context.Context, scope map[string]any) ([]Recommendation, error) {
	resp, err := s.req.Post(ctx, securityPath+"/ai-recommendations", scope)
	if err != nil {
		return nil, fmt.Errorf("generate ai recommendations: %w", err)
	}
	return listOf[Recommendation](resp, "recommendations")
}

func (s *Security) Scan(ctx context.Context, scanType string) (*ScanResult, error) {
	body := map[string]string{}
	if scanType != "" {
		body["scanType"] = scanType
	}
	var out ScanResult
	if err := s.post(ctx, securityPath+"/scan", body, &out); err != nil {
		return nil, fmt.Errorf("security scan: %w", err)
	}
	return &out, nil
}

// Разделы без собственной модели отдаются как есть.

func (s *Security) Dashboard(ctx context.Context) (json.RawMessage, error) {
	return s.raw(ctx, "dashboard")
}

func (s *Security) Alerts(ctx context.Context) (json.RawMessage, error) {
	return s.raw(ctx, "alerts")
}

func (s *Security) Incidents(ctx context.Context) (json.RawMessage, error) {
	return s.raw(ctx, "incidents")
}

func (s *Security) Logs(ctx context.Context) (json.RawMessage, error) {
	return s.raw(ctx, "logs")
}

func (s *Security) Settings(ctx context.Context) (json.RawMessage, error) {
	return s.raw(ctx, "settings")
}

func (s *Security) Status(ctx context.Context) (json.RawMessage, error) {
	return s.raw(ctx, "status")
}

func (s *Security) raw(ctx context.Context, section string) (json.RawMessage, error) {
	resp, err := s.req.Get(ctx, securityPath+"/"+section, nil)
	if err != nil {
		return nil, fmt.Errorf("security %s: %w", section, err)
	}
	return resp.Data, nil
}
