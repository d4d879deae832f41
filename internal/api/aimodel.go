package api

import (
	"context"
	"fmt"

	"github.com/yyupcompany/kyyupgame-sub066/internal/transport"
	"github.com/yyupcompany/kyyupgame-sub066/internal/validation"
	"go.uber.org/zap"
)

type AIModel struct {
	ID           ID             `json:"id,omitempty"`
	Name         string         `json:"name" validate:"notblank"`
	DisplayName  string         `json:"displayName,omitempty"`
	Provider     string         `json:"provider" validate:"notblank"`
	ModelType    string         `json:"modelType,omitempty" validate:"omitempty,oneof=text image speech video embedding multimodal"`
	APIVersion   string         `json:"apiVersion,omitempty"`
	EndpointURL  string         `json:"endpointUrl,omitempty" validate:"omitempty,url"`
	Capabilities []string       `json:"capabilities,omitempty"`
	MaxTokens    int            `json:"maxTokens,omitempty" validate:"gte=0"`
	IsDefault    bool           `json:"isDefault"`
	IsActive     bool           `json:"isActive"`
	Params       map[string]any `json:"modelParameters,omitempty"`
}

type ModelBilling struct {
	ModelID        ID      `json:"modelId"`
	BillingType    string  `json:"billingType"`
	InputPrice     float64 `json:"inputPrice"`
	OutputPrice    float64 `json:"outputPrice"`
	Currency       string  `json:"currency"`
	TotalUsage     int     `json:"totalUsage"`
	TotalCost      float64 `json:"totalCost"`
	BillingCycle   string  `json:"billingCycle,omitempty"`
	LastBilledDate string  `json:"lastBilledDate,omitempty"`
}

// UserQuota квота пользователя на AI; ожидается Used+Remaining == Total.
type UserQuota struct {
	Total     int    `json:"total"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
	ResetDate string `json:"resetDate,omitempty"`
}

type InitializeResult struct {
	Models       []AIModel `json:"models"`
	DefaultModel *AIModel  `json:"defaultModel,omitempty"`
	Quota        UserQuota `json:"quota"`
}

type ConsultationRequest struct {
	Topic       string         `json:"topic" validate:"notblank"`
	Description string         `json:"description,omitempty"`
	ModelID     ID             `json:"modelId,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
}

type Consultation struct {
	SessionID ID     `json:"sessionId"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

type AIModels struct {
	base
}

func NewAIModels(req transport.Requester, logger *zap.Logger) *AIModels {
	return &AIModels{base: newBase(req, logger, "ai_models")}
}

const aiModelsPath = "/ai/models"

func (s *AIModels) ListModels(ctx context.Context) ([]AIModel, error) {
	models, err := fetchList[AIModel](ctx, s.base, aiModelsPath, nil, "models")
	if err != nil {
		return nil, fmt.Errorf("list ai models: %w", err)
	}
	return models, nil
}

func (s *AIModels) GetModel(ctx context.Context, id ID) (*AIModel, error) {
	var out AIModel
	if err := s.get(ctx, aiModelsPath+"/"+esc(id), nil, &out); err != nil {
		return nil, fmt.Errorf("get ai model %s: %w", id, err)
	}
	return &out, nil
}

func (s *AIModels) GetModelBilling(ctx context.Context, id ID) (*ModelBilling, error) {
	var out ModelBilling
	if err := s.get(ctx, aiModelsPath+"/"+esc(id)+"/billing", nil, &out); err != nil {
		return nil, fmt.Errorf("get ai model %s billing: %w", id, err)
	}
	return &out, nil
}

func (s *AIModels) GetDefaultModel(ctx context.Context) (*AIModel, error) {
	var out AIModel
	if err := s.get(ctx, aiModelsPath+"/default", nil, &out); err != nil {
		return nil, fmt.Errorf("get default ai model: %w", err)
	}
	return &out, nil
}

func (s *AIModels) SetDefaultModel(ctx context.Context, id ID) error {
	if err := s.post(ctx, aiModelsPath+"/default", map[string]ID{"modelId": id}, nil); err != nil {
		return fmt.Errorf("set default ai model %s: %w", id, err)
	}
	return nil
}

func (s *AIModels) GetUserQuota(ctx context.Context) (*UserQuota, error) {
	var out UserQuota
	if err := s.get(ctx, "/ai/quota/user", nil, &out); err != nil {
		return nil, fmt.Errorf("get ai quota: %w", err)
	}
	return &out, nil
}

// CheckModelCapability любая ошибка трактуется как «не поддерживается».
func (s *AIModels) CheckModelCapability(ctx context.Context, id ID, capability string) bool {
	resp, err := s.req.Get(ctx, aiModelsPath+"/"+esc(id)+"/capabilities/"+esc(ID(capability)), nil)
	if err != nil {
		s.swallow("check_capability", err)
		return false
	}
	return resp.Field("data.supported").Bool()
}

func (s *AIModels) CreateModel(ctx context.Context, m AIModel) (*AIModel, error) {
	if err := validation.Struct(m); err != nil {
		return nil, fmt.Errorf("create ai model: %w", err)
	}
	var out AIModel
	if err := s.post(ctx, aiModelsPath, m, &out); err != nil {
		return nil, fmt.Errorf("create ai model: %w", err)
	}
	return &out, nil
}

func (s *AIModels) UpdateModel(ctx context.Context, id ID, changes map[string]any) (*AIModel, error) {
	var out AIModel
	if err := s.put(ctx, aiModelsPath+"/"+esc(id), changes, &out); err != nil {
		return nil, fmt.Errorf("update ai model %s: %w", id, err)
	}
	return &out, nil
}

func (s *AIModels) DeleteModel(ctx context.Context, id ID) error {
	if err := s.del(ctx, aiModelsPath+"/"+esc(id)); err != nil {
		return fmt.Errorf("delete ai model %s: %w", id, err)
	}
	return nil
}

func (s *AIModels) ToggleModelStatus(ctx context.Context, id ID, active bool) error {
	if err := s.put(ctx, aiModelsPath+"/"+esc(id), map[string]bool{"isActive": active}, nil); err != nil {
		return fmt.Errorf("toggle ai model %s: %w", id, err)
	}
	return nil
}

func (s *AIModels) Initialize(ctx context.Context) (*InitializeResult, error) {
	var out InitializeResult
	if err := s.get(ctx, "/ai/initialize", nil, &out); err != nil {
		return nil, fmt.Errorf("initialize ai: %w", err)
	}
	if out.Models == nil {
		out.Models = []AIModel{}
	}
	return &out, nil
}

func (s *AIModels) StartConsultation(ctx context.Context, req ConsultationRequest) (*Consultation, error) {
	if err := validation.Struct(req); err != nil {
		return nil, fmt.Errorf("start consultation: %w", err)
	}
	var out Consultation
	if err := s.post(ctx, "/ai/consultation/start", req, &out); err != nil {
		return nil, fmt.Errorf("start consultation: %w", err)
	}
	return &out, nil
}
