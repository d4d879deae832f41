package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/yyupcompany/kyyupgame-sub066/internal/transport"
	"github.com/yyupcompany/kyyupgame-sub066/internal/validation"
	"go.uber.org/zap"
)

var MemoryTypes = []string{"short_term", "long_term", "episodic", "semantic"}

type MemoryInput struct {
	UserID         ID     `json:"userId" validate:"required"`
	ConversationID ID     `json:"conversationId,omitempty"`
	Content        string `json:"content" validate:"notblank"`
	MemoryType     string `json:"memoryType,omitempty" validate:"omitempty,oneof=short_term long_term episodic semantic"`
	Importance     int    `json:"importance,omitempty" validate:"omitempty,gte=1,lte=10"`
}

type Memory struct {
	ID             ID             `json:"id"`
	UserID         ID             `json:"userId"`
	ConversationID ID             `json:"conversationId,omitempty"`
	Content        string         `json:"content"`
	MemoryType     string         `json:"memoryType"`
	Importance     int            `json:"importance"`
	Similarity     float64        `json:"similarity,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      string         `json:"createdAt,omitempty"`
}

type Summary struct {
	Summary     string `json:"summary"`
	MemoryCount int    `json:"memoryCount,omitempty"`
}

type SimilarQuery struct {
	UserID    ID      `json:"userId" validate:"required"`
	Query     string  `json:"query" validate:"notblank"`
	Limit     int     `json:"limit,omitempty" validate:"gte=0"`
	Threshold float64 `json:"threshold,omitempty" validate:"gte=0,lte=1"`
}

type TimeRangeQuery struct {
	Query     string  `json:"query" validate:"notblank"`
	StartDate string  `json:"startDate" validate:"isodate"`
	EndDate   string  `json:"endDate" validate:"isodate"`
	Limit     int     `json:"limit,omitempty" validate:"gte=0"`
	Threshold float64 `json:"threshold,omitempty" validate:"gte=0,lte=1"`
}

// MemoryService память AI-ассистента. Поиск идет через векторные эмбеддинги на бэкенде.
type MemoryService struct {
	base
}

func NewMemoryService(req transport.Requester, logger *zap.Logger) *MemoryService {
	return &MemoryService{base: newBase(req, logger, "ai_memory")}
}

const memoryPath = "/ai/memory"

func (s *MemoryService) Create(ctx context.Context, in MemoryInput) (*Memory, error) {
	if err := validation.Struct(in); err != nil {
		return nil, fmt.Errorf("create memory: %w", err)
	}
	var out Memory
	if err := s.post(ctx, memoryPath, in, &out); err != nil {
		return nil, fmt.Errorf("create memory: %w", err)
	}
	return &out, nil
}

func (s *MemoryService) ConversationMemories(ctx context.Context, conversationID, userID ID, limit int) ([]Memory, error) {
	q := url.Values{}
	setInt(q, "limit", limit)
	items, err := fetchList[Memory](ctx, s.base, memoryPath+"/conversation/"+esc(conversationID)+"/"+esc(userID), q, "memories")
	if err != nil {
		return nil, fmt.Errorf("conversation %s memories: %w", conversationID, err)
	}
	return items, nil
}

func (s *MemoryService) Delete(ctx context.Context, memoryID, userID ID) error {
	if err := s.del(ctx, memoryPath+"/"+esc(memoryID)+"/"+esc(userID)); err != nil {
		return fmt.Errorf("delete memory %s: %w", memoryID, err)
	}
	return nil
}

func (s *MemoryService) DeleteByID(ctx context.Context, id ID) error {
	if err := s.del(ctx, memoryPath+"/"+esc(id)); err != nil {
		return fmt.Errorf("delete memory %s: %w", id, err)
	}
	return nil
}

func (s *MemoryService) Summarize(ctx context.Context, conversationID, userID ID) (*Summary, error) {
	var out Summary
	if err := s.post(ctx, memoryPath+"/summarize/"+esc(conversationID)+"/"+esc(userID), nil, &out); err != nil {
		return nil, fmt.Errorf("summarize conversation %s: %w", conversationID, err)
	}
	return &out, nil
}

// CreateWithEmbedding при любой ошибке (включая невалидный ввод) возвращает nil.
func (s *MemoryService) CreateWithEmbedding(ctx context.Context, in MemoryInput) *Memory {
	if err := validation.Struct(in); err != nil {
		s.swallow("create_with_embedding", err)
		return nil
	}
	var out Memory
	if err := s.post(ctx, memoryPath+"/with-embedding", in, &out); err != nil {
		s.swallow("create_with_embedding", err)
		return nil
	}
	return &out
}

func (s *MemoryService) SearchSimilar(ctx context.Context, q SimilarQuery) ([]Memory, error) {
	if err := validation.Struct(q); err != nil {
		return nil, fmt.Errorf("search similar memories: %w", err)
	}
	resp, err := s.req.Post(ctx, memoryPath+"/search-similar", q)
	if err != nil {
		return nil, fmt.Errorf("search similar memories: %w", err)
	}
	return listOf[Memory](resp, "memories", "results")
}

func (s *MemoryService) SearchByTimeRange(ctx context.Context, userID ID, q TimeRangeQuery) ([]Memory, error) {
	if err := validation.Struct(q); err != nil {
		return nil, fmt.Errorf("search memories by time range: %w", err)
	}
	resp, err := s.req.Post(ctx, memoryPath+"/memory/search/time-range/"+esc(userID), q)
	if err != nil {
		return nil, fmt.Errorf("search memories by time range: %w", err)
	}
	return listOf[Memory](resp, "memories", "results")
}

func (s *MemoryService) SearchLastMonth(ctx context.Context, userID ID, query string, limit int) ([]Memory, error) {
	body := map[string]any{"query": query}
	if limit > 0 {
		body["limit"] = limit
	}
	resp, err := s.req.Post(ctx, memoryPath+"/memory/search/last-month/"+esc(userID), body)
	if err != nil {
		return nil, fmt.Errorf("search last month memories: %w", err)
	}
	return listOf[Memory](resp, "memories", "results")
}

func (s *MemoryService) Search(ctx context.Context, userID ID, query string) []Memory {
	q := url.Values{}
	setStr(q, "query", query)
	items, err := fetchList[Memory](ctx, s.base, memoryPath+"/"+esc(userID)+"/search", q, "memories", "results")
	if err != nil {
		s.swallow("search", err)
		return []Memory{}
	}
	return items
}
