package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/yyupcompany/kyyupgame-sub066/internal/transport"
	"github.com/yyupcompany/kyyupgame-sub066/internal/validation"
	"go.uber.org/zap"
)

const (
	AdStatusDraft  = "draft"
	AdStatusActive = "active"
	AdStatusPaused = "paused"
	AdStatusEnded  = "ended"
)

var (
	AdStatuses = []string{AdStatusDraft, AdStatusActive, AdStatusPaused, AdStatusEnded}
	AdTypes    = []string{"banner", "popup", "carousel", "notice"}
)

type Advertisement struct {
	ID          ID      `json:"id,omitempty"`
	Title       string  `json:"title" validate:"notblank"`
	Type        string  `json:"type" validate:"oneof=banner popup carousel notice"`
	Status      string  `json:"status,omitempty" validate:"omitempty,oneof=draft active paused ended"`
	Position    string  `json:"position,omitempty"`
	ImageURL    string  `json:"imageUrl,omitempty" validate:"omitempty,url"`
	LinkURL     string  `json:"linkUrl,omitempty" validate:"omitempty,url"`
	Content     string  `json:"content,omitempty"`
	StartDate   string  `json:"startDate,omitempty" validate:"omitempty,isodate"`
	EndDate     string  `json:"endDate,omitempty" validate:"omitempty,isodate"`
	SortOrder   int     `json:"sortOrder"`
	Budget      float64 `json:"budget,omitempty" validate:"gte=0"`
	Impressions int     `json:"impressions,omitempty"`
	Clicks      int     `json:"clicks,omitempty"`
}

type AdvertisementStats struct {
	Total       int     `json:"total"`
	Active      int     `json:"active"`
	Impressions int     `json:"impressions"`
	Clicks      int     `json:"clicks"`
	CTR         float64 `json:"ctr"`
}

type AdvertisementQuery struct {
	PageQuery
	Status   string
	Type     string
	Position string
}

func (q AdvertisementQuery) values() url.Values {
	v := q.PageQuery.values()
	setStr(v, "status", q.Status)
	setStr(v, "type", q.Type)
	setStr(v, "position", q.Position)
	return v
}

type Advertisements struct {
	base
}

func NewAdvertisements(req transport.Requester, logger *zap.Logger) *Advertisements {
	return &Advertisements{base: newBase(req, logger, "advertisements")}
}

const advertisementsPath = "/advertisements"

func (s *Advertisements) List(ctx context.Context, q AdvertisementQuery) (*Page[Advertisement], error) {
	page, err := fetchPage[Advertisement](ctx, s.base, advertisementsPath, q.values())
	if err != nil {
		return nil, fmt.Errorf("list advertisements: %w", err)
	}
	return page, nil
}

func (s *Advertisements) Get(ctx context.Context, id ID) (*Advertisement, error) {
	var out Advertisement
	if err := s.get(ctx, advertisementsPath+"/"+esc(id), nil, &out); err != nil {
		return nil, fmt.Errorf("get advertisement %s: %w", id, err)
	}
	return &out, nil
}

// Create публикует объявление. Нулевой SortOrder ставит объявление в конец списка.
func (s *Advertisements) Create(ctx context.Context, ad Advertisement) (*Advertisement, error) {
	if err := validation.Struct(ad); err != nil {
		return nil, fmt.Errorf("create advertisement: %w", err)
	}
	if ad.SortOrder == 0 {
		next, err := s.NextSortOrder(ctx)
		if err != nil {
			return nil, fmt.Errorf("create advertisement: %w", err)
		}
		ad.SortOrder = next
	}
	if ad.Status == "" {
		ad.Status = AdStatusDraft
	}

	var out Advertisement
	if err := s.post(ctx, advertisementsPath, ad, &out); err != nil {
		return nil, fmt.Errorf("create advertisement: %w", err)
	}
	return &out, nil
}

const sortOrderPageSize = 100

// NextSortOrder max(sortOrder)+1 по всем объявлениям, 1 если их нет.
// Список читается постранично, пока не набран total.
func (s *Advertisements) NextSortOrder(ctx context.Context) (int, error) {
	var orders []int
	for n := 1; ; n++ {
		page, err := s.List(ctx, AdvertisementQuery{PageQuery: PageQuery{Page: n, PageSize: sortOrderPageSize}})
		if err != nil {
			return 0, err
		}
		for _, ad := range page.Items {
			orders = append(orders, ad.SortOrder)
		}
		if len(page.Items) == 0 || len(orders) >= page.Total {
			break
		}
	}
	return DefaultSortOrder(orders...), nil
}

func (s *Advertisements) Update(ctx context.Context, id ID, changes map[string]any) (*Advertisement, error) {
	var out Advertisement
	if err := s.put(ctx, advertisementsPath+"/"+esc(id), changes, &out); err != nil {
		return nil, fmt.Errorf("update advertisement %s: %w", id, err)
	}
	return &out, nil
}

func (s *Advertisements) Delete(ctx context.Context, id ID) error {
	if err := s.del(ctx, advertisementsPath+"/"+esc(id)); err != nil {
		return fmt.Errorf("delete advertisement %s: %w", id, err)
	}
	return nil
}

func (s *Advertisements) UpdateStatus(ctx context.Context, id ID, status string) error {
	if err := validation.Validate.Var(status, "oneof=draft active paused ended"); err != nil {
		return fmt.Errorf("update advertisement status: %w: %q", transport.ErrInvalidRequest, status)
	}
	body := map[string]string{"status": status}
	if err := s.put(ctx, advertisementsPath+"/"+esc(id)+"/status", body, nil); err != nil {
		return fmt.Errorf("update advertisement %s status: %w", id, err)
	}
	return nil
}

func (s *Advertisements) Statistics(ctx context.Context) AdvertisementStats {
	var out AdvertisementStats
	if err := s.get(ctx, advertisementsPath+"/statistics", nil, &out); err != nil {
		s.swallow("statistics", err)
		return AdvertisementStats{}
	}
	return out
}

func (s *Advertisements) Active(ctx context.Context) []Advertisement {
	items, err := fetchList[Advertisement](ctx, s.base, advertisementsPath+"/active", nil)
	if err != nil {
		s.swallow("active", err)
		return []Advertisement{}
	}
	return items
}
