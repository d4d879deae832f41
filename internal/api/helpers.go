package api

import "slices"

var categoryLabels = map[string]string{
	"open_day":       "开放日",
	"parent_meeting": "家长会",
	"festival":       "节日活动",
	"outdoor":        "户外活动",
	"sports":         "体育活动",
	"art":            "艺术活动",
	"science":        "科学探索",
	"reading":        "阅读活动",
	"enrollment":     "招生活动",
	"other":          "其他",
}

// CategoryLabel возвращает подпись категории активности. Неизвестный ключ возвращается как есть.
func CategoryLabel(key string) string {
	if label, ok := categoryLabels[key]; ok {
		return label
	}
	return key
}

// DefaultSortOrder следующий порядок сортировки: max+1, для пустого списка 1.
func DefaultSortOrder(orders ...int) int {
	if len(orders) == 0 {
		return 1
	}
	return slices.Max(orders) + 1
}
