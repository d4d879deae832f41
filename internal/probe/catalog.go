// Package probe обходит эндпоинты админского API и собирает отчет о доступности.
package probe

import (
	"net/http"
	"strings"
)

// Endpoint один проверяемый вызов. Параметры пути в фигурных скобках заменяются на "1".
type Endpoint struct {
	Method       string `yaml:"method"`
	Path         string `yaml:"path"`
	Category     string `yaml:"category"`
	Description  string `yaml:"description,omitempty"`
	RequiresAuth bool   `yaml:"requiresAuth"`
	// Safe: POST без побочных эффектов (логин, поиск)
	Safe         bool   `yaml:"-"`
	Body         any    `yaml:"-"`
}

// Mutating true для вызовов, меняющих данные на бэкенде.
func (e Endpoint) Mutating() bool {
	return e.Method != http.MethodGet && !e.Safe
}

// Resolve подставляет "1" вместо {param}.
func (e Endpoint) Resolve() string {
	var b strings.Builder
	path := e.Path
	for {
		i := strings.IndexByte(path, '{')
		if i < 0 {
			b.WriteString(path)
			return b.String()
		}
		j := strings.IndexByte(path[i:], '}')
		if j < 0 {
			b.WriteString(path)
			return b.String()
		}
		b.WriteString(path[:i])
		b.WriteString("1")
		path = path[i+j+1:]
	}
}

func get(category, path, desc string) Endpoint {
	return Endpoint{Method: http.MethodGet, Path: path, Category: category, Description: desc, RequiresAuth: true}
}

func post(category, path, desc string, body any) Endpoint {
	return Endpoint{Method: http.MethodPost, Path: path, Category: category, Description: desc, RequiresAuth: true, Body: body}
}

func search(category, path, desc string, body any) Endpoint {
	e := post(category, path, desc, body)
	e.Safe = true
	return e
}

// Catalog все пути, которые покрывают обертки internal/api.
func Catalog() []Endpoint {
	return []Endpoint{
		{Method: http.MethodPost, Path: "/auth/login", Category: "auth", Description: "用户登录", Safe: true,
			Body: map[string]string{"username": "probe", "password": "probe"}},

		get("activity", "/activity-center/overview", "活动中心概览"),
		get("activity", "/activity-center/dashboard", "活动中心仪表盘"),
		get("activity", "/activity-center/timeline", "活动时间线"),
		get("activity", "/activity-center/analytics", "活动分析"),
		get("activity", "/activity-center/activities", "活动列表"),
		get("activity", "/activity-center/activities/{id}", "活动详情"),
		get("activity", "/activity-center/registrations", "报名列表"),
		get("activity", "/activity-center/notifications", "活动通知"),
		get("activity", "/activity-center/cache/stats", "缓存统计"),
		post("activity", "/activity-center/cache/clear", "清除缓存", nil),

		get("marketing", "/advertisements", "广告列表"),
		get("marketing", "/advertisements/{id}", "广告详情"),
		get("marketing", "/advertisements/statistics", "广告统计"),
		get("marketing", "/advertisements/active", "投放中的广告"),

		get("ai", "/ai/models", "模型列表"),
		get("ai", "/ai/models/default", "默认模型"),
		get("ai", "/ai/models/{id}", "模型详情"),
		get("ai", "/ai/models/{id}/billing", "模型计费"),
		get("ai", "/ai/models/{id}/capabilities/chat", "模型能力"),
		get("ai", "/ai/quota/user", "用户配额"),
		get("ai", "/ai/initialize", "AI初始化"),
		get("ai", "/ai/conversations", "对话列表"),
		get("ai", "/ai/conversations/{id}", "对话详情"),
		get("ai", "/ai/conversations/{id}/messages", "对话消息"),
		get("ai", "/ai/memory/conversation/{conversationId}/{userId}", "对话记忆"),
		get("ai", "/ai/memory/{userId}/search", "记忆搜索"),
		search("ai", "/ai/memory/search-similar", "相似记忆", map[string]any{"userId": "1", "query": "周报"}),
		get("ai", "/chat/history/{conversationId}", "聊天记录"),

		get("data_import", "/data-import/permission/student", "导入权限"),
		get("data_import", "/data-import/schema/student", "导入模板"),

		get("security", "/security/overview", "安全概览"),
		get("security", "/security/threats", "威胁列表"),
		get("security", "/security/recommendations", "安全建议"),
		get("security", "/security/dashboard", "安全仪表盘"),
		get("security", "/security/alerts", "安全告警"),
		get("security", "/security/incidents", "安全事件"),
		get("security", "/security/logs", "安全日志"),
		get("security", "/security/settings", "安全设置"),
		get("security", "/security/status", "安全状态"),

		get("enrollment", "/enrollment-plans", "招生计划列表"),
		get("enrollment", "/enrollment-plans/{id}", "招生计划详情"),
		get("enrollment", "/enrollment-plans/analytics", "招生分析"),
		get("enrollment", "/enrollment-plans/overview", "招生概览"),
		get("enrollment", "/enrollment-plans/all-statistics", "招生总统计"),
		get("enrollment", "/enrollment-plans/{id}/statistics", "计划统计"),
		get("enrollment", "/enrollment-plans/{id}/classes", "计划班级"),
		get("enrollment", "/enrollment-plans/{id}/trackings", "计划跟踪"),
		get("enrollment", "/enrollment-plans/{id}/quota-usage-history", "配额使用历史"),
		get("enrollment", "/enrollment-quotas", "招生配额列表"),
		get("enrollment", "/enrollment-quotas/{id}", "招生配额详情"),
		get("enrollment", "/enrollment-quotas/{id}/usage", "配额使用率"),
	}
}

// Filter оставляет эндпоинты указанных категорий; пустой список пропускает все.
func Filter(endpoints []Endpoint, categories ...string) []Endpoint {
	if len(categories) == 0 {
		return endpoints
	}
	want := make(map[string]bool, len(categories))
	for _, c := range categories {
		want[strings.TrimSpace(c)] = true
	}
	out := make([]Endpoint, 0, len(endpoints))
	for _, e := range endpoints {
		if want[e.Category] {
			out = append(out, e)
		}
	}
	return out
}
