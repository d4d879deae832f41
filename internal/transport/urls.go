package transport

import (
	"net/url"
	"regexp"
	"strings"
)

// BuildAPIURL: абсолютный URL возвращается как есть, относительный путь
// приклеивается к base. С пустым base путь не меняется.
func BuildAPIURL(base, path string) string {
	if isAbsoluteURL(path) || base == "" {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// IsAIRequest решает, пойдет ли запрос через AI-клиент с длинным таймаутом.
func IsAIRequest(path string) bool {
	p := path
	if isAbsoluteURL(p) {
		if u, err := url.Parse(p); err == nil {
			p = u.Path
		}
	}
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimPrefix(p, "/")
	p = strings.TrimPrefix(p, "api/")

	return p == "ai" || strings.HasPrefix(p, "ai/") || strings.Contains(p, "expert-consultation")
}

var idSegment = regexp.MustCompile(`/(\d+|[0-9a-fA-F-]{36}|(?:conv|mem|threat)[_-][\w-]+)(/|$)`)

// routeLabel заменяет идентификаторы на :id, чтобы метки метрик не разрастались.
func routeLabel(path string) string {
	if isAbsoluteURL(path) {
		if u, err := url.Parse(path); err == nil {
			path = u.Path
		}
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	// ReplaceAll не видит соседние совпадения, поэтому крутим до стабилизации
	for {
		next := idSegment.ReplaceAllString(path, "/:id$2")
		if next == path {
			return path
		}
		path = next
	}
}
