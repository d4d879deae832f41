package journal

import "time"

// CallRecord один завершенный вызов API через транспорт.
type CallRecord struct {
	RequestID  string    `json:"request_id"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Route      string    `json:"route"` // путь с :id вместо числовых сегментов
	AI         bool      `json:"ai"`
	StatusCode int       `json:"status_code"` // 0, если ответа не было
	Attempts   int       `json:"attempts"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
