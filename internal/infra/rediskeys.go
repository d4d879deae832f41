package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных клиента в Redis
	RedisNamespace = "kyyup"
)

const (
	RedisKeyLockTokenRefresh = RedisNamespace + ":lock:token-refresh"
)

// TokenStorageKey Ключ, под которым лежит токен (kindergarten_token и т.п.)
func TokenStorageKey(name string) string {
	return fmt.Sprintf("%s:auth:%s", RedisNamespace, name)
}

// Переключатель недоступности AI у mockserver: состояние и канал команд ("down" / "up")
const (
	RedisKeyMockAIUnavailable = RedisNamespace + ":mock:ai-unavailable"
	RedisChannelMockAISwitch  = RedisNamespace + ":mock:ai-switch"
)
