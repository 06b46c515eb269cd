// Package redact маскирует чувствительные значения перед записью в лог.
package redact

import "strings"

// Email оставляет первые две руны локальной части и домен.
func Email(s string) string {
	parts := strings.Split(s, "@")
	if len(parts) != 2 {
		return "***"
	}

	local, domain := []rune(parts[0]), parts[1]
	if len(local) > 2 {
		return string(local[:2]) + "***@" + domain
	}

	return "***@" + domain
}

// Hash возвращает короткий отпечаток хэша refresh-токена: его достаточно,
// чтобы сопоставить записи лога с строкой БД, но не для подбора значения.
func Hash(h string) string {
	const keep = 8
	if len(h) <= keep {
		return "***"
	}

	return h[:keep] + "…"
}

func Token() string    { return "[REDACTED_TOKEN]" }
func Password() string { return "[REDACTED_PASSWORD]" }
