package middleware

import (
	"net"
	"net/http"
)

// ClientIP возвращает адрес клиента из RemoteAddr. За chi/middleware.RealIP
// там уже лежит адрес из X-Forwarded-For/X-Real-IP, обычно без порта.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
