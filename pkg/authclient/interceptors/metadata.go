package interceptors

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

type ctxKey int

const (
	ctxRequestID ctxKey = iota
	ctxAuthToken
)

// WithRequestID сохраняет request_id для исходящих вызовов.
func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, ctxRequestID, rid)
}

// WithAuthToken сохраняет access-токен, который уйдёт в заголовке authorization.
func WithAuthToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxAuthToken, token)
}

// ClientWithMetadata добавляет в исходящий вызов x-request-id и
// authorization: Bearer <token> из контекста, а также user-agent.
// Пустые значения пропускаются.
func ClientWithMetadata(userAgent string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		var pairs []string

		if rid, _ := ctx.Value(ctxRequestID).(string); rid != "" {
			pairs = append(pairs, "x-request-id", rid)
		}
		if tok, _ := ctx.Value(ctxAuthToken).(string); tok != "" {
			pairs = append(pairs, "authorization", "Bearer "+tok)
		}
		if userAgent != "" {
			pairs = append(pairs, "user-agent", userAgent)
		}

		if len(pairs) > 0 {
			ctx = metadata.AppendToOutgoingContext(ctx, pairs...)
		}

		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
