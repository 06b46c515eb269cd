// Package interceptors: клиентские unary-интерсепторы для вызовов auth.v1.TokenService.
package interceptors

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/pribylovaa/storefront-auth/internal/pkg/log"
)

// ClientLogging логирует исходящие unary-вызовы одной записью "grpc_call".
// Если в исходящем metadata нет x-request-id, он генерируется и добавляется.
// Payload и заголовки авторизации не логируются.
func ClientLogging(base *slog.Logger) grpc.UnaryClientInterceptor {
	if base == nil {
		base = slog.Default()
	}

	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()

		var rid string
		if md, ok := metadata.FromOutgoingContext(ctx); ok {
			if v := md.Get("x-request-id"); len(v) > 0 {
				rid = v[0]
			}
		}
		if rid == "" {
			rid = uuid.NewString()
			ctx = metadata.AppendToOutgoingContext(ctx, "x-request-id", rid)
		}

		target := "-"
		if cc != nil && cc.Target() != "" {
			target = cc.Target()
		}

		l := base.With(
			slog.String("request_id", rid),
			slog.String("method", method),
			slog.String("target", target),
		)
		ctx = log.Into(ctx, l)

		err := invoker(ctx, method, req, reply, cc, opts...)

		lvl := slog.LevelInfo
		if err != nil {
			lvl = slog.LevelWarn
		}
		l.Log(ctx, lvl, "grpc_call",
			slog.String("code", status.Code(err).String()),
			slog.Duration("dur", time.Since(start)),
		)

		return err
	}
}
