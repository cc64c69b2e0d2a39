package grpcsvc

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/vladislavdragonenkov/storefront/internal/service/identity"
)

// IdentityHeader — метаданные, из которых берётся email пользователя.
const IdentityHeader = "x-user-email"

// IdentityUnaryInterceptor переносит email из метаданных в context запроса.
func IdentityUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		return handler(withIncomingIdentity(ctx), req)
	}
}

// IdentityStreamInterceptor делает то же для потоковых вызовов.
func IdentityStreamInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		return handler(srv, &identityServerStream{ServerStream: ss, ctx: withIncomingIdentity(ss.Context())})
	}
}

type identityServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *identityServerStream) Context() context.Context { return s.ctx }

func withIncomingIdentity(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}
	values := md.Get(IdentityHeader)
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return ctx
	}
	return identity.WithIdentity(ctx, values[0])
}
