package grpc

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/sirupsen/logrus"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	apiKeyMetadata = "x-api-key"
	healthPrefix   = "/grpc.health.v1.Health/"
)

// APIKeyUnaryInterceptor rejects calls whose x-api-key metadata does not match
// expected. Health checks pass without a key.
func APIKeyUnaryInterceptor(expected string) gogrpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (any, error) {
		if info != nil && strings.HasPrefix(info.FullMethod, healthPrefix) {
			return handler(ctx, req)
		}

		apiKey := incomingAPIKeyFromMetadata(ctx)
		if apiKey == "" || subtle.ConstantTimeCompare([]byte(apiKey), []byte(expected)) != 1 {
			logrus.Debug("Rejected gRPC call with missing or invalid api key")
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}

		return handler(ctx, req)
	}
}

func incomingAPIKeyFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(apiKeyMetadata)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
