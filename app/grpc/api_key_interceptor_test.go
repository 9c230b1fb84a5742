package grpc_test

import (
	"context"
	"testing"

	identitygrpc "github.com/vibast-solutions/ms-go-identity/app/grpc"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func okUnaryHandler(ctx context.Context, req interface{}) (interface{}, error) {
	return "ok", nil
}

func TestAPIKeyUnaryInterceptor_MissingKey(t *testing.T) {
	interceptor := identitygrpc.APIKeyUnaryInterceptor("internal-key")

	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: identitygrpc.ValidateTokenMethod}, okUnaryHandler)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestAPIKeyUnaryInterceptor_InvalidKey(t *testing.T) {
	interceptor := identitygrpc.APIKeyUnaryInterceptor("internal-key")

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "internal-kez"))
	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: identitygrpc.ValidateTokenMethod}, okUnaryHandler)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestAPIKeyUnaryInterceptor_ValidKey(t *testing.T) {
	interceptor := identitygrpc.APIKeyUnaryInterceptor("internal-key")

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", " internal-key "))
	res, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: identitygrpc.ValidateTokenMethod}, okUnaryHandler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != "ok" {
		t.Fatalf("expected handler result, got %v", res)
	}
}

func TestAPIKeyUnaryInterceptor_HealthIsOpen(t *testing.T) {
	interceptor := identitygrpc.APIKeyUnaryInterceptor("internal-key")

	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, okUnaryHandler)
	if err != nil {
		t.Fatalf("expected health check to bypass the api key, got %v", err)
	}
}
