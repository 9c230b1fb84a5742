package grpc

import (
	"context"
	"strings"

	"github.com/vibast-solutions/ms-go-identity/app/entity"
	"github.com/vibast-solutions/ms-go-identity/app/service"

	"github.com/sirupsen/logrus"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName         = "identity.v1.IdentityService"
	ValidateTokenMethod = "/" + ServiceName + "/ValidateToken"
)

// IdentityServiceServer is served over well-known protobuf types so callers
// need no generated stubs: the access token travels as a StringValue and the
// identity comes back as a Struct.
type IdentityServiceServer interface {
	ValidateToken(ctx context.Context, token *wrapperspb.StringValue) (*structpb.Struct, error)
}

var IdentityServiceDesc = gogrpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IdentityServiceServer)(nil),
	Methods: []gogrpc.MethodDesc{
		{
			MethodName: "ValidateToken",
			Handler:    validateTokenHandler,
		},
	},
	Streams:  []gogrpc.StreamDesc{},
	Metadata: "identity/v1/identity.proto",
}

func RegisterIdentityServiceServer(s gogrpc.ServiceRegistrar, srv IdentityServiceServer) {
	s.RegisterService(&IdentityServiceDesc, srv)
}

func validateTokenHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor gogrpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IdentityServiceServer).ValidateToken(ctx, in)
	}

	info := &gogrpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ValidateTokenMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(IdentityServiceServer).ValidateToken(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// IdentityServiceClient calls ValidateToken on another instance of this service.
type IdentityServiceClient struct {
	cc gogrpc.ClientConnInterface
}

func NewIdentityServiceClient(cc gogrpc.ClientConnInterface) *IdentityServiceClient {
	return &IdentityServiceClient{cc: cc}
}

func (c *IdentityServiceClient) ValidateToken(ctx context.Context, token string, opts ...gogrpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ValidateTokenMethod, wrapperspb.String(token), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*entity.User, error)
}

type IdentityServer struct {
	sessions authenticator
}

func NewIdentityServer(sessions authenticator) *IdentityServer {
	return &IdentityServer{sessions: sessions}
}

func (s *IdentityServer) ValidateToken(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	token := strings.TrimSpace(req.GetValue())
	if token == "" {
		logrus.Debug("Validate token validation failed (grpc)")
		return nil, status.Error(codes.InvalidArgument, "access token is required")
	}

	user, err := s.sessions.Authenticate(ctx, token)
	if err != nil {
		if service.KindOf(err) == service.KindUnauthorized {
			logrus.Debug("Validate token failed (grpc)")
			return structpb.NewStruct(map[string]interface{}{"valid": false})
		}
		return nil, toStatus(err)
	}

	logrus.WithField("user_id", user.ID).Debug("Validate token succeeded (grpc)")
	return structpb.NewStruct(map[string]interface{}{
		"valid":    true,
		"user_id":  user.ID,
		"email":    user.Email,
		"username": user.Username,
		"role":     user.Role,
	})
}

// NewServer builds the internal gRPC server with the identity and health
// services registered. An empty apiKey leaves the server unauthenticated.
func NewServer(identity IdentityServiceServer, apiKey string) (*gogrpc.Server, *health.Server) {
	var opts []gogrpc.ServerOption
	if apiKey != "" {
		opts = append(opts, gogrpc.UnaryInterceptor(APIKeyUnaryInterceptor(apiKey)))
	} else {
		logrus.Warn("INTERNAL_API_KEY is not set, gRPC calls are not authenticated")
	}

	server := gogrpc.NewServer(opts...)
	RegisterIdentityServiceServer(server, identity)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)

	return server, healthServer
}

// toStatus maps a service error onto a gRPC status.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	switch service.KindOf(err) {
	case service.KindInvalidInput:
		return status.Error(codes.InvalidArgument, err.Error())
	case service.KindUnauthorized, service.KindInvalidCredential, service.KindExpired:
		return status.Error(codes.Unauthenticated, err.Error())
	case service.KindForbidden:
		return status.Error(codes.PermissionDenied, err.Error())
	case service.KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	case service.KindConflict:
		return status.Error(codes.AlreadyExists, err.Error())
	default:
		logrus.WithError(err).Error("Request failed (grpc)")
		return status.Error(codes.Internal, "internal server error")
	}
}
