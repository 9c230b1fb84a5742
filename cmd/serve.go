package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/vibast-solutions/ms-go-identity/app/controller"
	identitygrpc "github.com/vibast-solutions/ms-go-identity/app/grpc"
	"github.com/vibast-solutions/ms-go-identity/app/mailer"
	"github.com/vibast-solutions/ms-go-identity/app/middleware"
	"github.com/vibast-solutions/ms-go-identity/app/service"
	"github.com/vibast-solutions/ms-go-identity/app/storage"
	"github.com/vibast-solutions/ms-go-identity/config"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  `Start both HTTP (Echo) and gRPC servers for the identity service.`,
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err = configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openUserStore(ctx, cfg.Store)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open credential store")
	}
	defer store.close()

	if err = store.migrate(ctx); err != nil {
		logrus.WithError(err).Fatal("Failed to prepare credential store")
	}

	redisClient, err := openRedis(ctx, cfg.Redis)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to redis")
	}
	var limiter *middleware.RateLimiter
	if redisClient != nil {
		defer redisClient.Close()
		limiter = middleware.NewRateLimiter(redisClient, cfg.Redis.RateLimit, cfg.Redis.RateWindow, cfg.Redis.BlockPeriod)
	} else {
		logrus.Warn("REDIS_URL not set, login rate limiting is disabled")
	}

	assets, err := storage.New(ctx, cfg.Assets)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to configure asset storage")
	}

	hasher := service.NewBcryptHasher(cfg.Password.BcryptCost)
	tokens := service.NewTokenIssuer(cfg.JWT)
	sessionService := service.NewSessionService(store, hasher, tokens, mailer.NewSMTPMailer(cfg.Mail), cfg)
	accountService := service.NewAccountService(store, hasher, assets, cfg)
	adminService := service.NewAdminService(store)

	grpcServer, healthServer := identitygrpc.NewServer(identitygrpc.NewIdentityServer(sessionService), cfg.Internal.APIKey)
	go startGRPCServer(cfg, grpcServer)

	e := newHTTPServer(cfg, sessionService, accountService, adminService, limiter)
	go startHTTPServer(cfg, e)

	<-ctx.Done()
	logrus.Info("Shutting down")

	healthServer.SetServingStatus(identitygrpc.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
	grpcServer.GracefulStop()
}

func newHTTPServer(
	cfg *config.Config,
	sessions service.SessionService,
	accounts service.AccountService,
	admin service.AdminService,
	limiter *middleware.RateLimiter,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.App.AllowedOrigins,
		AllowCredentials: true,
	}))
	e.Use(echomiddleware.BodyLimit("16M"))

	controller.RegisterRoutes(e,
		controller.NewUserController(sessions, accounts, cfg),
		controller.NewAdminController(admin),
		middleware.NewAuthMiddleware(sessions),
		limiter,
	)

	return e
}

func startHTTPServer(cfg *config.Config, e *echo.Echo) {
	httpAddr := net.JoinHostPort(cfg.App.HTTPHost, cfg.App.HTTPPort)
	logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
	if err := e.Start(httpAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logrus.WithError(err).Fatal("Failed to start HTTP server")
	}
}

func startGRPCServer(cfg *config.Config, grpcServer *grpc.Server) {
	grpcAddr := net.JoinHostPort(cfg.App.GRPCHost, cfg.App.GRPCPort)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	logrus.WithField("addr", grpcAddr).Info("Starting gRPC server")
	if err = grpcServer.Serve(lis); err != nil {
		logrus.WithError(err).Fatal("Failed to start gRPC server")
	}
}
