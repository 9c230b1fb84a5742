package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vibast-solutions/ms-go-identity/app/repository"
	"github.com/vibast-solutions/ms-go-identity/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectTimeout = 10 * time.Second

// userStore is the selected credential store backend plus its lifecycle hooks.
type userStore struct {
	repository.UserStore
	migrate func(ctx context.Context) error
	close   func()
}

func openUserStore(ctx context.Context, cfg config.StoreConfig) (*userStore, error) {
	switch cfg.Driver {
	case config.StoreDriverMongo:
		return openMongoStore(ctx, cfg)
	case config.StoreDriverMySQL:
		return openMySQLStore(ctx, cfg)
	case config.StoreDriverMemory:
		logrus.Warn("Using in-memory credential store, data is lost on restart")
		return &userStore{
			UserStore: repository.NewMemoryUserRepository(),
			migrate:   func(context.Context) error { return nil },
			close:     func() {},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

func openMongoStore(ctx context.Context, cfg config.StoreConfig) (*userStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(cfg.MongoURI).SetServerSelectionTimeout(connectTimeout)
	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err = client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	repo := repository.NewMongoUserRepository(client.Database(cfg.MongoDatabase))
	logrus.WithField("database", cfg.MongoDatabase).Info("Connected to MongoDB")

	return &userStore{
		UserStore: repo,
		migrate:   repo.EnsureIndexes,
		close: func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), connectTimeout)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				logrus.WithError(err).Warn("Failed to disconnect from MongoDB")
			}
		},
	}, nil
}

func openMySQLStore(ctx context.Context, cfg config.StoreConfig) (*userStore, error) {
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to mysql: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	logrus.Info("Connected to MySQL")

	return &userStore{
		UserStore: repository.NewUserRepository(db),
		migrate: func(ctx context.Context) error {
			return repository.RunMySQLMigrations(ctx, db)
		},
		close: func() {
			if err := db.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close MySQL connection")
			}
		},
	}, nil
}

// openRedis returns nil when no REDIS_URL is configured.
func openRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err = client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logrus.Info("Connected to Redis")
	return client, nil
}
