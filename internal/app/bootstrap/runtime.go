package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/webchat-support-agent/internal/config"
	"github.com/wolfman30/webchat-support-agent/internal/conversation"
	"github.com/wolfman30/webchat-support-agent/internal/leads"
	"github.com/wolfman30/webchat-support-agent/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildSessionStore picks the session backend named by SESSION_BACKEND.
// redisClient is only consulted for the redis backend.
func BuildSessionStore(cfg *appconfig.Config, awsCfg aws.Config, redisClient *redis.Client, logger *logging.Logger) (conversation.SessionStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.SessionBackend {
	case appconfig.SessionBackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("bootstrap: redis session backend selected but redis is unavailable at %s", cfg.RedisAddr)
		}
		logger.Info("using redis session store", "addr", cfg.RedisAddr, "ttl", cfg.SessionTTL.String())
		return conversation.NewRedisSessionStore(redisClient, cfg.SessionTTL, nil), nil
	case appconfig.SessionBackendDynamoDB:
		logger.Info("using dynamodb session store", "table", cfg.SessionsTable, "ttl", cfg.SessionTTL.String())
		return conversation.NewDynamoSessionStore(dynamodb.NewFromConfig(awsCfg), cfg.SessionsTable, cfg.SessionTTL), nil
	case appconfig.SessionBackendMemory, "":
		logger.Info("using in-memory session store", "ttl", cfg.SessionTTL.String())
		return conversation.NewMemorySessionStore(cfg.SessionTTL), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown session backend %q", cfg.SessionBackend)
	}
}

// BuildLeadsRepository connects to Postgres when DATABASE_URL is set and
// otherwise keeps leads in memory. The returned pool is nil for the memory path.
func BuildLeadsRepository(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (leads.Repository, *pgxpool.Pool, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Info("DATABASE_URL not set; keeping leads in memory")
		return leads.NewInMemoryRepository(), nil, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("using postgres lead repository")
	return leads.NewPostgresRepository(pool), pool, nil
}
