package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/plangrove/voicelink/internal/adapter/cache"
	"github.com/plangrove/voicelink/internal/config"
	"github.com/plangrove/voicelink/internal/fulfillment"
	"github.com/plangrove/voicelink/internal/homegraph"
	httptransport "github.com/plangrove/voicelink/internal/http"
	"github.com/plangrove/voicelink/internal/http/handler"
	httpmiddleware "github.com/plangrove/voicelink/internal/http/middleware"
	"github.com/plangrove/voicelink/internal/logging"
	"github.com/plangrove/voicelink/internal/oauth"
	"github.com/plangrove/voicelink/internal/repository"
	"github.com/plangrove/voicelink/internal/server"
	"github.com/plangrove/voicelink/internal/telemetry"
	"github.com/plangrove/voicelink/internal/token"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newPlantRepository,
			newGroveRepository,
			newLinkRepository,
			newRedisClient,
			newCodeStore,
			newTokenAuthority,
			newNotifier,
			newSyncRequester,
			newOAuthService,
			newDispatcher,
			newRateLimiter,
			newOAuthHandler,
			newFulfillmentHandler,
			newLinkHandler,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Environment)
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	node, err := snowflake.NewNode(1)
	return node, err
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newPlantRepository(pool *pgxpool.Pool) repository.PlantRepository {
	return repository.NewPostgresPlantRepo(pool)
}

func newGroveRepository(pool *pgxpool.Pool) repository.GroveRepository {
	return repository.NewPostgresGroveRepo(pool)
}

func newLinkRepository(pool *pgxpool.Pool) repository.LinkRepository {
	return repository.NewPostgresLinkRepo(pool)
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newCodeStore(client redis.UniversalClient) repository.CodeStore {
	return cacheadapter.NewRedisCodeStore(client)
}

func newTokenAuthority(codes repository.CodeStore, cfg config.Config, logger *zap.Logger) *token.Authority {
	return token.NewAuthority(codes, cfg.TokenSigningSecret, cfg.AuthCodeTTL, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, logging.Component(logger, "token"))
}

func newNotifier(cfg config.Config, links repository.LinkRepository, logger *zap.Logger) *homegraph.Notifier {
	return homegraph.NewNotifier(cfg, links, nil, logging.Component(logger, "homegraph"))
}

func newSyncRequester(notifier *homegraph.Notifier) oauth.SyncRequester {
	return notifier
}

func newOAuthService(links repository.LinkRepository, authority *token.Authority, sync oauth.SyncRequester, cfg config.Config, logger *zap.Logger) *oauth.Service {
	return oauth.NewService(links, authority, sync, cfg, logging.Component(logger, "oauth"))
}

func newDispatcher(svc *oauth.Service, plants repository.PlantRepository, groves repository.GroveRepository, ids *snowflake.Node, logger *zap.Logger) *fulfillment.Dispatcher {
	return fulfillment.NewDispatcher(svc, plants, groves, ids, logging.Component(logger, "fulfillment"))
}

func newRateLimiter(cfg config.Config) *httpmiddleware.TokenRateLimiter {
	return httpmiddleware.NewTokenRateLimiter(cfg.RateLimitRPM)
}

func newOAuthHandler(svc *oauth.Service, logger *zap.Logger) *handler.OAuthHandler {
	return handler.NewOAuthHandler(svc, logger)
}

func newFulfillmentHandler(d *fulfillment.Dispatcher, logger *zap.Logger) *handler.FulfillmentHandler {
	return handler.NewFulfillmentHandler(d, logger)
}

func newLinkHandler(svc *oauth.Service, logger *zap.Logger) *handler.LinkHandler {
	return handler.NewLinkHandler(svc, logger)
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
