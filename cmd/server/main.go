package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/arnold/kanban-collab-api/internal/audit"
	"github.com/arnold/kanban-collab-api/internal/config"
	"github.com/arnold/kanban-collab-api/internal/database"
	"github.com/arnold/kanban-collab-api/internal/handlers"
	"github.com/arnold/kanban-collab-api/internal/logging"
	"github.com/arnold/kanban-collab-api/internal/metrics"
	"github.com/arnold/kanban-collab-api/internal/middleware"
	"github.com/arnold/kanban-collab-api/internal/presence"
	"github.com/arnold/kanban-collab-api/internal/realtime"
	"github.com/arnold/kanban-collab-api/internal/routes"
	"github.com/arnold/kanban-collab-api/internal/store"
)

func main() {
	// existing variables win; the first file found fills the rest
	for _, path := range []string{"../.env", ".env"} {
		if err := godotenv.Load(path); err == nil {
			log.WithField("file", path).Debug("loaded environment file")
		}
	}

	cfg := config.Load()
	logging.Init(cfg)
	log.WithFields(log.Fields{"environment": cfg.Environment, "instance": cfg.InstanceID}).Info("starting kanban-collab-api")

	db, err := database.Connect(cfg)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("database migration failed")
	}
	st := store.New(db)
	log.WithField("dialect", st.Dialect()).Info("database ready")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := connectRedis(ctx, cfg)

	hub := realtime.NewHub()
	sessions := realtime.NewSessions()

	var primary presence.Store
	var relay *realtime.Relay
	if redisClient != nil {
		primary = presence.NewRedisStore(redisClient)
		relay = realtime.NewRelay(redisClient, cfg.InstanceID, 0)
	}
	// losing redis moves presence to memory and switches the relay off for good
	presenceStore := presence.NewFallbackStore(primary,
		presence.WithSeed(sessions.PresenceEntries),
		presence.OnFallback(func(err error) {
			metrics.PresenceFallback.Set(1)
			if relay != nil {
				relay.Stop()
			}
		}),
	)
	if redisClient == nil {
		metrics.PresenceFallback.Set(1)
	}

	server := realtime.NewServer(hub, sessions, presenceStore, st, audit.NewSink(st))

	if relay != nil {
		hub.SetRelay(relay)
		go relay.Run(ctx, hub.Deliver)
	}

	identity := middleware.NewIdentity(cfg.JWTSecret)
	app := routes.NewApp(cfg)
	routes.Setup(app,
		handlers.New(st, identity, presenceStore),
		handlers.NewWebSocketHandler(server, cfg.SendBuffer),
		identity,
	)

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.WithError(err).Warn("shutdown did not complete cleanly")
		}
	}()

	log.WithField("port", cfg.Port).Info("listening")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.WithError(err).Fatal("server stopped")
	}

	if redisClient != nil {
		redisClient.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

// connectRedis returns nil when Redis is not configured or not reachable;
// presence then lives in memory for the whole process.
func connectRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	if cfg.RedisURL == "" {
		log.Info("REDIS_URL not set, presence kept in memory")
		return nil
	}
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	client, err := presence.Dial(dialCtx, cfg.RedisURL)
	if err != nil {
		log.WithError(err).Warn("redis unavailable, presence kept in memory")
		return nil
	}
	log.Info("redis connected, presence shared across instances")
	return client
}
