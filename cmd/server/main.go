package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/live-room-coordinator/internal/config"
	"github.com/iliyamo/live-room-coordinator/internal/database"
	"github.com/iliyamo/live-room-coordinator/internal/handler"
	"github.com/iliyamo/live-room-coordinator/internal/logger"
	"github.com/iliyamo/live-room-coordinator/internal/memstore"
	"github.com/iliyamo/live-room-coordinator/internal/middleware"
	"github.com/iliyamo/live-room-coordinator/internal/queue"
	"github.com/iliyamo/live-room-coordinator/internal/repository"
	"github.com/iliyamo/live-room-coordinator/internal/room"
	"github.com/iliyamo/live-room-coordinator/internal/router"
	"github.com/iliyamo/live-room-coordinator/internal/service"
)

// userStore is what both backends offer for users: the registry used by
// the handlers and the profile lookup used by member polls.
type userStore interface {
	handler.UserStore
	room.ProfileSource
}

func main() {
	_ = godotenv.Load() // .env is optional

	cfg, err := config.Load()
	if err != nil {
		// logger not configured yet
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "live-room-coordinator")
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rooms, users, closeStore, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("store init failed", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()

	var rdb *redis.Client
	if c, err := config.NewRedisClient(config.LoadRedisConfig()); err != nil {
		log.Warn("redis unavailable; rate limiting and list cache disabled", zap.Error(err))
	} else {
		rdb = c
		defer func() { _ = rdb.Close() }()
	}
	cacheCfg := config.LoadCacheConfig()

	opts := []room.Option{
		room.WithCapacity(cfg.RoomMaxUsers),
		room.WithLogger(log.Named("room")),
		room.WithProfiles(users),
	}
	if inv := middleware.NewCacheInvalidator(cacheCfg, rdb, log); inv != nil {
		opts = append(opts, room.WithObserver(inv))
	}
	if cfg.EventsEnabled {
		pub := service.NewRoomEventPublisher(cfg.AMQPURL, 1024, log.Named("publisher"))
		go pub.Run(ctx)
		opts = append(opts, room.WithObserver(pub))
	}
	if cfg.EventsConsumer {
		go func() {
			err := queue.StartRoomEventConsumer(ctx, cfg.AMQPURL, cfg.EventsLogDir, log.Named("consumer"))
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error("room event consumer stopped", zap.Error(err))
			}
		}()
	}
	svc := room.New(rooms, opts...)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(log))

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log)
	listCache := middleware.NewRedisCache(cacheCfg, rdb, log)

	router.RegisterRoutes(e)
	router.RegisterUsers(e, handler.NewUserHandler(users, cfg.JWTSecret, cfg.AccessTTLMin, log), cfg.JWTSecret, limiter)
	router.RegisterRooms(e, handler.NewRoomHandler(svc, log), cfg.JWTSecret, limiter, listCache)

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env),
			zap.String("store", cfg.StoreDriver), zap.Int("room_capacity", svc.Capacity()))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	log.Info("stopped")
}

// openStores builds the room and user stores for the configured driver.
func openStores(ctx context.Context, cfg config.Config, log *zap.Logger) (room.Store, userStore, func(), error) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Warn("using in-memory store; state is lost on restart")
		return memstore.NewRoomStore(), memstore.NewUserStore(), func() {}, nil
	}

	db, err := database.Open(database.Options{
		User:         cfg.DBUser,
		Pass:         cfg.DBPass,
		Host:         cfg.DBHost,
		Port:         cfg.DBPort,
		Name:         cfg.DBName,
		MaxOpenConns: cfg.DBMaxConns,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := database.Migrate(mctx, db); err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	return repository.NewRoomRepo(db), repository.NewUserRepo(db), func() { _ = db.Close() }, nil
}
