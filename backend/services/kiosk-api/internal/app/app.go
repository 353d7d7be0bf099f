package app

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libredis "kioskpos/backend/libs/redis"
	"kioskpos/backend/services/kiosk-api/internal/config"
	"kioskpos/backend/services/kiosk-api/internal/db"
	httpserver "kioskpos/backend/services/kiosk-api/internal/http"
	"kioskpos/backend/services/kiosk-api/internal/http/handlers"
	"kioskpos/backend/services/kiosk-api/internal/http/middleware"
	redisstore "kioskpos/backend/services/kiosk-api/internal/redis"
	"kioskpos/backend/services/kiosk-api/internal/repository"
	"kioskpos/backend/services/kiosk-api/internal/service"
	"kioskpos/backend/services/kiosk-api/internal/ws"
)

// App wires kiosk-api dependencies.
type App struct {
	cfg     *config.Config
	server  *httpserver.Server
	hub     *ws.Hub
	sweeper *service.Sweeper
	db      *sql.DB
	redis   *goredis.Client
	logger  *zap.Logger
}

// New constructs application graph.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	sqlDB, err := db.NewPostgres(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	redisClient, err := libredis.NewRedisClient(ctx, libredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	sessionStore := redisstore.NewSessionStore(redisClient, cfg.SessionTTL())
	paymentStore := redisstore.NewPaymentStore(redisClient, cfg.Payment.ReferenceTTL)
	catalogRepo := repository.NewCatalogRepository(sqlDB)
	orderRepo := repository.NewOrderRepository(sqlDB)

	hub := ws.NewHub(30*time.Second, logger.Named("board"))

	sessionsService := service.NewSessionsService(sessionStore, catalogRepo, orderRepo, cfg.Session.Lifetime, nil, logger.Named("sessions"))
	ordersService := service.NewOrdersService(sessionsService, sessionStore, orderRepo, hub, logger.Named("orders"))
	paymentService := service.NewPaymentService(sessionsService, ordersService, paymentStore, cfg.Payment.Providers, cfg.Payment.QRSize, logger.Named("payment"))
	tokens := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.ExpiresIn)
	authService := service.NewAuthService(cfg.Terminals, tokens, logger.Named("auth"))
	sweeper := service.NewSweeper(orderRepo, sessionStore, cfg.Sweeper.MaxAge, nil, logger.Named("sweeper"))

	boardSocket := ws.NewServer(hub, ordersService.Board, 10*time.Second, logger.Named("board"))

	router := httpserver.NewRouter(httpserver.RouterDeps{
		SessionHandlers: handlers.NewSessionHandlers(sessionsService, ordersService, logger),
		PaymentHandlers: handlers.NewPaymentHandlers(paymentService, logger),
		BoardHandlers:   handlers.NewBoardHandlers(ordersService, logger),
		LoginHandler:    handlers.NewLoginHandler(authService, logger),
		CatalogHandler:  handlers.NewCatalogHandler(sessionsService, logger),
		HealthHandler: handlers.NewHealthHandler(map[string]handlers.Pinger{
			"postgres": sqlDB.PingContext,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		}),
		BoardSocket: http.HandlerFunc(boardSocket.HandleWS),
		Tokens:      tokens,
	})

	server := httpserver.NewServer(
		cfg.HTTPAddress(),
		router,
		logger,
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
	)

	return &App{
		cfg:     cfg,
		server:  server,
		hub:     hub,
		sweeper: sweeper,
		db:      sqlDB,
		redis:   redisClient,
		logger:  logger,
	}, nil
}

// Run starts the board hub, the sweeper and the HTTP server until ctx ends.
func (a *App) Run(ctx context.Context) error {
	go a.hub.Start(ctx)

	if err := a.sweeper.Start(ctx, a.cfg.Sweeper.Interval); err != nil {
		return err
	}
	defer a.sweeper.Stop()

	return a.server.Run(ctx)
}

// Close releases database and redis connections.
func (a *App) Close() {
	if err := a.redis.Close(); err != nil {
		a.logger.Warn("failed to close redis", zap.Error(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close postgres", zap.Error(err))
	}
}
