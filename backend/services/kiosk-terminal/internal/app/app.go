package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"kioskpos/backend/services/kiosk-terminal/internal/cancel"
	"kioskpos/backend/services/kiosk-terminal/internal/checkout"
	"kioskpos/backend/services/kiosk-terminal/internal/clients"
	"kioskpos/backend/services/kiosk-terminal/internal/config"
	"kioskpos/backend/services/kiosk-terminal/internal/console"
	"kioskpos/backend/services/kiosk-terminal/internal/payment"
	"kioskpos/backend/services/kiosk-terminal/internal/session"
)

// App wires kiosk-terminal dependencies.
type App struct {
	controller *checkout.Controller
	console    *console.Console
	in         io.Reader
	logger     *zap.Logger
}

// New logs the terminal in and builds the application graph on stdin/stdout.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	return NewWithIO(ctx, cfg, logger, os.Stdin, os.Stdout)
}

// NewWithIO is New with explicit console streams.
func NewWithIO(ctx context.Context, cfg *config.Config, logger *zap.Logger, in io.Reader, out io.Writer) (*App, error) {
	httpClient := clients.NewDefaultHTTPClient(cfg.API.Timeout)
	auth := clients.NewAuthClient(cfg.API.BaseURL, httpClient)
	creds := clients.NewCredentials(func(ctx context.Context) (string, error) {
		return auth.Login(ctx, cfg.Terminal.ID, cfg.Terminal.Password)
	})
	if err := creds.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("login terminal %s: %w", cfg.Terminal.ID, err)
	}
	logger.Info("terminal logged in", zap.String("terminal_id", cfg.Terminal.ID))

	registry := cancel.NewRegistry()
	store := session.NewStore(
		clients.NewSessionClient(cfg.API.BaseURL, httpClient, creds),
		clients.NewOrderClient(cfg.API.BaseURL, httpClient, creds),
		registry,
		nil,
		logger.Named("session"),
	)
	fetcher := payment.NewFetcher(clients.NewPaymentClient(cfg.API.BaseURL, httpClient, creds), registry)

	screen := console.New(out, logger)
	controller := checkout.NewController(
		store,
		fetcher,
		clients.NewCatalogClient(cfg.API.BaseURL, httpClient, creds),
		nil,
		logger,
		checkout.Options{
			Provider:        cfg.Payment.Provider,
			PaymentDeadline: cfg.Payment.Deadline,
			OnView:          screen.Render,
			OnNavigate:      screen.Navigated,
		},
	)

	return &App{controller: controller, console: screen, in: in, logger: logger}, nil
}

// Run drives the controller and the console until the customer quits or ctx is done.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = a.controller.Run(ctx)
	}()

	err := a.console.Run(ctx, a.controller, a.in)
	cancel()
	<-done
	return err
}

// Close stops timers and in-flight requests.
func (a *App) Close() {
	a.controller.Close()
	a.logger.Info("kiosk terminal stopped")
}
