// Package app assembles the desk application: credential store, window
// bus, login coordinator, event relay and loopback server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/croceverde/trasporti-desk/internal/azuread"
	"github.com/croceverde/trasporti-desk/internal/bootstrap"
	"github.com/croceverde/trasporti-desk/internal/config"
	"github.com/croceverde/trasporti-desk/internal/coordinator"
	"github.com/croceverde/trasporti-desk/internal/credstore"
	"github.com/croceverde/trasporti-desk/internal/httpserver"
	"github.com/croceverde/trasporti-desk/internal/ipc"
	"github.com/croceverde/trasporti-desk/internal/sharepoint"
	"github.com/croceverde/trasporti-desk/internal/shell"
)

// App is the assembled desk application.
type App struct {
	cfg         *config.Config
	store       credstore.Store
	bus         *shell.Bus
	coordinator *coordinator.Coordinator
	relay       *ipc.Server
	httpServer  *httpserver.Server
	api         *sharepoint.API
	guard       *bootstrap.Guard
	httpErr     chan error
}

// Surface pages the redirect guard navigates between.
const (
	loginPage = "login.html"
	homePage  = "index.html"
)

// New wires every component from configuration.
func New(cfg *config.Config) (*App, error) {
	store, err := credstore.New(credstore.Config{
		Backend: cfg.Store.Backend,
		Path:    cfg.Store.Path,
		Service: cfg.Store.Service,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential store: %w", err)
	}

	slog.Info("credential store initialized", "backend", cfg.Store.Backend)

	bus := shell.NewBus()

	exchanger := &azuread.Client{Timeout: cfg.Auth.ExchangeTimeoutDuration()}
	coord := coordinator.New(coordinator.Config{
		TenantID:        cfg.SharePoint.TenantID,
		ClientID:        cfg.SharePoint.ClientID,
		ClientSecret:    cfg.SharePoint.ClientSecret,
		RedirectURI:     cfg.SharePoint.RedirectURI,
		Scopes:          cfg.SharePoint.Scopes,
		ServiceURL:      cfg.SharePoint.SiteURL,
		PollInterval:    cfg.Auth.PollIntervalDuration(),
		PollMaxAttempts: cfg.Auth.PollMaxAttempts,
		CloseGraceDelay: cfg.Auth.CloseGraceDuration(),
	}, store, exchanger, &shell.BrowserOpener{}, bus)
	coord.SetFallbackOpener(&shell.BrowserOpener{})

	if cfg.Auth.VerifyIDToken {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		verifier, err := azuread.NewIDTokenVerifier(ctx, cfg.SharePoint.TenantID, cfg.SharePoint.ClientID)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ID token verifier: %w", err)
		}
		coord.SetIDTokenVerifier(verifier)
		slog.Info("ID token verification enabled")
	}

	relay := ipc.NewServer(cfg.Listen.Socket, bus)

	httpServer, err := httpserver.NewServer(cfg.Listen.HTTP, coord)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loopback server: %w", err)
	}

	slog.Info("loopback server initialized", "addr", cfg.Listen.HTTP)

	client := sharepoint.NewClient(cfg.SharePoint.SiteURL, &sharepoint.RefreshingTokenSource{
		Store:        store,
		ServiceURL:   cfg.SharePoint.SiteURL,
		Refresher:    exchanger,
		TenantID:     cfg.SharePoint.TenantID,
		ClientID:     cfg.SharePoint.ClientID,
		ClientSecret: cfg.SharePoint.ClientSecret,
		Scopes:       cfg.SharePoint.Scopes,
	})
	api := sharepoint.NewAPI(coord, store, client, cfg.SharePoint.SiteURL, sharepoint.ListNames{
		ServiziGiorno:   cfg.Lists.ServiziGiorno,
		ProssimiServizi: cfg.Lists.ProssimiServizi,
		Tesserati:       cfg.Lists.Tesserati,
		Automezzi:       cfg.Lists.Automezzi,
		Operatori:       cfg.Lists.Operatori,
	})

	guard := bootstrap.NewGuard(store, cfg.SharePoint.SiteURL, loginPage, homePage)

	return &App{
		cfg:         cfg,
		store:       store,
		bus:         bus,
		coordinator: coord,
		relay:       relay,
		httpServer:  httpServer,
		api:         api,
		guard:       guard,
	}, nil
}

// Coordinator exposes the login coordinator.
func (a *App) Coordinator() *coordinator.Coordinator { return a.coordinator }

// API exposes the data facade.
func (a *App) API() *sharepoint.API { return a.api }

// Store exposes the credential store.
func (a *App) Store() credstore.Store { return a.store }

// Guard exposes the redirect guard deciding where surfaces navigate.
func (a *App) Guard() *bootstrap.Guard { return a.guard }

// Start brings up the event relay and the loopback server. Errors from
// the loopback listener are delivered on Err.
func (a *App) Start() error {
	if err := a.relay.Start(); err != nil {
		return fmt.Errorf("failed to start event relay: %w", err)
	}

	a.httpErr = make(chan error, 1)
	go func() {
		if err := a.httpServer.Start(); err != nil && err != http.ErrServerClosed {
			a.httpErr <- err
		}
		close(a.httpErr)
	}()

	return nil
}

// Err reports a loopback server failure. The channel closes on clean
// shutdown.
func (a *App) Err() <-chan error {
	return a.httpErr
}

// Run starts the application and blocks until a shutdown signal arrives.
func (a *App) Run() error {
	slog.Info("starting trasporti desk")

	if a.guard.OnProtectedLoad().Action == bootstrap.ActionRedirectLogin {
		slog.Info("no stored credential, serving demo records until sign-in")
	}

	if err := a.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", "signal", sig.String())
	case err := <-a.httpErr:
		if err != nil {
			slog.Error("loopback server failed", "error", err)
			if stopErr := a.Stop(); stopErr != nil {
				slog.Error("error during shutdown", "error", stopErr)
			}
			return fmt.Errorf("loopback server failed: %w", err)
		}
	}

	return a.Stop()
}

// Stop shuts every component down.
func (a *App) Stop() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a.coordinator.Cancel()

	if err := a.relay.Stop(); err != nil {
		slog.Error("error stopping event relay", "error", err)
	}
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("error stopping loopback server", "error", err)
	}
	a.bus.Close()

	slog.Info("shutdown complete")
	return nil
}
