package main

import (
	"context"

	"github.com/jrsteele09/go-garage-desk/auth"
	"github.com/jrsteele09/go-garage-desk/catalog"
	"github.com/jrsteele09/go-garage-desk/internal/config"
	"github.com/jrsteele09/go-garage-desk/internal/logging"
	"github.com/jrsteele09/go-garage-desk/session"
	"github.com/jrsteele09/go-garage-desk/shops"
	"github.com/jrsteele09/go-garage-desk/transport"
	"github.com/jrsteele09/go-garage-desk/users"
	"github.com/jrsteele09/go-garage-desk/vehicles"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// app is the backend access stack one command runs against.
type app struct {
	cfg      config.Config
	logger   zerolog.Logger
	store    *session.Store
	client   *transport.Client
	users    *users.Repository
	vehicles *vehicles.Repository
	shops    *shops.Repository
	catalog  *catalog.Repository
	manager  *auth.Manager
}

func newApp(cfg config.Config, reg prometheus.Registerer) (*app, error) {
	logger := logging.New(cfg)
	store := session.NewStore()
	client := transport.New(cfg, store,
		transport.WithLogger(logger),
		transport.WithMetrics(transport.NewMetrics(reg)),
	)
	userRepo := users.NewRepository(client)

	manager, err := auth.NewManager(client, store, userRepo,
		auth.WithLogger(logger),
		auth.WithProvisioningWait(cfg.GetProvisioningWait()),
	)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		client:   client,
		users:    userRepo,
		vehicles: vehicles.NewRepository(client),
		shops:    shops.NewRepository(client),
		catalog:  catalog.NewRepository(client),
		manager:  manager,
	}, nil
}

// close signs out when a command signed in, so the CLI leaves no live
// refresh token behind.
func (a *app) close(ctx context.Context) {
	if a.manager.IsAuthenticated(ctx) {
		_ = a.manager.SignOut(ctx)
	}
}
