package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"chainpay/gateway/internal/config"
	"chainpay/gateway/internal/delivery"
	v1 "chainpay/gateway/internal/delivery/rest/v1"
	"chainpay/gateway/internal/infra/evm"
	"chainpay/gateway/internal/infra/nats"
	"chainpay/gateway/internal/logger"
	"chainpay/gateway/internal/service"
	"chainpay/pkg/hdwallet"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"gorm.io/gorm"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	Config *config.Config
	Db     *gorm.DB
	Log    logger.Logger

	clients   map[string]*evm.Client
	natsInfra *nats.NatsInfra
}

// dependencies that talk to the outside: rpc nodes, keys, nats
func (app *App) connect(ctx context.Context) (service.Deps, error) {
	deps := service.Deps{Clients: make(map[string]service.ChainClient, len(app.Config.Chains))}

	app.clients = make(map[string]*evm.Client, len(app.Config.Chains))
	for _, chain := range app.Config.Chains {
		client, err := evm.Connect(ctx, chain)
		if err != nil {
			return deps, fmt.Errorf("connect %s: %w", chain.Name, err)
		}
		app.clients[chain.Name] = client
		deps.Clients[chain.Name] = client
	}

	wallet, err := hdwallet.NewFromMnemonic(app.Config.Secrets.Mnemonic, "")
	if err != nil {
		return deps, fmt.Errorf("wallet: %w", err)
	}
	deps.Wallet = wallet

	if key := app.Config.Secrets.TreasuryPrivateKey; key != "" {
		if deps.GasFunder, err = hdwallet.FromPrivateKey(key); err != nil {
			return deps, fmt.Errorf("treasury key: %w", err)
		}
	}

	if app.Config.Nats.Servers != "" {
		if app.natsInfra, err = nats.Init(app.Config, app.Log); err != nil {
			return deps, err
		}
		deps.Queue = app.natsInfra
	}

	return deps, nil
}

func (app *App) close() {
	if app.natsInfra != nil {
		app.natsInfra.Close()
	}
	for _, client := range app.clients {
		client.Close()
	}
}

func (app *App) router(services *service.Services) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(v1.Cors(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Access"},
	}))

	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := app.Db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.AbortWithStatusJSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(services.Metrics.Registry(), promhttp.HandlerOpts{})))

	{
		h := delivery.InitHandler(services, app.Config, app.Log)

		h.InitAPI(r)
	}

	return r
}

// runs the api, the scheduler and the job workers until SIGINT/SIGTERM
func (app *App) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.connect(ctx)
	defer app.close()
	if err != nil {
		return err
	}

	if err := service.Seed(ctx, app.Db, app.Config); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	services := service.HewServices(app.Db, deps, app.Log, app.Config)

	workersDone := make(chan error, 1)
	go func() {
		workersDone <- services.Jobs.Start(ctx)
	}()

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		services.Scheduler.Start(ctx)
	}()

	server := &http.Server{
		Addr:              app.Config.Api.Ipv4,
		Handler:           app.router(services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eChan := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			eChan <- fmt.Errorf("listen and serve: %w", err)
		}
	}()

	app.Log.Info("gateway started", logger.LS_HTTP, false, "addr", app.Config.Api.Ipv4, "chains", app.Config.ChainNames())

	select {
	case err = <-eChan:
		app.Log.TemplHTTPError("app fatal error", app.Config.Api.Ipv4, err)
		stop()
	case err = <-workersDone:
		if err != nil {
			app.Log.Error("job workers stopped", logger.LS_SCHEDULER, false, "error", err.Error())
		}
		stop()
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if serr := server.Shutdown(shutdownCtx); serr != nil {
		app.Log.TemplHTTPError("shutdown error", app.Config.Api.Ipv4, serr)
	}

	<-schedulerDone
	services.Jobs.Wait()
	services.Webhooks.Wait()

	app.Log.Info("gateway stopped", logger.LS_HTTP, false)
	return err
}
