package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	webconfig "github.com/NordCoder/CropSense/internal/config/web"
	"github.com/NordCoder/CropSense/internal/obs"
	"github.com/NordCoder/CropSense/internal/services/notifier"
	"github.com/NordCoder/CropSense/internal/services/web"
	"github.com/NordCoder/CropSense/internal/services/web/auth"
	"github.com/NordCoder/CropSense/internal/services/web/diagnosis"
	"github.com/NordCoder/CropSense/internal/storage"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := webconfig.Load(webconfig.Path())
	if err != nil {
		panic(err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting cropsense", zap.String("env", cfg.App.Env), zap.String("ver", cfg.App.Version))

	engine := initEngine(cfg, logger)
	defer func() { _ = engine.Close() }()
	logger = obs.WithModelState(logger, engine.Ready())
	zap.ReplaceGlobals(logger)

	otelShutdown, err := initOTel(rootCtx, cfg, engine.Ready(), logger)
	if err != nil {
		logger.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	db, err := initDB(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.close()

	local, err := storage.NewLocalDisk(cfg.Storage.LocalDir, cfg.Storage.PublicPrefix)
	if err != nil {
		logger.Fatal("local storage", zap.Error(err))
	}
	remote := storage.Disabled()
	if cfg.Storage.RemoteEnabled() {
		remote = storage.NewSupabase(storage.SupabaseConfig{
			URL:     cfg.Storage.SupabaseURL,
			Key:     cfg.Storage.SupabaseKey,
			Bucket:  cfg.Storage.Bucket,
			Timeout: cfg.Storage.Timeout,
		}).WithLogger(logger)
	} else {
		logger.Warn("supabase not configured, uploads stay on local disk")
	}

	dispatcher := &notifier.Dispatcher{
		Email:   notifier.NewEmailSender(cfg.SMTP, logger),
		SMS:     notifier.NewSMSSender(cfg.SMS, logger),
		Store:   db.notifications,
		Log:     logger,
		Timeout: cfg.Notify.Timeout,
	}

	events, stopEvents := initEvents(rootCtx, cfg, logger, db.outbox)

	authUC := auth.NewUseCase(db.users, auth.Config{
		Secret: []byte(cfg.Auth.SessionSecret),
		TTL:    cfg.Auth.SessionTTL,
	})
	diagUC := diagnosis.New(diagnosis.Deps{
		Store:         storage.NewGateway(remote, local, logger),
		Engine:        engine,
		Predictions:   db.predictions,
		Notifications: db.notifications,
		Events:        events,
		Tx:            db.tx,
		Dispatcher:    dispatcher,
		Log:           logger,
	}, diagnosis.Options{AsyncNotify: cfg.Notify.Async})

	handler, err := web.NewHandler(web.Deps{
		Auth:          authUC,
		Diagnosis:     diagUC,
		Cookie:        auth.CookieConfig{Name: cfg.Auth.CookieName, Secure: cfg.Auth.CookieSecure},
		MaxUpload:     cfg.Server.MaxUploadBytes,
		UploadsDir:    local.Dir(),
		UploadsPrefix: local.Prefix(),
		CORSOrigins:   cfg.Server.CORSOrigins,
		Health:        db.ping,
		Log:           logger,
	})
	if err != nil {
		logger.Fatal("build http", zap.Error(err))
	}

	var (
		grpcServer *grpc.Server
		grpcErrCh  = make(chan error, 1)
	)
	if cfg.Server.GRPCAddr != "" {
		var ln net.Listener
		grpcServer, ln, err = buildGRPCServer(cfg, engine.Ready())
		if err != nil {
			logger.Fatal("build grpc", zap.Error(err))
		}
		go func() { grpcErrCh <- serveGRPC(grpcServer, ln, cfg, logger) }()
	}

	httpSrv := buildHTTPServer(cfg, handler)
	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- serveHTTP(httpSrv, logger) }()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal", zap.String("reason", "context canceled"))
	case err := <-grpcErrCh:
		if err != nil {
			logger.Error("grpc serve", zap.Error(err))
		}
	case err := <-httpErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(err))
		}
	}
	stop()

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	diagUC.Wait()
	stopEvents()
	logger.Info("bye")
}
