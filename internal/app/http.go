package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"tasksync/internal/auth"
	"tasksync/internal/config"
	"tasksync/internal/delivery/ws"
	"tasksync/internal/realtime"
	"tasksync/internal/services"
	"tasksync/internal/uploads"
)

func MustListenAndServeHTTP() {
	cfg := config.Global()
	if cfg.Env != config.EnvLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	httpCfg := cfg.HTTP

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	registerRoutes(router)

	server := &http.Server{
		Addr:    net.JoinHostPort(httpCfg.Host, httpCfg.Port),
		Handler: router,
	}

	go func() {
		globalLogger.Info().
			Str("host", httpCfg.Host).
			Str("port", httpCfg.Port).
			Msg("setting up http server")
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			globalLogger.Error().
				Err(err).
				Msg("failed to listen and serve http")
			panic(err)
		}
	}()

	// Wait for the interrupt signal to gracefully
	// shut down the server with a timeout.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	globalLogger.Info().
		Msg("shutting down http server")

	ctx, cancel := context.WithTimeout(context.Background(), httpCfg.ShutdownTimeout)
	defer cancel()

	err := server.Shutdown(ctx)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to shutdown http server")
		panic(err)
	}
	globalLogger.Info().Msg("shut down http server")
}

func registerRoutes(router gin.IRouter) {
	cfg := config.Global()

	verifier := auth.NewJWTVerifier(
		globalLogger,
		cfg.JWT.Issuer,
		[]byte(cfg.JWT.SigningKey),
	)
	registry := realtime.NewRegistry(globalLogger)
	cleaner := uploads.NewDirCleaner(globalLogger, cfg.Storage.UploadsDir)
	taskService := services.NewTaskService(globalLogger, globalStore, cleaner)
	dispatcher := realtime.NewDispatcher(globalLogger, registry, taskService)

	wsHandler := ws.New(
		globalLogger,
		verifier,
		registry,
		dispatcher,
		taskService,
		cfg.WS.ReadBufferSize,
		cfg.WS.WriteBufferSize,
		cfg.WS.SendBufferSize,
	)

	router.GET("/ws", wsHandler.HandleSocket)
	router.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
}
