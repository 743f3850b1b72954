// Command gateway starts the multi-tenant LLM proxy: it wires the Config
// Store, Load Balancer, Rate Limiter, Circuit Breaker, Channel-State
// Tracker, Proxy Pipeline and Log Sink together and serves the canonical
// and passthrough endpoints over HTTP, spec §6.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appconfig "github.com/loomrelay/gateway/common/config"
	"github.com/loomrelay/gateway/common/env"
	"github.com/loomrelay/gateway/common/graceful"
	"github.com/loomrelay/gateway/common/logger"
	"github.com/loomrelay/gateway/internal/balancer"
	"github.com/loomrelay/gateway/internal/breaker"
	"github.com/loomrelay/gateway/internal/channelstate"
	"github.com/loomrelay/gateway/internal/configstore"
	"github.com/loomrelay/gateway/internal/ratelimit"
	"github.com/loomrelay/gateway/middleware"
	"github.com/loomrelay/gateway/model"
	"github.com/loomrelay/gateway/relay/logsink"
	"github.com/loomrelay/gateway/relay/proxy"

	// Blank-imported for their init() Register calls into relay/adaptor's
	// factory map (spec §9: "adding a dialect means adding a package plus
	// one factory entry").
	_ "github.com/loomrelay/gateway/relay/adaptor/anthropic"
	_ "github.com/loomrelay/gateway/relay/adaptor/bedrock"
	_ "github.com/loomrelay/gateway/relay/adaptor/gemini"
	_ "github.com/loomrelay/gateway/relay/adaptor/openai"
	_ "github.com/loomrelay/gateway/relay/adaptor/vertexai"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.LogDir = appconfig.LogDir
	logger.SetupLogger()
	logger.StartLogRetentionCleaner(ctx, appconfig.LogRetentionDays, appconfig.LogDir)

	logger.Logger.Info("gateway starting")

	dsn := env.String("DSN", "")
	sqlitePath := env.String("SQLITE_PATH", "gateway.db")
	if err := model.InitDB(dsn, sqlitePath); err != nil {
		logger.Logger.Error("failed to open routing config store", zap.Error(err))
		os.Exit(2)
	}

	store := configstore.New(model.DB, time.Duration(appconfig.RouteCacheTTLSeconds)*time.Second)
	if err := store.Refresh(ctx); err != nil {
		logger.Logger.Error("initial config store refresh failed", zap.Error(err))
		os.Exit(2)
	}
	go store.RunPeriodicRefresh(ctx, time.Duration(appconfig.ConfigRefreshIntervalSec)*time.Second)

	bal := balancer.New()
	lim := ratelimit.New(appconfig.DefaultBucketCapacity, appconfig.DefaultBucketRefillPerSec)
	brk := breaker.New(appconfig.CircuitFailureThreshold, appconfig.CircuitSuccessThreshold, appconfig.CircuitOpenDuration)
	ch := channelstate.New()

	sink := logsink.New(model.DB, appconfig.LogChannelCapacity, appconfig.LogBatchSize,
		time.Duration(appconfig.LogBatchIntervalMs)*time.Millisecond, model.UsingSQLite)
	sinkCtx, stopSink := context.WithCancel(context.Background())
	graceful.GoCritical(sinkCtx, "logsink", func(ctx context.Context) {
		if err := sink.Run(ctx); err != nil {
			logger.Logger.Error("log sink stopped with error", zap.Error(err))
		}
	})

	pipeline := proxy.New(store, lim, bal, brk, ch, sink)

	logLevel := "info"
	if appconfig.DebugEnabled {
		logLevel = "debug"
	}

	gin.SetMode(appconfig.GinMode)
	server := gin.New()
	server.Use(
		middleware.PanicRecover(),
		middleware.RequestID(),
		gmw.NewLoggerMiddleware(
			gmw.WithLoggerMwColored(),
			gmw.WithLevel(logLevel),
			gmw.WithLogger(logger.Logger.Named("gin")),
		),
	)
	server.Use(cors.Default())
	server.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/v1/chat/completions", "/v1/completions", "/v1/messages"})))
	server.GET("/metrics", gin.WrapH(promhttp.Handler()))
	server.GET("/healthz", func(c *gin.Context) {
		if store.Current() == nil {
			c.Status(http.StatusServiceUnavailable)
			return
		}
		c.Status(http.StatusOK)
	})

	proxy.RegisterRoutes(server, middleware.Auth(store), pipeline)

	httpServer := &http.Server{
		Addr:    ":" + appconfig.ServerPort,
		Handler: server,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Logger.Info("server listening", zap.String("address", "http://localhost:"+appconfig.ServerPort))
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			logger.Logger.Error("server failed to bind", zap.Error(err))
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Logger.Info("shutdown signal received, draining")
		graceful.SetDraining()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Logger.Error("http server shutdown error", zap.Error(err))
		}
		stopSink() // lets the log sink's consumer flush its last batch and exit
		if err := graceful.Drain(shutdownCtx); err != nil {
			logger.Logger.Error("graceful drain did not complete cleanly", zap.Error(err))
		}
	}

	logger.Logger.Info("gateway stopped")
}
