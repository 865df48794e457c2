// cmd/server is the main entrypoint for a cache replica.
//
// Configuration is entirely via environment variables so a single image can
// serve any ordinal in the deployment:
//
//	POD_NAME=clacheless-0 \
//	CLACHELESS_ADDR_TEMPLATE=clacheless-ORDINAL.clacheless.default.svc:9090 \
//	CLACHELESS_TTL=3600 \
//	./server
//
// The process serves two planes: the client-facing HTTP API and the peer
// RPC surface used by the other replicas. SIGINT/SIGTERM shut both down.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"distributed-cache/internal/api"
	"distributed-cache/internal/cluster"
	"distributed-cache/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	config.InitLogging()
	cfg := config.Load()

	if err := run(cfg); err != nil {
		logrus.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	auth := cluster.NewPeerAuthenticator(cfg.SecretPath)
	dc := cluster.New(cfg.AddressTemplate, cfg.Ordinal, cfg.TTLMicros, auth)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(api.Logger(), api.Recovery())
	api.NewHandler(dc).Register(router)

	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Serve until the first of: peer plane failure, HTTP failure, signal.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dc.Run(ctx)
	})

	g.Go(func() error {
		logrus.Infof("Node %d serving the cache API on %s", cfg.Ordinal, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logrus.Infof("Shutting down node %d", cfg.Ordinal)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
