package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradegate"
	"tradegate/config"
	"tradegate/factory"
	"tradegate/logger"
	"tradegate/server"
)

func main() {
	configPath := flag.String("config", os.Getenv("TRADEGATE_CONFIG"), "yaml config file, optional")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Get().Fatalf("load config failed: %v", err)
	}
	if err := logger.Init(cfg.LoggerConfig()); err != nil {
		logger.Get().Fatalf("init logger failed: %v", err)
	}
	log := logger.WithComponent("main")
	if cfg.BingX.APIKey == "" || cfg.BingX.APISecret == "" {
		log.Warn("BINGX_API_KEY or BINGX_API_SECRET not set, signed endpoints will be rejected")
	}

	gateway := factory.NewFutureExchange(tradegate.BingX, cfg.GatewayOptions())
	if err := gateway.Connect(); err != nil {
		log.Fatalf("connect stream failed: %v", err)
	}

	srv := server.New(gateway, server.Config{
		ClientBuffer: cfg.Server.ClientBuffer,
		CORSOrigins:  cfg.Server.CORSOrigins,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Infof("tradegate listening on %s", cfg.Server.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("http server error: %v", err)
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-stopCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	srv.Close()
	gateway.Disconnect()

	log.Info("server stopped")
}
