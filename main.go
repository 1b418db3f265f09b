package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kaelwillow/sonocast/config"
	"github.com/kaelwillow/sonocast/internal/auth"
	"github.com/kaelwillow/sonocast/internal/control"
	"github.com/kaelwillow/sonocast/internal/discovery"
	"github.com/kaelwillow/sonocast/internal/eventbus"
	"github.com/kaelwillow/sonocast/internal/netutil"
	"github.com/kaelwillow/sonocast/internal/sonos"
	"github.com/kaelwillow/sonocast/internal/stream"
	"github.com/kaelwillow/sonocast/internal/topology"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config: failed to load", "error", err)
		os.Exit(1)
	}

	port, err := netutil.PickPort(cfg.Port, cfg.PortRangeStart, cfg.PortRangeEnd)
	if err != nil {
		slog.Error("bootstrap: no listen port available", "error", err)
		os.Exit(1)
	}

	advertiseIP := cfg.AdvertiseIP
	if advertiseIP == "" {
		detected, err := netutil.DetectAdvertiseIP()
		if err != nil {
			slog.Error("bootstrap: failed to auto-detect advertise IP", "error", err)
			os.Exit(1)
		}
		advertiseIP = detected
	}

	publicBaseURL := fmt.Sprintf("http://%s:%d", advertiseIP, port)
	listenAddr := fmt.Sprintf(":%d", port)

	slog.Info("starting sonocast",
		"listen_addr", listenAddr,
		"public_base_url", publicBaseURL,
		"max_concurrent_streams", cfg.MaxConcurrentStreams,
	)

	registry := stream.NewRegistry()

	sonosClient := sonos.NewClient()
	gena, genaEvents := sonos.NewSubscriptionManager()
	arbiter := sonos.NewSubscriptionArbiter(gena)
	cache := sonos.NewStateCache()
	coordinator := sonos.NewCoordinator(sonosClient, arbiter, cache, gena)

	discoveryRegistry := discovery.NewRegistry(discovery.DefaultSSDPConfig(), cfg.MDNSTimeout, cfg.SSDPMulticastEnabled, cfg.SSDPBroadcastEnabled, cfg.MDNSEnabled)

	callbackURL := publicBaseURL + "/sonos/gena"
	topologyMonitor := topology.NewMonitor(sonosClient, cache, arbiter, discoveryRegistry.KnownIPs, callbackURL, cfg.TopologyRefreshInterval)

	bus := eventbus.New(cfg.EventBusCapacity)

	coordinator.SetEventHooks(
		func(streamID, speakerIP string) {
			bus.Publish(eventbus.PlaybackStarted(streamID, speakerIP, time.Now().UnixMilli()))
		},
		func(streamID string) {
			bus.Publish(eventbus.PlaybackStopped(streamID, time.Now().UnixMilli()))
		},
	)

	operatorAuth := auth.New(auth.Config{
		Username:           cfg.OperatorUsername,
		Password:           cfg.OperatorPassword,
		JWTSecret:          cfg.JWTSecret,
		TokenTTL:           cfg.TokenTTL,
		MaxLoginAttempts:   cfg.MaxLoginAttempts,
		LoginWindowSeconds: cfg.LoginWindowSeconds,
	})

	server := control.NewServer(control.Deps{
		Config:        cfg,
		Registry:      registry,
		Gena:          gena,
		GenaEvents:    genaEvents,
		Arbiter:       arbiter,
		Coordinator:   coordinator,
		Cache:         cache,
		Discovery:     discoveryRegistry,
		Topology:      topologyMonitor,
		Bus:           bus,
		Auth:          operatorAuth,
		PublicBaseURL: publicBaseURL,
		ListenAddr:    listenAddr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		slog.Info("shutdown signal received")
		cancel()
	}()

	discoveryRegistry.Start(ctx, 2*cfg.TopologyRefreshInterval)
	if err := topologyMonitor.Start(ctx); err != nil {
		slog.Error("topology: failed to start", "error", err)
		os.Exit(1)
	}
	defer topologyMonitor.Shutdown()

	gena.StartRenewalTask(ctx)
	defer gena.Shutdown(context.Background())

	if err := server.Start(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("sonocast stopped")
}
