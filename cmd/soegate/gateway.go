package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/1ureka/soegate/internal/config"
	"github.com/1ureka/soegate/internal/dump"
	"github.com/1ureka/soegate/internal/gateway"
	"github.com/1ureka/soegate/internal/transport"
	"github.com/1ureka/soegate/internal/util"
)

func gatewayCmd(root *rootOptions) *cobra.Command {
	var (
		listen string
		echo   bool
	)
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Run the gateway relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Gateway.Listen = listen
			}
			if cmd.Flags().Changed("echo") {
				cfg.Gateway.Echo = echo
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			obs, err := observer(cfg)
			if err != nil {
				return err
			}
			return runGateway(cmd.Context(), cfg.Gateway, obs)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (host:port)")
	cmd.Flags().BoolVar(&echo, "echo", false, "Send every inbound tunnel payload back to its sender")
	return cmd
}

func runGateway(ctx context.Context, cfg config.GatewayConfig, obs dump.Observer) error {
	ts, err := transport.NewServer(ctx, transport.ServerConfig{
		Key:             cfg.Key,
		ReadLimit:       cfg.ReadLimit,
		FramesPerSecond: cfg.FramesPerSecond,
		Burst:           cfg.Burst,
		WriteTimeout:    cfg.WriteTimeout,
	})
	if err != nil {
		return err
	}
	defer ts.Close()

	relayOpts := []gateway.ServerOption{gateway.WithServerObserver(obs)}
	if cfg.OneTimeTickets {
		tickets, err := gateway.NewOneTimeTickets(cfg.TicketCacheSize)
		if err != nil {
			return err
		}
		relayOpts = append(relayOpts, gateway.WithTicketValidator(tickets.Validate))
	}
	relay := gateway.NewServer(relayOpts...)
	relay.Attach(ts)
	relay.On(gateway.EventTunnelData, func(ev gateway.ServerEvent) {
		util.LogDebug("[%08x] tunnel data: %d bytes (flags %d)", ev.Peer.ID(), len(ev.Data), ev.Flags)
		if cfg.Echo {
			if err := relay.SendTunnelData(ev.Peer, ev.Data); err != nil {
				util.LogWarning("[%08x] echo failed: %v", ev.Peer.ID(), err)
			}
		}
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(util.Stats.Collectors("soegate")...)

	router := mux.NewRouter()
	router.Handle(cfg.Path, ts).Methods(http.MethodGet)
	if cfg.MetricsPath != "" {
		router.Handle(cfg.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	util.StartStatsReporter(ctx, cfg.StatsInterval)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		util.LogSuccess("gateway listening on %s%s", cfg.Listen, cfg.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		ts.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	util.LogInfo("gateway stopped (%d connections open at shutdown)", relay.Len())
	return err
}
