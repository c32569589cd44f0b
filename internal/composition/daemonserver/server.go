// Package daemonserver assembles the remote UI daemon: configuration,
// logging, metrics, the session engine with the demo screens and the RPC
// transport.
package daemonserver

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"remote-ui/go-backend/internal/adapters/rpc"
	"remote-ui/go-backend/internal/app"
	"remote-ui/go-backend/internal/app/routes"
	"remote-ui/go-backend/internal/bootstrap/serverconfig"
	"remote-ui/go-backend/internal/domains/remoteui"
	"remote-ui/go-backend/internal/platform/privacylog"
)

const drainTimeout = 5 * time.Second

type Daemon struct {
	Server *rpc.Server
	Engine *remoteui.Engine
	Hub    *app.NotificationHub
	routes *routes.Set
	logger *slog.Logger
}

// NewLogger builds the JSON logger with identifier fingerprinting and
// credential redaction applied.
func NewLogger(w io.Writer, cfg serverconfig.Config) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	return slog.New(privacylog.WrapHandler(handler))
}

// New wires a daemon from cfg. The RPC token is resolved here, so "auto"
// tokens are generated and persisted before the server starts.
func New(cfg serverconfig.Config, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = NewLogger(os.Stderr, cfg)
	}
	if err := serverconfig.ResolveToken(&cfg); err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := remoteui.NewMetrics(registry)
	if err != nil {
		return nil, err
	}

	hub := app.NewNotificationHub(cfg.NotificationBacklog)
	screens := routes.New()
	engine := remoteui.NewEngine(screens.Resolver(), hub,
		remoteui.WithLogger(logger),
		remoteui.WithMetrics(metrics),
	)
	server := rpc.NewServer(rpc.Options{
		Addr:            cfg.RPC.Addr,
		Token:           cfg.RPC.Token,
		RequireToken:    cfg.TokenRequired(),
		AllowNullOrigin: cfg.RPC.AllowNullOrigin,
		RateLimit: rpc.RateLimitOptions{
			Enabled: cfg.RateLimitEnabled(),
			RPS:     cfg.RPC.RateLimit.RPS,
			Burst:   cfg.RPC.RateLimit.Burst,
		},
		Stream: rpc.StreamOptions{
			MaxGlobal:    cfg.RPC.Stream.MaxGlobal,
			MaxPerClient: cfg.RPC.Stream.MaxPerClient,
		},
		Gatherer: registry,
		Logger:   logger,
	}, engine, hub)

	return &Daemon{
		Server: server,
		Engine: engine,
		Hub:    hub,
		routes: screens,
		logger: logger,
	}, nil
}

// Run serves until ctx is done, then lets in-flight actions finish and
// closes every session.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("daemon starting", "component", "daemonserver", "rpc_addr", d.Server.Addr())
	err := d.Server.Run(ctx)
	d.Close()
	return err
}

func (d *Daemon) Close() {
	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := d.Engine.Wait(drainCtx); err != nil {
		d.logger.Warn("actions still running at shutdown", "component", "daemonserver", "error", err)
	}
	d.Engine.Dispose()
	d.routes.Dispose()
	d.logger.Info("daemon stopped", "component", "daemonserver")
}
