package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"remote-ui/go-backend/internal/bootstrap/serverconfig"
	"remote-ui/go-backend/internal/composition/daemonserver"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	rpcAddr := flag.String("rpc-addr", "", "JSON-RPC listen address (default "+serverconfig.DefaultRPCAddr+")")
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	rpcToken := flag.String("rpc-token", "", "RPC token for Authorization/X-RUI-RPC-Token; \"auto\" generates one (optional)")
	flag.Parse()
	if *showVersion {
		fmt.Printf("remoteui-daemon version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	cfg := serverconfig.LoadFromPath(*configPath)
	if *rpcAddr != "" {
		cfg.RPC.Addr = *rpcAddr
	}
	if *rpcToken != "" {
		cfg.RPC.Token = *rpcToken
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := daemonserver.NewLogger(os.Stderr, cfg)
	d, err := daemonserver.New(cfg, logger)
	if err != nil {
		log.Fatalf("remoteui-daemon failed to initialize: %v", err)
	}
	if err := d.Run(ctx); err != nil {
		log.Fatalf("remoteui-daemon failed: %v", err)
	}
}
