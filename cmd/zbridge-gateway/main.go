package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/zbridge/zbridge/pkg/config"
	"github.com/zbridge/zbridge/pkg/gateway"
	"github.com/zbridge/zbridge/pkg/logging"
	"github.com/zbridge/zbridge/pkg/mcp"
	"github.com/zbridge/zbridge/pkg/metrics"
	"github.com/zbridge/zbridge/pkg/tool"
	"github.com/zbridge/zbridge/pkg/zabbix"
)

var (
	cfgFile     string
	addr        string
	maxSessions int
)

func main() {
	pflag.StringVar(&cfgFile, "config", "", "config file (default: ~/.zbridge/config.yaml)")
	pflag.StringVar(&addr, "addr", "", "gateway listen address")
	pflag.IntVar(&maxSessions, "max-sessions", 0, "maximum concurrent sessions (0 = unlimited)")
	pflag.Parse()

	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, os.Getenv("ZBRIDGE_LOG_FORMAT"))

	client := zabbix.NewClient()
	client.SetLogger(logger)
	client.SetObserver(metrics.ClientObserver{})
	timeout, err := cfg.ZabbixTimeout()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	client.SetTimeout(timeout)
	if cfg.Zabbix.CacheSessions {
		client.EnableSessionCache()
	}
	if cfg.HasZabbixConnection() {
		err := client.Configure(zabbix.Connection{
			BaseURL:   cfg.Zabbix.URL,
			Username:  cfg.Zabbix.Username,
			Password:  cfg.Zabbix.Password,
			AuthStyle: zabbix.AuthStyle(cfg.Zabbix.AuthStyle),
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	} else {
		logger.Warn("zabbix_connection_missing",
			"hint", "set zabbix.url/username/password or ZABBIX_URL/ZABBIX_USER/ZABBIX_PASSWORD")
	}

	registry := tool.NewRegistry()
	registry.SetLogger(logger)
	if err := tool.RegisterZabbixTools(registry, client); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	mcpServer := mcp.NewServer(registry)
	mcpServer.SetLogger(logger)

	if addr == "" {
		addr = cfg.Gateway.Address
	}
	gw := gateway.NewServer(addr, mcpServer, gateway.AllowlistAuthorizer{Allowed: cfg.Gateway.AllowedAddrs})
	if maxSessions == 0 {
		maxSessions = cfg.Gateway.MaxSessions
	}
	if maxSessions > 0 {
		gw.SetMaxSessions(maxSessions)
	}
	gw.SetLogger(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := gw.Start(ctx); err != nil && err != context.Canceled {
			fmt.Fprintln(os.Stderr, err)
			cancel()
		}
	}()

	fmt.Printf("zbridge-gateway listening on %s\n", gw.Addr())
	waitForSignal()
	cancel()
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
