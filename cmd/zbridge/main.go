package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zbridge/zbridge/pkg/config"
	"github.com/zbridge/zbridge/pkg/gateway"
	"github.com/zbridge/zbridge/pkg/logging"
	"github.com/zbridge/zbridge/pkg/mcp"
	"github.com/zbridge/zbridge/pkg/metrics"
	"github.com/zbridge/zbridge/pkg/tool"
	"github.com/zbridge/zbridge/pkg/zabbix"
	"github.com/zbridge/zbridge/server"
	"log/slog"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:   "zbridge",
		Short: "MCP bridge for the Zabbix API",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.zbridge/config.yaml)")

	root.AddCommand(serveCmd())
	root.AddCommand(gatewayCmd())
	root.AddCommand(httpCmd())
	root.AddCommand(toolsCmd())
	root.AddCommand(callCmd())
	root.AddCommand(hostsCmd())
	root.AddCommand(problemsCmd())
	root.AddCommand(tokenCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadStack builds the shared pieces every serving command needs: config,
// logger, configured Zabbix client and the tool registry.
func loadStack() (*config.Config, *slog.Logger, *zabbix.Client, *tool.Registry, error) {
	cfg, err := config.LoadConfig(configPath())
	if err != nil {
		return nil, nil, nil, nil, err
	}
	logger := logging.New(cfg.LogLevel, os.Getenv("ZBRIDGE_LOG_FORMAT"))

	client, err := clientFromConfig(cfg, logger)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	registry := tool.NewRegistry()
	registry.SetLogger(logger)
	if err := tool.RegisterZabbixTools(registry, client); err != nil {
		return nil, nil, nil, nil, err
	}
	return cfg, logger, client, registry, nil
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if path := config.DefaultConfigPath(); fileExists(path) {
		return path
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// clientFromConfig builds the API client. Missing connection settings are
// not an error here; tools report the unconfigured state per call.
func clientFromConfig(cfg *config.Config, logger *slog.Logger) (*zabbix.Client, error) {
	client := zabbix.NewClient()
	client.SetLogger(logger)
	client.SetObserver(metrics.ClientObserver{})

	timeout, err := cfg.ZabbixTimeout()
	if err != nil {
		return nil, err
	}
	client.SetTimeout(timeout)
	if cfg.Zabbix.CacheSessions {
		client.EnableSessionCache()
	}

	if !cfg.HasZabbixConnection() {
		if logger != nil {
			logger.Warn("zabbix_connection_missing", "hint", "set zabbix.url/username/password or ZABBIX_URL/ZABBIX_USER/ZABBIX_PASSWORD")
		}
		return client, nil
	}

	err = client.Configure(zabbix.Connection{
		BaseURL:   cfg.Zabbix.URL,
		Username:  cfg.Zabbix.Username,
		Password:  cfg.Zabbix.Password,
		AuthStyle: zabbix.AuthStyle(cfg.Zabbix.AuthStyle),
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, _, registry, err := loadStack()
			if err != nil {
				return err
			}
			mcpServer := mcp.NewServer(registry)
			mcpServer.SetLogger(logger)
			return mcpServer.ServeStdio(cmd.Context())
		},
	}
}

func gatewayCmd() *cobra.Command {
	var addr string
	var maxSessions int

	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Start the TCP session gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, _, registry, err := loadStack()
			if err != nil {
				return err
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

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			go func() {
				if err := gw.Start(ctx); err != nil && err != context.Canceled {
					fmt.Fprintln(os.Stderr, err)
					cancel()
				}
			}()

			fmt.Printf("zbridge gateway listening on %s\n", gw.Addr())
			waitForSignal(ctx)
			cancel()
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "gateway listen address")
	cmd.Flags().IntVar(&maxSessions, "max-sessions", 0, "maximum concurrent sessions (0 = unlimited)")
	return cmd
}

func httpCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "http",
		Short: "Start the HTTP MCP transport with /metrics and /healthz",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, _, registry, err := loadStack()
			if err != nil {
				return err
			}

			mcpServer := mcp.NewServer(registry)
			mcpServer.SetLogger(logger)

			httpServer := server.NewHTTPServer(mcpServer)
			httpServer.SetLogger(logger)
			httpServer.SetAuthSecret(cfg.HTTP.AuthSecret)

			if addr == "" {
				addr = cfg.HTTP.Address
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			fmt.Printf("zbridge http listening on %s\n", addr)
			return httpServer.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "http listen address")
	return cmd
}

func waitForSignal(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
