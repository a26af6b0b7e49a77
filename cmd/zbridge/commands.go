package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zbridge/zbridge/pkg/tool"
	"github.com/zbridge/zbridge/pkg/version"
	"github.com/zbridge/zbridge/server"
)

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools exposed over MCP",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, _, registry, err := loadStack()
			if err != nil {
				return err
			}
			for _, t := range registry.List() {
				fmt.Printf("%-36s %s\n", t.Name, t.Description)
			}
			return nil
		},
	}
}

func callCmd() *cobra.Command {
	var argsJSON string

	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Call a tool directly and print its output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, _, registry, err := loadStack()
			if err != nil {
				return err
			}

			result, err := registry.Call(cmd.Context(), args[0], json.RawMessage(argsJSON))
			if err != nil {
				return err
			}
			for _, content := range result.Content {
				fmt.Println(content.Text)
			}
			if result.IsError {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&argsJSON, "args", "{}", "tool arguments as a JSON object")
	return cmd
}

func hostsCmd() *cobra.Command {
	var limit int
	var output string

	cmd := &cobra.Command{
		Use:   "hosts",
		Short: "List monitored hosts",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, client, _, err := loadStack()
			if err != nil {
				return err
			}

			params := map[string]any{"output": []string{"hostid", "host", "name", "status"}}
			if limit > 0 {
				params["limit"] = limit
			}
			raw, err := client.Invoke(cmd.Context(), "host.get", params)
			if err != nil {
				return err
			}
			hosts, err := tool.DecodeHosts(raw)
			if err != nil {
				return err
			}

			switch output {
			case "json":
				return printJSON(hosts)
			case "yaml":
				return printYAML(hosts)
			default:
				printTable([]string{"ID", "HOST", "NAME", "STATE"}, hostRows(hosts))
				return nil
			}
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of hosts")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

func problemsCmd() *cobra.Command {
	var minSeverity, limit int
	var output string

	cmd := &cobra.Command{
		Use:   "problems",
		Short: "List active problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, client, _, err := loadStack()
			if err != nil {
				return err
			}

			params := map[string]any{
				"output":    []string{"eventid", "name", "severity", "clock"},
				"recent":    true,
				"sortfield": []string{"eventid"},
				"sortorder": "DESC",
			}
			if minSeverity > 0 {
				severities := make([]int, 0, 6)
				for s := minSeverity; s <= 5; s++ {
					severities = append(severities, s)
				}
				params["severities"] = severities
			}
			if limit > 0 {
				params["limit"] = limit
			}

			raw, err := client.Invoke(cmd.Context(), "problem.get", params)
			if err != nil {
				return err
			}
			problems, err := tool.DecodeProblems(raw)
			if err != nil {
				return err
			}

			switch output {
			case "json":
				return printJSON(problems)
			case "yaml":
				return printYAML(problems)
			default:
				printTable([]string{"EVENT", "NAME", "SEVERITY"}, problemRows(problems))
				return nil
			}
		},
	}

	cmd.Flags().IntVar(&minSeverity, "min-severity", 0, "minimum severity 0-5")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of problems")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

func tokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the HTTP transport",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, _, err := loadStack()
			if err != nil {
				return err
			}
			token, err := server.IssueToken(cfg.HTTP.AuthSecret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "mcp-client", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and API reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, client, _, err := loadStack()
			if err != nil {
				return err
			}

			fmt.Printf("config file:   %s\n", orNone(configPath()))
			fmt.Printf("zabbix url:    %s\n", orNone(cfg.Zabbix.URL))
			fmt.Printf("auth style:    %s\n", cfg.Zabbix.AuthStyle)
			fmt.Printf("session cache: %v\n", cfg.Zabbix.CacheSessions)

			if !client.Configured() {
				fmt.Println("login check:   skipped (connection not configured)")
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if _, err := client.Authenticate(ctx); err != nil {
				fmt.Printf("login check:   FAILED: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("login check:   ok")
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the zbridge version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.String())
		},
	}
}

func hostRows(hosts []tool.Host) [][]string {
	rows := make([][]string, 0, len(hosts))
	for _, h := range hosts {
		state := "monitored"
		if !h.Monitored() {
			state = "disabled"
		}
		rows = append(rows, []string{h.HostID, h.Host, h.Name, state})
	}
	return rows
}

func problemRows(problems []tool.Problem) [][]string {
	rows := make([][]string, 0, len(problems))
	for _, p := range problems {
		rows = append(rows, []string{p.EventID, p.Name, tool.SeverityName(p.Severity)})
	}
	return rows
}

func printTable(headers []string, rows [][]string) {
	table := tablewriter.NewWriter(os.Stdout)
	headerAny := make([]any, len(headers))
	for i, h := range headers {
		headerAny[i] = h
	}
	table.Header(headerAny...)
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
}

func printJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(data any) error {
	encoder := yaml.NewEncoder(os.Stdout)
	encoder.SetIndent(2)
	defer encoder.Close()
	return encoder.Encode(data)
}

func orNone(value string) string {
	if value == "" {
		return "(none)"
	}
	return value
}
