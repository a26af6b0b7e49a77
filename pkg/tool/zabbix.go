package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zbridge/zbridge/pkg/zabbix"
)

// RegisterZabbixTools wires the Zabbix tool surface into the registry. Each
// tool is a thin forwarder: validate arguments, call Invoke, format the
// result as text. Failures from the gateway come back as flagged results so
// an agent sees the message instead of a dropped request.
func RegisterZabbixTools(r *Registry, client *zabbix.Client) error {
	tools := []Tool{
		{
			Name:        "zabbix.get_hosts",
			Description: "List hosts known to the Zabbix server, optionally filtered by name",
			InputSchema: objectSchema(map[string]any{
				"filter": map[string]any{
					"type":        "object",
					"description": "Exact-match filter, e.g. {\"host\": [\"web-1\"]}",
				},
				"search": map[string]any{
					"type":        "object",
					"description": "Substring search, e.g. {\"name\": \"web\"}",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of hosts to return",
				},
			}),
			Handler: getHostsHandler(client),
		},
		{
			Name:        "zabbix.get_items",
			Description: "List items with their latest values",
			InputSchema: objectSchema(map[string]any{
				"hostids": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Restrict to these host IDs",
				},
				"search": map[string]any{"type": "object"},
				"limit":  map[string]any{"type": "integer"},
			}),
			Handler: getItemsHandler(client),
		},
		{
			Name:        "zabbix.get_triggers",
			Description: "List triggers, optionally only those currently in problem state",
			InputSchema: objectSchema(map[string]any{
				"only_problems": map[string]any{
					"type":        "boolean",
					"description": "Return only triggers whose value is problem",
				},
				"limit": map[string]any{"type": "integer"},
			}),
			Handler: getTriggersHandler(client),
		},
		{
			Name:        "zabbix.get_problems",
			Description: "List active problems, optionally above a minimum severity",
			InputSchema: objectSchema(map[string]any{
				"min_severity": map[string]any{
					"type":        "integer",
					"description": "Minimum severity 0-5",
				},
				"limit": map[string]any{"type": "integer"},
			}),
			Handler: getProblemsHandler(client),
		},
		{
			Name:        "zabbix.get_history",
			Description: "Fetch recent history values for items",
			InputSchema: objectSchema(map[string]any{
				"itemids": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
				"history": map[string]any{
					"type":        "integer",
					"description": "Value type: 0 float, 1 character, 2 log, 3 unsigned, 4 text",
				},
				"limit": map[string]any{"type": "integer"},
			}, "itemids"),
			Handler: getHistoryHandler(client),
		},
		{
			Name:        "zabbix.check_hosts",
			Description: "Check a list of host names against Zabbix, reporting each independently",
			InputSchema: objectSchema(map[string]any{
				"hosts": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
			}, "hosts"),
			Handler: checkHostsHandler(client),
		},
		{
			Name:        "zabbix.api_request",
			Description: "Issue a raw Zabbix API method call and return the JSON result",
			InputSchema: objectSchema(map[string]any{
				"method": map[string]any{
					"type":        "string",
					"description": "Zabbix API method, e.g. host.get",
				},
				"params": map[string]any{"type": "object"},
			}, "method"),
			Handler: apiRequestHandler(client),
		},
	}

	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return registerAnalysisStubs(r)
}

type getHostsArgs struct {
	Filter map[string]any `json:"filter"`
	Search map[string]any `json:"search"`
	Limit  int            `json:"limit"`
}

func getHostsHandler(client *zabbix.Client) Handler {
	return func(ctx context.Context, args json.RawMessage) (*Result, error) {
		var req getHostsArgs
		if err := json.Unmarshal(args, &req); err != nil {
			return nil, fmt.Errorf("decode arguments: %w", err)
		}

		params := map[string]any{"output": []string{"hostid", "host", "name", "status"}}
		if req.Filter != nil {
			params["filter"] = req.Filter
		}
		if req.Search != nil {
			params["search"] = req.Search
		}
		if req.Limit > 0 {
			params["limit"] = req.Limit
		}

		raw, err := client.Invoke(ctx, "host.get", params)
		if err != nil {
			return ErrorResult("host.get failed: %v", err), nil
		}
		hosts, err := DecodeHosts(raw)
		if err != nil {
			return nil, err
		}
		return TextResult("%s", formatHosts(hosts)), nil
	}
}

type getItemsArgs struct {
	HostIDs []string       `json:"hostids"`
	Search  map[string]any `json:"search"`
	Limit   int            `json:"limit"`
}

func getItemsHandler(client *zabbix.Client) Handler {
	return func(ctx context.Context, args json.RawMessage) (*Result, error) {
		var req getItemsArgs
		if err := json.Unmarshal(args, &req); err != nil {
			return nil, fmt.Errorf("decode arguments: %w", err)
		}

		params := map[string]any{
			"output":    []string{"itemid", "hostid", "name", "key_", "lastvalue", "units"},
			"sortfield": "name",
		}
		if len(req.HostIDs) > 0 {
			params["hostids"] = req.HostIDs
		}
		if req.Search != nil {
			params["search"] = req.Search
		}
		if req.Limit > 0 {
			params["limit"] = req.Limit
		}

		raw, err := client.Invoke(ctx, "item.get", params)
		if err != nil {
			return ErrorResult("item.get failed: %v", err), nil
		}
		items, err := DecodeItems(raw)
		if err != nil {
			return nil, err
		}
		return TextResult("%s", formatItems(items)), nil
	}
}

type getTriggersArgs struct {
	OnlyProblems bool `json:"only_problems"`
	Limit        int  `json:"limit"`
}

func getTriggersHandler(client *zabbix.Client) Handler {
	return func(ctx context.Context, args json.RawMessage) (*Result, error) {
		var req getTriggersArgs
		if err := json.Unmarshal(args, &req); err != nil {
			return nil, fmt.Errorf("decode arguments: %w", err)
		}

		params := map[string]any{
			"output":    []string{"triggerid", "description", "priority", "value"},
			"sortfield": "priority",
			"sortorder": "DESC",
		}
		if req.OnlyProblems {
			params["filter"] = map[string]any{"value": 1}
		}
		if req.Limit > 0 {
			params["limit"] = req.Limit
		}

		raw, err := client.Invoke(ctx, "trigger.get", params)
		if err != nil {
			return ErrorResult("trigger.get failed: %v", err), nil
		}
		triggers, err := DecodeTriggers(raw)
		if err != nil {
			return nil, err
		}
		return TextResult("%s", formatTriggers(triggers)), nil
	}
}

type getProblemsArgs struct {
	MinSeverity int `json:"min_severity"`
	Limit       int `json:"limit"`
}

func getProblemsHandler(client *zabbix.Client) Handler {
	return func(ctx context.Context, args json.RawMessage) (*Result, error) {
		var req getProblemsArgs
		if err := json.Unmarshal(args, &req); err != nil {
			return nil, fmt.Errorf("decode arguments: %w", err)
		}

		params := map[string]any{
			"output":    []string{"eventid", "name", "severity", "clock"},
			"recent":    true,
			"sortfield": []string{"eventid"},
			"sortorder": "DESC",
		}
		if req.MinSeverity > 0 {
			severities := make([]int, 0, 6)
			for s := req.MinSeverity; s <= 5; s++ {
				severities = append(severities, s)
			}
			params["severities"] = severities
		}
		if req.Limit > 0 {
			params["limit"] = req.Limit
		}

		raw, err := client.Invoke(ctx, "problem.get", params)
		if err != nil {
			return ErrorResult("problem.get failed: %v", err), nil
		}
		problems, err := DecodeProblems(raw)
		if err != nil {
			return nil, err
		}
		return TextResult("%s", formatProblems(problems)), nil
	}
}

type getHistoryArgs struct {
	ItemIDs []string `json:"itemids"`
	History *int     `json:"history"`
	Limit   int      `json:"limit"`
}

func getHistoryHandler(client *zabbix.Client) Handler {
	return func(ctx context.Context, args json.RawMessage) (*Result, error) {
		var req getHistoryArgs
		if err := json.Unmarshal(args, &req); err != nil {
			return nil, fmt.Errorf("decode arguments: %w", err)
		}
		if len(req.ItemIDs) == 0 {
			return nil, fmt.Errorf("itemids is required")
		}

		history := 0
		if req.History != nil {
			history = *req.History
		}
		limit := req.Limit
		if limit <= 0 {
			limit = 50
		}

		params := map[string]any{
			"output":    "extend",
			"itemids":   req.ItemIDs,
			"history":   history,
			"sortfield": "clock",
			"sortorder": "DESC",
			"limit":     limit,
		}

		raw, err := client.Invoke(ctx, "history.get", params)
		if err != nil {
			return ErrorResult("history.get failed: %v", err), nil
		}
		entries, err := DecodeHistory(raw)
		if err != nil {
			return nil, err
		}
		return TextResult("%s", formatHistory(entries)), nil
	}
}

type apiRequestArgs struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

func apiRequestHandler(client *zabbix.Client) Handler {
	return func(ctx context.Context, args json.RawMessage) (*Result, error) {
		var req apiRequestArgs
		if err := json.Unmarshal(args, &req); err != nil {
			return nil, fmt.Errorf("decode arguments: %w", err)
		}
		if !strings.Contains(req.Method, ".") {
			return nil, fmt.Errorf("invalid method %q", req.Method)
		}

		params := req.Params
		if params == nil {
			params = map[string]any{}
		}

		raw, err := client.Invoke(ctx, req.Method, params)
		if err != nil {
			return ErrorResult("%s failed: %v", req.Method, err), nil
		}
		pretty, err := json.MarshalIndent(json.RawMessage(raw), "", "  ")
		if err != nil {
			return nil, err
		}
		return TextResult("%s", pretty), nil
	}
}
