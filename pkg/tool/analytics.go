package tool

import (
	"context"
	"encoding/json"
	"fmt"
)

// The analysis tools below are named extension points only. The adapter this
// replaces advertised them while returning placeholder values; here they
// report not-implemented explicitly so nobody mistakes a canned answer for a
// real analysis.

var analysisStubs = []struct {
	name        string
	description string
}{
	{"zabbix.analyze_resource_usage", "Analyze resource usage trends for a host (not implemented)"},
	{"zabbix.security_audit", "Run a security audit across monitored hosts (not implemented)"},
	{"zabbix.maintenance_window", "Suggest a maintenance window for a host (not implemented)"},
	{"zabbix.deployment_metrics", "Collect metrics around a deployment event (not implemented)"},
}

func registerAnalysisStubs(r *Registry) error {
	for _, stub := range analysisStubs {
		name := stub.name
		err := r.Register(Tool{
			Name:        name,
			Description: stub.description,
			InputSchema: objectSchema(map[string]any{}),
			Handler: func(ctx context.Context, args json.RawMessage) (*Result, error) {
				return nil, fmt.Errorf("%s: %w", name, ErrNotImplemented)
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}
