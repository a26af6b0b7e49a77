package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/zbridge/zbridge/pkg/zabbix"
)

// HostCheck is the per-target outcome of a fan-out check. A failing target
// never aborts its siblings; every requested host gets an entry.
type HostCheck struct {
	Host      string `json:"host"`
	Found     bool   `json:"found"`
	Monitored bool   `json:"monitored"`
	Error     string `json:"error,omitempty"`
}

type checkHostsArgs struct {
	Hosts []string `json:"hosts"`
}

func checkHostsHandler(client *zabbix.Client) Handler {
	return func(ctx context.Context, args json.RawMessage) (*Result, error) {
		var req checkHostsArgs
		if err := json.Unmarshal(args, &req); err != nil {
			return nil, fmt.Errorf("decode arguments: %w", err)
		}
		if len(req.Hosts) == 0 {
			return nil, fmt.Errorf("hosts is required")
		}

		checks := CheckHosts(ctx, client, req.Hosts)

		var b strings.Builder
		fmt.Fprintf(&b, "checked %d host(s):\n", len(checks))
		for _, c := range checks {
			switch {
			case c.Error != "":
				fmt.Fprintf(&b, "- %s: error: %s\n", c.Host, c.Error)
			case !c.Found:
				fmt.Fprintf(&b, "- %s: not found\n", c.Host)
			case !c.Monitored:
				fmt.Fprintf(&b, "- %s: found, monitoring disabled\n", c.Host)
			default:
				fmt.Fprintf(&b, "- %s: monitored\n", c.Host)
			}
		}
		return TextResult("%s", strings.TrimRight(b.String(), "\n")), nil
	}
}

// CheckHosts looks up each host name concurrently. Results come back in the
// order the names were given, each carrying its own error if the lookup
// failed.
func CheckHosts(ctx context.Context, client *zabbix.Client, hosts []string) []HostCheck {
	checks := make([]HostCheck, len(hosts))

	var wg sync.WaitGroup
	for i, name := range hosts {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			checks[i] = checkHost(ctx, client, name)
		}(i, name)
	}
	wg.Wait()
	return checks
}

func checkHost(ctx context.Context, client *zabbix.Client, name string) HostCheck {
	check := HostCheck{Host: name}

	params := map[string]any{
		"output": []string{"hostid", "host", "name", "status"},
		"filter": map[string]any{"host": []string{name}},
	}
	raw, err := client.Invoke(ctx, "host.get", params)
	if err != nil {
		check.Error = err.Error()
		return check
	}

	hosts, err := DecodeHosts(raw)
	if err != nil {
		check.Error = err.Error()
		return check
	}
	if len(hosts) == 0 {
		return check
	}
	check.Found = true
	check.Monitored = hosts[0].Monitored()
	return check
}
