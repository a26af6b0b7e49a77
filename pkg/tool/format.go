package tool

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Zabbix returns every field as a string; these structs cover the handful of
// fields the text formatters and the CLI tables care about. Anything else in
// the raw result is ignored, not lost: zabbix.api_request exposes the full
// payload.

type Host struct {
	HostID string `json:"hostid"`
	Host   string `json:"host"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Monitored reports whether the host is enabled (status "0" in the API).
func (h Host) Monitored() bool { return h.Status == "0" }

type Item struct {
	ItemID    string `json:"itemid"`
	HostID    string `json:"hostid"`
	Name      string `json:"name"`
	Key       string `json:"key_"`
	LastValue string `json:"lastvalue"`
	Units     string `json:"units"`
}

type Trigger struct {
	TriggerID   string `json:"triggerid"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Value       string `json:"value"`
}

type Problem struct {
	EventID  string `json:"eventid"`
	Name     string `json:"name"`
	Severity string `json:"severity"`
	Clock    string `json:"clock"`
}

type HistoryEntry struct {
	ItemID string `json:"itemid"`
	Clock  string `json:"clock"`
	Value  string `json:"value"`
}

func DecodeHosts(raw json.RawMessage) ([]Host, error) {
	var hosts []Host
	if err := json.Unmarshal(raw, &hosts); err != nil {
		return nil, fmt.Errorf("decode hosts: %w", err)
	}
	return hosts, nil
}

func DecodeItems(raw json.RawMessage) ([]Item, error) {
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return items, nil
}

func DecodeTriggers(raw json.RawMessage) ([]Trigger, error) {
	var triggers []Trigger
	if err := json.Unmarshal(raw, &triggers); err != nil {
		return nil, fmt.Errorf("decode triggers: %w", err)
	}
	return triggers, nil
}

func DecodeProblems(raw json.RawMessage) ([]Problem, error) {
	var problems []Problem
	if err := json.Unmarshal(raw, &problems); err != nil {
		return nil, fmt.Errorf("decode problems: %w", err)
	}
	return problems, nil
}

func DecodeHistory(raw json.RawMessage) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return entries, nil
}

// severityNames indexes Zabbix problem severities 0-5.
var severityNames = []string{"not classified", "information", "warning", "average", "high", "disaster"}

// SeverityName maps a numeric severity string onto its Zabbix label.
func SeverityName(severity string) string {
	for i, name := range severityNames {
		if severity == fmt.Sprintf("%d", i) {
			return name
		}
	}
	return severity
}

func formatHosts(hosts []Host) string {
	if len(hosts) == 0 {
		return "no hosts found"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d host(s):\n", len(hosts))
	for _, h := range hosts {
		state := "monitored"
		if !h.Monitored() {
			state = "disabled"
		}
		fmt.Fprintf(&b, "- %s (%s) id=%s %s\n", h.Name, h.Host, h.HostID, state)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatItems(items []Item) string {
	if len(items) == 0 {
		return "no items found"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d item(s):\n", len(items))
	for _, it := range items {
		fmt.Fprintf(&b, "- %s [%s] = %s%s\n", it.Name, it.Key, it.LastValue, it.Units)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatTriggers(triggers []Trigger) string {
	if len(triggers) == 0 {
		return "no triggers found"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d trigger(s):\n", len(triggers))
	for _, tr := range triggers {
		state := "ok"
		if tr.Value == "1" {
			state = "problem"
		}
		fmt.Fprintf(&b, "- [%s] %s (severity %s, %s)\n", tr.TriggerID, tr.Description, SeverityName(tr.Priority), state)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatProblems(problems []Problem) string {
	if len(problems) == 0 {
		return "no active problems"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d problem(s):\n", len(problems))
	for _, p := range problems {
		fmt.Fprintf(&b, "- [%s] %s (severity %s)\n", p.EventID, p.Name, SeverityName(p.Severity))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatHistory(entries []HistoryEntry) string {
	if len(entries) == 0 {
		return "no history entries"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d value(s):\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "- item %s @%s: %s\n", e.ItemID, e.Clock, e.Value)
	}
	return strings.TrimRight(b.String(), "\n")
}
