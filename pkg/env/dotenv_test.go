package env

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "ZABBIX_URL=http://zabbix.local/zabbix\n# comment\nexport ZABBIX_PASSWORD=\"s3cret\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	_ = os.Unsetenv("ZABBIX_URL")
	_ = os.Unsetenv("ZABBIX_PASSWORD")
	if err := LoadFromDir(dir); err != nil {
		t.Fatalf("LoadFromDir: %v", err)
	}
	if got := os.Getenv("ZABBIX_URL"); got != "http://zabbix.local/zabbix" {
		t.Fatalf("expected ZABBIX_URL from file, got %q", got)
	}
	if got := os.Getenv("ZABBIX_PASSWORD"); got != "s3cret" {
		t.Fatalf("expected quoted value stripped, got %q", got)
	}
}

func TestLoadDoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("ZABBIX_USER=filevalue\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("ZABBIX_USER", "Admin")
	if err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := os.Getenv("ZABBIX_USER"); got != "Admin" {
		t.Fatalf("expected shell value preserved, got %q", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if err := Load(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
}

func TestParseLine(t *testing.T) {
	cases := []struct {
		in       string
		key, val string
		ok       bool
	}{
		{"KEY=value", "KEY", "value", true},
		{"export KEY='quoted'", "KEY", "quoted", true},
		{"# comment", "", "", false},
		{"", "", "", false},
		{"noequals", "", "", false},
		{"=orphan", "", "", false},
	}
	for _, tc := range cases {
		key, val, ok := parseLine(tc.in)
		if key != tc.key || val != tc.val || ok != tc.ok {
			t.Errorf("parseLine(%q) = %q, %q, %v; want %q, %q, %v", tc.in, key, val, ok, tc.key, tc.val, tc.ok)
		}
	}
}
