package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  address: 127.0.0.1
  port: 9090
storage:
  backend: file
  path: /tmp/vouches.json
platform:
  guild_id: g1
  vouch_channel_id: c1
  trusted_role_id: r1
  staff_role_ids: [s1, s2]
  request_timeout: 5s
ledger:
  max_per_subject: 50
  max_total: 80
role_sync:
  threshold: 3
  timeout: 2s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Normalize()
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Fatalf("Addr = %s", cfg.Addr())
	}
	if cfg.Storage.Backend != "file" {
		t.Fatalf("backend = %s", cfg.Storage.Backend)
	}
	if len(cfg.Platform.StaffRoleIDs) != 2 {
		t.Fatalf("staff roles = %v", cfg.Platform.StaffRoleIDs)
	}
	if cfg.Platform.RequestTimeout.Duration() != 5*time.Second {
		t.Fatalf("request_timeout = %v", cfg.Platform.RequestTimeout.Duration())
	}
	if cfg.Ledger.MaxPerSubject != 50 || cfg.Ledger.MaxTotal != 80 {
		t.Fatalf("bounds = %d/%d", cfg.Ledger.MaxPerSubject, cfg.Ledger.MaxTotal)
	}
	if cfg.RoleSync.Threshold != 3 {
		t.Fatalf("threshold = %d", cfg.RoleSync.Threshold)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.Normalize()
	if cfg.Ledger.MaxPerSubject != DefaultMaxPerSubject {
		t.Fatalf("max_per_subject = %d", cfg.Ledger.MaxPerSubject)
	}
	if cfg.Ledger.MaxTotal != DefaultMaxTotal {
		t.Fatalf("max_total = %d", cfg.Ledger.MaxTotal)
	}
	if cfg.RoleSync.Threshold != DefaultThreshold {
		t.Fatalf("threshold = %d", cfg.RoleSync.Threshold)
	}
	if cfg.Storage.Backend != "pebble" {
		t.Fatalf("backend = %s", cfg.Storage.Backend)
	}
	if cfg.Ingest.QueueCapacity != DefaultQueueCapacity {
		t.Fatalf("queue capacity = %d", cfg.Ingest.QueueCapacity)
	}
}

func TestParseConfigEnvs(t *testing.T) {
	t.Setenv("VOUCHD_GUILD_ID", "g9")
	t.Setenv("VOUCHD_STAFF_ROLE_IDS", "a, b ,c")
	t.Setenv("VOUCHD_TRUST_THRESHOLD", "7")
	t.Setenv("VOUCHD_MAX_PER_SUBJECT", "500")
	t.Setenv("VOUCHD_ADDR", "127.0.0.1:7000")
	t.Setenv("VOUCHD_API_BACKEND_KEYS", "k1,k2")

	cfg, used := ParseConfigEnvs()
	if !used {
		t.Fatal("env not detected")
	}
	if cfg.Platform.GuildID != "g9" {
		t.Fatalf("guild = %s", cfg.Platform.GuildID)
	}
	if len(cfg.Platform.StaffRoleIDs) != 3 || cfg.Platform.StaffRoleIDs[1] != "b" {
		t.Fatalf("staff roles = %v", cfg.Platform.StaffRoleIDs)
	}
	if cfg.RoleSync.Threshold != 7 {
		t.Fatalf("threshold = %d", cfg.RoleSync.Threshold)
	}
	if cfg.Ledger.MaxPerSubject != 500 {
		t.Fatalf("max_per_subject = %d", cfg.Ledger.MaxPerSubject)
	}
	if cfg.Server.Address != "127.0.0.1" || cfg.Server.Port != 7000 {
		t.Fatalf("addr = %s:%d", cfg.Server.Address, cfg.Server.Port)
	}
	if len(cfg.Security.APIKeys.Backend) != 2 {
		t.Fatalf("backend keys = %v", cfg.Security.APIKeys.Backend)
	}
}

func TestLoadEffectiveConfigPrecedence(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9999
storage:
  path: /from/file
`)

	// explicit --config wins
	flags := Flags{Config: path, Set: map[string]bool{"config": true}}
	fileCfg, exists, err := ParseConfigFile(flags)
	if err != nil || !exists {
		t.Fatalf("ParseConfigFile: exists=%v err=%v", exists, err)
	}
	eff, err := LoadEffectiveConfig(flags, fileCfg, exists, &Config{}, false)
	if err != nil {
		t.Fatalf("LoadEffectiveConfig: %v", err)
	}
	if eff.Source != "config" || eff.DBPath != "/from/file" {
		t.Fatalf("eff = %+v", eff)
	}

	// explicit flags win over file
	flags2 := Flags{Addr: ":7777", DB: "/from/flag", Set: map[string]bool{"addr": true, "db": true}}
	eff2, err := LoadEffectiveConfig(flags2, fileCfg, true, &Config{}, false)
	if err != nil {
		t.Fatalf("LoadEffectiveConfig: %v", err)
	}
	if eff2.Source != "flags" || eff2.DBPath != "/from/flag" || eff2.Addr != ":7777" {
		t.Fatalf("eff2 = %+v", eff2)
	}

	// missing explicit config file is an error
	flags3 := Flags{Config: "/does/not/exist.yaml", Set: map[string]bool{"config": true}}
	if _, err := LoadEffectiveConfig(flags3, &Config{}, false, &Config{}, false); err == nil {
		t.Fatal("missing explicit config file not rejected")
	}
}

func TestDurationUnmarshal(t *testing.T) {
	path := writeConfig(t, `
role_sync:
  timeout: 1500ms
platform:
  request_timeout: 3
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RoleSync.Timeout.Duration() != 1500*time.Millisecond {
		t.Fatalf("timeout = %v", cfg.RoleSync.Timeout.Duration())
	}
	// bare numbers are seconds
	if cfg.Platform.RequestTimeout.Duration() != 3*time.Second {
		t.Fatalf("request_timeout = %v", cfg.Platform.RequestTimeout.Duration())
	}
}
