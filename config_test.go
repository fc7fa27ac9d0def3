package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  addr: ":9000"
  timezone: Asia/Manila
logging:
  file: logs/reports.log
database:
  driver: sqlite
  sqlite_path: /tmp/reports.db
cache:
  capacity: 10
  ttl: 30s
broadcast:
  retry_delay: 1m
`)
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Server.Addr != ":9000" || cfg.Database.Driver != "sqlite" || cfg.Database.SQLitePath != "/tmp/reports.db" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Cache.Capacity != 10 || cfg.Cache.TTL.Duration() != 30*time.Second {
		t.Fatalf("cache = %+v", cfg.Cache)
	}
	if cfg.Broadcast.RetryDelay.Duration() != time.Minute || cfg.Broadcast.Workers != 4 {
		t.Fatalf("broadcast = %+v", cfg.Broadcast)
	}
	if cfg.location().String() != "Asia/Manila" {
		t.Fatalf("location = %s", cfg.location())
	}
}

func TestLoadConfigTOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
[server]
addr = ":7000"

[database]
driver = "mysql"
host = "db.internal"
port = 3306
user = "reports"
dbname = "endaga"

[tsdb]
path = "/var/lib/reports/tsdb"
compression_level = 4
`)
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Server.Addr != ":7000" || cfg.Database.Host != "db.internal" || cfg.Database.Port != 3306 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.TSDB.Path != "/var/lib/reports/tsdb" || cfg.TSDB.CompressionLevel != 4 {
		t.Fatalf("tsdb = %+v", cfg.TSDB)
	}
	if cfg.Cache.TTL.Duration() != time.Minute {
		t.Fatalf("default ttl lost: %v", cfg.Cache.TTL.Duration())
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("REPORTS_ADDR", ":1234")
	t.Setenv("REPORTS_DB_DRIVER", "sqlite")
	t.Setenv("REPORTS_DSN", "file::memory:")
	t.Setenv("REPORTS_LOG_LEVEL", "debug")

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Server.Addr != ":1234" || cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "file::memory:" || cfg.Logging.Level != "debug" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	cases := map[string]string{
		"driver.yaml":   "database:\n  driver: oracle\n",
		"timezone.yaml": "server:\n  timezone: Mars/Olympus\n",
		"level.yaml":    "tsdb:\n  compression_level: 9\n",
		"ttl.yaml":      "cache:\n  ttl: soon\n",
		"broken.toml":   "[server\naddr = 1",
	}
	for name, content := range cases {
		if _, err := loadConfig(writeFile(t, name, content)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file: expected an error")
	}
}

func TestDialector(t *testing.T) {
	cfg := databaseConfig{Driver: "mysql", Host: "h", Port: 3306, User: "u", Pass: "p", DBName: "d"}
	if name := cfg.dialector().Name(); name != "mysql" {
		t.Fatalf("dialector = %s", name)
	}
	cfg.Driver = "sqlite"
	if name := cfg.dialector().Name(); name != "sqlite" {
		t.Fatalf("dialector = %s", name)
	}
}
