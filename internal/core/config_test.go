package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestConfig_DatabaseURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Engine = "postgres"
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.Name = "testdb"
	cfg.Database.Username = "testuser"
	cfg.Database.Password = "testpassword"
	cfg.Database.SSLMode = ""

	url := cfg.DatabaseURL()
	expected := "host=localhost port=5432 dbname=testdb user=testuser password=testpassword sslmode="
	if url != expected {
		t.Errorf("DatabaseURL() want = %s, got = %s", expected, url)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Redirector.Port != 42127 {
		t.Errorf("Redirector.Port want = %d, got = %d", 42127, cfg.Redirector.Port)
	}
	if cfg.Blaze.Port != 10041 {
		t.Errorf("Blaze.Port want = %d, got = %d", 10041, cfg.Blaze.Port)
	}
	if cfg.Blaze.MaxPacketSize != 1<<20 {
		t.Errorf("Blaze.MaxPacketSize want = %d, got = %d", 1<<20, cfg.Blaze.MaxPacketSize)
	}
	if cfg.Blaze.MaxQueuedPackets != 1024 {
		t.Errorf("Blaze.MaxQueuedPackets want = %d, got = %d", 1024, cfg.Blaze.MaxQueuedPackets)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() returned an unexpected error: %v", err)
	}
}

const testConfig = `
hostname: 127.0.0.1
logging:
  log_level: debug
blaze:
  max_depth: 16
redirector:
  routes:
    - service_name: darkspore
      client_type: "*"
      hostname: blaze.example.com
      ip: 10.0.0.2
      port: 10041
qos:
  sites:
    - alias: ams
      name: Amsterdam
      address: qos.example.com
      port: 17502
`

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(testConfig), 0644); err != nil {
		t.Fatalf("error writing test config: %v", err)
	}
	t.Setenv("BLAZE_DATABASE_ENGINE", "postgres")

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig() returned an unexpected error: %v", err)
	}

	if cfg.Hostname != "127.0.0.1" || cfg.Logging.LogLevel != "debug" || cfg.Blaze.MaxDepth != 16 {
		t.Errorf("LoadConfig() did not apply file values: %+v", cfg)
	}
	// Defaults survive for keys the file doesn't mention.
	if cfg.Blaze.Port != 10041 {
		t.Errorf("Blaze.Port want = %d, got = %d", 10041, cfg.Blaze.Port)
	}
	if cfg.Database.Engine != "postgres" {
		t.Errorf("Database.Engine want = postgres (from env), got = %s", cfg.Database.Engine)
	}

	wantRoutes := []Route{{
		ServiceName: "darkspore", ClientType: "*", Hostname: "blaze.example.com", IP: "10.0.0.2", Port: 10041,
	}}
	if diff := cmp.Diff(wantRoutes, cfg.Redirector.Routes); diff != "" {
		t.Errorf("Redirector.Routes diff:\n%s", diff)
	}
	wantSites := []PingSite{{Alias: "ams", Name: "Amsterdam", Address: "qos.example.com", Port: 17502}}
	if diff := cmp.Diff(wantSites, cfg.Qos.Sites); diff != "" {
		t.Errorf("Qos.Sites diff:\n%s", diff)
	}

	if got := cfg.QualifiedPath("blaze.db"); got != filepath.Join(dir, "blaze.db") {
		t.Errorf("QualifiedPath() want = %s, got = %s", filepath.Join(dir, "blaze.db"), got)
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	if _, err := LoadConfig(t.TempDir()); err == nil {
		t.Errorf("LoadConfig() expected an error for a directory without a config file")
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Engine = "mysql"
	cfg.Qos.HighBandwidth = 1
	cfg.Redirector.Routes = []Route{{ServiceName: ""}}
	if err := cfg.Validate(); err == nil {
		t.Errorf("Validate() expected an error")
	}
}
