package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"
)

const minimalYAML = `
scopes:
  - id: team
    chat_id: -100500
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Lease.TTL.Std() != 30*time.Second {
		t.Errorf("expected ttl 30s, got %s", cfg.Lease.TTL)
	}
	if cfg.Lease.RenewInterval.Std() != 10*time.Second {
		t.Errorf("expected renew interval 10s, got %s", cfg.Lease.RenewInterval)
	}
	if cfg.Lease.MaxRenewAttempts != 3 {
		t.Errorf("expected 3 renew attempts, got %d", cfg.Lease.MaxRenewAttempts)
	}
	if cfg.Scheduler.TickInterval.Std() != time.Second {
		t.Errorf("expected tick 1s, got %s", cfg.Scheduler.TickInterval)
	}
	if cfg.HTTP.SchedulerPort != DefaultSchedPort || cfg.HTTP.APIPort != DefaultAPIPort {
		t.Errorf("unexpected ports: %+v", cfg.HTTP)
	}

	scope := cfg.Scopes[0]
	if scope.PollCron != DefaultPollCron || scope.PairingCron != DefaultPairingCron {
		t.Errorf("unexpected cron defaults: %+v", scope)
	}
	if scope.Timezone != "UTC" {
		t.Errorf("expected UTC timezone, got %q", scope.Timezone)
	}
}

func TestParse_FullConfig(t *testing.T) {
	data := `
database:
  url: postgres://localhost/coffee
rabbitmq:
  url: amqp://localhost/
lease:
  ttl: 1m
  renew_interval: 15s
  acquire_timeout: 2s
  max_renew_attempts: 5
  retry_delay: 1s
scheduler:
  tick_interval: 500ms
http:
  scheduler_port: 9081
  api_port: 9080
scopes:
  - id: team
    chat_id: -1
    name: Team
    poll_cron: "0 9 * * 1"
    pairing_cron: "0 18 * * 1"
    timezone: Europe/Moscow
  - id: guild
    chat_id: -2
`
	cfg, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Lease.TTL.Std() != time.Minute || cfg.Lease.RenewInterval.Std() != 15*time.Second {
		t.Errorf("unexpected lease: %+v", cfg.Lease)
	}
	if cfg.Lease.RetryDelay.Std() != time.Second {
		t.Errorf("expected retry delay 1s, got %s", cfg.Lease.RetryDelay)
	}
	if cfg.Scheduler.TickInterval.Std() != 500*time.Millisecond {
		t.Errorf("unexpected tick interval %s", cfg.Scheduler.TickInterval)
	}

	scopes := cfg.DomainScopes()
	if len(scopes) != 2 {
		t.Fatalf("expected 2 scopes, got %d", len(scopes))
	}
	if scopes[0].ChatID != -1 || scopes[0].PollCron != "0 9 * * 1" || scopes[0].Timezone != "Europe/Moscow" {
		t.Errorf("unexpected scope: %+v", scopes[0])
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("DB_URL", "postgres://env/coffee")
	t.Setenv("RABBITMQ_URL", "amqp://env/")
	t.Setenv("SCHED_PORT", "7001")
	t.Setenv("API_PORT", "7000")

	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.URL != "postgres://env/coffee" {
		t.Errorf("expected DB_URL override, got %q", cfg.Database.URL)
	}
	if cfg.RabbitMQ.URL != "amqp://env/" {
		t.Errorf("expected RABBITMQ_URL override, got %q", cfg.RabbitMQ.URL)
	}
	if cfg.HTTP.SchedulerPort != 7001 || cfg.HTTP.APIPort != 7000 {
		t.Errorf("expected port overrides, got %+v", cfg.HTTP)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{
			name:    "no scopes",
			data:    "lease:\n  ttl: 30s\n",
			wantErr: "at least one scope",
		},
		{
			name:    "renew not less than ttl",
			data:    "lease:\n  ttl: 30s\n  renew_interval: 30s\n" + minimalYAML,
			wantErr: "renew_interval",
		},
		{
			name:    "duplicate scope",
			data:    "scopes:\n  - id: a\n  - id: a\n",
			wantErr: "duplicate id",
		},
		{
			name:    "missing scope id",
			data:    "scopes:\n  - chat_id: 1\n",
			wantErr: "id is required",
		},
		{
			name:    "invalid duration",
			data:    "lease:\n  ttl: soon\n" + minimalYAML,
			wantErr: "invalid duration",
		},
		{
			name:    "unknown field",
			data:    "leese:\n  ttl: 30s\n" + minimalYAML,
			wantErr: "leese",
		},
		{
			name:    "invalid timezone",
			data:    "scopes:\n  - id: a\n    timezone: Mars/Olympus\n",
			wantErr: "invalid timezone",
		},
		{
			name:    "invalid poll cron",
			data:    "scopes:\n  - id: a\n    poll_cron: \"0 10 * *\"\n",
			wantErr: "poll_cron",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParse_InvalidPortEnv(t *testing.T) {
	t.Setenv("API_PORT", "eighty")

	if _, err := Parse([]byte(minimalYAML)); err == nil {
		t.Error("expected error for invalid API_PORT")
	}
}

func TestLoad_FromConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coffee.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Scopes[0].ID != "team" {
		t.Errorf("unexpected scopes: %+v", cfg.Scopes)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.yaml"))
	if err != nil {
		t.Fatalf("example config must be valid: %v", err)
	}
	if cfg.Lease.RenewInterval.Std() != 10*time.Second {
		t.Errorf("expected renew_interval 10s, got %s", cfg.Lease.RenewInterval)
	}
	if len(cfg.Scopes) != 1 || cfg.Scopes[0].Timezone != "Europe/Moscow" {
		t.Errorf("unexpected scopes: %+v", cfg.Scopes)
	}
}
