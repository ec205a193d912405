// Package config загружает конфигурацию сервисов из YAML
// с переопределением через переменные окружения.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	yaml "go.yaml.in/yaml/v3"

	"github.com/shaiso/randomcoffee/internal/domain"
	"github.com/shaiso/randomcoffee/internal/scheduler"
)

// Значения по умолчанию.
const (
	DefaultPath         = "config.yaml"
	DefaultLeaseTTL     = 30 * time.Second
	DefaultTickInterval = time.Second
	DefaultSchedPort    = 8081
	DefaultAPIPort      = 8080

	// Понедельник 10:00 — опрос, понедельник 17:00 — распределение.
	DefaultPollCron    = "0 10 * * 1"
	DefaultPairingCron = "0 17 * * 1"
)

// Config — конфигурация всех бинарников.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Lease     LeaseConfig     `yaml:"lease"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	HTTP      HTTPConfig      `yaml:"http"`
	Scopes    []ScopeConfig   `yaml:"scopes"`
}

// DatabaseConfig — подключение к PostgreSQL.
type DatabaseConfig struct {
	// URL — DSN. Переопределяется DB_URL.
	URL string `yaml:"url"`
}

// RabbitMQConfig — подключение к RabbitMQ.
type RabbitMQConfig struct {
	// URL — AMQP URL. Переопределяется RABBITMQ_URL.
	// Пустой URL — работа без RabbitMQ (polling-only mode).
	URL string `yaml:"url"`
}

// LeaseConfig — параметры lease.
//
// Defaults:
//   - ttl: 30s
//   - renew_interval: ttl/3 (должен быть < ttl)
//   - acquire_timeout: 5s
//   - max_renew_attempts: 3
//   - retry_delay: renew_interval / (max_renew_attempts+1)
type LeaseConfig struct {
	TTL              Duration `yaml:"ttl"`
	RenewInterval    Duration `yaml:"renew_interval"`
	AcquireTimeout   Duration `yaml:"acquire_timeout"`
	MaxRenewAttempts int      `yaml:"max_renew_attempts"`
	RetryDelay       Duration `yaml:"retry_delay"`
}

// SchedulerConfig — параметры цикла планировщика.
type SchedulerConfig struct {
	// TickInterval — период тика (default: 1s).
	TickInterval Duration `yaml:"tick_interval"`
}

// HTTPConfig — порты HTTP серверов.
type HTTPConfig struct {
	// SchedulerPort — /healthz и /metrics планировщика. Переопределяется SCHED_PORT.
	SchedulerPort int `yaml:"scheduler_port"`

	// APIPort — REST API. Переопределяется API_PORT.
	APIPort int `yaml:"api_port"`
}

// ScopeConfig — один чат/сообщество.
type ScopeConfig struct {
	ID          string `yaml:"id"`
	ChatID      int64  `yaml:"chat_id"`
	Name        string `yaml:"name"`
	PollCron    string `yaml:"poll_cron"`
	PairingCron string `yaml:"pairing_cron"`
	Timezone    string `yaml:"timezone"`
}

// Load читает конфигурацию из path (или CONFIG_PATH, или config.yaml),
// применяет переменные окружения, defaults и проверяет результат.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse разбирает YAML, применяет переменные окружения и defaults.
// Неизвестные поля — ошибка.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv переопределяет поля из переменных окружения.
func (c *Config) applyEnv() error {
	if v := os.Getenv("DB_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		c.RabbitMQ.URL = v
	}

	ports := []struct {
		env  string
		dest *int
	}{
		{"SCHED_PORT", &c.HTTP.SchedulerPort},
		{"API_PORT", &c.HTTP.APIPort},
	}
	for _, p := range ports {
		v := os.Getenv(p.env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid port %q", p.env, v)
		}
		*p.dest = n
	}
	return nil
}

// applyDefaults заполняет незаданные поля.
func (c *Config) applyDefaults() {
	if c.Lease.TTL <= 0 {
		c.Lease.TTL = Duration(DefaultLeaseTTL)
	}
	if c.Lease.RenewInterval <= 0 {
		c.Lease.RenewInterval = c.Lease.TTL / 3
	}
	if c.Lease.AcquireTimeout <= 0 {
		c.Lease.AcquireTimeout = Duration(5 * time.Second)
	}
	if c.Lease.MaxRenewAttempts <= 0 {
		c.Lease.MaxRenewAttempts = 3
	}
	if c.Scheduler.TickInterval <= 0 {
		c.Scheduler.TickInterval = Duration(DefaultTickInterval)
	}
	if c.HTTP.SchedulerPort == 0 {
		c.HTTP.SchedulerPort = DefaultSchedPort
	}
	if c.HTTP.APIPort == 0 {
		c.HTTP.APIPort = DefaultAPIPort
	}

	for i := range c.Scopes {
		s := &c.Scopes[i]
		if s.PollCron == "" {
			s.PollCron = DefaultPollCron
		}
		if s.PairingCron == "" {
			s.PairingCron = DefaultPairingCron
		}
		if s.Timezone == "" {
			s.Timezone = "UTC"
		}
	}
}

// Validate проверяет согласованность конфигурации.
func (c *Config) Validate() error {
	var errs []error

	if c.Lease.RenewInterval >= c.Lease.TTL {
		errs = append(errs, fmt.Errorf("lease.renew_interval (%s) must be less than lease.ttl (%s)",
			c.Lease.RenewInterval, c.Lease.TTL))
	}

	if len(c.Scopes) == 0 {
		errs = append(errs, errors.New("scopes: at least one scope is required"))
	}

	seen := make(map[string]bool, len(c.Scopes))
	for i, s := range c.Scopes {
		if s.ID == "" {
			errs = append(errs, fmt.Errorf("scopes[%d]: id is required", i))
			continue
		}
		if seen[s.ID] {
			errs = append(errs, fmt.Errorf("scopes[%d]: duplicate id %q", i, s.ID))
		}
		seen[s.ID] = true

		if _, err := time.LoadLocation(s.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("scopes[%d]: invalid timezone %q: %w", i, s.Timezone, err))
		}
		if err := scheduler.ValidateCronExpr(s.PollCron); err != nil {
			errs = append(errs, fmt.Errorf("scopes[%d]: poll_cron: %w", i, err))
		}
		if err := scheduler.ValidateCronExpr(s.PairingCron); err != nil {
			errs = append(errs, fmt.Errorf("scopes[%d]: pairing_cron: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

// DomainScopes возвращает scopes в виде domain.Scope.
func (c *Config) DomainScopes() []domain.Scope {
	scopes := make([]domain.Scope, len(c.Scopes))
	for i, s := range c.Scopes {
		scopes[i] = domain.Scope{
			ID:          s.ID,
			ChatID:      s.ChatID,
			Name:        s.Name,
			PollCron:    s.PollCron,
			PairingCron: s.PairingCron,
			Timezone:    s.Timezone,
		}
	}
	return scopes
}
