package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	NATS      NATSConfig      `yaml:"nats"`
	Store     StoreConfig     `yaml:"store"`
	Executor  ExecutorConfig  `yaml:"executor"`
	Tracker   TrackerConfig   `yaml:"tracker"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Web       WebConfig       `yaml:"web"`
	Notify    NotifyConfig    `yaml:"notify"`
	Vault     VaultConfig     `yaml:"vault"`
	Roster    []AgentConfig   `yaml:"roster"`
}

// AgentConfig describes one specialist agent in the roster. Order in the
// config file is significant: selection ties are broken by declaration order.
type AgentConfig struct {
	Role            string   `yaml:"role"`
	Name            string   `yaml:"name"`
	Confidence      float64  `yaml:"confidence"`
	Specializations []string `yaml:"specializations"`
	Collaborators   []string `yaml:"collaborators"`
}

type NATSConfig struct {
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type ExecutorConfig struct {
	CallTimeout time.Duration `yaml:"call_timeout"`
	HaltOnError bool          `yaml:"halt_on_error"`
}

type TrackerConfig struct {
	Retention  time.Duration `yaml:"retention"`
	SweepEvery time.Duration `yaml:"sweep_every"`
}

type SchedulerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Auth    string `yaml:"auth"`
}

type NotifyConfig struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
}

type VaultConfig struct {
	Passphrase string `yaml:"passphrase"`
}

func defaults() Config {
	return Config{
		NATS: NATSConfig{
			Port:    4222,
			DataDir: "data/nats",
		},
		Store: StoreConfig{
			Path: "data/aetherflow.db",
		},
		Executor: ExecutorConfig{
			CallTimeout: 2 * time.Minute,
			HaltOnError: false,
		},
		Tracker: TrackerConfig{
			Retention:  24 * time.Hour,
			SweepEvery: 10 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			PollInterval: 30 * time.Second,
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8080,
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("AETHERFLOW_CONFIG")
	if path == "" {
		path = "config/aetherflow.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		// Expand environment variables in YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	applyEnv(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("AETHERFLOW_NATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.NATS.Port = port
		}
	}
	if v := os.Getenv("AETHERFLOW_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("AETHERFLOW_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("AETHERFLOW_WEB_TOKEN"); v != "" {
		cfg.Web.Auth = v
	}
	if v := os.Getenv("AETHERFLOW_TELEGRAM_TOKEN"); v != "" {
		cfg.Notify.TelegramToken = v
	}
	if v := os.Getenv("AETHERFLOW_TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Notify.TelegramChatID = id
		}
	}
	if v := os.Getenv("AETHERFLOW_VAULT_PASSPHRASE"); v != "" {
		cfg.Vault.Passphrase = v
	}
	if v := os.Getenv("AETHERFLOW_CALL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Executor.CallTimeout = d
		}
	}
}
