package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process configuration, loaded from YAML with ${ENV_VAR}
// placeholders expanded. Every field has a default so the service also runs
// from environment variables alone.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Webhook struct {
		URL           string  `yaml:"url"`
		Token         string  `yaml:"token"`
		RatePerSecond float64 `yaml:"rate_per_second"`
		Burst         int     `yaml:"burst"`
		MaxRetries    int     `yaml:"max_retries"`
	} `yaml:"webhook"`

	Jobs struct {
		Timezone            string `yaml:"timezone"`
		DailyHour           int    `yaml:"daily_hour"`
		DailyMinute         int    `yaml:"daily_minute"`
		CheckIntervalSecs   int    `yaml:"check_interval_seconds"`
		ContractNoticeDays  int    `yaml:"contract_notice_days"`
		InvoiceOverdueDays  int    `yaml:"invoice_overdue_days"`
	} `yaml:"jobs"`

	Availability struct {
		MaxConcurrentReturns  int `yaml:"max_concurrent_returns"`
		ReturnDurationMinutes int `yaml:"return_duration_minutes"`
		BufferMinutes         int `yaml:"buffer_minutes"`
	} `yaml:"availability"`
}

// Load reads the config file at path, falling back to configs/config.yaml.
// A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyDefaults()
			return &cfg, nil
		}
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = os.Getenv("PORT")
	}
	if c.Server.Port == "" {
		c.Server.Port = "8000"
	}
	if c.Webhook.URL == "" {
		c.Webhook.URL = os.Getenv("WEBHOOK_URL")
	}
	if c.Webhook.Token == "" {
		c.Webhook.Token = os.Getenv("WEBHOOK_TOKEN")
	}
	if c.Webhook.RatePerSecond <= 0 {
		c.Webhook.RatePerSecond = 5
	}
	if c.Webhook.Burst <= 0 {
		c.Webhook.Burst = 10
	}
	if c.Webhook.MaxRetries <= 0 {
		c.Webhook.MaxRetries = 3
	}
	if c.Jobs.Timezone == "" {
		c.Jobs.Timezone = "UTC"
	}
	if c.Jobs.DailyHour == 0 && c.Jobs.DailyMinute == 0 {
		c.Jobs.DailyHour = 8
	}
	if c.Jobs.CheckIntervalSecs <= 0 {
		c.Jobs.CheckIntervalSecs = 60
	}
	if c.Jobs.ContractNoticeDays <= 0 {
		c.Jobs.ContractNoticeDays = 3
	}
	if c.Jobs.InvoiceOverdueDays <= 0 {
		c.Jobs.InvoiceOverdueDays = 1
	}
}

// CheckInterval returns how often the job scheduler wakes up.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Jobs.CheckIntervalSecs) * time.Second
}
