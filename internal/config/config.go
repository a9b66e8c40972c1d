package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	LLM      LLMConfig      `yaml:"llm"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Digest   DigestConfig   `yaml:"digest"`
	LogLevel string         `yaml:"log_level"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// RabbitMQConfig wires the optional digest-event publisher. An empty
// URL disables publishing entirely.
type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

// LLMConfig describes the OpenAI-compatible chat-completions endpoint
// used for digest generation.
type LLMConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

// FetchConfig bounds a single feed poll.
type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxRedirects int           `yaml:"max_redirects"`
	Retries      int           `yaml:"retries"`
	Backoff      time.Duration `yaml:"backoff"`
}

// DigestConfig tunes article collection and prompt construction.
// The values are reasonable defaults, not protocol requirements.
type DigestConfig struct {
	RecencyWindow   time.Duration `yaml:"recency_window"`
	MaxPerFeed      int           `yaml:"max_per_feed"`
	MaxArticleChars int           `yaml:"max_article_chars"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "news_digest"
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "digests"
	}
	if c.RabbitMQ.QueueName == "" {
		c.RabbitMQ.QueueName = "digest_events"
	}
	if c.LLM.Endpoint == "" {
		c.LLM.Endpoint = "https://api.openai.com/v1/chat/completions"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 60 * time.Second
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 15 * time.Second
	}
	if c.Fetch.MaxRedirects == 0 {
		c.Fetch.MaxRedirects = 5
	}
	if c.Fetch.Retries == 0 {
		c.Fetch.Retries = 2
	}
	if c.Fetch.Backoff == 0 {
		c.Fetch.Backoff = 1 * time.Second
	}
	if c.Digest.RecencyWindow == 0 {
		c.Digest.RecencyWindow = 24 * time.Hour
	}
	if c.Digest.MaxPerFeed == 0 {
		c.Digest.MaxPerFeed = 10
	}
	if c.Digest.MaxArticleChars == 0 {
		c.Digest.MaxArticleChars = 2000
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
