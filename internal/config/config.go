package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"github.com/kursadbilgin/outreach-engine/internal/provider"
)

const (
	DeliveryProviderSMTP = "smtp"
	DeliveryProviderHTTP = "http"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`
	APIPort     int    `env:"API_PORT,default=8080"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	DeliveryProvider string `env:"DELIVERY_PROVIDER,default=smtp"`
	SMTPHost         string `env:"SMTP_HOST"`
	SMTPPort         int    `env:"SMTP_PORT,default=587"`
	SMTPUser         string `env:"SMTP_USER"`
	SMTPPassword     string `env:"SMTP_PASSWORD"`
	MailAPIURL       string `env:"MAIL_API_URL"`
	SenderEmail      string `env:"SENDER_EMAIL"`
	SenderName       string `env:"SENDER_NAME"`

	DailySendLimit int  `env:"DAILY_SEND_LIMIT,default=50"`
	WarmupEnabled  bool `env:"WARMUP_ENABLED,default=true"`
	SendDelayMS    int  `env:"SEND_DELAY_MS,default=2000"`

	BusinessName          string `env:"BUSINESS_NAME"`
	BusinessPostalAddress string `env:"BUSINESS_POSTAL_ADDRESS"`
	UnsubscribeMessage    string `env:"UNSUBSCRIBE_MESSAGE"`

	ReplyWorkerConcurrency int `env:"REPLY_WORKER_CONCURRENCY,default=4"`
	WarmupCheckIntervalSec int `env:"WARMUP_CHECK_INTERVAL_SEC,default=300"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.DeliveryProvider = strings.ToLower(strings.TrimSpace(cfg.DeliveryProvider))
	if cfg.DeliveryProvider != DeliveryProviderSMTP && cfg.DeliveryProvider != DeliveryProviderHTTP {
		return nil, fmt.Errorf("failed to load config: unsupported DELIVERY_PROVIDER %q", cfg.DeliveryProvider)
	}

	return &cfg, nil
}

// SendDelay is the fixed pause between two deliveries in a batch.
func (c *Config) SendDelay() time.Duration {
	if c.SendDelayMS <= 0 {
		return 0
	}
	return time.Duration(c.SendDelayMS) * time.Millisecond
}

func (c *Config) WarmupCheckInterval() time.Duration {
	if c.WarmupCheckIntervalSec <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.WarmupCheckIntervalSec) * time.Second
}

func (c *Config) Sender() domain.SenderAccount {
	return domain.SenderAccount{
		Email: strings.TrimSpace(c.SenderEmail),
		Name:  strings.TrimSpace(c.SenderName),
	}
}

func (c *Config) Profile() domain.BusinessProfile {
	return domain.BusinessProfile{
		Name:               strings.TrimSpace(c.BusinessName),
		PostalAddress:      strings.TrimSpace(c.BusinessPostalAddress),
		UnsubscribeMessage: strings.TrimSpace(c.UnsubscribeMessage),
	}
}

func (c *Config) SMTP() provider.SMTPConfig {
	return provider.SMTPConfig{
		Host:     strings.TrimSpace(c.SMTPHost),
		Port:     c.SMTPPort,
		Username: c.SMTPUser,
		Password: c.SMTPPassword,
	}
}
