package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/merchant"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/domain"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"

	ModeInline = "inline"
	ModeKafka  = "kafka"
)

type Config struct {
	Service   string                   `mapstructure:"service"`
	LogLevel  string                   `mapstructure:"log_level"`
	HTTPAddr  string                   `mapstructure:"http_addr"`
	GRPCAddr  string                   `mapstructure:"grpc_addr"`
	Store     StoreConfig              `mapstructure:"store"`
	Kafka     KafkaConfig              `mapstructure:"kafka"`
	Redis     RedisConfig              `mapstructure:"redis"`
	Tracing   TracingConfig            `mapstructure:"tracing"`
	Provider  ProviderConfig           `mapstructure:"provider"`
	Accounts  map[string]AccountConfig `mapstructure:"accounts"`
	Fees      FeeConfig                `mapstructure:"fees"`
	Session   SessionConfig            `mapstructure:"session"`
	Reconcile ReconcileConfig          `mapstructure:"reconcile"`
	Webhook   WebhookConfig            `mapstructure:"webhook"`
	Outbox    OutboxConfig             `mapstructure:"outbox"`
}

type StoreConfig struct {
	Driver      string `mapstructure:"driver"`
	PostgresURL string `mapstructure:"postgres_url"`
	SQLitePath  string `mapstructure:"sqlite_path"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	OutboxTopic    string   `mapstructure:"outbox_topic"`
	ReconcileTopic string   `mapstructure:"reconcile_topic"`
	ConsumerGroup  string   `mapstructure:"consumer_group"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	DedupTTL time.Duration `mapstructure:"dedup_ttl"`
}

type TracingConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

type ProviderConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIVersion string        `mapstructure:"api_version"`
	NotifyURL  string        `mapstructure:"notify_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type AccountConfig struct {
	Key          string `mapstructure:"key"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

type FeeConfig struct {
	Base       string            `mapstructure:"base"`
	Dependents map[string]string `mapstructure:"dependents"`
}

type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type ReconcileConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	Concurrency int           `mapstructure:"concurrency"`
	Mode        string        `mapstructure:"mode"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
	MaxRetries  int           `mapstructure:"max_retries"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
}

type WebhookConfig struct {
	VerifySignature bool          `mapstructure:"verify_signature"`
	Tolerance       time.Duration `mapstructure:"tolerance"`
}

type OutboxConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
	Lease     time.Duration `mapstructure:"lease"`
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.PostgresURL == "" {
			errs = append(errs, errors.New("store.postgres_url is required for the postgres driver"))
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for the sqlite driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of postgres, sqlite, memory", c.Store.Driver))
	}

	switch c.Reconcile.Mode {
	case ModeInline:
	case ModeKafka:
		if len(c.Kafka.Brokers) == 0 || c.Kafka.ReconcileTopic == "" {
			errs = append(errs, errors.New("kafka.brokers and kafka.reconcile_topic are required in kafka mode"))
		}
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required in kafka mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("reconcile.mode %q is not one of inline, kafka", c.Reconcile.Mode))
	}

	if c.Fees.Base == "" {
		errs = append(errs, errors.New("fees.base is required"))
	}
	policy := c.FeePolicy()
	for fee := range c.Accounts {
		if !policy.Known(domain.FeeType(fee)) {
			errs = append(errs, fmt.Errorf("accounts.%s is not a configured fee type", fee))
		}
	}
	for _, fee := range append([]domain.FeeType{policy.Base}, keys(policy.Dependents)...) {
		if _, ok := c.Accounts[string(fee)]; !ok {
			errs = append(errs, fmt.Errorf("no merchant account configured for fee type %s", fee))
		}
	}
	for fee, prereq := range policy.Dependents {
		if !policy.Known(prereq) {
			errs = append(errs, fmt.Errorf("fees.dependents.%s requires unknown fee type %s", fee, prereq))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) FeePolicy() domain.FeePolicy {
	p := domain.FeePolicy{
		Base:       domain.NormalizeFeeType(c.Fees.Base),
		Dependents: make(map[domain.FeeType]domain.FeeType, len(c.Fees.Dependents)),
	}
	for fee, prereq := range c.Fees.Dependents {
		p.Dependents[domain.NormalizeFeeType(fee)] = domain.NormalizeFeeType(prereq)
	}
	return p
}

func (c *Config) MerchantAccounts() map[domain.FeeType]merchant.Account {
	out := make(map[domain.FeeType]merchant.Account, len(c.Accounts))
	for fee, a := range c.Accounts {
		out[domain.NormalizeFeeType(fee)] = merchant.Account{
			Key: a.Key,
			Credentials: merchant.Credentials{
				ClientID:     a.ClientID,
				ClientSecret: a.ClientSecret,
			},
		}
	}
	return out
}

// normalize upper-cases fee type keys; viper lower-cases every map key.
func (c *Config) normalize() {
	accounts := make(map[string]AccountConfig, len(c.Accounts))
	for fee, a := range c.Accounts {
		if a.ClientID == "" && a.ClientSecret == "" && a.Key == "" {
			continue
		}
		accounts[string(domain.NormalizeFeeType(fee))] = a
	}
	c.Accounts = accounts
	c.Fees.Base = string(domain.NormalizeFeeType(c.Fees.Base))
	if c.Fees.Dependents == nil {
		c.Fees.Dependents = map[string]string{"COLLEGE": "SKILL"}
	}
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.Reconcile.Mode = strings.ToLower(strings.TrimSpace(c.Reconcile.Mode))

	brokers := c.Kafka.Brokers[:0]
	for _, b := range c.Kafka.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	c.Kafka.Brokers = brokers
}

func keys(m map[domain.FeeType]domain.FeeType) []domain.FeeType {
	out := make([]domain.FeeType, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
