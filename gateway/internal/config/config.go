package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gorm.io/gorm"
)

type Config struct {
	DB *gorm.DB `toml:"-" validate:"-"`

	Prod_env bool `toml:"prod_env"`

	ProxyPath string   `toml:"proxy_path"` // used in webhook-sender
	ProxyList []string `toml:"-"`          // reads proxies from ProxyPath and fills it with

	Api struct {
		Ipv4 string `toml:"ipv4" validate:"required"`
	} `toml:"api"`

	Postgres struct {
		Host     string `validate:"required"`
		User     string `validate:"required"`
		Password string `toml:"-"`
		Db_name  string `validate:"required"`
		Port     uint16 `validate:"required"`
		Ssl_mode string
	} `toml:"postgres"`

	Nats struct {
		Servers     string   `toml:"-"`
		TomlServers []string `toml:"servers"` // empty - in-process job queue
	} `toml:"nats"`

	Chains []Chain `toml:"chains" validate:"required,min=1,dive"`
	Tokens []Token `toml:"tokens" validate:"dive"`

	Scanner   Scanner   `toml:"scanner"`
	Sweeper   Sweeper   `toml:"sweeper"`
	Webhook   Webhook   `toml:"webhook"`
	Scheduler Scheduler `toml:"scheduler"`
	Payments  Payments  `toml:"payments"`

	Secrets Secrets `toml:"-"`
}

type Chain struct {
	Name          string   `toml:"name" validate:"required"`
	RpcUrls       []string `toml:"rpc_urls" validate:"required,min=1,dive,url"`
	ChainID       uint64   `toml:"chain_id" validate:"required"`
	Confirmations uint64   `toml:"confirmations"` // 0 - scanner.confirmations
	StartBlock    uint64   `toml:"start_block"`
}

type Token struct {
	Chain    string `toml:"chain" validate:"required"`
	Address  string `toml:"address" validate:"omitempty,eth_addr"` // empty - native
	Symbol   string `toml:"symbol" validate:"required"`
	Decimals uint8  `toml:"decimals"`
	Enabled  *bool  `toml:"enabled"` // nil - enabled
}

func (t Token) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

type Scanner struct {
	BatchSize     uint64 `toml:"batch_size"`
	MaxInFlight   int    `toml:"max_in_flight"`
	Confirmations uint64 `toml:"confirmations"`
	ScanLag       uint64 `toml:"scan_lag"` // blocks behind head that are not scanned yet
}

type Sweeper struct {
	MaxAttempts      int           `toml:"max_attempts"` // 0 - retry forever
	PaymentTimeout   time.Duration `toml:"payment_timeout"`
	WaitMinedTimeout time.Duration `toml:"wait_mined_timeout"`
	TokenGasLimit    uint64        `toml:"token_gas_limit"` // fallback when estimate fails
}

type Webhook struct {
	Url            string        `toml:"url" validate:"omitempty,url"`
	Timeout        time.Duration `toml:"timeout"`
	MaxAttempts    int           `toml:"max_attempts"`
	InitialBackoff time.Duration `toml:"initial_backoff"`
	MaxBackoff     time.Duration `toml:"max_backoff"`
	BatchSize      int           `toml:"batch_size"`
}

type Scheduler struct {
	ScanInterval         time.Duration `toml:"scan_interval"`
	SweepInterval        time.Duration `toml:"sweep_interval"`
	ReapInterval         time.Duration `toml:"reap_interval"`
	WebhookRetryInterval time.Duration `toml:"webhook_retry_interval"`
	PruneInterval        time.Duration `toml:"prune_interval"`
	JobRetention         time.Duration `toml:"job_retention"`
	MaxConcurrentJobs    int           `toml:"max_concurrent_jobs"`

	Timeouts struct {
		Scan    time.Duration `toml:"scan"`
		Sweep   time.Duration `toml:"sweep"`
		Reap    time.Duration `toml:"reap"`
		Webhook time.Duration `toml:"webhook"`
		Default time.Duration `toml:"default"`
	} `toml:"timeouts"`
}

type Payments struct {
	DefaultLifetime time.Duration `toml:"default_lifetime"`
	MaxLifetime     time.Duration `toml:"max_lifetime"`
}

// read from environment
type Secrets struct {
	PostgresPassword   string `envconfig:"POSTGRES_PASSWORD"`
	NatsUser           string `envconfig:"NATS_USER"`
	NatsPassword       string `envconfig:"NATS_PASSWORD"`
	Mnemonic           string `envconfig:"MNEMONIC" validate:"required"`
	TreasuryAddress    string `envconfig:"TREASURY_ADDRESS" validate:"omitempty,eth_addr"`
	TreasuryPrivateKey string `envconfig:"TREASURY_PRIVATE_KEY"` // funds gas for token sweeps
	WebhookSecret      string `envconfig:"WEBHOOK_SECRET"`
	AdminKey           string `envconfig:"ADMIN_KEY" validate:"required,min=16"`
}

func ReadConfig() *Config {
	config, err := Load(os.Getenv("CONFIG"))
	if err != nil {
		panic(err)
	}
	return config
}

func Load(path string) (*Config, error) {
	byte_config, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config, err := Parse(string(byte_config))
	if err != nil {
		return nil, err
	}

	if err := envconfig.Process("", &config.Secrets); err != nil {
		return nil, fmt.Errorf("read secrets: %w", err)
	}
	config.Postgres.Password = config.Secrets.PostgresPassword
	config.Nats.Servers = natsServers(config.Nats.TomlServers, config.Secrets.NatsUser, config.Secrets.NatsPassword)

	// webhook proxies
	if config.ProxyPath != "" {
		config.ProxyList, err = GetProxyList(config.ProxyPath)
		if err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// decodes toml and applies defaults
func Parse(data string) (*Config, error) {
	var config Config
	if _, err := toml.Decode(data, &config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	config.SetDefaults()
	return &config, nil
}

func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	names := make(map[string]bool, len(c.Chains))
	for _, chain := range c.Chains {
		if names[chain.Name] {
			return fmt.Errorf("invalid config: duplicate chain %q", chain.Name)
		}
		names[chain.Name] = true
	}

	for _, token := range c.Tokens {
		if !names[token.Chain] {
			return fmt.Errorf("invalid config: token %s references unknown chain %q", token.Symbol, token.Chain)
		}
	}

	return nil
}

func (c *Config) SetDefaults() {
	setDefault(&c.Api.Ipv4, "0.0.0.0:8080")
	setDefault(&c.Postgres.Ssl_mode, "disable")

	setDefault(&c.Scanner.BatchSize, 20)
	setDefault(&c.Scanner.MaxInFlight, 5)
	setDefault(&c.Scanner.Confirmations, 1)

	setDefault(&c.Sweeper.PaymentTimeout, 5*time.Minute)
	setDefault(&c.Sweeper.WaitMinedTimeout, 2*time.Minute)
	setDefault(&c.Sweeper.TokenGasLimit, 100000)

	setDefault(&c.Webhook.Timeout, 10*time.Second)
	setDefault(&c.Webhook.MaxAttempts, 8)
	setDefault(&c.Webhook.InitialBackoff, 30*time.Second)
	setDefault(&c.Webhook.MaxBackoff, time.Hour)
	setDefault(&c.Webhook.BatchSize, 50)

	setDefault(&c.Scheduler.ScanInterval, 2*time.Second)
	setDefault(&c.Scheduler.SweepInterval, 30*time.Second)
	setDefault(&c.Scheduler.ReapInterval, 10*time.Second)
	setDefault(&c.Scheduler.WebhookRetryInterval, 30*time.Second)
	setDefault(&c.Scheduler.PruneInterval, 10*time.Minute)
	setDefault(&c.Scheduler.JobRetention, time.Hour)
	setDefault(&c.Scheduler.MaxConcurrentJobs, 16)
	setDefault(&c.Scheduler.Timeouts.Scan, time.Minute)
	setDefault(&c.Scheduler.Timeouts.Sweep, 10*time.Minute)
	setDefault(&c.Scheduler.Timeouts.Reap, 30*time.Second)
	setDefault(&c.Scheduler.Timeouts.Webhook, 2*time.Minute)
	setDefault(&c.Scheduler.Timeouts.Default, 5*time.Minute)

	setDefault(&c.Payments.DefaultLifetime, 30*time.Minute)
	setDefault(&c.Payments.MaxLifetime, 72*time.Hour)

	for i := range c.Tokens {
		setDefault(&c.Tokens[i].Decimals, 18)
	}
}

func (c *Config) Chain(name string) (Chain, bool) {
	for _, chain := range c.Chains {
		if chain.Name == name {
			return chain, true
		}
	}
	return Chain{}, false
}

func (c *Config) ChainNames() []string {
	names := make([]string, 0, len(c.Chains))
	for _, chain := range c.Chains {
		names = append(names, chain.Name)
	}
	return names
}

// required confirmations for the chain
func (c *Config) Confirmations(name string) uint64 {
	if chain, ok := c.Chain(name); ok && chain.Confirmations > 0 {
		return chain.Confirmations
	}
	return c.Scanner.Confirmations
}

func GetProxyList(path string) ([]string, error) {
	proxyList, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var proxies []string
	for _, line := range strings.Split(string(proxyList), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		proxies = append(proxies, line)
	}
	return proxies, nil
}

func natsServers(servers []string, user, pass string) string {
	var formatedServers []string
	for _, x := range servers {
		if user == "" {
			formatedServers = append(formatedServers, "nats://"+x)
			continue
		}
		formatedServers = append(formatedServers, fmt.Sprintf("nats://%s@%s", url.UserPassword(user, pass).String(), x))
	}
	return strings.Join(formatedServers, ",")
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}
