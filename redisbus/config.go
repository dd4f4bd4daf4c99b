/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package redisbus

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/acronis/go-raterelay/config"
)

const cfgDefaultKeyPrefix = "bus"

const (
	cfgKeyHost                   = "host"
	cfgKeyPort                   = "port"
	cfgKeyPassword               = "password"
	cfgKeyDB                     = "db"
	cfgKeyGroup                  = "group"
	cfgKeyConsumer               = "consumer"
	cfgKeyBlockTimeout           = "blockTimeout"
	cfgKeyBatchSize              = "batchSize"
	cfgKeyMaxLen                 = "maxLen"
	cfgKeyClaimMinIdle           = "claimMinIdle"
	cfgKeyConnectRetryAttempts   = "connect.retryAttempts"
	cfgKeyConnectInitialInterval = "connect.initialInterval"
)

// LegacyEnvHost is the environment variable recognized for backward compatibility with the first deployments of the service.
const LegacyEnvHost = "MESSAGING_SERVICE_HOST"

// Default values.
const (
	DefaultHost                   = "127.0.0.1"
	DefaultPort                   = 6379
	DefaultGroup                  = "raterelay"
	DefaultBlockTimeout           = time.Second
	DefaultBatchSize              = 10
	DefaultMaxLen                 = 10000
	DefaultClaimMinIdle           = 30 * time.Second
	DefaultConnectRetryAttempts   = 5
	DefaultConnectInitialInterval = 200 * time.Millisecond
)

// ConnectConfig represents a set of configuration parameters for establishing the connection.
type ConnectConfig struct {
	RetryAttempts   int                 `mapstructure:"retryAttempts" yaml:"retryAttempts" json:"retryAttempts"`
	InitialInterval config.TimeDuration `mapstructure:"initialInterval" yaml:"initialInterval" json:"initialInterval"`
}

// Config represents a set of configuration parameters for the Redis Streams bus.
type Config struct {
	Host     string `mapstructure:"host" yaml:"host" json:"host"`
	Port     int    `mapstructure:"port" yaml:"port" json:"port"`
	Password string `mapstructure:"password" yaml:"password" json:"password"`
	DB       int    `mapstructure:"db" yaml:"db" json:"db"`

	// Group is the consumer group all relay instances share, so each request is delivered to one instance only.
	Group string `mapstructure:"group" yaml:"group" json:"group"`

	// Consumer is the name of the consumer within the group. If empty, a unique one is generated.
	Consumer string `mapstructure:"consumer" yaml:"consumer" json:"consumer"`

	BlockTimeout config.TimeDuration `mapstructure:"blockTimeout" yaml:"blockTimeout" json:"blockTimeout"`
	BatchSize    int                 `mapstructure:"batchSize" yaml:"batchSize" json:"batchSize"`

	// MaxLen caps (approximately) the length of every stream the bus sends to. Zero means no cap.
	MaxLen int64 `mapstructure:"maxLen" yaml:"maxLen" json:"maxLen"`

	// ClaimMinIdle is how long a message may stay unacknowledged by another consumer
	// before it is claimed on start. Zero disables claiming.
	ClaimMinIdle config.TimeDuration `mapstructure:"claimMinIdle" yaml:"claimMinIdle" json:"claimMinIdle"`

	Connect ConnectConfig `mapstructure:"connect" yaml:"connect" json:"connect"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig(options ...ConfigOption) *Config {
	cfg := NewConfig(options...)
	cfg.Host = DefaultHost
	cfg.Port = DefaultPort
	cfg.Group = DefaultGroup
	cfg.BlockTimeout = config.TimeDuration(DefaultBlockTimeout)
	cfg.BatchSize = DefaultBatchSize
	cfg.MaxLen = DefaultMaxLen
	cfg.ClaimMinIdle = config.TimeDuration(DefaultClaimMinIdle)
	cfg.Connect.RetryAttempts = DefaultConnectRetryAttempts
	cfg.Connect.InitialInterval = config.TimeDuration(DefaultConnectInitialInterval)
	return cfg
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// Address returns the address of the Redis server in host:port form.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// BindLegacyEnv binds MESSAGING_SERVICE_HOST environment variable to the host parameter.
func (c *Config) BindLegacyEnv(dp config.DataProvider) error {
	return config.NewKeyPrefixedDataProvider(dp, c.KeyPrefix()).BindEnv(cfgKeyHost, LegacyEnvHost)
}

// SetProviderDefaults sets default configuration values for the bus in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyHost, DefaultHost)
	dp.SetDefault(cfgKeyPort, DefaultPort)
	dp.SetDefault(cfgKeyGroup, DefaultGroup)
	dp.SetDefault(cfgKeyBlockTimeout, DefaultBlockTimeout.String())
	dp.SetDefault(cfgKeyBatchSize, DefaultBatchSize)
	dp.SetDefault(cfgKeyMaxLen, DefaultMaxLen)
	dp.SetDefault(cfgKeyClaimMinIdle, DefaultClaimMinIdle.String())
	dp.SetDefault(cfgKeyConnectRetryAttempts, DefaultConnectRetryAttempts)
	dp.SetDefault(cfgKeyConnectInitialInterval, DefaultConnectInitialInterval.String())
}

// Set sets bus configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.Host, err = dp.GetString(cfgKeyHost); err != nil {
		return err
	}
	if c.Host == "" {
		return dp.WrapKeyErr(cfgKeyHost, fmt.Errorf("cannot be empty"))
	}
	if c.Port, err = dp.GetInt(cfgKeyPort); err != nil {
		return err
	}
	if c.Port <= 0 || c.Port > 65535 {
		return dp.WrapKeyErr(cfgKeyPort, fmt.Errorf("should be in range [1, 65535]"))
	}
	if c.Password, err = dp.GetString(cfgKeyPassword); err != nil {
		return err
	}
	if c.DB, err = config.GetNonNegativeInt(dp, cfgKeyDB); err != nil {
		return err
	}

	if c.Group, err = dp.GetString(cfgKeyGroup); err != nil {
		return err
	}
	if c.Group == "" {
		return dp.WrapKeyErr(cfgKeyGroup, fmt.Errorf("cannot be empty"))
	}
	if c.Consumer, err = dp.GetString(cfgKeyConsumer); err != nil {
		return err
	}

	var d time.Duration
	if d, err = dp.GetDuration(cfgKeyBlockTimeout); err != nil {
		return err
	}
	if d < time.Millisecond {
		return dp.WrapKeyErr(cfgKeyBlockTimeout, fmt.Errorf("should be >= 1ms"))
	}
	c.BlockTimeout = config.TimeDuration(d)

	if c.BatchSize, err = config.GetPositiveInt(dp, cfgKeyBatchSize); err != nil {
		return err
	}

	var maxLen int
	if maxLen, err = config.GetNonNegativeInt(dp, cfgKeyMaxLen); err != nil {
		return err
	}
	c.MaxLen = int64(maxLen)

	if c.ClaimMinIdle, err = config.GetNonNegativeDuration(dp, cfgKeyClaimMinIdle); err != nil {
		return err
	}

	return c.setConnectConfig(dp)
}

func (c *Config) setConnectConfig(dp config.DataProvider) error {
	var err error
	if c.Connect.RetryAttempts, err = config.GetNonNegativeInt(dp, cfgKeyConnectRetryAttempts); err != nil {
		return err
	}
	c.Connect.InitialInterval, err = config.GetPositiveDuration(dp, cfgKeyConnectInitialInterval)
	return err
}
