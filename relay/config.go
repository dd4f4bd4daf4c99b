/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package relay

import (
	"fmt"
	"time"

	"github.com/acronis/go-raterelay/config"
)

const cfgDefaultKeyPrefix = "relay"

const (
	cfgKeyServiceAddress      = "serviceAddress"
	cfgKeyControlAddress      = "controlAddress"
	cfgKeyLocation            = "location"
	cfgKeyInitialRate         = "initialRate"
	cfgKeyTickInterval        = "tickInterval"
	cfgKeyHost                = "host"
	cfgKeyQueueCapacity       = "queue.capacity"
	cfgKeyQueueOverflowPolicy = "queue.overflowPolicy"
)

// Environment variables recognized for backward compatibility with the first deployments of the service.
const (
	LegacyEnvLocation    = "AMQ_LOCATION_KEY"
	LegacyEnvInitialRate = "AMQ_INITIAL_RATE"
)

// Default values.
const (
	DefaultServiceAddress = "FraudDetection/v1"
	DefaultLocation       = "On-Stage"
	DefaultInitialRate    = 200
	DefaultTickInterval   = 500 * time.Millisecond

	// ControlAddressPrefix is followed by the location in the default control address.
	ControlAddressPrefix = "amq-demo.server-control."
)

var availableOverflowPolicies = []string{string(OverflowRejectNewest), string(OverflowDropOldest)}

// QueueConfig represents a set of configuration parameters for the request queue.
type QueueConfig struct {
	// Capacity limits the number of queued requests. Zero means unlimited.
	Capacity       int            `mapstructure:"capacity" yaml:"capacity" json:"capacity"`
	OverflowPolicy OverflowPolicy `mapstructure:"overflowPolicy" yaml:"overflowPolicy" json:"overflowPolicy"`
}

// Config represents a set of configuration parameters for the relay.
type Config struct {
	// ServiceAddress is the address work requests are received on.
	ServiceAddress string `mapstructure:"serviceAddress" yaml:"serviceAddress" json:"serviceAddress"`

	// ControlAddress is the address control messages are received on.
	// If empty, ControlAddressPrefix + Location is used.
	ControlAddress string `mapstructure:"controlAddress" yaml:"controlAddress" json:"controlAddress"`

	Location     string              `mapstructure:"location" yaml:"location" json:"location"`
	InitialRate  int                 `mapstructure:"initialRate" yaml:"initialRate" json:"initialRate"`
	TickInterval config.TimeDuration `mapstructure:"tickInterval" yaml:"tickInterval" json:"tickInterval"`

	// Host is appended to the body of every reply. If empty, os.Hostname() is used.
	Host string `mapstructure:"host" yaml:"host" json:"host"`

	Queue QueueConfig `mapstructure:"queue" yaml:"queue" json:"queue"`

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
	cfg.ServiceAddress = DefaultServiceAddress
	cfg.Location = DefaultLocation
	cfg.ControlAddress = ControlAddressPrefix + DefaultLocation
	cfg.InitialRate = DefaultInitialRate
	cfg.TickInterval = config.TimeDuration(DefaultTickInterval)
	cfg.Queue.OverflowPolicy = OverflowRejectNewest
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

// BindLegacyEnv binds AMQ_LOCATION_KEY and AMQ_INITIAL_RATE environment variables
// to the location and initial rate parameters.
func (c *Config) BindLegacyEnv(dp config.DataProvider) error {
	kp := config.NewKeyPrefixedDataProvider(dp, c.KeyPrefix())
	if err := kp.BindEnv(cfgKeyLocation, LegacyEnvLocation); err != nil {
		return err
	}
	return kp.BindEnv(cfgKeyInitialRate, LegacyEnvInitialRate)
}

// SetProviderDefaults sets default configuration values for the relay in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyServiceAddress, DefaultServiceAddress)
	dp.SetDefault(cfgKeyLocation, DefaultLocation)
	dp.SetDefault(cfgKeyInitialRate, DefaultInitialRate)
	dp.SetDefault(cfgKeyTickInterval, DefaultTickInterval.String())
	dp.SetDefault(cfgKeyQueueOverflowPolicy, string(OverflowRejectNewest))
}

// Set sets relay configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.ServiceAddress, err = dp.GetString(cfgKeyServiceAddress); err != nil {
		return err
	}
	if c.ServiceAddress == "" {
		return dp.WrapKeyErr(cfgKeyServiceAddress, fmt.Errorf("cannot be empty"))
	}

	if c.Location, err = dp.GetString(cfgKeyLocation); err != nil {
		return err
	}

	if c.ControlAddress, err = dp.GetString(cfgKeyControlAddress); err != nil {
		return err
	}
	if c.ControlAddress == "" {
		c.ControlAddress = ControlAddressPrefix + c.Location
	}
	if c.ControlAddress == c.ServiceAddress {
		return dp.WrapKeyErr(cfgKeyControlAddress, fmt.Errorf("should differ from %q", cfgKeyServiceAddress))
	}

	if c.InitialRate, err = dp.GetInt(cfgKeyInitialRate); err != nil {
		return err
	}
	if c.InitialRate <= 0 {
		return dp.WrapKeyErr(cfgKeyInitialRate, ErrInvalidRate)
	}

	if c.TickInterval, err = config.GetPositiveDuration(dp, cfgKeyTickInterval); err != nil {
		return err
	}

	if c.Host, err = dp.GetString(cfgKeyHost); err != nil {
		return err
	}

	if c.Queue.Capacity, err = config.GetNonNegativeInt(dp, cfgKeyQueueCapacity); err != nil {
		return err
	}

	var policyStr string
	if policyStr, err = dp.GetStringFromSet(cfgKeyQueueOverflowPolicy, availableOverflowPolicies, false); err != nil {
		return err
	}
	c.Queue.OverflowPolicy = OverflowPolicy(policyStr)

	return nil
}
