/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

type testBrokerConfig struct {
	Address string
}

func (c *testBrokerConfig) SetProviderDefaults(dp DataProvider) {
	dp.SetDefault("broker.address", "127.0.0.1:6379")
}

func (c *testBrokerConfig) Set(dp DataProvider) error {
	var err error
	c.Address, err = dp.GetString("broker.address")
	return err
}

type testRelayConfig struct {
	Location string
	Rate     int
}

func (c *testRelayConfig) KeyPrefix() string {
	return "relay"
}

func (c *testRelayConfig) SetProviderDefaults(dp DataProvider) {
	dp.SetDefault("location", "On-Stage")
	dp.SetDefault("rate", 200)
}

func (c *testRelayConfig) Set(dp DataProvider) error {
	var err error
	if c.Location, err = dp.GetString("location"); err != nil {
		return err
	}
	c.Rate, err = dp.GetInt("rate")
	return err
}

type testAppConfig struct {
	Broker *testBrokerConfig
	Relay  *testRelayConfig
	Unused *testRelayConfig
}

func (c *testAppConfig) SetProviderDefaults(dp DataProvider) {
	CallSetProviderDefaultsForFields(c, dp)
}

func (c *testAppConfig) Set(dp DataProvider) error {
	return CallSetForFields(c, dp)
}

func TestLoader_LoadFromReader(t *testing.T) {
	t.Run("load config, use defaults", func(t *testing.T) {
		brokerCfg := &testBrokerConfig{}
		err := NewLoader(NewViperAdapter()).LoadFromReader(bytes.NewBufferString(`{}`), DataTypeJSON, brokerCfg)
		require.NoError(t, err)
		require.Equal(t, "127.0.0.1:6379", brokerCfg.Address)
	})

	t.Run("load config", func(t *testing.T) {
		brokerCfg := &testBrokerConfig{}
		err := NewLoader(NewViperAdapter()).LoadFromReader(
			bytes.NewBufferString(`{"broker":{"address":"redis:6379"}}`), DataTypeJSON, brokerCfg)
		require.NoError(t, err)
		require.Equal(t, "redis:6379", brokerCfg.Address)
	})

	t.Run("load config, use key prefix", func(t *testing.T) {
		relayCfg := &testRelayConfig{}
		err := NewLoader(NewViperAdapter()).LoadFromReader(
			bytes.NewBufferString("relay:\n  location: Edge\n  rate: 50\n"), DataTypeYAML, relayCfg)
		require.NoError(t, err)
		require.Equal(t, "Edge", relayCfg.Location)
		require.Equal(t, 50, relayCfg.Rate)
	})

	t.Run("load composite config, nil fields are skipped", func(t *testing.T) {
		appCfg := &testAppConfig{Broker: &testBrokerConfig{}, Relay: &testRelayConfig{}}
		err := NewLoader(NewViperAdapter()).LoadFromReader(
			bytes.NewBufferString("relay:\n  rate: 10\n"), DataTypeYAML, appCfg)
		require.NoError(t, err)
		require.Equal(t, "127.0.0.1:6379", appCfg.Broker.Address)
		require.Equal(t, "On-Stage", appCfg.Relay.Location)
		require.Equal(t, 10, appCfg.Relay.Rate)
		require.Nil(t, appCfg.Unused)
	})

	t.Run("error in value", func(t *testing.T) {
		relayCfg := &testRelayConfig{}
		err := NewLoader(NewViperAdapter()).LoadFromReader(
			bytes.NewBufferString("relay:\n  rate: fast\n"), DataTypeYAML, relayCfg)
		require.ErrorContains(t, err, "relay.rate")
	})
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Run("prefixed env vars", func(t *testing.T) {
		t.Setenv("RATERELAY_RELAY_LOCATION", "Cloud")
		t.Setenv("RATERELAY_RELAY_RATE", "30")

		relayCfg := &testRelayConfig{}
		require.NoError(t, NewDefaultLoader("raterelay").LoadFromEnv(relayCfg))
		require.Equal(t, "Cloud", relayCfg.Location)
		require.Equal(t, 30, relayCfg.Rate)
	})

	t.Run("bound legacy env vars", func(t *testing.T) {
		t.Setenv("AMQ_INITIAL_RATE", "44")

		loader := NewDefaultLoader("raterelay")
		require.NoError(t, NewKeyPrefixedDataProvider(loader.DataProvider, "relay").BindEnv("rate", "AMQ_INITIAL_RATE"))

		relayCfg := &testRelayConfig{}
		require.NoError(t, loader.LoadFromEnv(relayCfg))
		require.Equal(t, 44, relayCfg.Rate)
		require.Equal(t, "On-Stage", relayCfg.Location)
	})
}
