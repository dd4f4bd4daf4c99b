/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testRelayConfigYAML = `
relay:
  location: Edge
  rate: 120
  tickInterval: 250ms
  queue:
    overflowPolicy: drop-oldest
log:
  level: DEBUG
  file:
    rotation:
      maxSize: 10M
      maxBackups: 3
`

func TestViperAdapter_SetFromFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(fname, []byte(testRelayConfigYAML), 0o600))

	va := NewViperAdapter()
	require.NoError(t, va.SetFromFile(fname, DataTypeYAML))

	location, err := va.GetString("relay.location")
	require.NoError(t, err)
	require.Equal(t, "Edge", location)

	require.Error(t, NewViperAdapter().SetFromFile(filepath.Join(t.TempDir(), "missing.yml"), DataTypeYAML))
}

func TestViperAdapter_Getters(t *testing.T) {
	va := NewViperAdapter()
	require.NoError(t, va.SetFromReader(bytes.NewBufferString(testRelayConfigYAML), DataTypeYAML))

	rate, err := va.GetInt("relay.rate")
	require.NoError(t, err)
	require.Equal(t, 120, rate)

	tick, err := va.GetDuration("relay.tickInterval")
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, tick)

	missingDur, err := va.GetDuration("relay.missing")
	require.NoError(t, err)
	require.Zero(t, missingDur)

	policy, err := va.GetStringFromSet("relay.queue.overflowPolicy", []string{"reject-newest", "drop-oldest"}, false)
	require.NoError(t, err)
	require.Equal(t, "drop-oldest", policy)

	level, err := va.GetStringFromSet("log.level", []string{"debug", "info"}, true)
	require.NoError(t, err)
	require.Equal(t, "DEBUG", level)

	_, err = va.GetStringFromSet("log.level", []string{"debug", "info"}, false)
	require.ErrorContains(t, err, "log.level")

	maxSize, err := va.GetByteSize("log.file.rotation.maxSize")
	require.NoError(t, err)
	require.Equal(t, ByteSize(10*1024*1024), maxSize)

	maxBackups, err := va.GetByteSize("log.file.rotation.maxBackups")
	require.NoError(t, err)
	require.Equal(t, ByteSize(3), maxBackups)

	_, err = va.GetInt("relay.location")
	require.ErrorContains(t, err, "relay.location")
}

func TestViperAdapter_GetByteSize(t *testing.T) {
	va := NewViperAdapter()
	va.Set("k8s", "1Mi")
	va.Set("negative", -1)
	va.Set("bad", "lots")
	va.Set("typed", ByteSize(42))

	bs, err := va.GetByteSize("k8s")
	require.NoError(t, err)
	require.Equal(t, ByteSize(1024*1024), bs)

	bs, err = va.GetByteSize("typed")
	require.NoError(t, err)
	require.Equal(t, ByteSize(42), bs)

	bs, err = va.GetByteSize("unset")
	require.NoError(t, err)
	require.Zero(t, bs)

	_, err = va.GetByteSize("negative")
	require.ErrorContains(t, err, "negative value is not allowed")

	_, err = va.GetByteSize("bad")
	require.ErrorContains(t, err, "bad")
}

func TestKeyPrefixedDataProvider(t *testing.T) {
	var dp DataProvider = NewKeyPrefixedDataProvider(NewViperAdapter(), "relay")
	require.NoError(t, dp.SetFromReader(bytes.NewBufferString(testRelayConfigYAML), DataTypeYAML))


	location, err := dp.GetString("location")
	require.NoError(t, err)
	require.Equal(t, "Edge", location)

	dp.SetDefault("initialRate", 200)
	rate, err := dp.GetInt("initialRate")
	require.NoError(t, err)
	require.Equal(t, 200, rate)

	dp.Set("location", "Cloud")
	require.Equal(t, "Cloud", dp.Get("location"))

	require.EqualError(t, dp.WrapKeyErr("rate", os.ErrInvalid), "relay.rate: invalid argument")
}
