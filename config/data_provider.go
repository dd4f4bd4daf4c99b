/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// DataType is a type of data format in which configuration may be described.
type DataType string

// Supported data formats.
const (
	DataTypeYAML DataType = "yaml"
	DataTypeJSON DataType = "json"
)

// DataProvider is an interface for providing configuration data
// from different sources (files, reader, environment variables).
type DataProvider interface {
	UseEnvVars(prefix string)
	BindEnv(key string, envVars ...string) error

	Set(key string, value interface{})
	SetDefault(key string, value interface{})

	SetFromFile(path string, dataType DataType) error
	SetFromReader(reader io.Reader, dataType DataType) error

	Get(key string) interface{}
	GetBool(key string) (bool, error)
	GetInt(key string) (int, error)
	GetString(key string) (string, error)
	GetStringFromSet(key string, set []string, ignoreCase bool) (string, error)
	GetDuration(key string) (time.Duration, error)
	GetByteSize(key string) (ByteSize, error)

	WrapKeyErr(key string, err error) error
}

// Validation errors shared by configuration objects.
var (
	ErrNotPositive = errors.New("should be positive")
	ErrNegative    = errors.New("should be >= 0")
)

// WrapKeyErrIfNeeded wraps error adding information about a key where this error occurs.
// If error is nil, it does nothing.
func WrapKeyErrIfNeeded(key string, err error) error {
	if err == nil {
		return nil
	}
	return WrapKeyErr(key, err)
}

// WrapKeyErr wraps error adding information about a key where this error occurs.
func WrapKeyErr(key string, err error) error {
	return fmt.Errorf("%s: %w", key, err)
}

// GetPositiveInt reads an int value and fails with ErrNotPositive if it is <= 0.
func GetPositiveInt(dp DataProvider, key string) (int, error) {
	return getChecked(dp, key, dp.GetInt, func(v int) bool { return v > 0 }, ErrNotPositive)
}

// GetNonNegativeInt reads an int value and fails with ErrNegative if it is < 0.
func GetNonNegativeInt(dp DataProvider, key string) (int, error) {
	return getChecked(dp, key, dp.GetInt, func(v int) bool { return v >= 0 }, ErrNegative)
}

// GetPositiveDuration reads a duration value and fails with ErrNotPositive if it is <= 0.
func GetPositiveDuration(dp DataProvider, key string) (TimeDuration, error) {
	d, err := getChecked(dp, key, dp.GetDuration, func(v time.Duration) bool { return v > 0 }, ErrNotPositive)
	return TimeDuration(d), err
}

// GetNonNegativeDuration reads a duration value and fails with ErrNegative if it is < 0.
func GetNonNegativeDuration(dp DataProvider, key string) (TimeDuration, error) {
	d, err := getChecked(dp, key, dp.GetDuration, func(v time.Duration) bool { return v >= 0 }, ErrNegative)
	return TimeDuration(d), err
}

func getChecked[T int | time.Duration](
	dp DataProvider, key string, get func(string) (T, error), valid func(T) bool, invalidErr error,
) (T, error) {
	v, err := get(key)
	if err != nil {
		return v, err
	}
	if !valid(v) {
		return v, dp.WrapKeyErr(key, invalidErr)
	}
	return v, nil
}
