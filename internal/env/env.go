// Package env reads process environment variables with typed defaults,
// used for the handful of bootstrap settings (logging, theme) needed before
// the CLI flag set and config file are parsed.
package env

import (
	"os"
	"strconv"
)

// GetEnvOrDefault returns the value of key, or def if key is unset or empty.
func GetEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// GetEnvBoolOrDefault parses key as a bool, or returns def if key is unset
// or not parseable.
func GetEnvBoolOrDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// GetEnvIntOrDefault parses key as an int, or returns def if key is unset
// or not parseable.
func GetEnvIntOrDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
