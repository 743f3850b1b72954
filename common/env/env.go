// Package env provides small, panic-free helpers for reading typed
// configuration values out of the process environment.
package env

import (
	"os"
	"strconv"
)

// String returns the environment variable named by key, or def if unset.
func String(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

// Int returns the environment variable named by key parsed as an int, or def
// if unset or unparsable.
func Int(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Float64 returns the environment variable named by key parsed as a float64,
// or def if unset or unparsable.
func Float64(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// Bool returns the environment variable named by key parsed as a bool, or def
// if unset or unparsable.
func Bool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
