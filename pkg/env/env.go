// Package env reads process environment values with defaults, for the
// few knobs that must resolve before config loading.
package env

import "os"

// Get returns the named variable's value, or fallback when it is unset
// or empty.
func Get(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	return val
}
