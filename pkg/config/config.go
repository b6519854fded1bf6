// Package config loads environment-based configuration into typed structs.
//
// Each package declares its own Config struct with `env` tags; the loader
// parses process environment variables into it, reading a .env file once if
// one is present. There is no package-level mutable configuration anywhere in
// the application: every component receives its Config explicitly at
// construction time.
package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// ErrNilPointer is returned when a nil pointer is passed to Load.
	ErrNilPointer = errors.New("config: nil pointer provided")

	// ErrParsing is returned when environment variables cannot be parsed
	// into the target struct.
	ErrParsing = errors.New("config: failed to parse environment")
)

var dotenvOnce sync.Once

// Load parses environment variables into the provided configuration struct.
// A .env file in the working directory is loaded once per process; a missing
// file is not an error.
func Load[T any](v *T) error {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})

	if v == nil {
		return ErrNilPointer
	}

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsing, err)
	}

	return nil
}

// MustLoad works like Load but panics on failure. Intended for configuration
// the application cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}
