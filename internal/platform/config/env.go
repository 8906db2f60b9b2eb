// Package config loads process configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseAndValidate loads target from the environment and then checks its
// `validate` struct tags.
func ParseAndValidate(target any) error {
	if err := ParseEnv(target); err != nil {
		return err
	}
	return Validate(target)
}
