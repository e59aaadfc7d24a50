// Package config is the thin env-to-struct layer the bridge's typed
// configuration sits on. Struct fields declare their variable name, default,
// and separator through `env` tags; caarlos0/env does the parsing, including
// time.Duration, slices, and the kid:hexkey map the keyring uses.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load fills cfg from the process environment. cfg must be a pointer to a
// struct carrying `env` tags; semantic validation (port ranges, key lengths)
// stays with the caller.
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
