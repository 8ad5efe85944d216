package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate runs struct-tag validation (go-playground/validator) plus the
// handful of checks that don't express well as tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("config validation failed: server.port %d out of range", cfg.Server.Port)
	}
	if cfg.Consolidation.MaxNotes <= 0 {
		return fmt.Errorf("config validation failed: consolidation.max_notes must be positive")
	}
	return nil
}
