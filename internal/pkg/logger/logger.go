// Package logger builds the process-wide zap logger. The logger is
// constructed once in main and injected everywhere; nothing in this
// repository logs through a package-level global.
package logger

import (
	"go.uber.org/zap"
)

// New returns a zap logger configured for the given environment.
// "production" gets JSON output at info level; everything else gets the
// development console encoder at debug level.
func New(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// NewNamed returns a logger for the given environment tagged with the
// service name on every entry.
func NewNamed(env, service string) (*zap.Logger, error) {
	log, err := New(env)
	if err != nil {
		return nil, err
	}
	return log.With(zap.String("service", service)), nil
}
