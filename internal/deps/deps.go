package deps

import (
	"fmt"

	"github.com/and161185/dispatch/internal/auth"
	"github.com/and161185/dispatch/internal/config"
	"github.com/and161185/dispatch/internal/events"
	"go.uber.org/zap"
)

type Deps struct {
	Logger       *zap.SugaredLogger
	TokenManager *auth.TokenManager
	Events       *events.Log
}

// NewDependencies builds the shared components. The trace sink is only
// opened when a path is configured.
func NewDependencies(cfg *config.Config) (*Deps, error) {
	var trace *zap.Logger
	if cfg.TraceLogPath != "" {
		var err error
		trace, err = events.NewTraceLogger(cfg.TraceLogPath)
		if err != nil {
			return nil, fmt.Errorf("open trace log: %w", err)
		}
	}

	deps := Deps{
		Logger:       cfg.Logger,
		TokenManager: auth.NewTokenManager(cfg.SecretKey, auth.DefaultTTL),
		Events:       events.New(cfg.Logger.Desugar(), trace),
	}

	return &deps, nil
}
