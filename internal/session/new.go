package session

import (
	"time"

	"github.com/jvreeland/questlog/internal/config"
	"github.com/jvreeland/questlog/internal/logger"
	"github.com/jvreeland/questlog/internal/provider"
	"github.com/jvreeland/questlog/pkg/executor"
)

const defaultStableDelay = 2 * time.Second

type implPipeline struct {
	cfg         *config.Config
	logger      logger.Logger
	executor    executor.Executor
	provider    provider.Provider
	poster      RecapPoster
	stableDelay time.Duration
}

// New creates a session processing pipeline.
func New(cfg *config.Config, log logger.Logger, exec executor.Executor, prov provider.Provider, poster RecapPoster) Pipeline {
	return &implPipeline{
		cfg:         cfg,
		logger:      log,
		executor:    exec,
		provider:    prov,
		poster:      poster,
		stableDelay: defaultStableDelay,
	}
}
