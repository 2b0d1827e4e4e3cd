package temporalx

import (
	"context"
	"fmt"
	"time"

	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/rodrick-mpofu/teachback-ai/internal/logger"
)

// Dial connects to Temporal, retrying with capped exponential backoff until
// DialMaxWait elapses. It returns (nil, nil) when cfg has no address.
func Dial(ctx context.Context, cfg Config, log *logger.Logger) (temporalsdkclient.Client, error) {
	cfg = cfg.withDefaults()
	log = logger.OrNop(log)
	if !cfg.Enabled() {
		log.Debug("temporal address not set; remote platform disabled")
		return nil, nil
	}

	opts := temporalsdkclient.Options{
		HostPort:  cfg.Address,
		Namespace: cfg.Namespace,
		Logger:    log,
	}

	deadline := time.Now().Add(cfg.DialMaxWait)
	for attempt := 1; ; attempt++ {
		dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		c, err := temporalsdkclient.DialContext(dialCtx, opts)
		cancel()
		if err == nil {
			if attempt > 1 {
				log.Info("connected to temporal", "address", cfg.Address, "namespace", cfg.Namespace, "attempts", attempt)
			}
			return c, nil
		}

		if cfg.DialMaxWait <= 0 || time.Now().After(deadline) {
			return nil, fmt.Errorf("temporal dial failed (address=%s namespace=%s): %w", cfg.Address, cfg.Namespace, err)
		}
		log.Warn("temporal not reachable; retrying", "address", cfg.Address, "attempt", attempt, "error", err)

		timer := time.NewTimer(clampBackoff(cfg.Backoff, cfg.BackoffMax, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
