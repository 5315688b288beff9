package crontab

import (
	"context"
	"fmt"
	"time"

	"github.com/mileusna/crontab"

	"chat-relay/internal/config"
	"chat-relay/internal/infrastructure/logger"
	"chat-relay/internal/infrastructure/metrics"
	"chat-relay/internal/infrastructure/transport"
	"chat-relay/internal/utils/platformerrors"
)

const (
	DefaultProbeInterval = 5               // in minutes
	CronJobTimeout       = 1 * time.Minute // Timeout for each cron job execution
)

// Crontab runs periodic backend reachability probes.
type Crontab struct {
	ctab    *crontab.Crontab
	backend transport.Transport
}

func NewCrontab(backend transport.Transport) *Crontab {
	return &Crontab{
		ctab:    crontab.New(),
		backend: backend,
	}
}

func (c *Crontab) Run(ctx context.Context) error {
	log := logger.GetLogger()
	// execute once on server start
	c.probeBackend(ctx)

	cfg := config.GetGlobal()
	if cfg != nil && cfg.ProbeEnabled {
		probeInterval := cfg.ProbeIntervalMinutes
		if probeInterval <= 0 {
			probeInterval = DefaultProbeInterval
		}

		cronExpr := fmt.Sprintf("*/%d * * * *", probeInterval)
		if err := c.ctab.AddJob(cronExpr, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), CronJobTimeout)
			defer cancel()
			c.probeBackend(jobCtx)
		}); err != nil {
			return platformerrors.AsError(platformerrors.LayerInfrastructure, err, "failed to add backend probe job")
		}
		log.Info().Msgf("Backend probe scheduled: every %d minute(s)", probeInterval)
	}

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}

func (c *Crontab) probeBackend(ctx context.Context) {
	log := logger.GetLogger()

	err := c.backend.Probe(ctx)
	metrics.RecordProbe(c.backend.Name(), err == nil)
	if err != nil {
		log.Warn().Err(err).Str("backend", c.backend.Name()).Msg("Backend probe failed")
		return
	}
	log.Debug().Str("backend", c.backend.Name()).Msg("Backend probe succeeded")
}
