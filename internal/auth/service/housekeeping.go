package service

import (
	"context"
	"log/slog"
	"sort"

	"github.com/robfig/cron/v3"
)

const DefaultSweepSchedule = "@every 5m"

// Housekeeping sweeps expired attempt counters on a cron schedule.
type Housekeeping struct {
	Logger   *slog.Logger
	Schedule string
	Gates    map[string]AttemptGate

	cron *cron.Cron
}

func NewHousekeeping(logger *slog.Logger, schedule string, gates map[string]AttemptGate) *Housekeeping {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &Housekeeping{
		Logger:   logger,
		Schedule: schedule,
		Gates:    gates,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Start schedules the sweep. It fails only on a bad schedule.
func (h *Housekeeping) Start() error {
	if _, err := h.cron.AddFunc(h.Schedule, func() { h.Sweep(context.Background()) }); err != nil {
		return err
	}
	h.cron.Start()
	h.Logger.Info("housekeeping started", "schedule", h.Schedule)
	return nil
}

// Stop waits for a running sweep to finish.
func (h *Housekeeping) Stop() {
	<-h.cron.Stop().Done()
	h.Logger.Info("housekeeping stopped")
}

// Sweep runs one pass over every gate and returns the number of counters
// removed.
func (h *Housekeeping) Sweep(ctx context.Context) int {
	names := make([]string, 0, len(h.Gates))
	for name := range h.Gates {
		names = append(names, name)
	}
	sort.Strings(names)

	total := 0
	for _, name := range names {
		n := h.Gates[name].Sweep(ctx)
		if n > 0 {
			h.Logger.Debug("attempt counters swept", "gate", name, "removed", n)
		}
		total += n
	}
	return total
}
