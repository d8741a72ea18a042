package monitor

import (
	"context"

	"github.com/go-co-op/gocron/v2"
)

// StartScheduler fires CheckAll on the configured interval, with the
// first sweep running immediately. The returned shutdown func stops the
// scheduler; an in-flight sweep still runs to completion.
func (m *Monitor) StartScheduler(ctx context.Context) (func(), error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(m.cfg.CheckInterval),
		gocron.NewTask(func() {
			if err := m.CheckAll(ctx); err != nil && err != ErrBusy {
				m.log.Error("scheduled batch check", "error", err)
			}
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	m.log.Info("scheduler started", "interval", m.cfg.CheckInterval)

	return func() {
		if err := sched.Shutdown(); err != nil {
			m.log.Error("scheduler shutdown", "error", err)
		}
	}, nil
}
