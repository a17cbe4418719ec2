package goTrust

import (
	"github.com/thejerf/abtime"

	"github.com/MrEthical07/goTrust/sweeper"
)

// NewSweeper returns a retention sweeper over the engine's store that logs
// through the engine logger and feeds the purge counters. A nil clock uses
// real time.
func (e *Engine) NewSweeper(clock abtime.AbstractTime, cfg sweeper.Config) *sweeper.Sweeper {
	return sweeper.New(e.store, clock, cfg,
		sweeper.WithLogger(e.logger),
		sweeper.WithOnRun(func(r sweeper.Report) {
			e.metricAdd(MetricAccountsPurged, uint64(r.AccountsPurged))
			e.metricAdd(MetricTicketsPurged, uint64(r.TicketsPurged))
		}),
	)
}
