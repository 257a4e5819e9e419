// Package ratelimit spaces out calls to the inference backend.
//
// Gate is a courtesy delay, not a limiter: every caller sleeps for the
// fixed delay of its operation class before issuing its own call. Callers
// are not coordinated with each other, so many concurrent callers still
// produce a burst.
package ratelimit

import (
	"context"
	"time"

	"github.com/nhle/inbox-triage/internal/model"
)

// OpClass groups calls that share a delay.
type OpClass string

const (
	OpClassification OpClass = "classification"
	OpExtraction     OpClass = "extraction"
	OpHolistic       OpClass = "holistic"
	OpSummary        OpClass = "summary"
	OpDatabase       OpClass = "database"
	OpDefault        OpClass = "default"
)

// Gate holds the per-class delay table. The zero value waits for nothing.
type Gate struct {
	delays   map[OpClass]time.Duration
	fallback time.Duration
	sleep    func(ctx context.Context, d time.Duration)
}

// DefaultDelays is the delay table used when no configuration is given.
func DefaultDelays() map[OpClass]time.Duration {
	return map[OpClass]time.Duration{
		OpClassification: 200 * time.Millisecond,
		OpExtraction:     300 * time.Millisecond,
		OpHolistic:       500 * time.Millisecond,
		OpSummary:        200 * time.Millisecond,
		OpDatabase:       0,
		OpDefault:        100 * time.Millisecond,
	}
}

// New creates a Gate from a delay table. Classes missing from the table
// use the OpDefault entry.
func New(delays map[OpClass]time.Duration) *Gate {
	table := make(map[OpClass]time.Duration, len(delays))
	for class, d := range delays {
		table[class] = d
	}
	return &Gate{
		delays:   table,
		fallback: table[OpDefault],
		sleep:    sleepContext,
	}
}

// FromConfig builds a Gate from the rate section of the app config.
func FromConfig(cfg model.RateConfig) *Gate {
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }
	return New(map[OpClass]time.Duration{
		OpClassification: ms(cfg.ClassificationMS),
		OpExtraction:     ms(cfg.ExtractionMS),
		OpHolistic:       ms(cfg.HolisticMS),
		OpSummary:        ms(cfg.SummaryMS),
		OpDatabase:       ms(cfg.DatabaseMS),
		OpDefault:        ms(cfg.DefaultMS),
	})
}

// Delay returns the delay applied for class.
func (g *Gate) Delay(class OpClass) time.Duration {
	if g == nil {
		return 0
	}
	if d, ok := g.delays[class]; ok {
		return d
	}
	return g.fallback
}

// Wait suspends the caller for the delay of class. It returns early if
// ctx is done; the caller's next call will observe the context error.
func (g *Gate) Wait(ctx context.Context, class OpClass) {
	d := g.Delay(class)
	if d <= 0 {
		return
	}
	g.sleep(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
