package tuner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GoSim-25-26J-441/tuning-core/internal/space"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/models"
)

// ErrStalled is returned when the operator hands out nothing to measure
// while the search is not finished.
var ErrStalled = errors.New("operator suggested nothing to measure")

// DefaultMaxRounds bounds a run when no limit is given
const DefaultMaxRounds = 10000

// Measurer measures the performance of one parameter setting.
type Measurer interface {
	Measure(ctx context.Context, params []float64) (float64, error)
}

// MeasureFunc adapts a function to Measurer
type MeasureFunc func(ctx context.Context, params []float64) (float64, error)

func (f MeasureFunc) Measure(ctx context.Context, params []float64) (float64, error) {
	return f(ctx, params)
}

// RoundHook observes every round after its measurements were reported and
// before the operator advances.
type RoundHook func(t *Tuner, measured []models.Measurement)

type runConfig struct {
	maxRounds int
	hook      RoundHook
}

// RunOption configures Run and RunBatch
type RunOption func(*runConfig)

// WithMaxRounds stops a run after n rounds
func WithMaxRounds(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.maxRounds = n
		}
	}
}

// WithRoundHook installs a per-round observer
func WithRoundHook(h RoundHook) RunOption {
	return func(c *runConfig) {
		c.hook = h
	}
}

func newRunConfig(opts []RunOption) runConfig {
	cfg := runConfig{maxRounds: DefaultMaxRounds}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// Run measures one suggestion at a time until the search finishes, the
// context is cancelled or the round limit is hit.
func (t *Tuner) Run(ctx context.Context, m Measurer, opts ...RunOption) error {
	cfg := newRunConfig(opts)
	if err := t.Build(); err != nil {
		return err
	}
	for round := 0; round < cfg.maxRounds && !t.Finished(); round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		c := t.op.Suggested()
		params := t.mustValues(c)
		start := t.now()
		v, err := m.Measure(ctx, params)
		if err != nil {
			return fmt.Errorf("measure %v: %w", params, err)
		}
		end := t.now()
		t.op.SetMetricValueTimed(c, v, start, end)
		if cfg.hook != nil {
			cfg.hook(t, []models.Measurement{{
				Coordinate: toInts(c), Values: params, Value: v, Start: start, End: end,
			}})
		}
	}
	return nil
}

type batchResult struct {
	ok         bool
	value      float64
	start, end time.Time
}

// RunBatch measures every suggestion of a round concurrently with at most
// workers measurements in flight. When a measurement fails the results
// already collected for that round are still reported before the error is
// returned.
func (t *Tuner) RunBatch(ctx context.Context, m Measurer, workers int, opts ...RunOption) error {
	cfg := newRunConfig(opts)
	if err := t.Build(); err != nil {
		return err
	}
	if workers < 1 {
		workers = 1
	}
	for round := 0; round < cfg.maxRounds && !t.Finished(); round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch := space.CloneList(t.op.SuggestedList())
		if len(batch) == 0 {
			return ErrStalled
		}

		results := make([]batchResult, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i, c := range batch {
			params := t.mustValues(c)
			g.Go(func() error {
				start := time.Now()
				v, err := m.Measure(gctx, params)
				if err != nil {
					return fmt.Errorf("measure %v: %w", params, err)
				}
				results[i] = batchResult{ok: true, value: v, start: start, end: time.Now()}
				return nil
			})
		}
		waitErr := g.Wait()

		measured := make([]models.Measurement, 0, len(batch))
		for i, r := range results {
			if !r.ok {
				continue
			}
			t.op.SetMetricValueTimed(batch[i], r.value, r.start, r.end)
			measured = append(measured, models.Measurement{
				Coordinate: toInts(batch[i]),
				Values:     t.mustValues(batch[i]),
				Value:      r.value,
				Start:      r.start,
				End:        r.end,
			})
		}
		if cfg.hook != nil && len(measured) > 0 {
			cfg.hook(t, measured)
		}
		if waitErr != nil {
			return waitErr
		}
	}
	return nil
}
