package tuner

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/tuning-core/internal/operator"
	"github.com/GoSim-25-26J-441/tuning-core/internal/space"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/config"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/logger"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/models"
)

func indexes(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func newQuiet(t *testing.T, params ...Parameter) *Tuner {
	t.Helper()
	tu, err := New(params...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tu.SetLogger(logger.Discard())
	return tu
}

var hill = MeasureFunc(func(_ context.Context, p []float64) (float64, error) {
	dx, dy := p[0]-2, p[1]-3
	return 10 - dx*dx - dy*dy, nil
})

func TestNewRejectsEmptyParameter(t *testing.T) {
	if _, err := New(Parameter{Name: "x"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	tu := newQuiet(t)
	if err := tu.Build(); !errors.Is(err, ErrNoParameters) {
		t.Fatalf("expected ErrNoParameters, got %v", err)
	}
}

func TestAppendLinearSpace(t *testing.T) {
	tu := newQuiet(t)
	if err := tu.AppendLinearSpace("block", 32, 128, 32); err != nil {
		t.Fatalf("AppendLinearSpace: %v", err)
	}
	if err := tu.AppendLinearSpace("single", 5, 9, 0); err != nil {
		t.Fatalf("AppendLinearSpace step 0: %v", err)
	}
	if err := tu.AppendLinearSpace("bad", 5, 1, 1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for max < min, got %v", err)
	}
	if tu.ParameterCount() != 2 || tu.ParameterLength(0) != 4 || tu.ParameterLength(1) != 1 {
		t.Fatalf("unexpected axes %+v", tu.Parameters())
	}
	if tu.ParameterLength(5) != 0 {
		t.Fatalf("out of range axis should have length 0")
	}
}

func TestRecommendedAlgorithm(t *testing.T) {
	one := newQuiet(t, Parameter{Values: indexes(5)})
	two := newQuiet(t, Parameter{Values: indexes(5)}, Parameter{Values: indexes(5)})
	par := newQuiet(t, Parameter{Values: indexes(5)}, Parameter{Values: indexes(5)})
	if err := par.SetParallel(true); err != nil {
		t.Fatalf("SetParallel: %v", err)
	}

	tests := []struct {
		tu   *Tuner
		want operator.Algorithm
	}{
		{one, operator.AlgorithmIPPE},
		{two, operator.Algorithm2018},
		{par, operator.Algorithm2024B},
	}
	for _, tt := range tests {
		if got := tt.tu.Algorithm(); got != tt.want {
			t.Errorf("Algorithm() = %v, want %v", got, tt.want)
		}
		if err := tt.tu.Build(); err != nil {
			t.Fatalf("Build: %v", err)
		}
		if got := tt.tu.Operator().AlgorithmID(); got != tt.want {
			t.Errorf("built %v, want %v", got, tt.want)
		}
	}
}

func TestSpecifyInitial(t *testing.T) {
	tu := newQuiet(t,
		Parameter{Name: "threads", Values: []float64{1, 2, 4, 8}},
		Parameter{Name: "block", Values: []float64{32, 64, 128}})

	if err := tu.SpecifyInitial([]float64{3, 64}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for a missing value, got %v", err)
	}
	if err := tu.SpecifyInitial([]float64{2}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for a short list, got %v", err)
	}
	if err := tu.SpecifyInitial([]float64{8, 32}); err != nil {
		t.Fatalf("SpecifyInitial: %v", err)
	}
	got, err := tu.Suggested()
	if err != nil {
		t.Fatalf("Suggested: %v", err)
	}
	if got[0] != 8 || got[1] != 32 {
		t.Fatalf("first suggestion %v, want [8 32]", got)
	}
}

func TestConfigurationFixedAfterBuild(t *testing.T) {
	tu := newQuiet(t, Parameter{Values: indexes(3)}, Parameter{Values: indexes(3)})
	if _, err := tu.Suggested(); err != nil {
		t.Fatalf("Suggested: %v", err)
	}
	calls := map[string]error{
		"SelectAlgorithm":   tu.SelectAlgorithm(operator.Algorithm2017),
		"SetRecordLog":      tu.SetRecordLog(true),
		"SetHigherIsBetter": tu.SetHigherIsBetter(true),
		"SetAlpha":          tu.SetAlpha(0.5),
		"SetInitialSearch":  tu.SetInitialSearch(true),
		"AppendParameter":   tu.AppendParameter(Parameter{Values: []float64{1}}),
	}
	for name, err := range calls {
		if !errors.Is(err, ErrAlreadyBuilt) {
			t.Errorf("%s: expected ErrAlreadyBuilt, got %v", name, err)
		}
	}
}

func TestReportingBeforeBuild(t *testing.T) {
	tu := newQuiet(t, Parameter{Values: indexes(3)})
	if err := tu.SetMetricValue(1); !errors.Is(err, ErrNotBuilt) {
		t.Fatalf("SetMetricValue: expected ErrNotBuilt, got %v", err)
	}
	if err := tu.SetTimePerformance(); !errors.Is(err, ErrNotBuilt) {
		t.Fatalf("SetTimePerformance: expected ErrNotBuilt, got %v", err)
	}
	if _, err := tu.TentativeBest(); !errors.Is(err, ErrNotBuilt) {
		t.Fatalf("TentativeBest: expected ErrNotBuilt, got %v", err)
	}
	if tu.Finished() {
		t.Fatalf("an unbuilt tuner is not finished")
	}
}

func TestSetMetricValuesTooMany(t *testing.T) {
	tu := newQuiet(t, Parameter{Values: indexes(7)}, Parameter{Values: indexes(7)})
	if err := tu.SetParallel(true); err != nil {
		t.Fatalf("SetParallel: %v", err)
	}
	list, err := tu.SuggestedList()
	if err != nil {
		t.Fatalf("SuggestedList: %v", err)
	}
	values := make([]float64, len(list)+1)
	if err := tu.SetMetricValues(values); !errors.Is(err, ErrTooManyValues) {
		t.Fatalf("expected ErrTooManyValues, got %v", err)
	}
	if err := tu.SetMetricValues(values[:1]); err != nil {
		t.Fatalf("partial list should be accepted: %v", err)
	}
	if tu.Operator().Database().SampleCount() != 1 {
		t.Fatalf("expected one sample, got %d", tu.Operator().Database().SampleCount())
	}
}

func TestSetTimePerformance(t *testing.T) {
	tu := newQuiet(t, Parameter{Values: indexes(4)}, Parameter{Values: indexes(4)})
	if err := tu.SetRecordLog(true); err != nil {
		t.Fatalf("SetRecordLog: %v", err)
	}
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ticks := []time.Time{base, base.Add(1500 * time.Nanosecond)}
	tu.now = func() time.Time {
		next := ticks[0]
		ticks = ticks[1:]
		return next
	}

	if _, err := tu.Suggested(); err != nil {
		t.Fatalf("Suggested: %v", err)
	}
	if err := tu.SetTimePerformance(); err != nil {
		t.Fatalf("SetTimePerformance: %v", err)
	}
	db := tu.Operator().Database()
	if v := db.Value(space.Coordinate{2, 2}); v != 1500 {
		t.Fatalf("expected 1500ns at the centre, got %v", v)
	}
	log := tu.Operator().Recorder().MeasuredLog()
	if len(log) != 1 || !log[0].Start.Equal(base) || log[0].Duration() != 1500*time.Nanosecond {
		t.Fatalf("unexpected measured log %+v", log)
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg, err := config.ParseSessionYAMLString(`
algorithm: s_2017
objective: maximize
metric: overwrite
initial:
  mode: specified
  values: [2, "0.5"]
parameters:
  - name: a
    values: [0, 1, 2, 3]
  - name: b
    linspace: {min: 0, max: 1, step: 0.25}
`)
	if err != nil {
		t.Fatalf("ParseSessionYAMLString: %v", err)
	}
	tu, err := NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	tu.SetLogger(logger.Discard())
	if tu.Algorithm() != operator.Algorithm2017 || tu.LowerIsBetter() {
		t.Fatalf("unexpected algorithm %v lower=%v", tu.Algorithm(), tu.LowerIsBetter())
	}
	got, err := tu.Suggested()
	if err != nil {
		t.Fatalf("Suggested: %v", err)
	}
	if got[0] != 2 || got[1] != 0.5 {
		t.Fatalf("first suggestion %v, want [2 0.5]", got)
	}
	if names := tu.ModelParameters(); names[1].Name != "b" || len(names[1].Values) != 5 {
		t.Fatalf("unexpected parameters %+v", names)
	}
}

func TestNewFromConfigInitialNotInAxis(t *testing.T) {
	cfg, err := config.ParseSessionYAMLString(`
initial: {mode: specified, values: [7]}
parameters: [{name: a, values: [1, 2, 3]}]
`)
	if err != nil {
		t.Fatalf("ParseSessionYAMLString: %v", err)
	}
	if _, err := NewFromConfig(cfg); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestRunFindsHillTop(t *testing.T) {
	tu := newQuiet(t, Parameter{Name: "x", Values: indexes(5)}, Parameter{Name: "y", Values: indexes(5)})
	if err := tu.SetHigherIsBetter(true); err != nil {
		t.Fatalf("SetHigherIsBetter: %v", err)
	}
	if err := tu.SetRecordLog(true); err != nil {
		t.Fatalf("SetRecordLog: %v", err)
	}

	rounds := 0
	var loopLog bytes.Buffer
	hook := func(tu *Tuner, _ []models.Measurement) {
		rounds++
		if err := tu.WriteLoopLog(&loopLog); err != nil {
			t.Fatalf("WriteLoopLog: %v", err)
		}
	}
	if err := tu.Run(context.Background(), hill, WithRoundHook(hook)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !tu.Finished() {
		t.Fatalf("expected the search to finish")
	}
	best, err := tu.TentativeBest()
	if err != nil {
		t.Fatalf("TentativeBest: %v", err)
	}
	if best[0] != 2 || best[1] != 3 {
		t.Fatalf("TentativeBest = %v, want [2 3]", best)
	}
	if rounds == 0 || !strings.HasPrefix(loopLog.String(), "Loop = 1\n\tSearching Mode : Initial Search\n") {
		t.Fatalf("unexpected loop log:\n%s", loopLog.String())
	}

	var out bytes.Buffer
	if err := tu.WriteResult(&out); err != nil {
		t.Fatalf("WriteResult: %v", err)
	}
	for _, want := range []string{
		"[Tuning Result]\n",
		"\tSearching Status : Finish\n",
		" / 25 (",
		"\tParameter : 2 3 (Coordinate : 2 3)\n",
		"\tPerformance Value : 10\n",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("result missing %q:\n%s", want, out.String())
		}
	}

	res, err := tu.Result()
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if !res.Finished || res.Value == nil || *res.Value != 10 || res.Algorithm != "S_2018" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunContextCancelled(t *testing.T) {
	tu := newQuiet(t, Parameter{Values: indexes(5)}, Parameter{Values: indexes(5)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tu.Run(ctx, hill); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunMeasurerError(t *testing.T) {
	tu := newQuiet(t, Parameter{Values: indexes(5)}, Parameter{Values: indexes(5)})
	boom := errors.New("boom")
	m := MeasureFunc(func(context.Context, []float64) (float64, error) { return 0, boom })
	if err := tu.Run(context.Background(), m); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if tu.Operator().Database().SampleCount() != 0 {
		t.Fatalf("a failed measurement must not be reported")
	}
}

func TestRunMaxRounds(t *testing.T) {
	tu := newQuiet(t, Parameter{Values: indexes(9)}, Parameter{Values: indexes(9)})
	if err := tu.Run(context.Background(), hill, WithMaxRounds(3)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := tu.Operator().Database().SampleCount(); n == 0 || n > 3 {
		t.Fatalf("expected between 1 and 3 samples, got %d", n)
	}
}
