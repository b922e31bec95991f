// Package tuner is the value-level facade over the operators. It keeps the
// parameter value lists, selects and lazily builds the operator, and
// translates coordinates to parameter values and back.
package tuner

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/GoSim-25-26J-441/tuning-core/internal/database"
	"github.com/GoSim-25-26J-441/tuning-core/internal/operator"
	"github.com/GoSim-25-26J-441/tuning-core/internal/space"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/config"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/logger"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/models"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/utils"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotBuilt        = errors.New("tuner has not suggested anything yet")
	ErrAlreadyBuilt    = errors.New("tuner configuration is fixed once the search started")
	ErrTooManyValues   = errors.New("more metric values than suggested parameters")
	ErrNoParameters    = errors.New("tuner needs at least one parameter")
)

// Parameter is one tunable axis.
type Parameter struct {
	Name   string
	Values []float64
}

// Tuner is not safe for concurrent use.
type Tuner struct {
	params []Parameter

	// zero means recommended
	algorithm operator.Algorithm
	opts      operator.Options
	search    bool
	parallel  bool

	op         operator.Operator
	timerStart time.Time
	now        func() time.Time
	log        *slog.Logger
}

// New creates a tuner over the given parameters with the default options:
// recommended algorithm, lower is better, no history.
func New(params ...Parameter) (*Tuner, error) {
	t := &Tuner{
		opts: operator.DefaultOptions(),
		now:  time.Now,
		log:  logger.Component("tuner"),
	}
	for _, p := range params {
		if err := t.AppendParameter(p); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// NewFromConfig creates a tuner from a validated session configuration
func NewFromConfig(cfg *config.Session) (*Tuner, error) {
	t, err := New()
	if err != nil {
		return nil, err
	}
	for _, spec := range cfg.Parameters {
		values, err := spec.Resolve()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		if err := t.AppendParameter(Parameter{Name: spec.Name, Values: values}); err != nil {
			return nil, err
		}
	}

	if cfg.Algorithm != "" && cfg.Algorithm != "recommended" {
		alg, err := operator.ParseAlgorithm(cfg.Algorithm)
		if err != nil {
			return nil, err
		}
		t.algorithm = alg
	}
	if cfg.Metric != "" {
		metric, err := database.ParseMetricType(cfg.Metric)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		t.opts.MetricType = metric
	}
	t.opts.LowerIsBetter = cfg.LowerIsBetter()
	t.opts.Alpha = cfg.Alpha
	t.opts.Logging = cfg.RecordLog
	t.parallel = cfg.Parallel
	if cfg.Seed != 0 {
		t.opts.Rand = utils.NewRandSource(cfg.Seed)
	}

	switch cfg.InitialMode() {
	case "search":
		t.search = true
	case "specified":
		values, err := cfg.InitialValues()
		if err != nil {
			return nil, fmt.Errorf("%w: initial values: %w", ErrInvalidArgument, err)
		}
		if err := t.SpecifyInitial(values); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// AppendParameter adds an axis. Values are kept in the given order.
func (t *Tuner) AppendParameter(p Parameter) error {
	if t.op != nil {
		return ErrAlreadyBuilt
	}
	if len(p.Values) == 0 {
		return fmt.Errorf("%w: parameter %q must have at least one value", ErrInvalidArgument, p.Name)
	}
	if p.Name == "" {
		p.Name = fmt.Sprintf("p%d", len(t.params))
	}
	p.Values = append([]float64(nil), p.Values...)
	t.params = append(t.params, p)
	return nil
}

// AppendLinearSpace adds an axis with the values min, min+step, ... up to max
func (t *Tuner) AppendLinearSpace(name string, min, max, step float64) error {
	values, err := utils.LinearSpace(min, max, step)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return t.AppendParameter(Parameter{Name: name, Values: values})
}

// SelectAlgorithm fixes the algorithm; zero restores the recommended choice.
func (t *Tuner) SelectAlgorithm(alg operator.Algorithm) error {
	if t.op != nil {
		return ErrAlreadyBuilt
	}
	t.algorithm = alg
	return nil
}

// SetInitialSearch switches the first base point to an initial design
// search. Turning it off falls back to the specified point if one was
// given, the center otherwise.
func (t *Tuner) SetInitialSearch(on bool) error {
	if t.op != nil {
		return ErrAlreadyBuilt
	}
	t.search = on
	return nil
}

// SpecifyInitial starts the search from the given parameter values. Every
// value must appear in its axis.
func (t *Tuner) SpecifyInitial(values []float64) error {
	if t.op != nil {
		return ErrAlreadyBuilt
	}
	c, err := t.Coordinate(values)
	if err != nil {
		return fmt.Errorf("initial parameter: %w", err)
	}
	t.opts.Initial = c
	t.search = false
	return nil
}

func (t *Tuner) SetRecordLog(on bool) error {
	if t.op != nil {
		return ErrAlreadyBuilt
	}
	t.opts.Logging = on
	return nil
}

func (t *Tuner) SetLowerIsBetter(lower bool) error {
	if t.op != nil {
		return ErrAlreadyBuilt
	}
	t.opts.LowerIsBetter = lower
	return nil
}

func (t *Tuner) SetHigherIsBetter(higher bool) error {
	return t.SetLowerIsBetter(!higher)
}

// SetParallel asks the recommended choice for a batch algorithm
func (t *Tuner) SetParallel(on bool) error {
	if t.op != nil {
		return ErrAlreadyBuilt
	}
	t.parallel = on
	return nil
}

func (t *Tuner) SetAlpha(alpha float64) error {
	if t.op != nil {
		return ErrAlreadyBuilt
	}
	if alpha < 0 || math.IsNaN(alpha) {
		return fmt.Errorf("%w: alpha %v", ErrInvalidArgument, alpha)
	}
	t.opts.Alpha = alpha
	return nil
}

func (t *Tuner) SetMetricType(mt database.MetricType) error {
	if t.op != nil {
		return ErrAlreadyBuilt
	}
	t.opts.MetricType = mt
	return nil
}

// SetRandSource seeds the initial design search
func (t *Tuner) SetRandSource(r *utils.RandSource) error {
	if t.op != nil {
		return ErrAlreadyBuilt
	}
	t.opts.Rand = r
	return nil
}

// SetLogger replaces the logger handed to the tuner and its operator
func (t *Tuner) SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	t.log = l
	if t.op == nil {
		t.opts.Logger = l
	}
}

// Build creates the operator. Suggestion calls build lazily; calling Build
// first surfaces configuration errors early.
func (t *Tuner) Build() error {
	if t.op != nil {
		return nil
	}
	if len(t.params) == 0 {
		return ErrNoParameters
	}

	alg := t.algorithm
	if alg == 0 {
		alg = operator.Recommended(len(t.params), t.parallel)
	}
	opts := t.opts
	switch {
	case t.search:
		opts.Init = operator.InitSearch
	case opts.Initial != nil:
		opts.Init = operator.InitSpecified
	default:
		opts.Init = operator.InitCenter
	}

	op, err := operator.New(alg, t.Size(), opts)
	if err != nil {
		return fmt.Errorf("build %s: %w", alg, err)
	}
	t.op = op
	t.log.Info("operator built",
		"algorithm", alg.String(),
		"size", []int(t.Size()),
		"init", opts.Init.String())
	return nil
}

// Built reports whether the operator exists
func (t *Tuner) Built() bool {
	return t.op != nil
}

// Operator returns the underlying operator, nil before the first build
func (t *Tuner) Operator() operator.Operator {
	return t.op
}

// Algorithm returns the selected algorithm, resolving the recommended
// choice the way Build will.
func (t *Tuner) Algorithm() operator.Algorithm {
	if t.op != nil {
		return t.op.AlgorithmID()
	}
	if t.algorithm == 0 {
		return operator.Recommended(len(t.params), t.parallel)
	}
	return t.algorithm
}

// LowerIsBetter reports the optimisation direction
func (t *Tuner) LowerIsBetter() bool {
	return t.opts.LowerIsBetter
}

// Size returns the per-axis value counts
func (t *Tuner) Size() space.Size {
	size := make(space.Size, len(t.params))
	for i, p := range t.params {
		size[i] = len(p.Values)
	}
	return size
}

func (t *Tuner) ParameterCount() int {
	return len(t.params)
}

// ParameterLength returns the number of values of axis i
func (t *Tuner) ParameterLength(i int) int {
	if i < 0 || i >= len(t.params) {
		return 0
	}
	return len(t.params[i].Values)
}

// Parameters returns a copy of the axes
func (t *Tuner) Parameters() []Parameter {
	out := make([]Parameter, len(t.params))
	for i, p := range t.params {
		out[i] = Parameter{Name: p.Name, Values: append([]float64(nil), p.Values...)}
	}
	return out
}

// Values converts a coordinate into parameter values
func (t *Tuner) Values(c space.Coordinate) ([]float64, error) {
	if err := t.Size().Check(c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	out := make([]float64, len(c))
	for i, idx := range c {
		out[i] = t.params[i].Values[idx]
	}
	return out, nil
}

// Coordinate converts parameter values into a coordinate. The first
// matching value of each axis wins.
func (t *Tuner) Coordinate(values []float64) (space.Coordinate, error) {
	if len(values) != len(t.params) {
		return nil, fmt.Errorf("%w: got %d values for %d parameters", ErrInvalidArgument, len(values), len(t.params))
	}
	c := make(space.Coordinate, len(values))
	for i, v := range values {
		idx := indexOf(t.params[i].Values, v)
		if idx < 0 {
			return nil, fmt.Errorf("%w: value %v not found in parameter %q", ErrInvalidArgument, v, t.params[i].Name)
		}
		c[i] = idx
	}
	return c, nil
}

func indexOf(values []float64, v float64) int {
	for i, x := range values {
		if x == v {
			return i
		}
	}
	return -1
}

func (t *Tuner) mustValues(c space.Coordinate) []float64 {
	out := make([]float64, len(c))
	for i, idx := range c {
		out[i] = t.params[i].Values[idx]
	}
	return out
}

// Suggested returns the next parameter values to measure and starts the
// timer read by SetTimePerformance.
func (t *Tuner) Suggested() ([]float64, error) {
	if err := t.Build(); err != nil {
		return nil, err
	}
	values := t.mustValues(t.op.Suggested())
	t.timerStart = t.now()
	return values, nil
}

// SuggestedList returns the whole batch of parameter values to measure
func (t *Tuner) SuggestedList() ([][]float64, error) {
	coords, err := t.SuggestedCoordinates()
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(coords))
	for i, c := range coords {
		out[i] = t.mustValues(c)
	}
	return out, nil
}

// SuggestedCoordinates is SuggestedList in coordinate form
func (t *Tuner) SuggestedCoordinates() ([]space.Coordinate, error) {
	if err := t.Build(); err != nil {
		return nil, err
	}
	return space.CloneList(t.op.SuggestedList()), nil
}

// SetMetricValue reports the performance of the current suggestion
func (t *Tuner) SetMetricValue(v float64) error {
	if t.op == nil {
		return ErrNotBuilt
	}
	t.op.SetMetricValue(t.op.Suggested(), v)
	return nil
}

// SetTimePerformance reports the nanoseconds elapsed since the last
// Suggested call as the performance of the current suggestion.
func (t *Tuner) SetTimePerformance() error {
	if t.op == nil {
		return ErrNotBuilt
	}
	end := t.now()
	elapsed := end.Sub(t.timerStart)
	t.op.SetMetricValueTimed(t.op.Suggested(), float64(elapsed.Nanoseconds()), t.timerStart, end)
	return nil
}

// SetMetricValues reports values for the current batch in order. Fewer
// values than suggestions is allowed; more is an error.
func (t *Tuner) SetMetricValues(values []float64) error {
	if t.op == nil {
		return ErrNotBuilt
	}
	list := space.CloneList(t.op.SuggestedList())
	if len(values) > len(list) {
		return fmt.Errorf("%w: %d values for %d suggestions", ErrTooManyValues, len(values), len(list))
	}
	for i, v := range values {
		t.op.SetMetricValue(list[i], v)
	}
	return nil
}

// SetMetricValueAt reports a measurement for an explicit coordinate
func (t *Tuner) SetMetricValueAt(c space.Coordinate, v float64, start, end time.Time) error {
	if t.op == nil {
		return ErrNotBuilt
	}
	if err := t.Size().Check(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if start.IsZero() {
		t.op.SetMetricValue(c, v)
		return nil
	}
	t.op.SetMetricValueTimed(c, v, start, end)
	return nil
}

// TentativeBest returns the parameter values of the current base point
func (t *Tuner) TentativeBest() ([]float64, error) {
	if t.op == nil {
		return nil, ErrNotBuilt
	}
	return t.mustValues(t.op.Base()), nil
}

// Finished reports whether the search is over; false before the first build
func (t *Tuner) Finished() bool {
	return t.op != nil && t.op.Finished()
}

// BestMeasured returns the best measured coordinate, falling back to the
// base point when nothing better is known.
func (t *Tuner) BestMeasured() (space.Coordinate, error) {
	if t.op == nil {
		return nil, ErrNotBuilt
	}
	if c := t.op.BestMeasured(); c != nil {
		return c, nil
	}
	return t.op.Base(), nil
}

// Result summarises the search for reporting and the daemon API
func (t *Tuner) Result() (models.Result, error) {
	if t.op == nil {
		return models.Result{}, ErrNotBuilt
	}
	best, err := t.BestMeasured()
	if err != nil {
		return models.Result{}, err
	}
	db := t.op.Database()
	res := models.Result{
		Algorithm: t.op.AlgorithmID().String(),
		Phase:     t.op.PhaseName(),
		Finished:  t.op.Finished(),
		Loop:      t.op.LoopCount(),
		Measured:  db.SampleCount(),
		Total:     t.Size().Total(),
	}
	if best != nil {
		res.Best = &models.Suggestion{Coordinate: append([]int(nil), best...), Values: t.mustValues(best)}
		if db.HasSample(best) {
			v := db.Value(best)
			res.Value = &v
		}
	}
	return res, nil
}

// ModelParameters returns the axes in API form
func (t *Tuner) ModelParameters() []models.Parameter {
	out := make([]models.Parameter, len(t.params))
	for i, p := range t.params {
		out[i] = models.Parameter{Name: p.Name, Values: append([]float64(nil), p.Values...)}
	}
	return out
}
