// Package operator sequences searchers into complete tuning algorithms.
// An operator owns the sample database and the active searcher, and moves
// between phases only inside UpdateState.
package operator

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/tuning-core/internal/database"
	"github.com/GoSim-25-26J-441/tuning-core/internal/dspline"
	"github.com/GoSim-25-26J-441/tuning-core/internal/search"
	"github.com/GoSim-25-26J-441/tuning-core/internal/space"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/logger"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/utils"
)

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrUnknownAlgorithm  = errors.New("unknown algorithm")
	ErrTooManyParameters = errors.New("algorithm supports a single parameter only")
)

// Algorithm identifies one of the tuning state machines.
type Algorithm int

const (
	AlgorithmIPPE Algorithm = iota + 1
	Algorithm2017
	Algorithm2018
	Algorithm2024B
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmIPPE:
		return "S_IPPE"
	case Algorithm2017:
		return "S_2017"
	case Algorithm2018:
		return "S_2018"
	case Algorithm2024B:
		return "P_2024B"
	default:
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
}

func (a Algorithm) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Algorithm) UnmarshalText(b []byte) error {
	v, err := ParseAlgorithm(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Parallel reports whether the algorithm hands out batches meant to be
// measured concurrently.
func (a Algorithm) Parallel() bool {
	return a == Algorithm2024B
}

// ParseAlgorithm accepts the algorithm ids case-insensitively, with or
// without the S_/P_ prefix.
func ParseAlgorithm(s string) (Algorithm, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimPrefix(strings.TrimPrefix(name, "s_"), "p_")
	switch name {
	case "ippe":
		return AlgorithmIPPE, nil
	case "2017":
		return Algorithm2017, nil
	case "2018":
		return Algorithm2018, nil
	case "2024b":
		return Algorithm2024B, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
	}
}

// Recommended picks an algorithm for a space: P_2024B for parallel
// measurement, S_IPPE for a single parameter and S_2018 otherwise.
func Recommended(dimension int, parallel bool) Algorithm {
	switch {
	case parallel:
		return Algorithm2024B
	case dimension == 1:
		return AlgorithmIPPE
	default:
		return Algorithm2018
	}
}

// InitMode selects the first base point.
type InitMode int

const (
	InitCenter InitMode = iota
	InitSpecified
	InitSearch
)

func (m InitMode) String() string {
	switch m {
	case InitSpecified:
		return "specified"
	case InitSearch:
		return "search"
	default:
		return "center"
	}
}

// ParseInitMode converts a config string into an InitMode
func ParseInitMode(s string) (InitMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "center":
		return InitCenter, nil
	case "specified":
		return InitSpecified, nil
	case "search", "initial_search", "lhd":
		return InitSearch, nil
	default:
		return 0, fmt.Errorf("%w: unknown initial mode %q", ErrInvalidArgument, s)
	}
}

// Options configures an operator.
type Options struct {
	LowerIsBetter bool
	// Logging keeps the full round history in the database.
	Logging    bool
	Alpha      float64
	MetricType database.MetricType
	Init       InitMode
	// Initial is the first base point when Init is InitSpecified.
	Initial space.Coordinate
	// Rand drives the initial design when Init is InitSearch.
	Rand   *utils.RandSource
	Logger *slog.Logger
}

// DefaultOptions returns the options used when a caller sets nothing
func DefaultOptions() Options {
	return Options{
		LowerIsBetter: true,
		Alpha:         dspline.DefaultAlpha,
		MetricType:    database.Average,
		Init:          InitCenter,
	}
}

// Operator is the decision API of a tuning algorithm. Suggested,
// SuggestedList, Finished and the Best methods apply buffered measurements
// before answering.
type Operator interface {
	AlgorithmID() Algorithm
	Base() space.Coordinate
	Suggested() space.Coordinate
	SuggestedList() []space.Coordinate
	SetMetricValue(c space.Coordinate, v float64)
	// SetMetricValueTimed also records when the measurement ran; the
	// span is kept only by a logging database.
	SetMetricValueTimed(c space.Coordinate, v float64, start, end time.Time)
	UpdateState() bool
	Finished() bool
	BestJudged() space.Coordinate
	BestMeasured() space.Coordinate
	Database() database.Store
	// Recorder returns the history of a logging database, nil otherwise.
	Recorder() database.Recorder
	Searcher() search.Searcher
	LoopCount() int
	Phase() int
	PhaseName() string
	Snapshot() State
}

// State is a plain copy of an operator's position in its algorithm.
type State struct {
	Algorithm Algorithm        `json:"algorithm" yaml:"algorithm"`
	Phase     int              `json:"phase" yaml:"phase"`
	PhaseName string           `json:"phase_name" yaml:"phase_name"`
	Base      space.Coordinate `json:"base" yaml:"base"`
	BaseValue *float64         `json:"base_value,omitempty" yaml:"base_value,omitempty"`
	Loop      int              `json:"loop" yaml:"loop"`
	AxisLevel int              `json:"axis_level,omitempty" yaml:"axis_level,omitempty"`
	Finished  bool             `json:"finished" yaml:"finished"`
	Samples   int              `json:"samples" yaml:"samples"`
}

// New builds the operator for alg over a space of the given size
func New(alg Algorithm, size space.Size, opts Options) (Operator, error) {
	switch alg {
	case AlgorithmIPPE:
		return NewIPPE(size, opts)
	case Algorithm2017:
		return NewS2017(size, opts)
	case Algorithm2018:
		return NewS2018(size, opts)
	case Algorithm2024B:
		return NewP2024B(size, opts)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownAlgorithm, alg)
	}
}

// machine carries what every operator shares. The concrete operator sets
// advance, which runs the phase transitions once the searcher is finished.
type machine struct {
	alg      Algorithm
	opts     Options
	db       database.Store
	rec      database.Recorder
	searcher search.Searcher
	base     space.Coordinate
	phase    int
	terminal int
	names    []string
	loop     int
	log      *slog.Logger
	advance  func()
}

func newMachine(alg Algorithm, size space.Size, opts Options, names []string) (*machine, error) {
	if err := size.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if opts.Init == InitSpecified {
		if err := size.Check(opts.Initial); err != nil {
			return nil, fmt.Errorf("%w: initial coordinate: %w", ErrInvalidArgument, err)
		}
	}
	m := &machine{
		alg:      alg,
		opts:     opts,
		names:    names,
		terminal: len(names) - 1,
		log:      opts.Logger,
	}
	if m.log == nil {
		m.log = logger.Component("operator")
	}
	m.log = m.log.With("algorithm", alg.String())
	if opts.Logging {
		ld := database.NewLogging(size, opts.MetricType)
		m.db, m.rec = ld, ld
	} else {
		m.db = database.NewStandard(size, opts.MetricType)
	}
	return m, nil
}

func (m *machine) AlgorithmID() Algorithm      { return m.alg }
func (m *machine) Base() space.Coordinate      { return m.base }
func (m *machine) Database() database.Store    { return m.db }
func (m *machine) Recorder() database.Recorder { return m.rec }
func (m *machine) Searcher() search.Searcher   { return m.searcher }
func (m *machine) LoopCount() int              { return m.loop }
func (m *machine) Phase() int                  { return m.phase }

func (m *machine) PhaseName() string {
	if m.phase < 0 || m.phase >= len(m.names) {
		return "Unknown"
	}
	return m.names[m.phase]
}

func (m *machine) Suggested() space.Coordinate {
	m.UpdateState()
	return m.searcher.Suggested()
}

func (m *machine) SuggestedList() []space.Coordinate {
	m.UpdateState()
	return m.searcher.SuggestedList()
}

func (m *machine) Finished() bool {
	m.UpdateState()
	return m.phase == m.terminal
}

func (m *machine) SetMetricValue(c space.Coordinate, v float64) {
	m.db.SetSample(c, v)
	m.searcher.SetMetricValue(c, v)
}

func (m *machine) SetMetricValueTimed(c space.Coordinate, v float64, start, end time.Time) {
	if m.rec != nil {
		m.rec.SetSampleTimed(c, v, start, end)
	} else {
		m.db.SetSample(c, v)
	}
	m.searcher.SetMetricValue(c, v)
}

// UpdateState applies buffered measurements and runs the phase
// transitions when the active searcher is done. It returns false when
// nothing was buffered.
func (m *machine) UpdateState() bool {
	if !m.searcher.UpdateState() {
		return false
	}
	m.loop++
	if m.rec != nil {
		m.rec.UpdateCandidateList(m.searcher.SuggestedList())
	}
	m.db.SetLoopEnd()
	if m.searcher.Finished() && m.advance != nil {
		m.advance()
	}
	return true
}

func (m *machine) Snapshot() State {
	st := State{
		Algorithm: m.alg,
		Phase:     m.phase,
		PhaseName: m.PhaseName(),
		Base:      m.base.Clone(),
		Loop:      m.loop,
		Finished:  m.phase == m.terminal,
		Samples:   m.db.SampleCount(),
	}
	if m.db.HasSample(m.base) {
		v := m.db.Value(m.base)
		st.BaseValue = &v
	}
	return st
}

// use installs s as the active searcher.
func (m *machine) use(s search.Searcher) {
	m.searcher = s
	if m.rec != nil {
		m.rec.UpdateCandidateList(s.SuggestedList())
	}
}

func (m *machine) setPhase(p int) {
	if p != m.phase {
		m.log.Debug("phase changed", "phase", m.names[p], "loop", m.loop, "base", m.base.Key())
	}
	m.phase = p
}

func (m *machine) setBasePoint(c space.Coordinate) {
	m.base = c.Clone()
	if m.db.SetBasePoint(m.base) {
		m.log.Debug("base point set", "base", m.base.Key(), "loop", m.loop)
	}
}

// finish parks the operator on its base point.
func (m *machine) finish() {
	if m.phase == m.terminal {
		return
	}
	m.use(search.NewUniMeasurer(m.base))
	m.setPhase(m.terminal)
	m.log.Info("search finished", "base", m.base.Key(), "loop", m.loop, "samples", m.db.SampleCount())
}

// pick chooses between the base point and a searcher's best: the searcher's
// point wins unless the base is strictly better.
func (m *machine) pick(c space.Coordinate) space.Coordinate {
	if c == nil || !m.db.HasSample(c) {
		return m.base
	}
	if !m.db.HasSample(m.base) {
		return c
	}
	if utils.Better(m.db.Value(m.base), m.db.Value(c), m.opts.LowerIsBetter) {
		return m.base
	}
	return c
}
